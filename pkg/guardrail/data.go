package guardrail

import "github.com/railguard/railguard/pkg/types"

// Status classifies how a single guardrail invocation ended.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Result is the structured record emitted to the result sink after every
// non-silent invocation. The engine never stores it.
type Result struct {
	TraceID         string      `json:"trace_id"`
	Guardrail       string      `json:"guardrail_name"`
	Stage           types.Stage `json:"stage"`
	Status          Status      `json:"status"`
	Reason          string      `json:"reason"`
	PolicyName      string      `json:"policy_name,omitempty"`
	ViolatedPolicy  string      `json:"violated_policy,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	MessagePreview  string      `json:"message_preview,omitempty"`
}

// OutcomeKind enumerates the three ways a hook invocation resolves.
type OutcomeKind string

const (
	OutcomeAllowed OutcomeKind = "allowed"
	OutcomeBlocked OutcomeKind = "blocked"
	OutcomeErrored OutcomeKind = "errored"
)

// Outcome is the explicit result variant returned by the hook pipeline.
// Blocked carries the user-facing message and policy; Errored carries the
// cause but is still a pass-through for the host (fail open). Modeling the
// block as a value rather than a panic/exception keeps the fail-open versus
// fail-closed branching exhaustive at the call site.
type Outcome struct {
	Kind       OutcomeKind
	Message    string
	PolicyName string
	Cause      error
}

func AllowedOutcome() Outcome {
	return Outcome{Kind: OutcomeAllowed}
}

func BlockedOutcome(block *BlockError) Outcome {
	return Outcome{
		Kind:       OutcomeBlocked,
		Message:    block.Message,
		PolicyName: block.PolicyName,
	}
}

func ErroredOutcome(cause error) Outcome {
	return Outcome{Kind: OutcomeErrored, Cause: cause}
}

// Blocked reports whether the host must abort or rewrite.
func (o Outcome) Blocked() bool {
	return o.Kind == OutcomeBlocked
}
