package guardrail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/railguard/railguard/pkg/infra/metrics"
	"github.com/railguard/railguard/pkg/infra/tracker"
	"github.com/railguard/railguard/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	// GuardrailName tags results, audit headers and bypass metadata.
	GuardrailName = "railguard"

	// refusalTemplate replaces a blocked model response. The post-call path
	// never aborts; it substitutes content.
	refusalTemplate = "I apologize, but I cannot provide that response as it violates content safety policies. (Policy: %s)"

	previewLimit = 100
)

// Engine orchestrates the pre-call and post-call guardrail checks. It holds
// no per-call state; the only shared mutable state is the client's config
// cache.
type Engine struct {
	client   Client
	logger   *logrus.Logger
	gate     Gate
	bypass   BypassPolicy
	headers  HeaderRecorder
	sink     ResultSink
	tracker  tracker.Tracker
	trackTTL time.Duration
}

type Option func(*Engine)

// WithViolationTracker records a violation for the offending client on
// every blocked outcome, best effort.
func WithViolationTracker(t tracker.Tracker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.tracker = t
		e.trackTTL = ttl
	}
}

func NewEngine(
	logger *logrus.Logger,
	client Client,
	gate Gate,
	bypass BypassPolicy,
	headers HeaderRecorder,
	sink ResultSink,
	opts ...Option,
) *Engine {
	e := &Engine{
		client:  client,
		logger:  logger,
		gate:    gate,
		bypass:  bypass,
		headers: headers,
		sink:    sink,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PreCall validates the most recent user message before it reaches the
// model. A Blocked outcome is expected to abort the request at the host
// boundary; an Errored outcome is a pass-through (fail open).
func (e *Engine) PreCall(ctx context.Context, req *types.RequestContext) Outcome {
	if !e.gate.ShouldRunGuardrail(types.PreCall) {
		return AllowedOutcome()
	}
	if !e.bypass.ShouldProceed(ctx, req) {
		return AllowedOutcome()
	}

	userMessage, ok := req.LastMessageByRole(types.RoleUser)
	if !ok {
		e.logger.Debug("no user message found to check")
		return AllowedOutcome()
	}

	e.logger.WithField("preview", preview(userMessage.Content)).Debug("running pre-call check")
	start := time.Now()

	payload, err := e.client.Classify(ctx, []types.Message{
		{Role: types.RoleUser, Content: userMessage.Content},
	})
	if err != nil {
		return e.failOpen(ctx, types.PreCall, start, err, userMessage.Content)
	}

	decision, err := Decide(payload)
	if err != nil {
		return e.failOpen(ctx, types.PreCall, start, err, userMessage.Content)
	}

	if decision.Blocked {
		e.logger.WithFields(logrus.Fields{
			"reason": decision.Reason,
			"policy": decision.PolicyName,
		}).Warn("blocked user message")

		e.emit(ctx, types.PreCall, StatusBlocked, start,
			fmt.Sprintf("message blocked: %s", decision.Reason),
			decision.PolicyName, userMessage.Content)
		e.recordViolation(ctx, req)

		return BlockedOutcome(NewBlockError(decision.PolicyName))
	}

	e.emit(ctx, types.PreCall, StatusPassed, start,
		"message passed guardrail checks", "", userMessage.Content)
	e.headers.RecordApplied(req, GuardrailName)

	return AllowedOutcome()
}

// PostCall validates the model response before it reaches the user. On a
// confirmed match the first choice's content is rewritten in place with the
// refusal template; the (possibly mutated) response is always returned.
func (e *Engine) PostCall(
	ctx context.Context,
	req *types.RequestContext,
	resp *types.CompletionResponse,
) (*types.CompletionResponse, Outcome) {
	if !e.gate.ShouldRunGuardrail(types.PostCall) {
		return resp, AllowedOutcome()
	}
	if !e.bypass.ShouldProceed(ctx, req) {
		return resp, AllowedOutcome()
	}

	content := responseContent(resp)
	if content == "" {
		e.logger.Debug("no response content found to check")
		return resp, AllowedOutcome()
	}

	e.logger.WithField("preview", preview(content)).Debug("running post-call check")
	start := time.Now()

	payload, err := e.client.Classify(ctx, []types.Message{
		{Role: types.RoleAssistant, Content: content},
	})
	if err != nil {
		return resp, e.failOpen(ctx, types.PostCall, start, err, content)
	}

	decision, err := Decide(payload)
	if err != nil {
		return resp, e.failOpen(ctx, types.PostCall, start, err, content)
	}

	if decision.Blocked {
		e.logger.WithFields(logrus.Fields{
			"reason": decision.Reason,
			"policy": decision.PolicyName,
		}).Warn("blocked model response")

		e.emit(ctx, types.PostCall, StatusBlocked, start,
			fmt.Sprintf("model response blocked: %s", decision.Reason),
			decision.PolicyName, content)
		e.recordViolation(ctx, req)

		policyName := decision.PolicyName
		if policyName == "" {
			policyName = "Content Safety"
		}
		resp.Choices[0].Message.Content = fmt.Sprintf(refusalTemplate, policyName)
		e.headers.RecordApplied(req, GuardrailName)

		return resp, Outcome{
			Kind:       OutcomeBlocked,
			Message:    resp.Choices[0].Message.Content,
			PolicyName: policyName,
		}
	}

	e.emit(ctx, types.PostCall, StatusPassed, start,
		"model response passed guardrail checks", "", content)
	e.headers.RecordApplied(req, GuardrailName)

	return resp, AllowedOutcome()
}

// failOpen logs and records the failure, then converts it into a
// pass-through outcome. The guardrail must not become a source of outages
// when the classification dependency is unavailable.
func (e *Engine) failOpen(
	ctx context.Context,
	stage types.Stage,
	start time.Time,
	cause error,
	message string,
) Outcome {
	e.logger.WithError(cause).WithField("stage", stage).Error("guardrail check failed")
	e.emit(ctx, stage, StatusError, start, fmt.Sprintf("error: %v", cause), "", message)
	return ErroredOutcome(cause)
}

func (e *Engine) emit(
	ctx context.Context,
	stage types.Stage,
	status Status,
	start time.Time,
	reason string,
	policyName string,
	message string,
) {
	duration := time.Since(start).Seconds()

	metrics.ChecksTotal.WithLabelValues(string(stage), string(status)).Inc()
	metrics.CheckDuration.WithLabelValues(string(stage)).Observe(duration)
	if status == StatusBlocked {
		policy := policyName
		if policy == "" {
			policy = UnknownPolicyName
		}
		metrics.BlockedTotal.WithLabelValues(policy).Inc()
	}

	e.sink.Emit(ctx, Result{
		TraceID:         uuid.New().String(),
		Guardrail:       GuardrailName,
		Stage:           stage,
		Status:          status,
		Reason:          reason,
		PolicyName:      policyName,
		ViolatedPolicy:  policyName,
		DurationSeconds: duration,
		MessagePreview:  preview(message),
	})
}

func (e *Engine) recordViolation(ctx context.Context, req *types.RequestContext) {
	if e.tracker == nil {
		return
	}
	clientID := req.SessionID
	if clientID == "" {
		clientID = req.IP
	}
	if clientID == "" {
		return
	}
	if err := e.tracker.RecordViolation(ctx, clientID, e.trackTTL); err != nil {
		e.logger.WithError(err).Error("failed to record violation")
	}
}

func responseContent(resp *types.CompletionResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit])
}
