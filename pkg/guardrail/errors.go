package guardrail

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigUnavailable means no usable policy configuration could be
	// resolved from the rails service.
	ErrConfigUnavailable = errors.New("guardrail configuration unavailable")

	// ErrClassificationTransport covers network errors, timeouts and non-2xx
	// statuses when talking to the moderation endpoint.
	ErrClassificationTransport = errors.New("classification service call failed")

	// ErrMalformedResponse means the classification response lacked the
	// expected messages[0].content field.
	ErrMalformedResponse = errors.New("malformed classification response")
)

// BlockError is the deliberate control-flow signal raised when a pre-call
// check confirms a policy match. It is the only error the host pipeline is
// expected to surface to the caller.
type BlockError struct {
	Message    string
	PolicyName string
}

func (e *BlockError) Error() string {
	return e.Message
}

// NewBlockError builds the user-facing rejection for a blocked request.
func NewBlockError(policyName string) *BlockError {
	if policyName == "" {
		policyName = "Content Safety"
	}
	return &BlockError{
		Message: fmt.Sprintf(
			"Your message was blocked by content safety policies. Policy violated: %s",
			policyName,
		),
		PolicyName: policyName,
	}
}
