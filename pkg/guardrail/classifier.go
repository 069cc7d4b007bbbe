package guardrail

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

// Decision is the binary outcome derived from a classification response.
// It is recomputed per call and never persisted.
type Decision struct {
	Blocked    bool
	Reason     string
	PolicyName string
}

const emptyResponseReason = "empty response from guardrails"

// Decide interprets a raw classification response into a block/allow
// decision with an attributed policy name.
//
// The rails service communicates refusals through natural-language text in
// messages[0].content rather than a structured verdict field, so the
// decision is a deterministic phrase scan over that text. An empty payload
// or empty text blocks; a payload without the expected field is a defect
// surfaced as ErrMalformedResponse, never a silent allow.
func Decide(payload []byte) (Decision, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return Decision{Blocked: true, Reason: emptyResponseReason}, nil
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(payload)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	messages := v.GetArray("messages")
	if len(messages) == 0 {
		return Decision{}, fmt.Errorf("%w: missing messages field", ErrMalformedResponse)
	}
	content := messages[0].GetStringBytes("content")
	if content == nil {
		return Decision{}, fmt.Errorf("%w: missing messages[0].content", ErrMalformedResponse)
	}

	text := string(content)
	if strings.TrimSpace(text) == "" {
		return Decision{Blocked: true, Reason: emptyResponseReason}, nil
	}

	phrase, found := findBlockingPhrase(text)
	if !found {
		return Decision{}, nil
	}

	return Decision{
		Blocked:    true,
		Reason:     fmt.Sprintf("blocking phrase detected: %s", phrase),
		PolicyName: attributePolicy(v, text),
	}, nil
}

// attributePolicy resolves the violated policy name, preferring structured
// metadata when the service provides it and falling back to the phrase table.
func attributePolicy(v *fastjson.Value, text string) string {
	if name := v.GetStringBytes("metadata", "violated_policy"); len(name) > 0 {
		return string(name)
	}
	if name := v.GetStringBytes("metadata", "policy_name"); len(name) > 0 {
		return string(name)
	}
	return lookupPolicyName(text)
}
