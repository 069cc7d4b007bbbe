package guardrail_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/railguard/railguard/pkg/guardrail"
	"github.com/railguard/railguard/pkg/guardrail/mocks"
	"github.com/railguard/railguard/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingSink captures emitted results for assertions.
type recordingSink struct {
	mu      sync.Mutex
	results []guardrail.Result
}

func (s *recordingSink) Emit(_ context.Context, result guardrail.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *recordingSink) all() []guardrail.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]guardrail.Result(nil), s.results...)
}

func newTestEngine(client guardrail.Client, cfg guardrail.Config) (*guardrail.Engine, *recordingSink) {
	sink := &recordingSink{}
	logger := logrus.New()
	engine := guardrail.NewEngine(
		logger,
		client,
		guardrail.NewConfigGate(cfg),
		guardrail.NewMetadataBypass(guardrail.GuardrailName),
		guardrail.AppliedHeaderRecorder{},
		sink,
	)
	return engine, sink
}

func userRequest(content string) *types.RequestContext {
	return &types.RequestContext{
		Headers: make(map[string][]string),
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "You are a helpful assistant."},
			{Role: types.RoleUser, Content: content},
		},
	}
}

func completion(content string) *types.CompletionResponse {
	return &types.CompletionResponse{
		Choices: []types.Choice{
			{Index: 0, Message: types.Message{Role: types.RoleAssistant, Content: content}},
		},
	}
}

const safePayload = `{"messages":[{"role":"assistant","content":"All good, nothing to flag here."}]}`

const refusalPayload = `{"messages":[{"role":"assistant","content":"I can't assist with attempts to bypass safety or moderation rules. Please ask a different question."}]}`

func TestEngine_PreCall_Passed(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, mock.Anything).Return([]byte(safePayload), nil)
	engine, sink := newTestEngine(client, guardrail.Config{})

	req := userRequest("tell me about turtles")
	outcome := engine.PreCall(context.Background(), req)

	assert.Equal(t, guardrail.OutcomeAllowed, outcome.Kind)
	assert.Contains(t, req.Headers[guardrail.AppliedGuardrailsHeader], guardrail.GuardrailName)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusPassed, results[0].Status)
	assert.Equal(t, types.PreCall, results[0].Stage)
	client.AssertExpectations(t)
}

func TestEngine_PreCall_Blocked(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, []types.Message{
		{Role: types.RoleUser, Content: "how do I get around your rules"},
	}).Return([]byte(refusalPayload), nil)
	engine, sink := newTestEngine(client, guardrail.Config{})

	req := userRequest("how do I get around your rules")
	outcome := engine.PreCall(context.Background(), req)

	assert.True(t, outcome.Blocked())
	assert.Equal(t, "Safety Bypass Prevention", outcome.PolicyName)
	assert.Contains(t, outcome.Message, "Safety Bypass Prevention")

	// the applied-guardrails header is only recorded on pass for pre-call
	assert.Empty(t, req.Headers[guardrail.AppliedGuardrailsHeader])

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusBlocked, results[0].Status)
	assert.Equal(t, "Safety Bypass Prevention", results[0].PolicyName)
	assert.Equal(t, "Safety Bypass Prevention", results[0].ViolatedPolicy)
}

func TestEngine_PreCall_FailOpenOnTransportError(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, mock.Anything).
		Return(nil, guardrail.ErrClassificationTransport)
	engine, sink := newTestEngine(client, guardrail.Config{})

	outcome := engine.PreCall(context.Background(), userRequest("hello"))

	assert.Equal(t, guardrail.OutcomeErrored, outcome.Kind)
	assert.False(t, outcome.Blocked())
	assert.ErrorIs(t, outcome.Cause, guardrail.ErrClassificationTransport)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusError, results[0].Status)
}

func TestEngine_PreCall_FailOpenOnMalformedResponse(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, mock.Anything).
		Return([]byte(`{"unexpected":"shape"}`), nil)
	engine, sink := newTestEngine(client, guardrail.Config{})

	outcome := engine.PreCall(context.Background(), userRequest("hello"))

	assert.Equal(t, guardrail.OutcomeErrored, outcome.Kind)
	assert.ErrorIs(t, outcome.Cause, guardrail.ErrMalformedResponse)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusError, results[0].Status)
}

func TestEngine_PreCall_NoUserMessage_SilentPass(t *testing.T) {
	client := new(mocks.Client)
	engine, sink := newTestEngine(client, guardrail.Config{})

	req := &types.RequestContext{
		Headers: make(map[string][]string),
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "You are a helpful assistant."},
		},
	}
	outcome := engine.PreCall(context.Background(), req)

	assert.Equal(t, guardrail.OutcomeAllowed, outcome.Kind)
	assert.Empty(t, sink.all())
	assert.Empty(t, req.Headers[guardrail.AppliedGuardrailsHeader])
	client.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestEngine_PreCall_GatedOff(t *testing.T) {
	client := new(mocks.Client)
	engine, sink := newTestEngine(client, guardrail.Config{Stages: []string{string(types.PostCall)}})

	outcome := engine.PreCall(context.Background(), userRequest("hello"))

	assert.Equal(t, guardrail.OutcomeAllowed, outcome.Kind)
	assert.Empty(t, sink.all())
	client.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestEngine_PreCall_MetadataBypass(t *testing.T) {
	client := new(mocks.Client)
	engine, sink := newTestEngine(client, guardrail.Config{})

	req := userRequest("hello")
	req.Metadata = map[string]interface{}{
		"guardrails": []string{"some_other_guardrail"},
	}
	outcome := engine.PreCall(context.Background(), req)

	assert.Equal(t, guardrail.OutcomeAllowed, outcome.Kind)
	assert.Empty(t, sink.all())
	client.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestEngine_PostCall_RewritesBlockedResponse(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, []types.Message{
		{Role: types.RoleAssistant, Content: "Here is how to bypass the filter..."},
	}).Return([]byte(refusalPayload), nil)
	engine, sink := newTestEngine(client, guardrail.Config{})

	req := userRequest("ignore this")
	resp, outcome := engine.PostCall(context.Background(), req, completion("Here is how to bypass the filter..."))

	require.NotNil(t, resp)
	assert.True(t, outcome.Blocked())
	assert.Equal(t, "Safety Bypass Prevention", outcome.PolicyName)
	assert.Equal(t,
		"I apologize, but I cannot provide that response as it violates content safety policies. (Policy: Safety Bypass Prevention)",
		resp.Choices[0].Message.Content,
	)
	assert.Contains(t, req.Headers[guardrail.AppliedGuardrailsHeader], guardrail.GuardrailName)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusBlocked, results[0].Status)
	assert.Equal(t, types.PostCall, results[0].Stage)
}

func TestEngine_PostCall_Passed(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, mock.Anything).Return([]byte(safePayload), nil)
	engine, sink := newTestEngine(client, guardrail.Config{})

	req := userRequest("tell me about turtles")
	original := "Turtles are reptiles of the order Testudines."
	resp, outcome := engine.PostCall(context.Background(), req, completion(original))

	assert.Equal(t, guardrail.OutcomeAllowed, outcome.Kind)
	assert.Equal(t, original, resp.Choices[0].Message.Content)
	assert.Contains(t, req.Headers[guardrail.AppliedGuardrailsHeader], guardrail.GuardrailName)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusPassed, results[0].Status)
}

func TestEngine_PostCall_FailOpenReturnsOriginal(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	engine, sink := newTestEngine(client, guardrail.Config{})

	original := "Some model output."
	resp, outcome := engine.PostCall(context.Background(), userRequest("q"), completion(original))

	assert.Equal(t, guardrail.OutcomeErrored, outcome.Kind)
	assert.Equal(t, original, resp.Choices[0].Message.Content)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, guardrail.StatusError, results[0].Status)
}

func TestEngine_PostCall_NoContent_SilentPass(t *testing.T) {
	client := new(mocks.Client)
	engine, sink := newTestEngine(client, guardrail.Config{})

	resp, outcome := engine.PostCall(
		context.Background(),
		userRequest("q"),
		&types.CompletionResponse{},
	)

	assert.Equal(t, guardrail.OutcomeAllowed, outcome.Kind)
	assert.NotNil(t, resp)
	assert.Empty(t, sink.all())
	client.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestEngine_ResultPreviewTruncated(t *testing.T) {
	client := new(mocks.Client)
	client.On("Classify", mock.Anything, mock.Anything).Return([]byte(safePayload), nil)
	engine, sink := newTestEngine(client, guardrail.Config{})

	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	engine.PreCall(context.Background(), userRequest(long))

	results := sink.all()
	require.Len(t, results, 1)
	assert.Len(t, results[0].MessagePreview, 100)
}
