package guardrail

import (
	"context"

	"github.com/railguard/railguard/pkg/types"
	"github.com/sirupsen/logrus"
)

// AppliedGuardrailsHeader is the audit header listing guardrails that ran
// for a request.
const AppliedGuardrailsHeader = "X-Applied-Guardrails"

// Gate decides from host configuration whether the guardrail runs at all
// for a stage.
type Gate interface {
	ShouldRunGuardrail(stage types.Stage) bool
}

// BypassPolicy decides per request, from its metadata, whether the guardrail
// should proceed.
type BypassPolicy interface {
	ShouldProceed(ctx context.Context, req *types.RequestContext) bool
}

// HeaderRecorder registers that a guardrail was applied, for audit headers.
type HeaderRecorder interface {
	RecordApplied(req *types.RequestContext, guardrailName string)
}

// ResultSink receives the structured result of every non-silent invocation.
type ResultSink interface {
	Emit(ctx context.Context, result Result)
}

// ConfigGate gates on the stages enabled in Config.
type ConfigGate struct {
	cfg Config
}

func NewConfigGate(cfg Config) *ConfigGate {
	return &ConfigGate{cfg: cfg}
}

func (g *ConfigGate) ShouldRunGuardrail(stage types.Stage) bool {
	return g.cfg.RunsOn(stage)
}

// MetadataBypass skips the guardrail when the request metadata carries a
// "guardrails" list that does not include this guardrail's name. Absence of
// the key means run.
type MetadataBypass struct {
	guardrailName string
}

func NewMetadataBypass(guardrailName string) *MetadataBypass {
	return &MetadataBypass{guardrailName: guardrailName}
}

func (b *MetadataBypass) ShouldProceed(_ context.Context, req *types.RequestContext) bool {
	if req.Metadata == nil {
		return true
	}
	raw, ok := req.Metadata["guardrails"]
	if !ok {
		return true
	}
	switch list := raw.(type) {
	case []string:
		for _, name := range list {
			if name == b.guardrailName {
				return true
			}
		}
	case []interface{}:
		for _, item := range list {
			if name, ok := item.(string); ok && name == b.guardrailName {
				return true
			}
		}
	default:
		return true
	}
	return false
}

// AppliedHeaderRecorder appends the guardrail name to the audit header on
// the request context.
type AppliedHeaderRecorder struct{}

func (AppliedHeaderRecorder) RecordApplied(req *types.RequestContext, guardrailName string) {
	if req.Headers == nil {
		req.Headers = make(map[string][]string)
	}
	req.Headers[AppliedGuardrailsHeader] = append(
		req.Headers[AppliedGuardrailsHeader],
		guardrailName,
	)
}

// LogSink emits results as structured log entries.
type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, result Result) {
	fields := logrus.Fields{
		"trace_id":         result.TraceID,
		"guardrail_name":   result.Guardrail,
		"stage":            result.Stage,
		"status":           result.Status,
		"reason":           result.Reason,
		"duration_seconds": result.DurationSeconds,
	}
	if result.PolicyName != "" {
		fields["policy_name"] = result.PolicyName
		fields["violated_policy"] = result.ViolatedPolicy
	}
	if result.MessagePreview != "" {
		fields["message_preview"] = result.MessagePreview
	}
	s.logger.WithFields(fields).Info("guardrail result")
}
