package evaluators

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// PayloadSize bounds the byte size of event content and of the JSON encoding
// of the structured payload.
type PayloadSize struct {
	logger *slog.Logger
}

// NewPayloadSize creates the evaluator.
func NewPayloadSize(logger *slog.Logger) *PayloadSize {
	return &PayloadSize{logger: defaultLogger(logger, "evaluator.payload_size")}
}

// Evaluate implements Evaluator. A size equal to its limit passes.
func (p *PayloadSize) Evaluate(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) Result {
	cfg, ok := rule.Config.(policy.PayloadSizeConfig)
	if !ok {
		p.logger.WarnContext(ctx, "rule config is not a payload_size config", ruleAttrs(event, rule)...)
		return skipped("invalid_config")
	}
	if cfg.NoOp() {
		return Result{Status: StatusWithinLimit}
	}

	contentBytes := int64(len(event.Content))
	payloadBytes := p.payloadSize(ctx, event, rule)

	var exceeded []string
	if cfg.MaxContentBytes != nil && contentBytes > *cfg.MaxContentBytes {
		exceeded = append(exceeded, "content")
	}
	if cfg.MaxPayloadBytes != nil && payloadBytes > *cfg.MaxPayloadBytes {
		exceeded = append(exceeded, "payload")
	}
	if len(exceeded) == 0 {
		return Result{Status: StatusWithinLimit}
	}

	return violation(map[string]any{
		"content_bytes":     contentBytes,
		"payload_bytes":     payloadBytes,
		"max_content_bytes": limitValue(cfg.MaxContentBytes),
		"max_payload_bytes": limitValue(cfg.MaxPayloadBytes),
		"exceeded":          exceeded,
	})
}

// limitValue renders an absent limit as nil in the evidence.
func limitValue(limit *int64) any {
	if limit == nil {
		return nil
	}
	return *limit
}

// payloadSize returns the length of the payload's JSON encoding. A payload
// that cannot be encoded counts as zero bytes.
func (p *PayloadSize) payloadSize(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) int64 {
	if event.Payload == nil {
		return 0
	}
	data, err := json.Marshal(event.Payload)
	if err != nil {
		p.logger.WarnContext(ctx, "payload is not JSON-encodable, treating size as zero",
			append(ruleAttrs(event, rule), "error", err)...)
		return 0
	}
	return int64(len(data))
}
