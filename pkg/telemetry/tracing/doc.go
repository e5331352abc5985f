// Package tracing provides OpenTelemetry tracing for SwarmShield.
//
// Spans are exported over OTLP/gRPC. Inbound W3C trace context
// (traceparent) is honored so evaluations appear inside the agent
// runtime's own traces, and it is forwarded on deliberation handoffs.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	handler = tracing.HTTPMiddleware(tracer)(handler)
//
//	ctx, span := tracer.Start(ctx, "policy.evaluate")
//	tracing.SetEventAttributes(span, event)
//	verdict, err := eng.Evaluate(ctx, event)
//	tracing.SetVerdictAttributes(span, verdict)
//	span.End()
//
// Spans carry ids, counts and the verdict. Event content is never
// attached.
package tracing
