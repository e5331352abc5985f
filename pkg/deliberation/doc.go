// Package deliberation hands flagged and blocked events to the downstream
// deliberation process.
//
// The orchestrator only ever calls Dispatcher.Submit, which enqueues a
// Handoff and returns. Worker goroutines pass each handoff to a Trigger:
//
//   - NoopTrigger discards handoffs.
//   - LogTrigger writes one structured log record per handoff.
//   - KafkaTrigger publishes a JSON message keyed by workspace id
//     (github.com/segmentio/kafka-go), so all handoffs of a workspace land
//     on the same partition in order.
//
// When the queue is full the handoff is dropped and logged at error level;
// the verdict returned to the caller is unaffected.
package deliberation
