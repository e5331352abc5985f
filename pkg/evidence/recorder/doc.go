// Package recorder turns verdicts into audit records and writes them to an
// evidence.Storage off the evaluation path.
//
// Record never blocks. Records go into a bounded queue drained by a single
// worker; when the queue is full the record is dropped and logged. Close
// stops intake and drains whatever is queued.
//
// Event content is never stored. HashString gives the SHA-256 of the
// content so the record can later be matched to the event that caused it.
package recorder
