// Package export writes verdict records as JSON or CSV. The CLI uses it for
// `verdicts query` output and the retention pruner uses it to archive records
// before deleting them.
package export
