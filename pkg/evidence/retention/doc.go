// Package retention prunes verdict records by age and by total count.
//
// A Pruner runs on demand or on a cron schedule (github.com/robfig/cron/v3):
//
//	p := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 30,
//	    MaxRecords:    1_000_000,
//	    PruneSchedule: "0 3 * * *",
//	}, logger)
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop()
//
// With ArchiveBeforeDelete set, records are written as a JSON array to
// ArchivePath before they are deleted.
package retention
