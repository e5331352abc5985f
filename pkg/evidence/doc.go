// Package evidence records every verdict the policy engine produces as an
// immutable audit record.
//
// # Architecture
//
//  1. recorder: builds a VerdictRecord from an event and its verdict and
//     writes it asynchronously, off the evaluation path.
//  2. storage: persists records (in-memory or SQLite).
//  3. retention: prunes records by age and count on a cron schedule,
//     optionally archiving them first through export.
//
// Records never contain event content. The SHA-256 hash of the content is
// stored instead so an investigator holding the original event can prove
// which record belongs to it.
//
// # Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: "data/verdicts.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	eng := engine.New(cfg, rules, logger, engine.WithRecorder(rec))
//
// # Querying
//
//	records, err := store.Query(ctx, &evidence.Query{
//	    WorkspaceID: "ws-1",
//	    Action:      policy.ActionBlock,
//	    Limit:       50,
//	})
package evidence
