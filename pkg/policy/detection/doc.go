// Package detection holds the per-workspace detection rules that
// pattern_match policy rules reference.
//
// Rules come from a Source (the rule store), are compiled once per refresh
// and published as an immutable snapshot:
//
//	cache := detection.NewCache(store, logger, collector)
//	if err := cache.Refresh(ctx); err != nil {
//	    return err
//	}
//	rules := cache.GetDetectionRules("ws-1")
//
// Refreshes are triggered externally: the HTTP refresh endpoint, the rule
// file watcher, a RedisInvalidator listening on a pub/sub channel, or
// RunPeriodic on a fixed interval.
package detection
