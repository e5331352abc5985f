// Package counter holds the fixed-window event counters behind rate_limit
// rules.
//
// A counter is identified by a Key (workspace, rule, scope and window
// start). MemoryStore keeps counters in-process with lock-free increments.
// RedisStore shares them between engine instances; each Redis key expires
// after two windows.
//
// Windows are computed from a Clock. MonotonicClock is immune to wall clock
// jumps and is the default for a single process; WallClock aligns windows
// across processes sharing a Redis store.
package counter
