package counter

import "time"

// Clock returns the current time in whole seconds on some fixed timeline.
type Clock interface {
	NowSeconds() int64
}

// MonotonicClock counts seconds on the monotonic clock since it was created.
// It is immune to wall clock jumps; windows are aligned to process start.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock starts a monotonic clock.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// NowSeconds implements Clock.
func (c *MonotonicClock) NowSeconds() int64 {
	return int64(time.Since(c.start) / time.Second)
}

// WallClock reports Unix seconds. Instances sharing a Redis store use it so
// their windows line up.
type WallClock struct{}

// NowSeconds implements Clock.
func (WallClock) NowSeconds() int64 {
	return time.Now().Unix()
}
