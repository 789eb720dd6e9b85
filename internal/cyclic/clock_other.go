// internal/cyclic/clock_other.go
//go:build !linux

package cyclic

import "time"

// runtimeClock uses the monotonic reading carried by time.Time.
type runtimeClock struct {
	base time.Time
}

// SystemClock returns a time-package clock. Not real-time.
func SystemClock() Clock { return runtimeClock{base: time.Now()} }

func (c runtimeClock) Now() int64 {
	return int64(time.Since(c.base))
}

func (c runtimeClock) SleepUntil(ns int64) error {
	if d := time.Duration(ns - c.Now()); d > 0 {
		time.Sleep(d)
	}
	return nil
}
