// internal/cyclic/clock.go
package cyclic

// Clock is the monotonic time source of the loop.
type Clock interface {
	// Now returns monotonic nanoseconds.
	Now() int64

	// SleepUntil blocks until the absolute monotonic time ns.
	SleepUntil(ns int64) error
}
