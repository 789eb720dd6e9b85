// internal/cyclic/clock_linux.go
//go:build linux

package cyclic

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type monotonicClock struct{}

// SystemClock returns CLOCK_MONOTONIC with absolute clock_nanosleep.
func SystemClock() Clock { return monotonicClock{} }

func (monotonicClock) Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Nano()
}

// SleepUntil restarts on EINTR; the Go runtime signals threads for preemption.
func (monotonicClock) SleepUntil(ns int64) error {
	ts := unix.NsecToTimespec(ns)
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("cyclic: clock_nanosleep: %w", err)
		}
		return nil
	}
}
