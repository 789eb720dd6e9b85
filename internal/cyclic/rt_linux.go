// internal/cyclic/rt_linux.go
//go:build linux

package cyclic

import (
	"log"

	"golang.org/x/sys/unix"
)

// setupRealtime applies SCHED_FIFO, locks memory and prefaults the stack
// for the calling thread. MUST run on the locked loop thread.
// Every failure is a warning. The returned func undoes the memory lock.
func setupRealtime(cfg RTConfig) func() {
	prio := cfg.Priority
	if prio <= 0 {
		p, err := maxFIFOPriority()
		if err != nil {
			log.Printf("cyclic: WARNING sched_get_priority_max failed: %v", err)
			p = 99
		}
		prio = p
	}

	log.Printf("cyclic: using RT priority %d", prio)
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(prio),
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		log.Printf("cyclic: WARNING failed to set RT scheduler (priority=%d): %v", prio, err)
	}

	locked := false
	if cfg.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			log.Printf("cyclic: WARNING failed to lock memory: %v", err)
		} else {
			locked = true
		}
	}

	if cfg.PrefaultBytes > 0 {
		_ = prefaultStack(cfg.PrefaultBytes)
	}

	return func() {
		if !locked {
			return
		}
		if err := unix.Munlockall(); err != nil {
			log.Printf("cyclic: WARNING munlockall: %v", err)
		}
	}
}

func maxFIFOPriority() (int, error) {
	r, _, errno := unix.RawSyscall(unix.SYS_SCHED_GET_PRIORITY_MAX, unix.SCHED_FIFO, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}
