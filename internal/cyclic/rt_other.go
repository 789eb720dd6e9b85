// internal/cyclic/rt_other.go
//go:build !linux

package cyclic

import (
	"log"
	"runtime"
)

func setupRealtime(cfg RTConfig) func() {
	log.Printf("cyclic: WARNING real-time scheduling not supported on %s", runtime.GOOS)
	if cfg.PrefaultBytes > 0 {
		_ = prefaultStack(cfg.PrefaultBytes)
	}
	return func() {}
}
