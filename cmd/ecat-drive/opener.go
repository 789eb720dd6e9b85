// cmd/ecat-drive/opener.go
package main

import (
	"log"

	"github.com/tamzrod/ecat-drive/internal/config"
	"github.com/tamzrod/ecat-drive/internal/ecrt"
	"github.com/tamzrod/ecat-drive/internal/sim"
)

// selectOpener picks the bus backend. Without the igh build tag only the
// simulator exists.
func selectOpener(cfg config.Config, simulated bool) (ecrt.Opener, string) {
	if !simulated {
		if open, ok := hardwareOpener(); ok {
			return open, "IgH"
		}
		log.Printf("built without igh support, falling back to simulator")
	}

	bus := sim.NewBus(
		cfg.Slave.Alias,
		cfg.Slave.Position,
		cfg.Slave.VendorID,
		cfg.Slave.ProductCode,
		cfg.Cycle.PeriodNs,
	)
	return bus.Open, "simulated"
}
