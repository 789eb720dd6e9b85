// internal/mirror/builder.go
package mirror

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/ecat-drive/internal/config"
	"github.com/tamzrod/ecat-drive/internal/mirror/ingest"
	"github.com/tamzrod/ecat-drive/internal/mirror/modbus"
	"github.com/tamzrod/ecat-drive/internal/status"
)

// Build converts the status memory config into a Mirror and its closer.
// Assumes config has already passed Validate and Normalize.
func Build(sm *config.StatusMemoryConfig, pub *status.Publisher) (*Mirror, func() error, error) {
	if sm == nil {
		return nil, nil, errors.New("mirror: status_memory not configured")
	}

	timeout := time.Duration(sm.TimeoutMs) * time.Millisecond

	var (
		cli    endpointClient
		closer func() error
	)

	switch sm.Transport {
	case config.TransportIngest:
		c, err := ingest.New(sm.Endpoint, timeout)
		if err != nil {
			return nil, nil, err
		}
		cli, closer = c, c.Close

	case config.TransportModbus, "":
		c, err := modbus.New(sm.Endpoint, timeout)
		if err != nil {
			return nil, nil, err
		}
		cli, closer = c, c.Close

	default:
		return nil, nil, fmt.Errorf("mirror: unknown transport %q", sm.Transport)
	}

	plan := Plan{
		Endpoint:   sm.Endpoint,
		UnitID:     sm.UnitID,
		BaseSlot:   sm.BaseSlot,
		DeviceName: sm.DeviceName,
	}
	return New(plan, cli, pub), closer, nil
}
