// internal/mirror/modbus/client.go
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// AreaHoldingRegisters is the only area the mirror writes.
const AreaHoldingRegisters byte = 3

// Client is one Modbus TCP connection to a status memory endpoint.
//
// Connects on the first write. Any failure drops the connection and the
// next write dials again. Writes are serialized since the unit id lives
// on the shared handler.
type Client struct {
	mu        sync.Mutex
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	connected bool
}

// New returns an unconnected client for endpoint.
func New(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(endpoint)
	if timeout > 0 {
		h.Timeout = timeout
	}
	return &Client{handler: h, client: modbus.NewClient(h)}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return c.handler.Close()
}

// WriteRegisters writes regs with FC16 and checks the echoed range.
func (c *Client) WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error {
	if area != AreaHoldingRegisters {
		return fmt.Errorf("modbus: area %d not writable", area)
	}
	if len(regs) == 0 || len(regs) > 123 {
		return fmt.Errorf("modbus: %d registers out of FC16 range", len(regs))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if err := c.handler.Connect(); err != nil {
			return fmt.Errorf("modbus: connect %s: %w", c.handler.Address, err)
		}
		c.connected = true
	}
	c.handler.SlaveId = unitID

	payload := make([]byte, 0, 2*len(regs))
	for _, r := range regs {
		payload = binary.BigEndian.AppendUint16(payload, r)
	}

	echo, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), payload)
	if err != nil {
		c.drop()
		return fmt.Errorf("modbus: write %d@%d (unit=%d): %w", len(regs), addr, unitID, err)
	}
	if len(echo) == 2 && binary.BigEndian.Uint16(echo) != uint16(len(regs)) {
		c.drop()
		return fmt.Errorf("modbus: endpoint acknowledged %d of %d registers", binary.BigEndian.Uint16(echo), len(regs))
	}
	return nil
}

// drop MUST be called with mu held.
func (c *Client) drop() {
	_ = c.handler.Close()
	c.connected = false
}
