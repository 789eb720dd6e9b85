// internal/mirror/ingest/client.go
package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Raw ingest v1. One frame per TCP connection, answered by one ack byte.
//
//	0-1  magic "RI"
//	2    version 0x01
//	3    area
//	4-5  unit id
//	6-7  register address
//	8-9  register count
//	10+  registers, big-endian
//
// Wire format is LOCKED.

const (
	headerLen      = 10
	version1  byte = 0x01
)

var magic = [2]byte{'R', 'I'}

// Ack is the endpoint's one-byte answer.
type Ack byte

const (
	AckOK       Ack = 0x00
	AckRejected Ack = 0x01
)

func (a Ack) String() string {
	switch a {
	case AckOK:
		return "ok"
	case AckRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(a))
	}
}

// AckError is returned for any answer other than AckOK.
type AckError struct {
	Ack Ack
}

func (e *AckError) Error() string {
	return fmt.Sprintf("ingest: endpoint answered %s", e.Ack)
}

// Frame is one register write.
type Frame struct {
	Area   byte
	UnitID uint8
	Addr   uint16
	Regs   []uint16
}

// AppendBinary appends the wire form of f to dst.
func (f Frame) AppendBinary(dst []byte) ([]byte, error) {
	if len(f.Regs) == 0 {
		return dst, errors.New("ingest: empty frame")
	}
	if len(f.Regs) > 0xFFFF {
		return dst, fmt.Errorf("ingest: %d registers exceed frame limit", len(f.Regs))
	}

	dst = append(dst, magic[0], magic[1], version1, f.Area)
	dst = binary.BigEndian.AppendUint16(dst, uint16(f.UnitID))
	dst = binary.BigEndian.AppendUint16(dst, f.Addr)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(f.Regs)))
	for _, r := range f.Regs {
		dst = binary.BigEndian.AppendUint16(dst, r)
	}
	return dst, nil
}

type contextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client sends frames to one ingest endpoint. Safe for concurrent use;
// frames go out one at a time.
type Client struct {
	endpoint string
	timeout  time.Duration
	dialer   contextDialer

	mu  sync.Mutex
	buf []byte
}

// New returns a client for endpoint. A non-positive timeout means 2s.
func New(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("ingest: endpoint required")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		dialer:   &net.Dialer{},
		buf:      make([]byte, 0, headerLen+2*64),
	}, nil
}

// Close is a no-op; every frame owns its connection.
func (c *Client) Close() error { return nil }

// WriteRegisters sends one register block.
func (c *Client) WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error {
	return c.Send(context.Background(), Frame{Area: area, UnitID: unitID, Addr: addr, Regs: regs})
}

// Send delivers f and waits for the ack.
func (c *Client) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pkt, err := f.AppendBinary(c.buf[:0])
	if err != nil {
		return err
	}
	c.buf = pkt

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.endpoint)
	if err != nil {
		return fmt.Errorf("ingest: dial %s: %w", c.endpoint, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("ingest: write: %w", err)
	}

	var ack [1]byte
	if _, err := io.ReadFull(conn, ack[:]); err != nil {
		return fmt.Errorf("ingest: read ack: %w", err)
	}
	if a := Ack(ack[0]); a != AckOK {
		return &AckError{Ack: a}
	}
	return nil
}
