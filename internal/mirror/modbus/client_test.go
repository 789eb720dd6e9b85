// internal/mirror/modbus/client_test.go
package modbus

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"
)

type fc16Request struct {
	unit uint8
	addr uint16
	regs []uint16
}

// serveFC16 answers FC16 requests with a normal echo until the listener closes.
func serveFC16(t *testing.T) (string, <-chan fc16Request) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan fc16Request, 8)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			// MBAP: tid(2) pid(2) len(2) unit(1)
			mbap := make([]byte, 7)
			if _, err := io.ReadFull(conn, mbap); err != nil {
				return
			}
			pdu := make([]byte, int(binary.BigEndian.Uint16(mbap[4:6]))-1)
			if _, err := io.ReadFull(conn, pdu); err != nil {
				return
			}

			// fc(1) addr(2) qty(2) bytes(1) values
			qty := binary.BigEndian.Uint16(pdu[3:5])
			req := fc16Request{unit: mbap[6], addr: binary.BigEndian.Uint16(pdu[1:3])}
			for i := 0; i < int(qty); i++ {
				req.regs = append(req.regs, binary.BigEndian.Uint16(pdu[6+2*i:]))
			}
			got <- req

			resp := append([]byte{}, mbap[:4]...)
			resp = binary.BigEndian.AppendUint16(resp, 6)
			resp = append(resp, mbap[6])
			resp = append(resp, pdu[:5]...)
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), got
}

func TestWriteRegisters_FC16(t *testing.T) {
	addr, got := serveFC16(t)

	c, err := New(addr, time.Second)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	defer c.Close()

	if err := c.WriteRegisters(AreaHoldingRegisters, 9, 40, []uint16{0x0027, 0xFFFF}); err != nil {
		t.Fatalf("WriteRegisters() err=%v", err)
	}

	select {
	case req := <-got:
		if req.unit != 9 || req.addr != 40 || len(req.regs) != 2 || req.regs[0] != 0x0027 || req.regs[1] != 0xFFFF {
			t.Fatalf("unexpected request: %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received request")
	}

	// connection is kept between writes
	if err := c.WriteRegisters(AreaHoldingRegisters, 9, 42, []uint16{1}); err != nil {
		t.Fatalf("second WriteRegisters() err=%v", err)
	}
}

func TestWriteRegisters_RejectsArea(t *testing.T) {
	c, _ := New("127.0.0.1:1", time.Second)
	if err := c.WriteRegisters(4, 1, 0, []uint16{1}); err == nil {
		t.Fatalf("expected error for input register area")
	}
}

func TestWriteRegisters_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, _ := New(addr, 200*time.Millisecond)
	if err := c.WriteRegisters(AreaHoldingRegisters, 1, 0, []uint16{1}); err == nil {
		t.Fatalf("expected connect error")
	}
}
