// internal/pdo/image.go
package pdo

import (
	"encoding/binary"
	"fmt"
)

// Unresolved marks an offset the domain has not placed yet.
const Unresolved = ^uint32(0)

// OffsetTable maps each signal to its byte offset in the domain buffer.
// Immutable once the image is bound.
type OffsetTable [NumSignals]uint32

// NewOffsetTable returns a table with every offset unresolved.
func NewOffsetTable() OffsetTable {
	var t OffsetTable
	for i := range t {
		t[i] = Unresolved
	}
	return t
}

// Resolve fills offsets in registration order.
func (t *OffsetTable) Resolve(order []Signal, offsets []uint32) error {
	if len(order) != len(offsets) {
		return fmt.Errorf("pdo: %d offsets for %d signals", len(offsets), len(order))
	}
	for i, s := range order {
		if s < 0 || s >= NumSignals {
			return fmt.Errorf("pdo: invalid signal %d", s)
		}
		t[s] = offsets[i]
	}
	return nil
}

// Validate checks that every signal is resolved and fits a buffer of size bytes.
func (t OffsetTable) Validate(size int) error {
	for s := Signal(0); s < NumSignals; s++ {
		off := t[s]
		if off == Unresolved {
			return fmt.Errorf("pdo: %s offset unresolved", s)
		}
		e, ok := EntryFor(s)
		if !ok {
			return fmt.Errorf("pdo: %s not mapped", s)
		}
		if int(off)+e.Width() > size {
			return fmt.Errorf("pdo: %s at %d (+%d) exceeds domain size %d", s, off, e.Width(), size)
		}
	}
	return nil
}

// Image is a typed accessor over the process-data buffer.
// Bounds are checked once in Bind; EtherCAT data is little-endian.
type Image struct {
	buf []byte
	off OffsetTable
}

// Bind validates the table against buf and returns the accessor.
func Bind(buf []byte, t OffsetTable) (*Image, error) {
	if buf == nil {
		return nil, fmt.Errorf("pdo: nil process-data buffer")
	}
	if err := t.Validate(len(buf)); err != nil {
		return nil, err
	}
	return &Image{buf: buf, off: t}, nil
}

// Offsets returns the bound offset table.
func (im *Image) Offsets() OffsetTable { return im.off }

// Bytes exposes the underlying buffer.
func (im *Image) Bytes() []byte { return im.buf }

func (im *Image) U8(s Signal) uint8 { return im.buf[im.off[s]] }
func (im *Image) PutU8(s Signal, v uint8) { im.buf[im.off[s]] = v }
func (im *Image) S8(s Signal) int8 { return int8(im.buf[im.off[s]]) }
func (im *Image) PutS8(s Signal, v int8) { im.buf[im.off[s]] = uint8(v) }
func (im *Image) U16(s Signal) uint16 { return binary.LittleEndian.Uint16(im.buf[im.off[s]:]) }
func (im *Image) PutU16(s Signal, v uint16) { binary.LittleEndian.PutUint16(im.buf[im.off[s]:], v) }
func (im *Image) S32(s Signal) int32 { return int32(binary.LittleEndian.Uint32(im.buf[im.off[s]:])) }
func (im *Image) PutS32(s Signal, v int32) {
	binary.LittleEndian.PutUint32(im.buf[im.off[s]:], uint32(v))
}
