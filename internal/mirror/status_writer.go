// internal/mirror/status_writer.go
package mirror

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/tamzrod/ecat-drive/internal/status"
)

// endpointClient is the exact contract the mirror uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error
}

// Plan is where one drive's status block lives.
type Plan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// BlockWriter is the delivery-only contract for the drive status block.
// It receives a block and writes it verbatim.
type BlockWriter interface {
	WriteBlock(b status.Block) error
}

// blockWriter writes the status block into holding registers.
type blockWriter struct {
	plan Plan
	cli  endpointClient

	needFull bool
	last     status.Block
	nameRegs []uint16
}

const statusAreaHoldingRegisters byte = 3

// newBlockWriter returns a writer that re-asserts the full block on first use.
func newBlockWriter(plan Plan, cli endpointClient) *blockWriter {
	return &blockWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		nameRegs: encodeDeviceNameRegs(plan.DeviceName),
	}
}

// WriteBlock delivers the block into status memory.
// On any write failure, the next call re-asserts the full block.
func (w *blockWriter) WriteBlock(b status.Block) error {
	if w == nil {
		return errors.New("mirror: disabled")
	}
	if w.cli == nil {
		return fmt.Errorf("mirror: missing client for endpoint %s", w.plan.Endpoint)
	}

	base := w.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if w.needFull {
		if err := w.cli.WriteRegisters(statusAreaHoldingRegisters, w.plan.UnitID, base, w.fullBlockRegs(b)); err != nil {
			w.needFull = true
			return fmt.Errorf("mirror: full block write failed: %w", err)
		}
		w.needFull = false
		w.last = b
		return nil
	}

	// ------------------------------------------------------------
	// Changed slots only
	// ------------------------------------------------------------
	regs := status.Encode(b)
	prev := status.Encode(w.last)

	var errs error
	write := func(slot, n int, name string) {
		for i := slot; i < slot+n; i++ {
			if regs[i] != prev[i] {
				if err := w.cli.WriteRegisters(statusAreaHoldingRegisters, w.plan.UnitID, base+uint16(slot), regs[slot:slot+n]); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("slot%d %s write failed: %w", slot, name, err))
				}
				return
			}
		}
	}

	write(status.SlotHealthCode, 1, "health")
	write(status.SlotErrorCode, 1, "error_code")
	write(status.SlotSecondsInError, 1, "seconds_in_error")
	write(status.SlotStatusWord, 1, "status_word")
	// position words go together so a reader never sees a torn value
	write(status.SlotPositionHi, 2, "position")
	write(status.SlotFlags, 1, "flags")

	if errs != nil {
		// Any partial failure introduces doubt: re-assert on next call.
		w.needFull = true
		return fmt.Errorf("mirror: %w", errs)
	}

	w.last = b
	return nil
}

// Invalidate forces a full re-assert on the next write.
func (w *blockWriter) Invalidate() {
	w.needFull = true
}

func (w *blockWriter) baseAddr() uint16 {
	// Each drive owns a fixed SlotsPerDevice block.
	return w.plan.BaseSlot * status.SlotsPerDevice
}

func (w *blockWriter) fullBlockRegs(b status.Block) []uint16 {
	regs := status.Encode(b)

	// Device name always lives at the end of the block
	for i := 0; i < status.SlotDeviceNameSlots && i < len(w.nameRegs); i++ {
		regs[status.SlotDeviceNameStart+i] = w.nameRegs[i]
	}
	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 uint16 registers.
// Each register stores two ASCII bytes in big-endian order.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, status.SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > status.DeviceNameMaxChars {
		b = b[:status.DeviceNameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < status.DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
