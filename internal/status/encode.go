// internal/status/encode.go
package status

import "github.com/tamzrod/ecat-drive/internal/cia402"

// Block is exactly what a mirror is allowed to deliver.
type Block struct {
	Health         uint16
	ErrorCode      uint16
	SecondsInError uint16
	StatusWord     uint16
	Position       int32
	Flags          uint16
}

// HealthOf derives the health code from a snapshot.
func HealthOf(s Snapshot) uint16 {
	if !s.Connected {
		return HealthDisconnected
	}
	ds := cia402.Decode(s.StatusWordRaw)
	switch {
	case ds.Fault:
		return HealthError
	case ds.State == cia402.StateOperationEnabled:
		return HealthOK
	default:
		return HealthEnabling
	}
}

// BlockOf projects a snapshot onto the block. SecondsInError is runner-owned
// and copied from prev.
func BlockOf(s Snapshot, prev Block) Block {
	b := Block{
		Health:         HealthOf(s),
		ErrorCode:      s.ErrorCode,
		SecondsInError: prev.SecondsInError,
		StatusWord:     s.StatusWordRaw,
		Position:       s.ActualPosition,
	}
	if s.Connected {
		b.Flags |= FlagConnected
	}
	if s.ReadyForCommand {
		b.Flags |= FlagReady
	}
	if b.Health == HealthOK {
		b.Flags |= FlagOperationEnabled
	}
	return b
}

// Encode converts a Block into the live part of a status block.
// Layout is protocol-locked. No IO. No side effects.
func Encode(b Block) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = b.Health
	regs[SlotErrorCode] = b.ErrorCode
	regs[SlotSecondsInError] = b.SecondsInError
	regs[SlotStatusWord] = b.StatusWord
	regs[SlotPositionHi] = uint16(uint32(b.Position) >> 16)
	regs[SlotPositionLo] = uint16(uint32(b.Position))
	regs[SlotFlags] = b.Flags

	return regs
}
