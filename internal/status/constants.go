// internal/status/constants.go
package status

// Drive Status Block layout constants.
// These values define the mirror protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per drive.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the drive health state.
const SlotHealthCode = 0

// SlotErrorCode holds the raw 0x603F error code.
const SlotErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the drive has not been healthy.
const SlotSecondsInError = 2

// SlotStatusWord holds the raw 0x6041 status word.
const SlotStatusWord = 3

// SlotPositionHi / SlotPositionLo hold the actual position, high word first.
const SlotPositionHi = 4
const SlotPositionLo = 5

// SlotFlags holds the flag bits below.
const SlotFlags = 6

// ---- RESERVED RANGE ----

// Slots 7–10 are reserved for future use.
const SlotReservedStart = 7
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- FLAG BITS ----

const (
	FlagConnected        uint16 = 1 << 0
	FlagReady            uint16 = 1 << 1
	FlagOperationEnabled uint16 = 1 << 2
)

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a drive in operation enabled.
const HealthOK uint16 = 1

// HealthError represents a drive reporting a fault.
const HealthError uint16 = 2

// HealthEnabling represents a connected drive still walking the enable sequence.
const HealthEnabling uint16 = 3

// HealthDisconnected represents a released or never-acquired master.
const HealthDisconnected uint16 = 4
