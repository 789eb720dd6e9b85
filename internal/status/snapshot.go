// internal/status/snapshot.go
package status

// Snapshot is the only drive state visible outside the engine.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	ActualPosition  int32
	StatusWord      string // "0x0027"
	StatusWordRaw   uint16
	StatusMessage   string
	Connected       bool
	ReadyForCommand bool

	// ErrorCode is 0x603F copied verbatim from the drive. Not interpreted.
	ErrorCode uint16
}

// Field names one observable field.
type Field uint8

const (
	FieldConnected Field = iota
	FieldStatusMessage
	FieldStatusWord
	FieldActualPosition
	FieldReadyForCommand
	FieldErrorCode
)

func (f Field) String() string {
	switch f {
	case FieldConnected:
		return "connected"
	case FieldStatusMessage:
		return "statusMessage"
	case FieldStatusWord:
		return "statusWord"
	case FieldActualPosition:
		return "actualPosition"
	case FieldReadyForCommand:
		return "readyForCommand"
	case FieldErrorCode:
		return "errorCode"
	default:
		return "unknown"
	}
}

// Event is one change notification; State is the snapshot after the change.
type Event struct {
	Field Field
	State Snapshot
}
