// internal/feed/payload.go
package feed

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tamzrod/ecat-drive/internal/status"
)

// ---- RESPONSES ----

// StatePayload is the JSON form of one snapshot.
type StatePayload struct {
	ActualPosition  int32  `json:"actualPosition"`
	StatusWord      string `json:"statusWord"`
	StatusMessage   string `json:"statusMessage"`
	Connected       bool   `json:"connected"`
	ReadyForCommand bool   `json:"readyForCommand"`
	ErrorCode       uint16 `json:"errorCode"`
}

func NewStatePayload(s status.Snapshot) *StatePayload {
	return &StatePayload{
		ActualPosition:  s.ActualPosition,
		StatusWord:      s.StatusWord,
		StatusMessage:   s.StatusMessage,
		Connected:       s.Connected,
		ReadyForCommand: s.ReadyForCommand,
		ErrorCode:       s.ErrorCode,
	}
}

func (p *StatePayload) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// EventPayload is one websocket frame.
type EventPayload struct {
	Field string        `json:"field"`
	State *StatePayload `json:"state"`
}

// AcceptedPayload answers a move that was handed to the engine.
type AcceptedPayload struct {
	Position int32  `json:"position"`
	Velocity int32  `json:"velocity"`
	Message  string `json:"message"`
}

func (p *AcceptedPayload) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

// ---- REQUESTS ----

// MovePayload is the body of POST /api/move.
type MovePayload struct {
	Position *int32 `json:"position"`
	Velocity *int32 `json:"velocity"`
}

func (m *MovePayload) Bind(r *http.Request) error {
	if m.Position == nil {
		return errors.New("missing position")
	}
	if m.Velocity == nil {
		return errors.New("missing velocity")
	}
	return nil
}

// ---- ERRORS ----

// ErrResponse renders a failed request.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrConflict(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Drive not ready.",
		ErrorText:      err.Error(),
	}
}

func ErrInternal(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal error.",
		ErrorText:      err.Error(),
	}
}
