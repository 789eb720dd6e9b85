// internal/feed/server.go
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/tamzrod/ecat-drive/internal/drive"
	"github.com/tamzrod/ecat-drive/internal/status"
)

// Driver is the part of the controller the feed serves.
type Driver interface {
	State() status.Snapshot
	MoveToPosition(position, velocity int32) error
}

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler builds the router:
//
//	GET  /api/state  current snapshot
//	POST /api/move   {position, velocity}
//	GET  /ws/state   one {field, state} frame per change
func Handler(d Driver, pub *status.Publisher) http.Handler {
	h := &handlers{d: d, pub: pub}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // keep last

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/state", h.getState)
		r.Post("/move", h.postMove)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/state", h.streamState)
	})

	return r
}

type handlers struct {
	d   Driver
	pub *status.Publisher
}

func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, NewStatePayload(h.d.State()))
}

func (h *handlers) postMove(w http.ResponseWriter, r *http.Request) {
	data := &MovePayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	pos, vel := *data.Position, *data.Velocity
	if err := h.d.MoveToPosition(pos, vel); err != nil {
		if errors.Is(err, drive.ErrNotConnected) {
			render.Render(w, r, ErrConflict(err))
			return
		}
		render.Render(w, r, ErrInternal(err))
		return
	}

	render.Render(w, r, &AcceptedPayload{
		Position: pos,
		Velocity: vel,
		Message:  fmt.Sprintf("move to %d at %d accepted", pos, vel),
	})
}

// streamState sends the current snapshot, then every published change.
// A slow client misses intermediate events but the next frame always
// carries the full latest state.
func (h *handlers) streamState(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: upgrade: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.pub.Subscribe(subscriberBuffer)
	defer cancel()

	// read side only tracks liveness; clients do not send commands here
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v interface{}) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	if err := write(EventPayload{Field: "snapshot", State: NewStatePayload(h.d.State())}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := write(EventPayload{Field: ev.Field.String(), State: NewStatePayload(ev.State)}); err != nil {
				log.Printf("feed: [%s] write: %v", conn.RemoteAddr(), err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ---- SERVER ----

// Serve runs the feed on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("feed: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("feed: %w", err)
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("feed: shutdown: %w", err)
		}
		return nil
	}
}
