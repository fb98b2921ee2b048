package events

import (
	"net/http"
	stdsync "sync"
	"time"

	"hotelsync/internal/domain/sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	subBuffer    = 256
)

// Source publishes sync events, usually the coordinator.
type Source interface {
	Subscribe(buffer int) (<-chan sync.Event, func())
}

// Handler streams sync events to websocket clients, one JSON message per event.
type Handler struct {
	source   Source
	log      *slog.Logger
	upgrader websocket.Upgrader

	quit     chan struct{}
	quitOnce stdsync.Once
	conns    stdsync.WaitGroup
}

func NewHandler(source Source, log *slog.Logger) *Handler {
	return &Handler{
		source: source,
		log:    log.With(slog.String("component", "event_stream")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		quit: make(chan struct{}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.conns.Add(1)
	defer h.conns.Done()
	defer conn.Close()

	select {
	case <-h.quit:
		h.closeWith(conn, websocket.CloseGoingAway, "shutting down")
		return
	default:
	}

	events, cancel := h.source.Subscribe(subBuffer)
	defer cancel()

	h.log.Debug("client connected", slog.String("remote_addr", r.RemoteAddr))

	gone := make(chan struct{})
	go h.readLoop(conn, gone)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			h.log.Debug("client disconnected", slog.String("remote_addr", r.RemoteAddr))
			return
		case <-h.quit:
			h.closeWith(conn, websocket.CloseGoingAway, "shutting down")
			return
		case e, ok := <-events:
			if !ok {
				h.closeWith(conn, websocket.CloseNormalClosure, "")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				h.log.Debug("write event", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and waits for their handlers to return.
// Hijacked connections are not tracked by http.Server.Shutdown.
func (h *Handler) Close() {
	h.quitOnce.Do(func() { close(h.quit) })
	h.conns.Wait()
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Handler) readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
