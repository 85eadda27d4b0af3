package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"popsim/internal/model"
	"popsim/internal/repository"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusSource looks up the current status of a run
type StatusSource interface {
	Status(ctx context.Context, runID string) (*model.RunStatus, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub    *Hub
	runs   StatusSource
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, runs StatusSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:    hub,
		runs:   runs,
		logger: logger.Named("ws"),
	}
}

// RunWS handles GET /v1/ws/runs/{id}. The client first receives the
// current status, then every progress event until the run ends.
func (h *Handler) RunWS(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, err := h.runs.Status(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load run status", http.StatusInternalServerError)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("run_id", runID), zap.Error(err))
		return
	}

	snapshot, err := EncodeStatus(status)
	if err != nil {
		h.logger.Error("failed to encode status", zap.String("run_id", runID), zap.Error(err))
		wsConn.Close()
		return
	}

	conn := NewConnection(runID)
	conn.Send <- snapshot

	if status.State != model.RunRunning || !h.hub.Register(conn) {
		close(conn.Send)
		go h.writePump(wsConn, conn)
		go h.drain(wsConn)
		return
	}

	// The run may have ended between the snapshot and registration
	if latest, err := h.runs.Status(r.Context(), runID); err == nil && latest.State != model.RunRunning {
		h.hub.Publish(statusEvent(latest))
	}

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()
	h.read(wsConn)
}

// drain reads until the peer goes away, for connections the hub never saw
func (h *Handler) drain(wsConn *websocket.Conn) {
	defer wsConn.Close()
	h.read(wsConn)
}

func (h *Handler) read(wsConn *websocket.Conn) {
	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		// Inbound messages are ignored
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
