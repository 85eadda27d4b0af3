package ws

import (
	"context"
	"encoding/json"

	"popsim/internal/model"
	"popsim/internal/progress"

	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MsgStatus is the run status snapshot sent right after connecting
	MsgStatus   MessageType = "status"
	MsgProgress MessageType = "progress"
	MsgDone     MessageType = "done"
	MsgFailed   MessageType = "failed"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one client following one run
type Connection struct {
	RunID string
	Send  chan []byte
}

// NewConnection creates a connection with a buffered send queue
func NewConnection(runID string) *Connection {
	return &Connection{
		RunID: runID,
		Send:  make(chan []byte, 256),
	}
}

// Hub fans progress events out to the connections following each run.
// Connections of a run are closed once its terminal event is delivered.
type Hub struct {
	conns map[string]map[*Connection]struct{} // runID -> connections

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan progress.Event
	done       chan struct{}

	logger *zap.Logger
}

// NewHub creates a hub; call Run to start it
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan progress.Event, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run processes registrations and events until ctx is cancelled, then
// closes every open connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for runID, set := range h.conns {
				for conn := range set {
					close(conn.Send)
				}
				delete(h.conns, runID)
			}
			return

		case conn := <-h.register:
			set, ok := h.conns[conn.RunID]
			if !ok {
				set = make(map[*Connection]struct{})
				h.conns[conn.RunID] = set
			}
			set[conn] = struct{}{}
			h.logger.Debug("client connected", zap.String("run_id", conn.RunID), zap.Int("clients", len(set)))

		case conn := <-h.unregister:
			if set, ok := h.conns[conn.RunID]; ok {
				if _, ok := set[conn]; ok {
					delete(set, conn)
					close(conn.Send)
					if len(set) == 0 {
						delete(h.conns, conn.RunID)
					}
					h.logger.Debug("client disconnected", zap.String("run_id", conn.RunID))
				}
			}

		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

func (h *Hub) deliver(e progress.Event) {
	set, ok := h.conns[e.RunID]
	if !ok {
		return
	}
	data, err := EncodeEvent(e)
	if err != nil {
		h.logger.Warn("failed to encode event", zap.String("run_id", e.RunID), zap.Error(err))
		return
	}
	for conn := range set {
		select {
		case conn.Send <- data:
		default:
			// Drop progress if the client is slow; terminal events still close
		}
	}
	if e.Terminal() {
		for conn := range set {
			close(conn.Send)
		}
		delete(h.conns, e.RunID)
	}
}

// Register adds a connection. It returns false once the hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish is a progress.Handler feeding the hub
func (h *Hub) Publish(e progress.Event) {
	select {
	case h.broadcast <- e:
	case <-h.done:
	}
}

// EncodeEvent wraps e in a message envelope typed by its stage
func EncodeEvent(e progress.Event) ([]byte, error) {
	msgType := MsgProgress
	switch e.Stage {
	case progress.StageDone:
		msgType = MsgDone
	case progress.StageFailed:
		msgType = MsgFailed
	}
	return encode(msgType, e)
}

// EncodeStatus wraps a status snapshot in a message envelope
func EncodeStatus(status *model.RunStatus) ([]byte, error) {
	return encode(MsgStatus, status)
}

func encode(msgType MessageType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: msgType, Payload: data})
}

// statusEvent rebuilds the terminal event of a finished run
func statusEvent(status *model.RunStatus) progress.Event {
	stage := progress.StageDone
	if status.State == model.RunFailed {
		stage = progress.StageFailed
	}
	return progress.Event{
		RunID:    status.RunID,
		Kind:     status.Kind,
		Stage:    stage,
		Current:  status.Current,
		Total:    status.Total,
		ResultID: status.ResultID,
		Error:    status.Error,
		At:       status.UpdatedAt,
	}
}
