// Package messaging forwards run progress to NATS so other processes can
// follow simulations without holding a websocket open.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"popsim/internal/progress"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix is the root of every subject published here
const SubjectPrefix = "popsim.runs"

// ProgressSubject is the subject carrying one run's progress events
func ProgressSubject(runID string) string {
	return fmt.Sprintf("%s.%s.progress", SubjectPrefix, runID)
}

// AllProgress matches the progress subject of every run
const AllProgress = SubjectPrefix + ".*.progress"

// Broker encapsulates a NATS connection
type Broker struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewBroker connects to the NATS server at url
func NewBroker(url string, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name("popsim"),
		nats.Timeout(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Broker{conn: nc, logger: logger}, nil
}

// Publish is a progress.Handler sending e as JSON on its run's subject.
// Failures are logged; progress delivery is best effort.
func (b *Broker) Publish(e progress.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("failed to encode event", zap.String("run_id", e.RunID), zap.Error(err))
		return
	}
	if err := b.conn.Publish(ProgressSubject(e.RunID), data); err != nil {
		b.logger.Warn("failed to publish event", zap.String("run_id", e.RunID), zap.Error(err))
		return
	}
	if e.Terminal() {
		if err := b.conn.Flush(); err != nil {
			b.logger.Warn("failed to flush", zap.Error(err))
		}
	}
}

// Subscribe delivers the decoded progress events of runs matching subject,
// which is usually ProgressSubject(runID) or AllProgress.
func (b *Broker) Subscribe(subject string, h progress.Handler) (*nats.Subscription, error) {
	return b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var e progress.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			b.logger.Warn("dropping malformed event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		h(e)
	})
}

// Close drains pending messages and closes the connection
func (b *Broker) Close() {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}
