// Package events publishes generation lifecycle events to NATS JetStream for
// downstream consumers (billing, analytics, moderation).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/personify-ai/chat-platform/pkg/logger"
)

const (
	// StreamName is the name of the generations stream.
	StreamName = "GENERATIONS"

	// subjectPrefix is the prefix for all generation subjects.
	subjectPrefix = "gen"
)

// Type labels a lifecycle transition.
type Type string

const (
	TypeAdmitted  Type = "admitted"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

// Event is one generation lifecycle record.
type Event struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Type           Type      `json:"type"`
	Reason         string    `json:"reason,omitempty"`
	Engine         string    `json:"engine,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Publisher writes lifecycle events to JetStream. A nil Publisher is valid
// and publishes nothing, so event delivery stays optional at runtime.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes the NATS connection and ensures the stream exists.
func Connect(ctx context.Context, url, token string, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{conn: nc, js: js, logger: log}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", subjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Generation lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish writes one event. Delivery is best-effort: a publish failure is
// logged and never fails the request that produced it.
func (p *Publisher) Publish(ctx context.Context, ev *Event) {
	if p == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, ev.ConversationID, ev.Type)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// IsConnected reports connection health for the readiness probe.
func (p *Publisher) IsConnected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
