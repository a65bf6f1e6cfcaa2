// Package bus carries chat events between the webhook ingress and the
// report pipeline over NATS. The server can run embedded so a single
// binary deployment needs no external broker.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/report"
)

// Subjects for chat events.
const (
	SubjectMessageReceived = "chat.message.received"
	SubjectMessageRecalled = "chat.message.recalled"
)

// Config controls the NATS connection.
type Config struct {
	// URL of an external NATS server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process NATS server on a loopback port.
	Embedded bool
}

// Bus wraps one NATS connection and, optionally, the embedded server
// behind it.
type Bus struct {
	nc     *nats.Conn
	srv    *natsserver.Server
	logger *zap.Logger
}

// Connect establishes the NATS connection, starting an embedded server
// first when configured.
func Connect(cfg Config, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bus{logger: logger}

	url := cfg.URL
	if cfg.Embedded {
		srv, err := natsserver.NewServer(&natsserver.Options{
			Host:   "127.0.0.1",
			Port:   -1,
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedded nats server: %w", err)
		}
		go srv.Start()
		if !srv.ReadyForConnections(5 * time.Second) {
			srv.Shutdown()
			return nil, fmt.Errorf("embedded nats server not ready")
		}
		b.srv = srv
		url = srv.ClientURL()
		logger.Info("embedded nats server started", zap.String("url", url))
	}
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		if b.srv != nil {
			b.srv.Shutdown()
		}
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	b.nc = nc

	logger.Info("connected to nats", zap.String("url", url))
	return b, nil
}

// PublishMessage publishes an inbound chat message event.
func (b *Bus) PublishMessage(msg report.InboundMessage) error {
	return b.publish(SubjectMessageReceived, msg)
}

// PublishRecall publishes a message recall event.
func (b *Bus) PublishRecall(ev report.RecallEvent) error {
	return b.publish(SubjectMessageRecalled, ev)
}

func (b *Bus) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", subject, err)
	}
	return nil
}

// SubscribeMessages delivers inbound chat messages to handler. Undecodable
// payloads are logged and dropped.
func (b *Bus) SubscribeMessages(handler func(report.InboundMessage)) (*nats.Subscription, error) {
	return b.nc.Subscribe(SubjectMessageReceived, func(m *nats.Msg) {
		var msg report.InboundMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			b.logger.Warn("dropping undecodable message event", zap.Error(err))
			return
		}
		handler(msg)
	})
}

// SubscribeRecalls delivers recall events to handler.
func (b *Bus) SubscribeRecalls(handler func(report.RecallEvent)) (*nats.Subscription, error) {
	return b.nc.Subscribe(SubjectMessageRecalled, func(m *nats.Msg) {
		var ev report.RecallEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			b.logger.Warn("dropping undecodable recall event", zap.Error(err))
			return
		}
		handler(ev)
	})
}

// Flush blocks until published events have reached the server.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}

// Connected reports whether the NATS connection is up.
func (b *Bus) Connected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// Close drains the connection and stops the embedded server if one runs.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
	if b.srv != nil {
		b.srv.Shutdown()
		b.srv.WaitForShutdown()
	}
}
