package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// jsPublisher is the part of jetstream.JetStream the bridge needs
type jsPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSBridge republishes domain events to JetStream as JSON envelopes on
// <prefix>.<tenant>.<event type>. The event ID is the message ID so
// JetStream drops duplicates inside its dedup window.
type NATSBridge struct {
	conn       *nats.Conn
	js         jsPublisher
	serializer *Serializer
	prefix     string
	logger     *zap.Logger
}

// ConnectNATS dials the server, makes sure the stream exists and returns a
// bridge ready to subscribe on the bus
func ConnectNATS(ctx context.Context, cfg config.NATSConfig, serializer *Serializer, log *zap.Logger) (*NATSBridge, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("mdfe-backend"),
		nats.Timeout(cfg.ConnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "MDF-e domain events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	log.Info("NATS bridge connected",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("stream", cfg.Stream),
	)
	b := newNATSBridge(js, serializer, cfg.SubjectPrefix, log)
	b.conn = conn
	return b, nil
}

func newNATSBridge(js jsPublisher, serializer *Serializer, prefix string, log *zap.Logger) *NATSBridge {
	return &NATSBridge{
		js:         js,
		serializer: serializer,
		prefix:     prefix,
		logger:     log.Named("nats_bridge"),
	}
}

func (b *NATSBridge) Name() string { return "nats_bridge" }

// EventTypes is empty: the bridge forwards everything
func (b *NATSBridge) EventTypes() []string { return nil }

func (b *NATSBridge) Handle(ctx context.Context, evt shared.DomainEvent) error {
	data, err := b.serializer.Marshal(evt)
	if err != nil {
		return err
	}
	subject := b.Subject(evt)
	ack, err := b.js.Publish(ctx, subject, data, jetstream.WithMsgID(evt.EventID().String()))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	b.logger.Debug("Event forwarded",
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
	)
	return nil
}

// Subject returns the subject an event is published on
func (b *NATSBridge) Subject(evt shared.DomainEvent) string {
	return strings.Join([]string{b.prefix, evt.TenantID().String(), evt.EventType()}, ".")
}

// Close drains the connection so in-flight publishes finish
func (b *NATSBridge) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}

var _ shared.EventHandler = (*NATSBridge)(nil)

// Ping reports whether the connection to the server is up
func (b *NATSBridge) Ping(context.Context) error {
	if b.conn == nil || !b.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return nil
}
