package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("feed-sync/nats-publisher")

// DefaultSubjectPrefix prefixes every feed event subject.
const DefaultSubjectPrefix = "feedsync"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher sends feed events to NATS on <prefix>.<event type>.
type Publisher struct {
	conn   Conn
	nc     *nats.Conn
	prefix string
	logger *logger.Logger
}

var _ feed.Publisher = (*Publisher)(nil)

func NewPublisher(url, subjectPrefix string, log *logger.Logger, appName string) (*Publisher, error) {
	log.Info("NATS Publisher: connecting...", zap.String("url", url))

	opts := []nats.Option{
		nats.Name(fmt.Sprintf("%s NATS Publisher", appName)),
		nats.Timeout(10 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("NATS connection closed")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		log.Error("NATS Publisher: failed to connect", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	log.Info("NATS Publisher: successfully connected", zap.String("url", nc.ConnectedUrl()))

	p := NewPublisherWithConn(nc, subjectPrefix, log)
	p.nc = nc
	return p, nil
}

// NewPublisherWithConn builds a publisher on an existing connection.
func NewPublisherWithConn(conn Conn, subjectPrefix string, log *logger.Logger) *Publisher {
	prefix := strings.Trim(subjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: log.Named("NATSPublisher"),
	}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(t feed.EventType) string {
	return p.prefix + "." + string(t)
}

func (p *Publisher) Publish(ctx context.Context, ev feed.Event) error {
	subject := p.Subject(ev.Type)
	ctx, span := tracer.Start(ctx, "NATS.Publish."+subject, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("feed.name", ev.Feed),
		attribute.Int64("feed.generation", int64(ev.Generation)),
	)

	data, err := json.Marshal(ev)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal event for subject %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header = make(nats.Header)
	otel.GetTextMapPropagator().Inject(ctx, NATSHeaderCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Error("NATS Publisher: failed to publish message", zap.String("subject", subject), zap.Error(err))
		span.RecordError(err)
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}

	p.logger.Debug("NATS Publisher: event published", zap.String("subject", subject), zap.Int("data_size_bytes", len(data)))
	return nil
}

// Close drains and closes the connection opened by NewPublisher.
func (p *Publisher) Close() {
	if p.nc == nil || p.nc.IsClosed() {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Error("NATS Publisher: failed to drain connection", zap.Error(err))
	}
	p.nc.Close()
}

type NATSHeaderCarrier nats.Header

func (c NATSHeaderCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c NATSHeaderCarrier) Set(key string, value string) {
	nats.Header(c).Set(key, value)
}

func (c NATSHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
