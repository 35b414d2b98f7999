package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/anonto42/yatube/backend/pkg/log"
)

// HeaderRequestID carries the originating HTTP request id.
const HeaderRequestID = "X-Request-ID"

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

// Connect dials the broker with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("yatube"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, subject string, event interface{}) error {
	msg, err := encode(subject, event, requestID(ctx))
	if err != nil {
		return err
	}

	l := log.Ctx(ctx)
	l.Debug().Str("subject", subject).Msg("publishing event")

	return p.nc.PublishMsg(msg)
}

func encode(subject string, event interface{}, reqID string) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	if reqID != "" {
		msg.Header.Set(HeaderRequestID, reqID)
	}
	return msg, nil
}

type requestIDKey struct{}

// WithRequestID stores the request id that outgoing events are tagged with.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

var _ Publisher = (*NatsPublisher)(nil)
