package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// SubjectPrefix is followed by "<roomId>.<eventType>".
const SubjectPrefix = "rooms"

// Publisher sends room lifecycle events over core NATS.
type Publisher struct {
	conn *nats.Conn
}

func Connect(url, clientName string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("[nats] reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

func Subject(roomID string, t internal.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, roomID, t)
}

func (p *Publisher) Publish(ctx context.Context, event internal.RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(Subject(event.RoomID, event.Type), data)
}

// Subscribe delivers every room event until the subscription is drained.
func (p *Publisher) Subscribe(handler func(internal.RoomEvent)) (*nats.Subscription, error) {
	return p.conn.Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		var event internal.RoomEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("[nats] dropping malformed event")
			return
		}
		handler(event)
	})
}

func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close drains pending publishes before closing.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
