package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// TopicSecurity is the in-process topic security events travel on.
const TopicSecurity = "faucet.security"

// Bus is an in-process pub/sub for security events, backed by Watermill's
// gochannel transport.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NewSlogLogger(logger)),
		logger: logger,
	}
}

// Report publishes a security event. Failures are logged and dropped; the
// claim pipeline never fails because the abuse log is behind.
func (b *Bus) Report(ctx context.Context, event SecurityEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(&event)
	if err != nil {
		b.logger.Error("failed to encode security event", "error", err)
		return
	}

	msg := message.NewMessage(event.ID, payload)
	if err := b.pubSub.Publish(TopicSecurity, msg); err != nil {
		b.logger.Error("failed to publish security event", "error", err)
	}
}

// Subscribe returns the raw message stream for the security topic.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, TopicSecurity)
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
