package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linkboard/linkboard/internal/app/model"
	infraprom "github.com/linkboard/linkboard/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ClickConsumer pulls raw click events off NATS JetStream and feeds them
// to the ingestor.
type ClickConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	ingestor *ClickIngestor
	stop     chan struct{}
	done     chan struct{}
}

// NewClickConsumer creates a new click event consumer.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, ingestor *ClickIngestor) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{
		js:       js,
		logger:   logger,
		ingestor: ingestor,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start provisions the stream and durable consumer, then begins the pull
// loop in a background goroutine.
func (c *ClickConsumer) Start() error {
	// Create stream if not exists
	_, err := c.js.StreamInfo(model.ClickStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	// Create consumer if not exists
	_, err = c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop ends the pull loop and waits for it to exit.
func (c *ClickConsumer) Stop() {
	close(c.stop)
	<-c.done
}

func (c *ClickConsumer) consume(sub *nats.Subscription) {
	defer close(c.done)
	ctx := context.Background()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var raw model.RawClick
			if err := json.Unmarshal(msg.Data, &raw); err != nil {
				infraprom.ClicksDropped.WithLabelValues(infraprom.DropMalformed).Inc()
				c.logger.Error("failed to unmarshal click event", zap.Error(err))
				// Malformed payloads never become parseable; drop them.
				msg.Term()
				continue
			}

			if err := c.ingestor.Ingest(ctx, raw); err != nil {
				c.logger.Error("failed to ingest click event",
					zap.String("id", raw.ID),
					zap.String("code", raw.Code),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("click event ingested",
				zap.String("id", raw.ID),
				zap.String("code", raw.Code),
				zap.Bool("via_qr", raw.ViaQR),
				zap.Time("timestamp", raw.Timestamp),
			)

			msg.Ack()
		}
	}
}
