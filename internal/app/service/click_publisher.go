package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/linkboard/linkboard/internal/app/model"
)

// ClickPublisher publishes raw click events to NATS JetStream. It is the
// durable leg of the ingest pipeline; the dispatcher in front of it owns
// the drop policy.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish writes one raw click onto the stream.
func (p *ClickPublisher) Publish(ctx context.Context, click model.RawClick) error {
	data, err := json.Marshal(click)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data, nats.Context(ctx))
	return err
}
