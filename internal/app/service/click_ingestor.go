package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
	infraprom "github.com/linkboard/linkboard/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ClickIngestor turns a raw click into one immutable ClickEvent: device
// classification, geo resolution, durable write, aggregate increment.
// All of this happens off the redirect path.
type ClickIngestor struct {
	events     repository.ClickEventRepository
	aggregator *Aggregator
	geo        GeoResolver
	logger     *zap.Logger
}

// NewClickIngestor wires the ingestor. A nil geo resolver disables
// geography; events then carry unknown city/country.
func NewClickIngestor(events repository.ClickEventRepository, aggregator *Aggregator, geo GeoResolver, logger *zap.Logger) *ClickIngestor {
	if geo == nil {
		geo = NoopGeoResolver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickIngestor{events: events, aggregator: aggregator, geo: geo, logger: logger}
}

// Ingest processes one raw click. Classification failures degrade the
// event, they never fail it; only the durable write can return an error.
func (i *ClickIngestor) Ingest(ctx context.Context, raw model.RawClick) error {
	device := ClassifyDevice(raw.UserAgent)

	location, err := i.geo.Resolve(ctx, raw.IP)
	if err != nil {
		infraprom.GeoLookupFailures.Inc()
		i.logger.Debug("geo lookup failed, recording unknown geography",
			zap.String("ip", raw.IP), zap.Error(err))
		location = Location{}
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	event := &model.ClickEvent{
		ID:         parseEventID(raw.ID),
		LinkID:     raw.LinkID,
		OwnerID:    raw.OwnerID,
		Timestamp:  ts.UTC(),
		UserAgent:  raw.UserAgent,
		IP:         raw.IP,
		DeviceType: device,
		City:       location.City,
		Country:    location.Country,
		ViaQR:      raw.ViaQR,
	}

	if err := i.events.Create(ctx, event); err != nil {
		infraprom.ClicksDropped.WithLabelValues(infraprom.DropStore).Inc()
		return fmt.Errorf("store click event: %w", err)
	}
	infraprom.ClicksRecorded.Inc()

	// Incremental aggregation rides along; a failure here is repaired by
	// the periodic reconciler replaying raw events.
	if err := i.aggregator.Incorporate(ctx, event); err != nil {
		infraprom.AggregateIncrementFailures.Inc()
		i.logger.Error("failed to incorporate click into aggregates",
			zap.String("link_id", event.LinkID.String()),
			zap.Error(err))
	}

	return nil
}

func parseEventID(raw string) uuid.UUID {
	if id, err := uuid.Parse(raw); err == nil {
		return id
	}
	return uuid.New()
}
