package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
)

type failingGeo struct{}

func (failingGeo) Resolve(context.Context, string) (Location, error) {
	return Location{}, errors.New("upstream unreachable")
}

type fixedGeo struct {
	loc Location
}

func (g fixedGeo) Resolve(context.Context, string) (Location, error) {
	return g.loc, nil
}

func newIngestorFixture(geo GeoResolver) (*ClickIngestor, *memClickEventRepository, *memAggregateRepository) {
	events := newMemClickEventRepository()
	aggregates := newMemAggregateRepository()
	aggregator := NewAggregator(aggregates, events)
	return NewClickIngestor(events, aggregator, geo, nil), events, aggregates
}

func rawClick(linkID, ownerID uuid.UUID) model.RawClick {
	return model.RawClick{
		ID:        uuid.NewString(),
		Code:      "abc1234",
		LinkID:    linkID,
		OwnerID:   ownerID,
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
		Timestamp: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestIngestWritesEventAndAggregate(t *testing.T) {
	ingestor, events, aggregates := newIngestorFixture(fixedGeo{Location{City: "Berlin", Country: "Germany"}})
	linkID, ownerID := uuid.New(), uuid.New()

	if err := ingestor.Ingest(context.Background(), rawClick(linkID, ownerID)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if events.count() != 1 {
		t.Fatalf("event count = %d, want 1", events.count())
	}
	stored := events.events[0]
	if stored.DeviceType != model.DeviceMobile {
		t.Fatalf("device = %q, want mobile", stored.DeviceType)
	}
	if stored.City != "Berlin" || stored.Country != "Germany" {
		t.Fatalf("geography = %q/%q, want Berlin/Germany", stored.City, stored.Country)
	}

	rows := aggregates.snapshot()
	if len(rows) != 1 {
		t.Fatalf("aggregate rows = %d, want 1", len(rows))
	}
	for _, row := range rows {
		if row.Clicks != 1 || row.QRClicks != 0 {
			t.Fatalf("aggregate = %+v", row)
		}
		if !row.Day.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("aggregate day = %v, want 2024-06-01 midnight UTC", row.Day)
		}
	}
}

func TestIngestGeoFailureDegradesButRecords(t *testing.T) {
	ingestor, events, _ := newIngestorFixture(failingGeo{})

	if err := ingestor.Ingest(context.Background(), rawClick(uuid.New(), uuid.New())); err != nil {
		t.Fatalf("Ingest with failing geo: %v", err)
	}
	if events.count() != 1 {
		t.Fatalf("event count = %d, want 1", events.count())
	}
	stored := events.events[0]
	if stored.City != "" || stored.Country != "" {
		t.Fatalf("geography = %q/%q, want unknown", stored.City, stored.Country)
	}
}

func TestIngestPropagatesQRFlag(t *testing.T) {
	ingestor, events, aggregates := newIngestorFixture(NoopGeoResolver{})

	click := rawClick(uuid.New(), uuid.New())
	click.ViaQR = true
	if err := ingestor.Ingest(context.Background(), click); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if !events.events[0].ViaQR {
		t.Fatal("stored event lost the QR flag")
	}
	for _, row := range aggregates.snapshot() {
		if row.QRClicks != 1 {
			t.Fatalf("qr_clicks = %d, want 1", row.QRClicks)
		}
	}
}

func TestIngestStoreFailureReturnsError(t *testing.T) {
	events := newMemClickEventRepository()
	events.createErr = errors.New("connection refused")
	aggregates := newMemAggregateRepository()
	ingestor := NewClickIngestor(events, NewAggregator(aggregates, events), NoopGeoResolver{}, nil)

	if err := ingestor.Ingest(context.Background(), rawClick(uuid.New(), uuid.New())); err == nil {
		t.Fatal("Ingest swallowed a store failure")
	}
	if len(aggregates.snapshot()) != 0 {
		t.Fatal("aggregate incremented despite failed event write")
	}
}

func TestIngestFillsMissingTimestampAndID(t *testing.T) {
	ingestor, events, _ := newIngestorFixture(NoopGeoResolver{})

	click := rawClick(uuid.New(), uuid.New())
	click.ID = ""
	click.Timestamp = time.Time{}
	before := time.Now().UTC()
	if err := ingestor.Ingest(context.Background(), click); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	stored := events.events[0]
	if stored.ID == uuid.Nil {
		t.Fatal("event id not assigned")
	}
	if stored.Timestamp.Before(before) || stored.Timestamp.After(time.Now().UTC()) {
		t.Fatalf("timestamp %v not filled with now", stored.Timestamp)
	}
}
