package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
)

// Aggregator folds raw click events into DailyAggregate rows. The
// incremental path applies one atomic increment per event; the rebuild
// path replays raw events for a scope and date range and fully supersedes
// whatever the incremental path wrote there.
type Aggregator struct {
	aggregates repository.AggregateRepository
	events     repository.ClickEventRepository
}

// NewAggregator returns an aggregator over the given repositories.
func NewAggregator(aggregates repository.AggregateRepository, events repository.ClickEventRepository) *Aggregator {
	return &Aggregator{aggregates: aggregates, events: events}
}

// Incorporate applies one click event to its aggregate row. Safe under
// concurrency: the repository increment is atomic at the storage layer,
// so concurrent events for the same key never lose counts.
func (a *Aggregator) Incorporate(ctx context.Context, event *model.ClickEvent) error {
	row := aggregateRowFor(event)
	if err := a.aggregates.Increment(ctx, &row); err != nil {
		return fmt.Errorf("increment aggregate: %w", err)
	}
	return nil
}

// Rebuild recomputes aggregates for an owner (optionally one link) over
// [from, to) from the raw event log and overwrites the stored rows.
// Idempotent: rebuilding twice equals rebuilding once.
func (a *Aggregator) Rebuild(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) error {
	from = TruncateDay(from)
	to = TruncateDay(to)
	if !to.After(from) {
		return fmt.Errorf("rebuild: empty range [%s, %s)", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	events, err := a.events.Range(ctx, ownerID, linkID, from, to)
	if err != nil {
		return fmt.Errorf("load events for rebuild: %w", err)
	}

	type key struct {
		linkID uuid.UUID
		day    time.Time
		device model.DeviceType
		city   string
	}
	folded := make(map[key]*model.DailyAggregate)
	for idx := range events {
		event := &events[idx]
		row := aggregateRowFor(event)
		k := key{linkID: row.LinkID, day: row.Day, device: row.DeviceType, city: row.City}
		if existing, ok := folded[k]; ok {
			existing.Clicks += row.Clicks
			existing.QRClicks += row.QRClicks
		} else {
			copied := row
			folded[k] = &copied
		}
	}

	rows := make([]model.DailyAggregate, 0, len(folded))
	for _, row := range folded {
		rows = append(rows, *row)
	}

	if err := a.aggregates.ReplaceRange(ctx, ownerID, linkID, from, to, rows); err != nil {
		return fmt.Errorf("replace aggregates: %w", err)
	}
	return nil
}

func aggregateRowFor(event *model.ClickEvent) model.DailyAggregate {
	row := model.DailyAggregate{
		LinkID:     event.LinkID,
		OwnerID:    event.OwnerID,
		Day:        TruncateDay(event.Timestamp),
		DeviceType: event.DeviceType,
		City:       event.City,
		Country:    event.Country,
		Clicks:     1,
	}
	if event.ViaQR {
		row.QRClicks = 1
	}
	return row
}

// TruncateDay drops the time-of-day component in UTC.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
