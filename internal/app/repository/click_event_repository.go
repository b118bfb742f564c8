package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"gorm.io/gorm"
)

// ClickEventRepository defines the data access contract for the
// append-only click log. Events are never updated after creation.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
	Range(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.ClickEvent, error)
	Recent(ctx context.Context, ownerID uuid.UUID, limit int) ([]model.ClickEvent, error)
	OwnersInRange(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// Range returns the raw events in [from, to) for an owner, optionally
// narrowed to one link. Used by the rebuild path only, never on the
// dashboard hot path.
func (r *clickEventRepository) Range(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.ClickEvent, error) {
	q := r.db.WithContext(ctx).
		Where("owner_id = ? AND timestamp >= ? AND timestamp < ?", ownerID, from, to)
	if linkID != nil {
		q = q.Where("link_id = ?", *linkID)
	}

	var events []model.ClickEvent
	if err := q.Order("timestamp ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// OwnersInRange lists the distinct owners with at least one event in
// [from, to). The reconciler uses it to bound its rebuild sweep.
func (r *clickEventRepository) OwnersInRange(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	var owners []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Distinct("owner_id").
		Pluck("owner_id", &owners).Error; err != nil {
		return nil, err
	}
	return owners, nil
}

func (r *clickEventRepository) Recent(ctx context.Context, ownerID uuid.UUID, limit int) ([]model.ClickEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	var events []model.ClickEvent
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
