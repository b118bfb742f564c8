package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AggregateRepository maintains and reads the derived DailyAggregate rows.
// Increments go through a single ON CONFLICT upsert so concurrent clicks
// for the same key cannot lose updates; there is no read-modify-write in
// the application.
type AggregateRepository interface {
	Increment(ctx context.Context, row *model.DailyAggregate) error
	ReplaceRange(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time, rows []model.DailyAggregate) error
	Total(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) (clicks, qrClicks int64, err error)
	ByDay(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.DayCount, error)
	ByDevice(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) ([]model.DeviceCount, error)
	ByCity(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time, topN int) ([]model.CityCount, error)
	TopLinks(ctx context.Context, ownerID uuid.UUID, from time.Time, topN int) ([]model.TopLink, error)
}

type aggregateRepository struct {
	db *gorm.DB
}

// NewAggregateRepository returns a GORM-backed AggregateRepository.
func NewAggregateRepository(db *gorm.DB) AggregateRepository {
	return &aggregateRepository{db: db}
}

var aggregateKey = []clause.Column{
	{Name: "link_id"},
	{Name: "day"},
	{Name: "device_type"},
	{Name: "city"},
}

// Increment applies row's counters onto the matching aggregate row,
// creating it when absent. The increment happens inside the upsert
// statement, so it is linearizable at the storage layer.
func (r *aggregateRepository) Increment(ctx context.Context, row *model.DailyAggregate) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: aggregateKey,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"clicks":    gorm.Expr("daily_aggregates.clicks + ?", row.Clicks),
			"qr_clicks": gorm.Expr("daily_aggregates.qr_clicks + ?", row.QRClicks),
		}),
	}).Create(row).Error
}

// ReplaceRange swaps the aggregate rows for a scope and date range with a
// freshly computed set in one transaction. Running it twice with the same
// source events yields identical rows, which makes rebuilds idempotent.
func (r *aggregateRepository) ReplaceRange(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time, rows []model.DailyAggregate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("owner_id = ? AND day >= ? AND day < ?", ownerID, from, to)
		if linkID != nil {
			del = del.Where("link_id = ?", *linkID)
		}
		if err := del.Delete(&model.DailyAggregate{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *aggregateRepository) scoped(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.DailyAggregate{}).
		Where("owner_id = ? AND day >= ?", ownerID, from)
	if linkID != nil {
		q = q.Where("link_id = ?", *linkID)
	}
	return q
}

func (r *aggregateRepository) Total(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) (int64, int64, error) {
	var sums struct {
		Clicks   int64
		QRClicks int64
	}
	err := r.scoped(ctx, ownerID, linkID, from).
		Select("COALESCE(SUM(clicks), 0) AS clicks, COALESCE(SUM(qr_clicks), 0) AS qr_clicks").
		Scan(&sums).Error
	if err != nil {
		return 0, 0, err
	}
	return sums.Clicks, sums.QRClicks, nil
}

// ByDay returns the days that have at least one click. Zero-filling for
// chart continuity happens in the stats service, not in SQL.
func (r *aggregateRepository) ByDay(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.DayCount, error) {
	type dayRow struct {
		Day   time.Time
		Count int64
	}
	var rows []dayRow
	err := r.scoped(ctx, ownerID, linkID, from).
		Where("day < ?", to).
		Select("day, SUM(clicks) AS count").
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.DayCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.DayCount{Date: row.Day.Format("2006-01-02"), Count: row.Count})
	}
	return out, nil
}

func (r *aggregateRepository) ByDevice(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) ([]model.DeviceCount, error) {
	var rows []model.DeviceCount
	err := r.scoped(ctx, ownerID, linkID, from).
		Select("device_type, SUM(clicks) AS count").
		Group("device_type").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *aggregateRepository) ByCity(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time, topN int) ([]model.CityCount, error) {
	if topN <= 0 {
		topN = 10
	}
	var rows []model.CityCount
	err := r.scoped(ctx, ownerID, linkID, from).
		Where("city <> ''").
		Select("city, country, SUM(clicks) AS count").
		Group("city, country").
		Order("count DESC").
		Limit(topN).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *aggregateRepository) TopLinks(ctx context.Context, ownerID uuid.UUID, from time.Time, topN int) ([]model.TopLink, error) {
	if topN <= 0 {
		topN = 10
	}
	var rows []model.TopLink
	err := r.db.WithContext(ctx).Model(&model.DailyAggregate{}).
		Joins("JOIN links ON links.id = daily_aggregates.link_id").
		Where("daily_aggregates.owner_id = ? AND daily_aggregates.day >= ?", ownerID, from).
		Select("daily_aggregates.link_id, links.code, links.url, SUM(daily_aggregates.clicks) AS clicks").
		Group("daily_aggregates.link_id, links.code, links.url").
		Order("clicks DESC").
		Limit(topN).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
