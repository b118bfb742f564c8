package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
)

// StatsService is the read side of the analytics pipeline. Everything it
// serves comes from DailyAggregate rows except the dashboard's recent
// click list, which pages the raw log.
type StatsService interface {
	TotalClicks(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) (int64, error)
	ClicksByDay(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) ([]model.DayCount, error)
	ClicksByDevice(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) ([]model.DeviceCount, error)
	ClicksByCity(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days, topN int) ([]model.CityCount, error)
	LinkStats(ctx context.Context, ownerID, linkID uuid.UUID, days int) (*model.LinkStats, error)
	Dashboard(ctx context.Context, ownerID uuid.UUID, days int) (*model.DashboardStats, error)
}

type statsService struct {
	aggregates repository.AggregateRepository
	events     repository.ClickEventRepository
	links      repository.LinkRepository
}

// NewStatsService returns the aggregate-backed stats reader.
func NewStatsService(aggregates repository.AggregateRepository, events repository.ClickEventRepository, links repository.LinkRepository) StatsService {
	return &statsService{aggregates: aggregates, events: events, links: links}
}

const defaultStatsDays = 30

// window returns [from, to) covering the last `days` full days including
// today, in UTC.
func window(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = defaultStatsDays
	}
	to := TruncateDay(time.Now().UTC()).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -days)
	return from, to
}

func (s *statsService) TotalClicks(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) (int64, error) {
	from, _ := window(days)
	clicks, _, err := s.aggregates.Total(ctx, ownerID, linkID, from)
	if err != nil {
		return 0, fmt.Errorf("total clicks: %w", err)
	}
	return clicks, nil
}

// ClicksByDay returns one entry per day in the window, oldest first, with
// zero counts for days without clicks. The dashboard chart assumes a
// contiguous date axis.
func (s *statsService) ClicksByDay(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) ([]model.DayCount, error) {
	from, to := window(days)
	counted, err := s.aggregates.ByDay(ctx, ownerID, linkID, from, to)
	if err != nil {
		return nil, fmt.Errorf("clicks by day: %w", err)
	}
	return ZeroFillDays(counted, from, to), nil
}

func (s *statsService) ClicksByDevice(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) ([]model.DeviceCount, error) {
	from, _ := window(days)
	rows, err := s.aggregates.ByDevice(ctx, ownerID, linkID, from)
	if err != nil {
		return nil, fmt.Errorf("clicks by device: %w", err)
	}
	return rows, nil
}

func (s *statsService) ClicksByCity(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days, topN int) ([]model.CityCount, error) {
	from, _ := window(days)
	rows, err := s.aggregates.ByCity(ctx, ownerID, linkID, from, topN)
	if err != nil {
		return nil, fmt.Errorf("clicks by city: %w", err)
	}
	return rows, nil
}

func (s *statsService) LinkStats(ctx context.Context, ownerID, linkID uuid.UUID, days int) (*model.LinkStats, error) {
	from, to := window(days)

	clicks, qrClicks, err := s.aggregates.Total(ctx, ownerID, &linkID, from)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}

	byDay, err := s.aggregates.ByDay(ctx, ownerID, &linkID, from, to)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}

	byDevice, err := s.aggregates.ByDevice(ctx, ownerID, &linkID, from)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}

	byCity, err := s.aggregates.ByCity(ctx, ownerID, &linkID, from, 10)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}

	return &model.LinkStats{
		TotalClicks:    clicks,
		QRClicks:       qrClicks,
		DirectClicks:   clicks - qrClicks,
		ClicksByDay:    ZeroFillDays(byDay, from, to),
		ClicksByDevice: byDevice,
		ClicksByCity:   byCity,
	}, nil
}

func (s *statsService) Dashboard(ctx context.Context, ownerID uuid.UUID, days int) (*model.DashboardStats, error) {
	from, to := window(days)

	total, active, err := s.links.Counts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	clicks, qrClicks, err := s.aggregates.Total(ctx, ownerID, nil, from)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	byDay, err := s.aggregates.ByDay(ctx, ownerID, nil, from, to)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	byDevice, err := s.aggregates.ByDevice(ctx, ownerID, nil, from)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	byCity, err := s.aggregates.ByCity(ctx, ownerID, nil, from, 10)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	topLinks, err := s.aggregates.TopLinks(ctx, ownerID, from, 10)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	recent, err := s.events.Recent(ctx, ownerID, 10)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	return &model.DashboardStats{
		TotalLinks:     total,
		ActiveLinks:    active,
		TotalClicks:    clicks,
		QRClicks:       qrClicks,
		DirectClicks:   clicks - qrClicks,
		ClicksByDay:    ZeroFillDays(byDay, from, to),
		ClicksByDevice: byDevice,
		ClicksByCity:   byCity,
		TopLinks:       topLinks,
		RecentClicks:   recent,
	}, nil
}

// ZeroFillDays expands a sparse day series into one entry per day in
// [from, to), keeping existing counts and inserting zeros for gaps.
func ZeroFillDays(counted []model.DayCount, from, to time.Time) []model.DayCount {
	byDate := make(map[string]int64, len(counted))
	for _, dc := range counted {
		byDate[dc.Date] = dc.Count
	}

	var out []model.DayCount
	for day := TruncateDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		out = append(out, model.DayCount{Date: date, Count: byDate[date]})
	}
	return out
}
