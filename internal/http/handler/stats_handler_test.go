package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
	"github.com/linkboard/linkboard/internal/app/service"
)

// stubStatsService serves fixed analytics views.
type stubStatsService struct {
	linkStats *model.LinkStats
	dashboard *model.DashboardStats
}

func (s *stubStatsService) TotalClicks(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) (int64, error) {
	return s.linkStats.TotalClicks, nil
}

func (s *stubStatsService) ClicksByDay(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) ([]model.DayCount, error) {
	return s.linkStats.ClicksByDay, nil
}

func (s *stubStatsService) ClicksByDevice(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days int) ([]model.DeviceCount, error) {
	return s.linkStats.ClicksByDevice, nil
}

func (s *stubStatsService) ClicksByCity(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, days, topN int) ([]model.CityCount, error) {
	return s.linkStats.ClicksByCity, nil
}

func (s *stubStatsService) LinkStats(ctx context.Context, ownerID, linkID uuid.UUID, days int) (*model.LinkStats, error) {
	return s.linkStats, nil
}

func (s *stubStatsService) Dashboard(ctx context.Context, ownerID uuid.UUID, days int) (*model.DashboardStats, error) {
	return s.dashboard, nil
}

// rebuildRecorder satisfies the repositories the aggregator needs while
// recording whether a rebuild replaced rows.
type rebuildRecorder struct {
	repository.AggregateRepository
	replaced bool
}

func (r *rebuildRecorder) ReplaceRange(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time, rows []model.DailyAggregate) error {
	r.replaced = true
	return nil
}

type emptyEventRepo struct {
	repository.ClickEventRepository
}

func (emptyEventRepo) Range(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.ClickEvent, error) {
	return nil, nil
}

func newStatsApp(stats service.StatsService, aggregates repository.AggregateRepository, events repository.ClickEventRepository) *fiber.App {
	app := fiber.New()
	NewStatsHandler(StatsDeps{
		Stats:      stats,
		Aggregator: service.NewAggregator(aggregates, events),
	}).Register(app)
	return app
}

func TestLinkStatsEndpoint(t *testing.T) {
	stats := &stubStatsService{
		linkStats: &model.LinkStats{
			TotalClicks:  12,
			QRClicks:     3,
			DirectClicks: 9,
			ClicksByDay:  []model.DayCount{{Date: "2024-06-01", Count: 12}},
		},
	}
	app := newStatsApp(stats, &rebuildRecorder{}, emptyEventRepo{})

	linkID, ownerID := uuid.New(), uuid.New()
	resp, err := app.Test(httptest.NewRequest("GET", "/api/links/"+linkID.String()+"/stats?owner_id="+ownerID.String()+"&days=7", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body model.LinkStats
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalClicks != 12 || body.QRClicks != 3 || body.DirectClicks != 9 {
		t.Fatalf("body = %+v", body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/links/"+linkID.String()+"/stats", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status without owner_id = %d, want 400", resp.StatusCode)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	stats := &stubStatsService{
		dashboard: &model.DashboardStats{TotalLinks: 4, ActiveLinks: 3, TotalClicks: 55},
	}
	app := newStatsApp(stats, &rebuildRecorder{}, emptyEventRepo{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/dashboard?owner_id="+uuid.NewString(), nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body model.DashboardStats
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalLinks != 4 || body.ActiveLinks != 3 || body.TotalClicks != 55 {
		t.Fatalf("body = %+v", body)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	aggregates := &rebuildRecorder{}
	app := newStatsApp(&stubStatsService{}, aggregates, emptyEventRepo{})

	payload, _ := json.Marshal(RebuildRequest{
		OwnerID: uuid.New(),
		From:    "2024-06-01",
		To:      "2024-06-08",
	})
	req := httptest.NewRequest("POST", "/api/admin/aggregates/rebuild", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !aggregates.replaced {
		t.Fatal("rebuild did not replace aggregate rows")
	}
}

func TestRebuildEndpointValidation(t *testing.T) {
	app := newStatsApp(&stubStatsService{}, &rebuildRecorder{}, emptyEventRepo{})

	cases := []struct {
		name string
		body RebuildRequest
	}{
		{"missing owner", RebuildRequest{From: "2024-06-01", To: "2024-06-08"}},
		{"bad from", RebuildRequest{OwnerID: uuid.New(), From: "June 1st", To: "2024-06-08"}},
		{"bad to", RebuildRequest{OwnerID: uuid.New(), From: "2024-06-01", To: "whenever"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, _ := json.Marshal(tc.body)
			req := httptest.NewRequest("POST", "/api/admin/aggregates/rebuild", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}
