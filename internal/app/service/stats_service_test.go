package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
)

func TestZeroFillDaysCoversWholeRange(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	counted := []model.DayCount{
		{Date: "2024-06-02", Count: 5},
		{Date: "2024-06-05", Count: 2},
	}

	filled := ZeroFillDays(counted, from, to)
	if len(filled) != 7 {
		t.Fatalf("got %d entries, want 7", len(filled))
	}
	for i, dc := range filled {
		wantDate := from.AddDate(0, 0, i).Format("2006-01-02")
		if dc.Date != wantDate {
			t.Fatalf("entry %d date = %q, want %q", i, dc.Date, wantDate)
		}
	}
	if filled[1].Count != 5 || filled[4].Count != 2 {
		t.Fatalf("counts misplaced: %+v", filled)
	}
	var zeros int
	for _, dc := range filled {
		if dc.Count == 0 {
			zeros++
		}
	}
	if zeros != 5 {
		t.Fatalf("zero days = %d, want 5", zeros)
	}
}

func TestZeroFillDaysEmptyInput(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)

	filled := ZeroFillDays(nil, from, to)
	if len(filled) != 3 {
		t.Fatalf("got %d entries, want 3", len(filled))
	}
	for _, dc := range filled {
		if dc.Count != 0 {
			t.Fatalf("expected all zeros, got %+v", filled)
		}
	}
}

func seedTodayClicks(t *testing.T, aggregates *memAggregateRepository, linkID, ownerID uuid.UUID) {
	t.Helper()
	today := TruncateDay(time.Now().UTC())
	rows := []model.DailyAggregate{
		{LinkID: linkID, OwnerID: ownerID, Day: today, DeviceType: model.DeviceMobile, City: "Berlin", Country: "Germany", Clicks: 6, QRClicks: 2},
		{LinkID: linkID, OwnerID: ownerID, Day: today, DeviceType: model.DeviceDesktop, City: "", Clicks: 4},
		{LinkID: linkID, OwnerID: ownerID, Day: today.AddDate(0, 0, -1), DeviceType: model.DeviceTablet, City: "Hamburg", Country: "Germany", Clicks: 1},
	}
	for i := range rows {
		if err := aggregates.Increment(context.Background(), &rows[i]); err != nil {
			t.Fatalf("seed aggregate: %v", err)
		}
	}
}

func TestLinkStatsComposesBreakdowns(t *testing.T) {
	aggregates := newMemAggregateRepository()
	events := newMemClickEventRepository()
	links := newMemLinkRepository()
	stats := NewStatsService(aggregates, events, links)

	linkID, ownerID := uuid.New(), uuid.New()
	seedTodayClicks(t, aggregates, linkID, ownerID)

	got, err := stats.LinkStats(context.Background(), ownerID, linkID, 7)
	if err != nil {
		t.Fatalf("LinkStats: %v", err)
	}

	if got.TotalClicks != 11 {
		t.Fatalf("total = %d, want 11", got.TotalClicks)
	}
	if got.QRClicks != 2 || got.DirectClicks != 9 {
		t.Fatalf("qr/direct = %d/%d, want 2/9", got.QRClicks, got.DirectClicks)
	}
	if len(got.ClicksByDay) != 7 {
		t.Fatalf("by-day entries = %d, want 7 (zero-filled)", len(got.ClicksByDay))
	}

	var deviceTotal int64
	for _, dc := range got.ClicksByDevice {
		deviceTotal += dc.Count
	}
	if deviceTotal != got.TotalClicks {
		t.Fatalf("device breakdown sums to %d, want %d", deviceTotal, got.TotalClicks)
	}

	// The city breakdown excludes the unknown-city bucket, so it can sum
	// below the total but never above it.
	var cityTotal int64
	for _, cc := range got.ClicksByCity {
		if cc.City == "" {
			t.Fatal("city breakdown includes the unknown bucket")
		}
		cityTotal += cc.Count
	}
	if cityTotal != 7 {
		t.Fatalf("city breakdown sums to %d, want 7", cityTotal)
	}
}

func TestDashboardCountsLinksAndClicks(t *testing.T) {
	aggregates := newMemAggregateRepository()
	events := newMemClickEventRepository()
	links := newMemLinkRepository()
	stats := NewStatsService(aggregates, events, links)

	ctx := context.Background()
	ownerID := uuid.New()

	active := &model.Link{Code: "active1", URL: "https://a.example.com", OwnerID: ownerID, Active: true}
	dormant := &model.Link{Code: "dormant1", URL: "https://b.example.com", OwnerID: ownerID, Active: false}
	for _, link := range []*model.Link{active, dormant} {
		if err := links.Create(ctx, link); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	seedTodayClicks(t, aggregates, active.ID, ownerID)

	err := events.Create(ctx, &model.ClickEvent{
		LinkID:     active.ID,
		OwnerID:    ownerID,
		Timestamp:  time.Now().UTC(),
		DeviceType: model.DeviceMobile,
	})
	if err != nil {
		t.Fatalf("Create event: %v", err)
	}

	got, err := stats.Dashboard(ctx, ownerID, 7)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if got.TotalLinks != 2 || got.ActiveLinks != 1 {
		t.Fatalf("links = %d total / %d active, want 2/1", got.TotalLinks, got.ActiveLinks)
	}
	if got.TotalClicks != 11 {
		t.Fatalf("total clicks = %d, want 11", got.TotalClicks)
	}
	if len(got.ClicksByDay) != 7 {
		t.Fatalf("by-day entries = %d, want 7", len(got.ClicksByDay))
	}
	if len(got.RecentClicks) != 1 {
		t.Fatalf("recent clicks = %d, want 1", len(got.RecentClicks))
	}
}

func TestStatsDefaultWindow(t *testing.T) {
	aggregates := newMemAggregateRepository()
	stats := NewStatsService(aggregates, newMemClickEventRepository(), newMemLinkRepository())

	byDay, err := stats.ClicksByDay(context.Background(), uuid.New(), nil, 0)
	if err != nil {
		t.Fatalf("ClicksByDay: %v", err)
	}
	if len(byDay) != 30 {
		t.Fatalf("default window = %d days, want 30", len(byDay))
	}
}
