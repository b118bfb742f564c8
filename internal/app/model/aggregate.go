package model

import (
	"time"

	"github.com/google/uuid"
)

// DailyAggregate is a derived counter row keyed by link, day, device type
// and city. It is maintained incrementally by the aggregator and can be
// recomputed from ClickEvent rows at any time. City is the empty string
// when geography could not be resolved, so the composite key stays total.
type DailyAggregate struct {
	LinkID     uuid.UUID  `json:"link_id" gorm:"type:uuid;primaryKey"`
	OwnerID    uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	Day        time.Time  `json:"day" gorm:"type:date;primaryKey"`
	DeviceType DeviceType `json:"device_type" gorm:"size:16;primaryKey"`
	City       string     `json:"city" gorm:"size:128;primaryKey;default:''"`
	Country    string     `json:"country" gorm:"size:128"`
	Clicks     int64      `json:"clicks" gorm:"not null;default:0"`
	QRClicks   int64      `json:"qr_clicks" gorm:"not null;default:0"`
}

// DayCount is one point of a clicks-by-day series.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DeviceCount is one entry of a clicks-by-device breakdown.
type DeviceCount struct {
	DeviceType DeviceType `json:"device_type"`
	Count      int64      `json:"count"`
}

// CityCount is one entry of a clicks-by-city breakdown.
type CityCount struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

// LinkStats is the per-link analytics view the dashboard renders.
type LinkStats struct {
	TotalClicks    int64         `json:"total_clicks"`
	QRClicks       int64         `json:"qr_clicks"`
	DirectClicks   int64         `json:"direct_clicks"`
	ClicksByDay    []DayCount    `json:"clicks_by_day"`
	ClicksByDevice []DeviceCount `json:"clicks_by_device"`
	ClicksByCity   []CityCount   `json:"clicks_by_city"`
}

// TopLink is one row of the dashboard's most-clicked list.
type TopLink struct {
	LinkID uuid.UUID `json:"link_id"`
	Code   string    `json:"code"`
	URL    string    `json:"url"`
	Clicks int64     `json:"clicks"`
}

// DashboardStats is the owner-scoped summary consumed by the dashboard UI.
type DashboardStats struct {
	TotalLinks     int64         `json:"total_links"`
	ActiveLinks    int64         `json:"active_count"`
	TotalClicks    int64         `json:"total_clicks"`
	QRClicks       int64         `json:"qr_clicks"`
	DirectClicks   int64         `json:"direct_clicks"`
	ClicksByDay    []DayCount    `json:"clicks_by_day"`
	ClicksByDevice []DeviceCount `json:"clicks_by_device"`
	ClicksByCity   []CityCount   `json:"clicks_by_city"`
	TopLinks       []TopLink     `json:"top_links"`
	RecentClicks   []ClickEvent  `json:"recent_clicks"`
}
