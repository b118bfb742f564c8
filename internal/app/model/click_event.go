package model

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType classifies the client that followed a short link.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceUnknown DeviceType = "unknown"
)

// RawClick is the wire form of a click as captured on the redirect path,
// before any classification work has happened. It travels through the
// dispatch channel and the NATS stream.
type RawClick struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	LinkID    uuid.UUID `json:"link_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	ViaQR     bool      `json:"via_qr"`
	Timestamp time.Time `json:"timestamp"`
}

// ClickEvent is one immutable record of a resolved redirect. Rows are
// append-only; aggregates are derived from them and can always be rebuilt.
type ClickEvent struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	LinkID     uuid.UUID  `json:"link_id" gorm:"type:uuid;not null;index"`
	OwnerID    uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	Timestamp  time.Time  `json:"timestamp" gorm:"not null;index"`
	UserAgent  string     `json:"user_agent" gorm:"type:text"`
	IP         string     `json:"ip" gorm:"size:64"`
	DeviceType DeviceType `json:"device_type" gorm:"size:16;not null;default:unknown"`
	City       string     `json:"city,omitempty" gorm:"size:128"`
	Country    string     `json:"country,omitempty" gorm:"size:128"`
	ViaQR      bool       `json:"via_qr" gorm:"not null;default:false"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-ingestor"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
