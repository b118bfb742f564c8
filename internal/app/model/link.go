package model

import (
	"time"

	"github.com/google/uuid"
)

// Link describes a short link stored in Postgres. A link belongs to a
// linktree page owner and maps a unique short code to a destination URL.
type Link struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Code         string     `json:"code" gorm:"size:32;not null;uniqueIndex"`
	URL          string     `json:"url" gorm:"type:text;not null"`
	OwnerID      uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	Active       bool       `json:"active" gorm:"not null;default:true"`
	DisplayOrder int        `json:"display_order" gorm:"not null;default:0"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" gorm:"index"`
}

// RetiredCode is a tombstone written when a link is hard-deleted. Short
// codes are never recycled so historical click events stay attributable.
type RetiredCode struct {
	Code      string    `gorm:"size:32;primaryKey"`
	RetiredAt time.Time `gorm:"autoCreateTime"`
}

// DeleteMode selects what happens to a link and its click history on delete.
type DeleteMode string

const (
	// DeleteSoft marks the link inactive and keeps everything. Default.
	DeleteSoft DeleteMode = "soft"
	// DeleteHardKeepEvents removes the link row, retires its code and
	// leaves click events orphaned.
	DeleteHardKeepEvents DeleteMode = "hard_keep_events"
	// DeleteHardWithEvents removes the link together with its click
	// events and derived aggregates.
	DeleteHardWithEvents DeleteMode = "hard_with_events"
)

// Valid reports whether m names a known delete mode.
func (m DeleteMode) Valid() bool {
	switch m {
	case DeleteSoft, DeleteHardKeepEvents, DeleteHardWithEvents:
		return true
	}
	return false
}
