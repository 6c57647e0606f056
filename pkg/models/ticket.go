package models

import (
	"time"

	"gorm.io/gorm"
)

// Ticket types.
const (
	TicketDownload = 0
	TicketView     = 1
)

// Ticket grants time-limited anonymous access to a document.
type Ticket struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// TicketID is the opaque public identifier embedded in the URL.
	TicketID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"ticketId"`

	DocID  uint64 `gorm:"not null;index" json:"docId"`
	UserID uint64 `json:"userId"`
	Type   int    `gorm:"not null;default:0" json:"type"`

	Expired *time.Time `json:"expired,omitempty"`
	// ExpireHours, when set on creation, takes precedence over the
	// configured default TTL.
	ExpireHours *int `gorm:"-" json:"expireHours,omitempty"`

	Count int `gorm:"not null;default:0" json:"count"`

	// URL is computed on creation, not persisted.
	URL string `gorm:"-" json:"url,omitempty"`
}

// TableName specifies the table name.
func (Ticket) TableName() string {
	return "tickets"
}

// DeleteExpiredTickets removes tickets past their expiry.
func DeleteExpiredTickets(db *gorm.DB) error {
	return db.Where("expired IS NOT NULL AND expired < ?", time.Now()).
		Delete(&Ticket{}).Error
}

// Tag is a searchable word attached to a document.
type Tag struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	TenantID uint64 `gorm:"index" json:"tenantId"`
	DocID    uint64 `gorm:"not null;index" json:"docId"`
	Word     string `gorm:"type:varchar(255);not null" json:"word"`
}

// TableName specifies the table name.
func (Tag) TableName() string {
	return "tags"
}

// Bookmark is a per-user pointer to a document.
type Bookmark struct {
	ID     uint64 `gorm:"primaryKey" json:"id"`
	UserID uint64 `gorm:"not null;index" json:"userId"`
	DocID  uint64 `gorm:"not null;index" json:"docId"`
}

// TableName specifies the table name.
func (Bookmark) TableName() string {
	return "bookmarks"
}
