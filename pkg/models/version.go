package models

import (
	"time"

	"gorm.io/gorm"
)

// Version is an immutable snapshot of a document at a point in its version
// chain. Rows are append-only; the only mutation after creation is the
// soft-delete marker set by explicit version deletion.
type Version struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	DocID uint64 `gorm:"not null;index" json:"docId"`

	Version     string `gorm:"type:varchar(20);not null" json:"version"`
	FileVersion string `gorm:"type:varchar(20);not null" json:"fileVersion"`
	FileSize    int64  `json:"fileSize"`
	Digest      string `gorm:"type:varchar(64)" json:"digest"`

	// Denormalized searchable/display attributes captured at creation time.
	FileName   string  `gorm:"type:varchar(500)" json:"fileName"`
	TemplateID *uint64 `json:"templateId,omitempty"`
	Tags       string  `gorm:"type:varchar(1000)" json:"tags"`
	CustomID   *string `gorm:"type:varchar(200)" json:"customId,omitempty"`

	Event    string `gorm:"type:varchar(50)" json:"event"`
	UserID   uint64 `json:"userId"`
	Username string `gorm:"type:varchar(255)" json:"username"`
	Comment  string `gorm:"type:varchar(1000)" json:"comment"`

	Deleted int `gorm:"not null;default:0" json:"-"`
}

// TableName specifies the table name.
func (Version) TableName() string {
	return "versions"
}

// FindVersionsByDocID retrieves all non-deleted versions of a document,
// newest first.
func FindVersionsByDocID(db *gorm.DB, docID uint64) ([]Version, error) {
	var versions []Version
	err := db.Where("doc_id = ? AND deleted = 0", docID).
		Order("created_at DESC, id DESC").
		Find(&versions).Error
	return versions, err
}

// FindVersionByID retrieves a version by id, deleted ones included so that
// referential cleanup can still resolve it.
func FindVersionByID(db *gorm.DB, id uint64) (*Version, error) {
	var v Version
	if err := db.First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindVersionByVersion retrieves a document's version matching the given
// version string.
func FindVersionByVersion(db *gorm.DB, docID uint64, version string) (*Version, error) {
	var v Version
	err := db.Where("doc_id = ? AND version = ? AND deleted = 0", docID, version).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}
