package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentHistory is an append-only audit record of a lifecycle event. It is
// written by the history sink independently of the record store's own
// transaction: a failed operation may still leave its attempt on record.
type DocumentHistory struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	TenantID uint64 `gorm:"index" json:"tenantId"`
	DocID    uint64 `gorm:"index" json:"docId"`
	FolderID uint64 `gorm:"index" json:"folderId"`

	UserID    uint64 `json:"userId"`
	Username  string `gorm:"type:varchar(255)" json:"username"`
	SessionID string `gorm:"type:varchar(255)" json:"sessionId,omitempty"`

	Date  time.Time `json:"date"`
	Event string    `gorm:"type:varchar(50);index" json:"event"`

	Comment string `gorm:"type:varchar(4000)" json:"comment,omitempty"`
	// Reason carries event-specific context, e.g. the previous indexing
	// state on an indexed event.
	Reason string `gorm:"type:varchar(1000)" json:"reason,omitempty"`

	Version     string `gorm:"type:varchar(20)" json:"version,omitempty"`
	FileVersion string `gorm:"type:varchar(20)" json:"fileVersion,omitempty"`
	FileName    string `gorm:"type:varchar(500)" json:"fileName,omitempty"`
	FileNameOld string `gorm:"type:varchar(500)" json:"fileNameOld,omitempty"`
	PathOld     string `gorm:"type:varchar(4000)" json:"pathOld,omitempty"`
}

// TableName specifies the table name.
func (DocumentHistory) TableName() string {
	return "document_histories"
}

// FindHistoryByDocID retrieves the audit trail of a document, newest first.
func FindHistoryByDocID(db *gorm.DB, docID uint64) ([]DocumentHistory, error) {
	var entries []DocumentHistory
	err := db.Where("doc_id = ?", docID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}
