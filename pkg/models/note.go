package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentNote is an annotation attached to a document. Notes bound to a
// specific file version are carried forward when checkin produces a new file
// version.
type DocumentNote struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	DocID    uint64 `gorm:"not null;index" json:"docId"`
	UserID   uint64 `json:"userId"`
	Username string `gorm:"type:varchar(255)" json:"username"`

	Date    time.Time `json:"date"`
	Message string    `gorm:"type:varchar(4000)" json:"message"`

	// FileVersion binds the note to a file version; empty notes apply to the
	// document as a whole.
	FileVersion string `gorm:"type:varchar(20);index" json:"fileVersion,omitempty"`
}

// TableName specifies the table name.
func (DocumentNote) TableName() string {
	return "document_notes"
}

// FindNotesByDocID retrieves the notes of a document, oldest first. When
// fileVersion is non-empty only notes bound to it are returned.
func FindNotesByDocID(db *gorm.DB, docID uint64, fileVersion string) ([]DocumentNote, error) {
	q := db.Where("doc_id = ?", docID)
	if fileVersion != "" {
		q = q.Where("file_version = ?", fileVersion)
	}
	var notes []DocumentNote
	err := q.Order("date ASC, id ASC").Find(&notes).Error
	return notes, err
}

// CopyNotesToDocument duplicates every note of sourceID onto targetID,
// rebinding version-bound notes to the target's file version.
func CopyNotesToDocument(db *gorm.DB, sourceID, targetID uint64, targetFileVersion string) error {
	notes, err := FindNotesByDocID(db, sourceID, "")
	if err != nil {
		return err
	}
	for _, note := range notes {
		copied := note
		copied.ID = 0
		copied.DocID = targetID
		if copied.FileVersion != "" {
			copied.FileVersion = targetFileVersion
		}
		if err := db.Create(&copied).Error; err != nil {
			return err
		}
	}
	return nil
}

// CopyAnnotations duplicates the notes bound to oldFileVersion onto
// newFileVersion, preserving author and date.
func CopyAnnotations(db *gorm.DB, docID uint64, oldFileVersion, newFileVersion string) error {
	notes, err := FindNotesByDocID(db, docID, oldFileVersion)
	if err != nil {
		return err
	}
	for _, note := range notes {
		copied := note
		copied.ID = 0
		copied.FileVersion = newFileVersion
		if err := db.Create(&copied).Error; err != nil {
			return err
		}
	}
	return nil
}
