package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentLink relates two documents. Links are directionless for retrieval:
// a document may appear on either side.
type DocumentLink struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	TenantID uint64 `gorm:"index" json:"tenantId"`
	Type     string `gorm:"type:varchar(50)" json:"type"`

	Doc1ID uint64 `gorm:"not null;index" json:"doc1Id"`
	Doc2ID uint64 `gorm:"not null;index" json:"doc2Id"`
}

// TableName specifies the table name.
func (DocumentLink) TableName() string {
	return "document_links"
}

// FindLinksByDocID retrieves every link a document participates in.
func FindLinksByDocID(db *gorm.DB, docID uint64) ([]DocumentLink, error) {
	var links []DocumentLink
	err := db.Where("doc1_id = ? OR doc2_id = ?", docID, docID).Find(&links).Error
	return links, err
}

// CopyLinks duplicates the links of sourceID onto targetID, keeping the far
// end of each link in place.
func CopyLinks(db *gorm.DB, sourceID, targetID uint64) error {
	links, err := FindLinksByDocID(db, sourceID)
	if err != nil {
		return err
	}
	for _, link := range links {
		copied := link
		copied.ID = 0
		if link.Doc1ID == sourceID {
			copied.Doc1ID = targetID
		} else {
			copied.Doc2ID = targetID
		}
		if err := db.Create(&copied).Error; err != nil {
			return err
		}
	}
	return nil
}
