package document

import (
	"context"

	"gorm.io/gorm"

	"github.com/papermill-forge/papermill/pkg/models"
)

// HistorySink receives audit entries. It is append-only and independent of
// the record store's transaction: entries written before a failed operation
// remain on record.
type HistorySink interface {
	Store(ctx context.Context, entry *models.DocumentHistory) error
}

// GormHistorySink stores history entries in the relational database.
type GormHistorySink struct {
	DB *gorm.DB
}

// Store appends an entry.
func (s *GormHistorySink) Store(ctx context.Context, entry *models.DocumentHistory) error {
	return s.DB.WithContext(ctx).Create(entry).Error
}
