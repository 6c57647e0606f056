// Package search defines the full-text index consumed by the document
// lifecycle coordinator. The coordinator only adds, removes and reads back
// hits; querying and ranking belong to the adapters' engines and are not part
// of this interface.
package search

import (
	"context"
	"errors"

	"github.com/papermill-forge/papermill/pkg/models"
)

// ErrHitNotFound is returned by GetHit when the document has no index entry.
var ErrHitNotFound = errors.New("hit not found")

// Hit is a document's entry in the full-text index.
type Hit struct {
	DocID    uint64 `json:"docId"`
	TenantID uint64 `json:"tenantId"`
	FolderID uint64 `json:"folderId"`
	FileName string `json:"fileName"`
	Language string `json:"language"`
	Content  string `json:"content"`
	Tags     string `json:"tags"`
	Date     string `json:"date,omitempty"`
}

// Provider is implemented by full-text index adapters.
type Provider interface {
	// AddHit indexes the document with the given extracted content,
	// replacing any previous entry.
	AddHit(ctx context.Context, doc *models.Document, content string) error

	// DeleteHit removes a document's index entry. Removing an absent entry
	// is not an error.
	DeleteHit(ctx context.Context, docID uint64) error

	// DeleteHits removes a batch of index entries.
	DeleteHits(ctx context.Context, docIDs []uint64) error

	// GetHit retrieves a document's index entry, ErrHitNotFound when absent.
	GetHit(ctx context.Context, docID uint64) (*Hit, error)

	// Close releases the adapter's resources.
	Close() error
}

// NewHit builds a Hit from a document and its extracted content.
func NewHit(doc *models.Document, content string) *Hit {
	hit := &Hit{
		DocID:    doc.ID,
		TenantID: doc.TenantID,
		FolderID: doc.FolderID,
		FileName: doc.FileName,
		Language: doc.Locale,
		Content:  content,
		Tags:     doc.Tags,
	}
	if doc.Date != nil {
		hit.Date = doc.Date.UTC().Format("2006-01-02T15:04:05Z")
	}
	return hit
}
