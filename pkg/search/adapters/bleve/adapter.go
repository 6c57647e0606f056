// Package bleve provides an embedded full-text index adapter backed by
// Bleve. The index lives on disk next to the content store, or in memory for
// tests.
package bleve

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/search"
)

// Config contains Bleve configuration.
type Config struct {
	// IndexPath is the on-disk index location. Empty means an in-memory
	// index, which is what the tests use.
	IndexPath string `hcl:"index_path,optional"`
}

// Adapter implements search.Provider for Bleve.
type Adapter struct {
	index bleve.Index
}

// NewAdapter opens or creates the index.
func NewAdapter(cfg *Config) (*Adapter, error) {
	docMapping := createHitMapping()

	var idx bleve.Index
	var err error
	if cfg.IndexPath == "" {
		idx, err = bleve.NewMemOnly(docMapping)
	} else {
		idx, err = openOrCreateIndex(cfg.IndexPath, docMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open hits index: %w", err)
	}
	return &Adapter{index: idx}, nil
}

// openOrCreateIndex opens an existing Bleve index or creates a new one.
func openOrCreateIndex(path string, indexMapping mapping.IndexMapping) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, indexMapping)
	}
	return idx, err
}

// createHitMapping creates the index mapping for document hits.
func createHitMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	storedTextMapping := bleve.NewTextFieldMapping()
	storedTextMapping.Analyzer = "en"
	storedTextMapping.Store = true

	storedKeywordMapping := bleve.NewKeywordFieldMapping()
	storedKeywordMapping.Store = true

	// content, fileName and language are stored so GetHit can rebuild a hit
	// for metadata-only reindexing without re-parsing the binary.
	hitMapping := bleve.NewDocumentMapping()
	hitMapping.AddFieldMappingsAt("fileName", storedKeywordMapping)
	hitMapping.AddFieldMappingsAt("content", storedTextMapping)
	hitMapping.AddFieldMappingsAt("tags", textFieldMapping)
	hitMapping.AddFieldMappingsAt("language", storedKeywordMapping)

	indexMapping.AddDocumentMapping("_default", hitMapping)
	return indexMapping
}

func hitID(docID uint64) string {
	return strconv.FormatUint(docID, 10)
}

// AddHit indexes a document, replacing any previous entry.
func (a *Adapter) AddHit(ctx context.Context, doc *models.Document, content string) error {
	hit := search.NewHit(doc, content)
	if err := a.index.Index(hitID(doc.ID), hit); err != nil {
		return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
	}
	return nil
}

// DeleteHit removes a document's entry.
func (a *Adapter) DeleteHit(ctx context.Context, docID uint64) error {
	if err := a.index.Delete(hitID(docID)); err != nil {
		return fmt.Errorf("failed to delete hit %d: %w", docID, err)
	}
	return nil
}

// DeleteHits removes a batch of entries.
func (a *Adapter) DeleteHits(ctx context.Context, docIDs []uint64) error {
	batch := a.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(hitID(id))
	}
	if err := a.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete %d hits: %w", len(docIDs), err)
	}
	return nil
}

// GetHit retrieves a document's entry with its stored content.
func (a *Adapter) GetHit(ctx context.Context, docID uint64) (*search.Hit, error) {
	doc, err := a.index.Document(hitID(docID))
	if err != nil {
		return nil, fmt.Errorf("failed to load hit %d: %w", docID, err)
	}
	if doc == nil {
		return nil, search.ErrHitNotFound
	}

	hit := &search.Hit{DocID: docID}
	doc.VisitFields(func(field index.Field) {
		switch field.Name() {
		case "content":
			hit.Content = string(field.Value())
		case "fileName":
			hit.FileName = string(field.Value())
		case "language":
			hit.Language = string(field.Value())
		}
	})
	return hit, nil
}

// Close releases the index.
func (a *Adapter) Close() error {
	return a.index.Close()
}
