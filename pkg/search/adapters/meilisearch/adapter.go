// Package meilisearch provides a full-text index adapter backed by a
// Meilisearch server.
package meilisearch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/meilisearch/meilisearch-go"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/search"
)

// Config contains Meilisearch configuration.
type Config struct {
	Host      string `hcl:"host"`
	APIKey    string `hcl:"api_key,optional"`
	IndexName string `hcl:"index_name,optional"`
}

// Validate validates the Meilisearch configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("meilisearch host required")
	}
	return nil
}

// Adapter implements search.Provider for Meilisearch.
type Adapter struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
}

// NewAdapter creates a new Meilisearch adapter and verifies connectivity.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "documents"
	}

	var opts []meilisearch.Option
	if cfg.APIKey != "" {
		opts = append(opts, meilisearch.WithAPIKey(cfg.APIKey))
	}
	client := meilisearch.New(cfg.Host, opts...)

	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("meilisearch not reachable at %s: %w", cfg.Host, err)
	}

	return &Adapter{
		client: client,
		index:  client.Index(indexName),
	}, nil
}

type hitDocument struct {
	ID string `json:"id"`
	search.Hit
}

func hitID(docID uint64) string {
	return strconv.FormatUint(docID, 10)
}

// AddHit indexes a document, replacing any previous entry.
func (a *Adapter) AddHit(ctx context.Context, doc *models.Document, content string) error {
	hit := hitDocument{ID: hitID(doc.ID), Hit: *search.NewHit(doc, content)}
	primaryKey := "id"
	if _, err := a.index.AddDocumentsWithContext(ctx, []hitDocument{hit}, &primaryKey); err != nil {
		return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
	}
	return nil
}

// DeleteHit removes a document's entry.
func (a *Adapter) DeleteHit(ctx context.Context, docID uint64) error {
	if _, err := a.index.DeleteDocumentWithContext(ctx, hitID(docID)); err != nil {
		return fmt.Errorf("failed to delete hit %d: %w", docID, err)
	}
	return nil
}

// DeleteHits removes a batch of entries.
func (a *Adapter) DeleteHits(ctx context.Context, docIDs []uint64) error {
	ids := make([]string, len(docIDs))
	for i, id := range docIDs {
		ids[i] = hitID(id)
	}
	if _, err := a.index.DeleteDocumentsWithContext(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete %d hits: %w", len(docIDs), err)
	}
	return nil
}

// GetHit retrieves a document's entry.
func (a *Adapter) GetHit(ctx context.Context, docID uint64) (*search.Hit, error) {
	var hit hitDocument
	err := a.index.GetDocumentWithContext(ctx, hitID(docID), nil, &hit)
	if err != nil {
		return nil, search.ErrHitNotFound
	}
	result := hit.Hit
	result.DocID = docID
	return &result, nil
}

// Close releases the adapter's resources.
func (a *Adapter) Close() error {
	a.client.Close()
	return nil
}
