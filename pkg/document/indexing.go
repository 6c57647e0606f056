package document

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/parser"
	"github.com/papermill-forge/papermill/pkg/search"
	"github.com/papermill-forge/papermill/pkg/store"
)

// Index brings the document's full-text entry up to date and returns the time
// spent extracting text. Content may be supplied by the caller to skip
// extraction. Documents marked skip are left alone. An alias is indexed under
// its own identity but with the referenced document's content; if the
// reference dangles the alias is durably marked skip. Indexing an alias whose
// referenced document is itself pending brings the referenced document up to
// date first and reuses its content.
func (c *Coordinator) Index(ctx context.Context, docID uint64, content string, tx *Transaction) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, elapsed, err := c.index(ctx, docID, content, tx)
	return elapsed, err
}

func (c *Coordinator) index(ctx context.Context, docID uint64, supplied string, tx *Transaction) (string, time.Duration, error) {
	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return "", 0, err
	}
	if doc.Indexed == models.IndexSkip {
		return "", 0, nil
	}

	if doc.IsAlias() {
		return c.indexAlias(ctx, doc, supplied, tx)
	}
	return c.indexConcrete(ctx, doc, supplied, tx)
}

func (c *Coordinator) indexAlias(ctx context.Context, alias *models.Document, supplied string, tx *Transaction) (string, time.Duration, error) {
	referenced, err := c.findDocument(ctx, alias.ReferencedID())
	if err != nil {
		var unexisting *UnexistingReference
		if errors.As(err, &unexisting) {
			c.logger.Warn("alias references an unexisting document, skipping it from now on",
				"alias", alias.ID, "ref", alias.ReferencedID())
			return "", 0, c.setIndexedFlag(ctx, alias.ID, models.IndexSkip)
		}
		return "", 0, err
	}

	var content string
	var elapsed time.Duration
	if referenced.Indexed == models.IndexToIndex || referenced.Indexed == models.IndexToIndexMetadata {
		if content, elapsed, err = c.indexConcrete(ctx, referenced, supplied, tx.Derive()); err != nil {
			return "", elapsed, err
		}
	} else if content, err = c.indexedContent(ctx, referenced); err != nil {
		return "", 0, err
	}

	prev := alias.Indexed
	if err := c.search.AddHit(ctx, alias, content); err != nil {
		return "", elapsed, err
	}
	if err := c.setIndexedFlag(ctx, alias.ID, models.IndexIndexed); err != nil {
		return "", elapsed, err
	}
	c.recordIndexedHistory(ctx, alias, tx, prev, content)
	return content, elapsed, nil
}

func (c *Coordinator) indexConcrete(ctx context.Context, doc *models.Document, supplied string, tx *Transaction) (string, time.Duration, error) {
	// Aliases of this document go back to the queue no matter how this
	// attempt ends, so they never reference a stale hit.
	defer func() {
		if err := c.markAliasesToIndex(ctx, doc.ID); err != nil {
			c.logger.Warn("cannot mark aliases for reindexing", "doc", doc.ID, "error", err)
		}
	}()

	var content string
	var elapsed time.Duration
	var err error
	switch {
	case supplied != "":
		content = supplied
	case doc.Indexed == models.IndexToIndexMetadata:
		content, err = c.indexedContent(ctx, doc)
	default:
		started := time.Now()
		content, err = c.ParseDocument(ctx, doc)
		elapsed = time.Since(started)
	}
	if err != nil {
		c.recordIndexError(ctx, doc, tx, err)
		if c.cfg.skipIndexingOnError(doc.TenantID) {
			c.logger.Warn("marking unparseable document as skipped", "doc", doc.ID, "error", err)
			if flagErr := c.setIndexedFlag(ctx, doc.ID, models.IndexSkip); flagErr != nil {
				return "", elapsed, flagErr
			}
		}
		return "", elapsed, err
	}

	prev := doc.Indexed
	if err := c.search.AddHit(ctx, doc, content); err != nil {
		return "", elapsed, err
	}
	if err := c.setIndexedFlag(ctx, doc.ID, models.IndexIndexed); err != nil {
		return "", elapsed, err
	}
	c.recordIndexedHistory(ctx, doc, tx, prev, content)
	return content, elapsed, nil
}

// indexedContent reuses the content already held by the document's index
// entry, falling back to a fresh parse when the entry is gone.
func (c *Coordinator) indexedContent(ctx context.Context, doc *models.Document) (string, error) {
	hit, err := c.search.GetHit(ctx, doc.ID)
	if err == nil {
		return hit.Content, nil
	}
	if !errors.Is(err, search.ErrHitNotFound) {
		return "", err
	}
	return c.ParseDocument(ctx, doc)
}

// setIndexedFlag updates only the indexed column. The parse may take long;
// writing the single column avoids clobbering metadata changed concurrently.
func (c *Coordinator) setIndexedFlag(ctx context.Context, docID uint64, indexed int) error {
	return c.db.WithContext(ctx).
		Exec("UPDATE documents SET indexed = ? WHERE id = ?", indexed, docID).Error
}

func (c *Coordinator) recordIndexedHistory(ctx context.Context, doc *models.Document, tx *Transaction, prevIndexed int, content string) {
	if tx == nil {
		return
	}
	entry := tx.historyEntry(doc, EventIndexed)
	entry.Reason = indexedStateName(prevIndexed)
	entry.Comment = abbreviateContent(content, 100)
	if err := c.history.Store(ctx, entry); err != nil {
		c.logger.Error("failed to record history", "event", EventIndexed, "doc", doc.ID, "error", err)
	}
}

func (c *Coordinator) recordIndexError(ctx context.Context, doc *models.Document, tx *Transaction, parseErr error) {
	if tx == nil {
		return
	}
	entry := tx.historyEntry(doc, EventIndexedError)
	entry.Comment = abbreviateContent(parseErr.Error(), 100)
	if err := c.history.Store(ctx, entry); err != nil {
		c.logger.Error("failed to record history", "event", EventIndexedError, "doc", doc.ID, "error", err)
	}
}

func indexedStateName(indexed int) string {
	switch indexed {
	case models.IndexToIndex:
		return "toindex"
	case models.IndexIndexed:
		return "indexed"
	case models.IndexSkip:
		return "skip"
	case models.IndexToIndexMetadata:
		return "toindexmetadata"
	}
	return "unknown"
}

// abbreviateContent collapses whitespace and control characters, then
// truncates to max runes.
func abbreviateContent(content string, max int) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range content {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > max {
		return string(runes[:max])
	}
	return out
}

// ParseDocument extracts the searchable text of a document's current content.
// Aliases parse the referenced document's content.
func (c *Coordinator) ParseDocument(ctx context.Context, doc *models.Document) (string, error) {
	target := doc
	if doc.IsAlias() {
		var err error
		if target, err = c.findDocument(ctx, doc.ReferencedID()); err != nil {
			return "", err
		}
	}

	stream, err := c.store.GetStream(ctx, target.ID, store.ResourceName(target, "", ""))
	if err != nil {
		return "", &parser.ParsingError{FileName: target.FileName, Err: err}
	}
	defer stream.Close()

	p := c.parsers.ForFilename(target.FileName)
	content, err := p.Parse(ctx, stream, parser.Params{
		FileName:    target.FileName,
		FileVersion: target.FileVersion,
		Locale:      target.Locale,
	})
	if err != nil {
		return "", &parser.ParsingError{FileName: target.FileName, Err: err}
	}
	return content, nil
}

// DeleteFromIndex removes the document's index entry and queues it for
// re-indexing.
func (c *Coordinator) DeleteFromIndex(ctx context.Context, docID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := c.search.DeleteHit(ctx, doc.ID); err != nil {
		return err
	}
	return c.setIndexedFlag(ctx, doc.ID, models.IndexToIndex)
}

// ChangeIndexingStatus moves a document between the to-index, metadata-only
// and skip states. Leaving the indexed state drops the index entry.
func (c *Coordinator) ChangeIndexingStatus(ctx context.Context, docID uint64, indexed int) error {
	switch indexed {
	case models.IndexToIndex, models.IndexSkip, models.IndexToIndexMetadata:
	default:
		return &ValidationError{Field: "indexed", Reason: "not a requestable indexing state"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Indexed == indexed {
		return nil
	}
	if doc.Indexed == models.IndexIndexed && indexed == models.IndexSkip {
		if err := c.search.DeleteHit(ctx, doc.ID); err != nil {
			c.logger.Warn("cannot drop hit", "doc", doc.ID, "error", err)
		}
	}
	return c.setIndexedFlag(ctx, doc.ID, indexed)
}

// DocumentsToIndex lists documents pending full or metadata indexing, oldest
// first, up to limit.
func (c *Coordinator) DocumentsToIndex(ctx context.Context, limit int) ([]models.Document, error) {
	var docs []models.Document
	q := c.db.WithContext(ctx).
		Where("indexed IN ? AND deleted = 0 AND status <> ?",
			[]int{models.IndexToIndex, models.IndexToIndexMetadata}, models.StatusArchived).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&docs).Error
	return docs, err
}
