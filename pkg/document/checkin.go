package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/store"
)

// readContent drains the reader, returning the bytes, their size and the hex
// digest. Content must pass through memory once anyway for digesting and page
// counting.
func readContent(r io.Reader) ([]byte, int64, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, "", err
	}
	sum := sha256.Sum256(data)
	return data, int64(len(data)), hex.EncodeToString(sum[:]), nil
}

// Create stores a brand new document with the given content. The document
// carries its metadata (folder, filename, tags, custom id); the coordinator
// assigns identity, the initial version and the indexing state. Zero-byte
// content is rejected. If the content write fails the just-created record is
// removed so no orphan survives.
func (c *Coordinator) Create(ctx context.Context, content io.Reader, doc *models.Document, tx *Transaction) (*models.Document, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &ValidationError{Field: "document", Reason: "cannot be nil"}
	}
	if doc.FileName == "" {
		return nil, &ValidationError{Field: "fileName", Reason: "cannot be empty"}
	}
	if doc.FolderID == 0 {
		return nil, &ValidationError{Field: "folderId", Reason: "cannot be zero"}
	}

	data, size, digest, err := readContent(content)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, &ValidationError{Field: "content", Reason: "cannot create a document with zero-byte content"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.findFolder(ctx, doc.FolderID); err != nil {
		return nil, err
	}
	if err := c.checkCustomIDUnique(ctx, doc.CustomID, doc.TenantID, 0); err != nil {
		return nil, err
	}

	doc.Type = doc.Extension()
	doc.FileSize = size
	doc.Digest = digest
	doc.Status = models.StatusUnlocked
	if doc.Indexed != models.IndexSkip {
		doc.Indexed = models.IndexToIndex
	}
	doc.Publisher = tx.User.DisplayName()
	doc.PublisherID = tx.User.ID
	doc.Creator = tx.User.DisplayName()
	doc.CreatorID = tx.User.ID
	if doc.Locale == "" {
		doc.Locale = "en"
	}
	c.countPages(doc, bytes.NewReader(data))

	version := c.newVersion(doc, tx, EventStored, false, true)

	if err := c.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	version.DocID = doc.ID

	if err := c.storeContent(ctx, doc, bytes.NewReader(data)); err != nil {
		if delErr := c.db.WithContext(ctx).Delete(&models.Document{}, doc.ID).Error; delErr != nil {
			c.logger.Error("failed to remove orphan document after store failure",
				"doc", doc.ID, "error", delErr)
		}
		return nil, &StorageWriteFailure{DocID: doc.ID, Err: err}
	}

	c.storeVersionAsync(version)
	c.recordHistory(ctx, doc, tx, EventStored)
	return doc, nil
}

// Checkout locks the document for editing by the transaction user.
func (c *Coordinator) Checkout(ctx context.Context, docID uint64, tx *Transaction) error {
	return c.Lock(ctx, docID, models.StatusCheckedOut, tx)
}

// Checkin replaces the content of a document with a new file, creating a new
// version and releasing any lock. With release a major version is cut,
// otherwise a minor one. Whether the caller may check in is the service
// layer's concern; the coordinator applies the content swap unconditionally.
// A non-nil override applies metadata changes in the same operation. If the
// content write fails, every metadata change of this checkin is rolled back.
func (c *Coordinator) Checkin(ctx context.Context, docID uint64, content io.Reader, fileName string, release bool, override *DocumentChanges, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if fileName == "" {
		return &ValidationError{Field: "fileName", Reason: "cannot be empty"}
	}

	data, size, digest, err := readContent(content)
	if err != nil {
		return err
	}
	if size == 0 {
		return &ValidationError{Field: "content", Reason: "cannot check in zero-byte content"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Immutable == 1 && !canOverrideImmutable(tx.User) {
		// Immutable documents silently refuse new content.
		c.logger.Warn("skipping checkin of immutable document", "doc", doc.ID)
		return nil
	}
	snapshot := doc.Clone()

	if override != nil {
		if override.CustomID != nil {
			if err := c.checkCustomIDUnique(ctx, override.CustomID, doc.TenantID, doc.ID); err != nil {
				return err
			}
			doc.CustomID = override.CustomID
		}
		if override.Tags != nil {
			doc.Tags = *override.Tags
		}
		if override.TemplateID != nil {
			doc.TemplateID = override.TemplateID
		}
		if override.Locale != nil {
			doc.Locale = *override.Locale
		}
		if override.Comment != nil {
			doc.Comment = *override.Comment
		}
	}

	sideChannel := map[string]any{}

	for _, l := range c.listeners {
		if err := l.BeforeCheckin(ctx, doc, tx, sideChannel); err != nil {
			return err
		}
	}

	doc.FileName = fileName
	doc.Type = doc.Extension()
	doc.FileSize = size
	doc.Digest = digest
	doc.Status = models.StatusUnlocked
	doc.LockUserID = nil
	doc.LockUserName = ""
	doc.ExtResID = nil
	doc.Stamped = 0
	doc.Signed = 0
	doc.Ocrd = 0
	doc.Barcoded = 0
	if doc.Indexed != models.IndexSkip {
		doc.Indexed = models.IndexToIndex
	}
	doc.Publisher = tx.User.DisplayName()
	doc.PublisherID = tx.User.ID
	now := time.Now()
	doc.Date = &now
	if override == nil || override.Comment == nil {
		doc.Comment = tx.Comment
	}
	c.countPages(doc, bytes.NewReader(data))

	version := c.newVersion(doc, tx, EventCheckedIn, release, true)

	if err := c.save(ctx, doc); err != nil {
		return err
	}

	if err := c.storeContent(ctx, doc, bytes.NewReader(data)); err != nil {
		doc.RestoreFrom(snapshot)
		if saveErr := c.save(ctx, doc); saveErr != nil {
			c.logger.Error("failed to restore document after store failure",
				"doc", doc.ID, "error", saveErr)
		}
		return &StorageWriteFailure{DocID: doc.ID, Err: err}
	}

	c.storeVersionAsync(version)

	// Annotations follow the content forward so they stay visible on the
	// new file version.
	if snapshot.FileVersion != doc.FileVersion {
		if err := models.CopyAnnotations(c.db.WithContext(ctx), doc.ID, snapshot.FileVersion, doc.FileVersion); err != nil {
			c.logger.Warn("cannot copy annotations to the new file version", "doc", doc.ID, "error", err)
		}
	}

	if err := c.markAliasesToIndex(ctx, doc.ID); err != nil {
		c.logger.Warn("cannot mark aliases for reindexing", "doc", doc.ID, "error", err)
	}

	for _, l := range c.listeners {
		if err := l.AfterCheckin(ctx, doc, tx, sideChannel); err != nil {
			return err
		}
	}

	c.recordHistory(ctx, doc, tx, EventCheckedIn)
	c.logger.Debug("checked in document", "doc", doc.ID, "version", doc.Version)
	return nil
}

// ReplaceFile swaps the binary of an existing file version in place without
// cutting a new version. The document must be unlocked. When the replaced
// file version is the current one, metadata and indexing state follow the new
// binary.
func (c *Coordinator) ReplaceFile(ctx context.Context, docID uint64, fileVersion string, content io.Reader, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	data, size, digest, err := readContent(content)
	if err != nil {
		return err
	}
	if size == 0 {
		return &ValidationError{Field: "content", Reason: "cannot replace with zero-byte content"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Immutable == 1 && !canOverrideImmutable(tx.User) {
		return &ImmutableDocument{DocID: doc.ID}
	}
	if doc.Status != models.StatusUnlocked {
		return &PermissionConflict{DocID: doc.ID, Holder: doc.LockUserName, Cause: "cannot replace the file of a locked document"}
	}
	if fileVersion == "" {
		fileVersion = doc.FileVersion
	}

	resource := store.ResourceName(doc, fileVersion, "")
	if err := c.store.Store(ctx, doc.ID, resource, bytes.NewReader(data)); err != nil {
		return &StorageWriteFailure{DocID: doc.ID, Err: err}
	}

	if fileVersion == doc.FileVersion {
		doc.FileSize = size
		doc.Digest = digest
		if doc.Indexed != models.IndexSkip {
			doc.Indexed = models.IndexToIndex
		}
		c.countPages(doc, bytes.NewReader(data))
		if err := c.save(ctx, doc); err != nil {
			return err
		}
		if err := c.markAliasesToIndex(ctx, doc.ID); err != nil {
			c.logger.Warn("cannot mark aliases for reindexing", "doc", doc.ID, "error", err)
		}
	}

	if err := c.db.WithContext(ctx).Model(&models.Version{}).
		Where("doc_id = ? AND file_version = ? AND deleted = 0", doc.ID, fileVersion).
		Updates(map[string]any{"file_size": size, "digest": digest}).Error; err != nil {
		return err
	}

	c.recordHistory(ctx, doc, tx, EventVersionReplaced)
	return nil
}
