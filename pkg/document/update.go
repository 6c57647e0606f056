package document

import (
	"context"
	"fmt"

	"github.com/papermill-forge/papermill/pkg/models"
)

// checkWritable rejects mutations on immutable or otherwise locked documents,
// allowing the lock holder and administrators through.
func (c *Coordinator) checkWritable(doc *models.Document, user *models.User) error {
	if doc.Immutable == 1 && !canOverrideImmutable(user) {
		return &ImmutableDocument{DocID: doc.ID}
	}
	if doc.Status != models.StatusUnlocked {
		if user == nil || user.IsAdmin() {
			return nil
		}
		if doc.LockUserID == nil || *doc.LockUserID != user.ID {
			return &PermissionConflict{DocID: doc.ID, Holder: doc.LockUserName, Cause: "locked by another user"}
		}
	}
	return nil
}

// DocumentChanges carries the metadata fields an Update may touch. Nil
// pointers leave the corresponding field as is.
type DocumentChanges struct {
	Tags       *string
	TemplateID *uint64
	CustomID   *string
	Locale     *string
	Comment    *string
}

// Update applies metadata changes to a document, cutting a minor version that
// records the new shape and queuing the document for re-indexing. A locale
// change additionally drops the document from the index so the next indexing
// pass analyzes it with the new language.
func (c *Coordinator) Update(ctx context.Context, docID uint64, changes DocumentChanges, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := c.checkWritable(doc, tx.User); err != nil {
		return err
	}

	if changes.CustomID != nil {
		if err := c.checkCustomIDUnique(ctx, changes.CustomID, doc.TenantID, doc.ID); err != nil {
			return err
		}
		doc.CustomID = changes.CustomID
	}
	if changes.Tags != nil {
		doc.Tags = *changes.Tags
	}
	if changes.TemplateID != nil {
		doc.TemplateID = changes.TemplateID
	}
	if changes.Comment != nil {
		doc.Comment = *changes.Comment
	}

	localeChanged := false
	if changes.Locale != nil && *changes.Locale != doc.Locale {
		doc.Locale = *changes.Locale
		localeChanged = true
	}

	// A locale change invalidates the analyzed content, so the hit goes away
	// entirely; any other change just queues a re-index.
	if localeChanged && doc.Indexed == models.IndexIndexed {
		if err := c.search.DeleteHit(ctx, doc.ID); err != nil {
			c.logger.Warn("cannot drop hit after locale change", "doc", doc.ID, "error", err)
		}
	}
	if doc.Indexed != models.IndexSkip {
		doc.Indexed = models.IndexToIndex
	}

	version := c.newVersion(doc, tx, EventChanged, false, false)
	if err := c.saveWithHistory(ctx, doc, tx, EventChanged); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Create(version).Error; err != nil {
		return err
	}
	return c.markAliasesToIndex(ctx, doc.ID)
}

// Rename changes the document's file name, cutting a minor version. The
// extension drives the declared type, so it is refreshed too.
func (c *Coordinator) Rename(ctx context.Context, docID uint64, newName string, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if newName == "" {
		return &ValidationError{Field: "fileName", Reason: "cannot be empty"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := c.checkWritable(doc, tx.User); err != nil {
		return err
	}

	oldName := doc.FileName
	if oldName == newName {
		return nil
	}

	doc.FileName = newName
	doc.Type = doc.Extension()
	if doc.Indexed != models.IndexSkip {
		doc.Indexed = models.IndexToIndex
	}

	version := c.newVersion(doc, tx, EventRenamed, false, false)
	if err := c.save(ctx, doc); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Create(version).Error; err != nil {
		return err
	}

	if tx != nil {
		entry := tx.historyEntry(doc, EventRenamed)
		entry.FileNameOld = oldName
		if err := c.history.Store(ctx, entry); err != nil {
			c.logger.Error("failed to record history", "event", EventRenamed, "doc", doc.ID, "error", err)
		}
	}
	return c.markAliasesToIndex(ctx, doc.ID)
}

// MoveToFolder relocates the document to another folder. An indexed document
// loses its hit and goes back to the indexing queue together with its
// aliases.
func (c *Coordinator) MoveToFolder(ctx context.Context, docID, folderID uint64, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.FolderID == folderID {
		return nil
	}
	if err := c.checkWritable(doc, tx.User); err != nil {
		return err
	}
	if _, err := c.findFolder(ctx, folderID); err != nil {
		return err
	}

	oldFolder := doc.FolderID
	doc.FolderID = folderID
	if doc.Indexed == models.IndexIndexed {
		if err := c.search.DeleteHit(ctx, doc.ID); err != nil {
			c.logger.Warn("cannot drop hit after move", "doc", doc.ID, "error", err)
		}
		doc.Indexed = models.IndexToIndex
	}

	version := c.newVersion(doc, tx, EventMoved, false, false)
	if err := c.save(ctx, doc); err != nil {
		return err
	}
	c.storeVersionAsync(version)

	if tx != nil {
		entry := tx.historyEntry(doc, EventMoved)
		entry.PathOld = fmt.Sprintf("%d", oldFolder)
		if err := c.history.Store(ctx, entry); err != nil {
			c.logger.Error("failed to record history", "event", EventMoved, "doc", doc.ID, "error", err)
		}
	}
	return c.markAliasesToIndex(ctx, doc.ID)
}

// CopyToFolder duplicates a document into the target folder, content
// included, optionally carrying links and notes over. The copy starts a fresh
// version chain and never inherits the custom id. Copying an alias copies the
// referenced document.
func (c *Coordinator) CopyToFolder(ctx context.Context, docID, folderID uint64, copyLinks, copyNotes bool, tx *Transaction) (*models.Document, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	source, err := c.findDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if source.IsAlias() {
		if source, err = c.findDocument(ctx, source.ReferencedID()); err != nil {
			return nil, err
		}
	}

	stream, err := c.store.GetStream(ctx, source.ID, contentResourceName(source))
	if err != nil {
		return nil, &StorageWriteFailure{DocID: source.ID, Err: err}
	}
	defer stream.Close()

	clone := source.Clone()
	clone.ID = 0
	clone.FolderID = folderID
	clone.CustomID = nil
	clone.Version = ""
	clone.FileVersion = ""
	clone.Status = models.StatusUnlocked
	clone.LockUserID = nil
	clone.LockUserName = ""
	clone.Immutable = 0
	clone.ExtResID = nil

	copyTx := tx.Derive()
	copyTx.Event = EventCopied

	copied, err := c.Create(ctx, stream, clone, copyTx)
	if err != nil {
		return nil, err
	}

	if copyLinks {
		if err := models.CopyLinks(c.db.WithContext(ctx), source.ID, copied.ID); err != nil {
			c.logger.Warn("cannot copy links", "source", source.ID, "copy", copied.ID, "error", err)
		}
	}
	if copyNotes {
		if err := models.CopyNotesToDocument(c.db.WithContext(ctx), source.ID, copied.ID, copied.FileVersion); err != nil {
			c.logger.Warn("cannot copy notes", "source", source.ID, "copy", copied.ID, "error", err)
		}
	}

	c.recordHistory(ctx, source, tx, EventCopied)
	return copied, nil
}
