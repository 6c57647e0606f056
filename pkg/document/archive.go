package document

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/papermill-forge/papermill/pkg/models"
)

// ArchiveDocuments puts the given documents in the archived state, freezing
// them and removing them from the full-text index. Documents in folders the
// user may not archive in are skipped, not failed; administrators and the
// retention system actor bypass the permission check. Returns the number of
// documents actually archived.
func (c *Coordinator) ArchiveDocuments(ctx context.Context, docIDs []uint64, tx *Transaction) (int, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bypass := tx.User.IsAdmin() || tx.User.Username == models.RetentionUser
	var granted map[uint64]bool
	if !bypass {
		var err error
		granted, err = models.FindFolderIDsWithArchive(c.db.WithContext(ctx), tx.User.ID)
		if err != nil {
			return 0, err
		}
	}

	archived := 0
	var indexedIDs []uint64
	for _, id := range docIDs {
		doc, err := c.findDocument(ctx, id)
		if err != nil {
			c.logger.Warn("skipping unexisting document", "doc", id)
			continue
		}
		if !bypass && !granted[doc.FolderID] {
			c.logger.Debug("skipping document, no archive permission on folder",
				"doc", doc.ID, "folder", doc.FolderID, "user", tx.User.Username)
			continue
		}
		if doc.Status == models.StatusArchived {
			continue
		}

		doc.Status = models.StatusArchived
		userID := tx.User.ID
		doc.LockUserID = &userID
		doc.LockUserName = tx.User.DisplayName()
		if doc.Indexed == models.IndexIndexed {
			indexedIDs = append(indexedIDs, doc.ID)
			doc.Indexed = models.IndexToIndex
		}
		if err := c.saveWithHistory(ctx, doc, tx, EventArchived); err != nil {
			return archived, err
		}
		archived++
	}

	if len(indexedIDs) > 0 {
		if err := c.search.DeleteHits(ctx, indexedIDs); err != nil {
			c.logger.Warn("cannot drop hits of archived documents", "count", len(indexedIDs), "error", err)
		}
	}

	c.logger.Info("archived documents", "count", archived, "user", tx.User.Username)
	return archived, nil
}

// ArchiveFolder archives every document in the folder and its descendants.
func (c *Coordinator) ArchiveFolder(ctx context.Context, folderID uint64, tx *Transaction) (int, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	if _, err := c.findFolder(ctx, folderID); err != nil {
		return 0, err
	}

	folderIDs, err := models.FindFolderIDsInTree(c.db.WithContext(ctx), folderID)
	if err != nil {
		return 0, err
	}

	var docIDs []uint64
	if err := c.db.WithContext(ctx).Model(&models.Document{}).
		Where("folder_id IN ? AND deleted = 0 AND status <> ?", folderIDs, models.StatusArchived).
		Pluck("id", &docIDs).Error; err != nil {
		return 0, err
	}
	if len(docIDs) == 0 {
		return 0, nil
	}
	return c.ArchiveDocuments(ctx, docIDs, tx)
}

// DestroyDocument irreversibly erases a document: every dependent record,
// the index entry, all stored content and finally the document row itself.
// Administrators only. The cascade keeps going past individual failures and
// reports them together.
func (c *Coordinator) DestroyDocument(ctx context.Context, docID uint64, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if !tx.User.IsAdmin() {
		return &PermissionConflict{DocID: docID, Cause: "only administrators may destroy documents"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}

	var result *multierror.Error
	db := c.db.WithContext(ctx)

	purge := func(what string, del *int64, err error) {
		if err != nil {
			result = multierror.Append(result, err)
			return
		}
		if del != nil && *del > 0 {
			c.logger.Debug("destroyed dependent records", "doc", doc.ID, "kind", what, "count", *del)
		}
	}

	res := db.Where("doc_id = ?", doc.ID).Delete(&models.Version{})
	purge("versions", &res.RowsAffected, res.Error)

	aliases, err := models.FindAliases(db, doc.ID)
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		for _, alias := range aliases {
			if err := c.search.DeleteHit(ctx, alias.ID); err != nil {
				result = multierror.Append(result, err)
			}
			if err := db.Delete(&models.Document{}, alias.ID).Error; err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	res = db.Where("doc_id = ?", doc.ID).Delete(&models.Tag{})
	purge("tags", &res.RowsAffected, res.Error)

	res = db.Where("doc1_id = ? OR doc2_id = ?", doc.ID, doc.ID).Delete(&models.DocumentLink{})
	purge("links", &res.RowsAffected, res.Error)

	res = db.Where("doc_id = ?", doc.ID).Delete(&models.Bookmark{})
	purge("bookmarks", &res.RowsAffected, res.Error)

	res = db.Where("doc_id = ?", doc.ID).Delete(&models.Ticket{})
	purge("tickets", &res.RowsAffected, res.Error)

	res = db.Where("doc_id = ?", doc.ID).Delete(&models.DocumentNote{})
	purge("notes", &res.RowsAffected, res.Error)

	res = db.Where("doc_id = ?", doc.ID).Delete(&models.DocumentHistory{})
	purge("histories", &res.RowsAffected, res.Error)

	if err := db.Delete(&models.Document{}, doc.ID).Error; err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.search.DeleteHit(ctx, doc.ID); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.store.DeleteAll(ctx, doc.ID); err != nil {
		result = multierror.Append(result, err)
	}

	c.recordHistory(ctx, doc, tx, EventDestroyed)
	c.logger.Info("destroyed document", "doc", doc.ID, "user", tx.User.Username)
	return result.ErrorOrNil()
}
