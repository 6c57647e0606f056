package document

import (
	"context"
	"strings"

	"github.com/papermill-forge/papermill/pkg/models"
)

// CreateAlias stores a shortcut to a document in the target folder. Aliases
// never chain: an alias of an alias points straight at the concrete document.
// An aliasType selects an ancillary rendition (e.g. "pdf"), reflected in the
// alias file name.
func (c *Coordinator) CreateAlias(ctx context.Context, docID, folderID uint64, aliasType string, tx *Transaction) (*models.Document, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	source, err := c.findDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if source.IsAlias() {
		if source, err = c.findDocument(ctx, source.ReferencedID()); err != nil {
			return nil, err
		}
	}
	if _, err := c.findFolder(ctx, folderID); err != nil {
		return nil, err
	}

	refID := source.ID
	alias := &models.Document{
		TenantID:   source.TenantID,
		FolderID:   folderID,
		FileName:   aliasFileName(source.FileName, aliasType),
		Type:       models.FileExtension(aliasFileName(source.FileName, aliasType)),
		FileSize:   source.FileSize,
		Status:     models.StatusUnlocked,
		Indexed:    models.IndexToIndex,
		DocRef:     &refID,
		DocRefType: aliasType,
		Locale:     source.Locale,
		Tags:       source.Tags,
		TemplateID: source.TemplateID,
	}
	alias.Publisher = tx.User.DisplayName()
	alias.PublisherID = tx.User.ID
	alias.Creator = tx.User.DisplayName()
	alias.CreatorID = tx.User.ID

	if err := c.db.WithContext(ctx).Create(alias).Error; err != nil {
		return nil, err
	}
	c.recordHistory(ctx, alias, tx, EventShortcutStored)
	return alias, nil
}

// aliasFileName derives the alias file name, swapping the extension when the
// alias targets a rendition type.
func aliasFileName(fileName, aliasType string) string {
	if aliasType == "" {
		return fileName
	}
	if idx := strings.LastIndex(fileName, "."); idx > 0 {
		return fileName[:idx+1] + aliasType
	}
	return fileName + "." + aliasType
}

// ReplaceAlias converts an alias into an independent copy of the referenced
// document, placed in the alias's folder. The alias record is removed. The
// user needs write capability on that folder.
func (c *Coordinator) ReplaceAlias(ctx context.Context, aliasID uint64, tx *Transaction) (*models.Document, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	alias, err := c.findDocument(ctx, aliasID)
	if err != nil {
		return nil, err
	}
	if !alias.IsAlias() {
		return nil, &ValidationError{Field: "document", Reason: "not an alias"}
	}
	if !tx.User.IsAdmin() {
		allowed, err := models.IsWriteAllowed(c.db.WithContext(ctx), alias.FolderID, tx.User.ID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &PermissionConflict{DocID: alias.ID, Cause: "no write permission on the alias folder"}
		}
	}
	folderID := alias.FolderID
	refID := alias.ReferencedID()

	if err := models.SoftDeleteDocument(c.db.WithContext(ctx), alias.ID, 1); err != nil {
		return nil, err
	}
	if err := c.search.DeleteHit(ctx, alias.ID); err != nil {
		c.logger.Warn("cannot drop alias hit", "doc", alias.ID, "error", err)
	}

	return c.CopyToFolder(ctx, refID, folderID, true, true, tx)
}

// markAliasesToIndex queues every alias of a document for re-indexing,
// whatever indexing state the alias is in. One bulk update, no per-alias
// loads.
func (c *Coordinator) markAliasesToIndex(ctx context.Context, referencedDocID uint64) error {
	return c.db.WithContext(ctx).
		Exec("UPDATE documents SET indexed = ? WHERE doc_ref = ? AND id <> ?",
			models.IndexToIndex, referencedDocID, referencedDocID).Error
}
