package document

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/papermill-forge/papermill/pkg/models"
)

// EnforceFilesIntoFolderStore moves the content of every document in the
// folder tree into the tier the folder chain pins. Documents already in the
// right tier are untouched by the store adapter. Returns the number of moved
// resources; failures on individual documents are collected, not fatal.
func (c *Coordinator) EnforceFilesIntoFolderStore(ctx context.Context, folderID uint64, tx *Transaction) (int, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	folder, err := c.findFolder(ctx, folderID)
	if err != nil {
		return 0, err
	}

	tier, err := models.StoreTier(c.db.WithContext(ctx), folder.ID, c.cfg.DefaultStoreTier)
	if err != nil {
		return 0, err
	}

	folderIDs, err := models.FindFolderIDsInTree(c.db.WithContext(ctx), folderID)
	if err != nil {
		return 0, err
	}

	var docIDs []uint64
	if err := c.db.WithContext(ctx).Model(&models.Document{}).
		Where("folder_id IN ? AND deleted = 0 AND doc_ref IS NULL", folderIDs).
		Pluck("id", &docIDs).Error; err != nil {
		return 0, err
	}

	moved := 0
	var result *multierror.Error
	for _, id := range docIDs {
		n, err := c.store.MoveResourcesToStore(ctx, id, tier)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		moved += n
	}

	c.logger.Info("enforced folder store", "folder", folderID, "tier", tier, "movedResources", moved)
	return moved, result.ErrorOrNil()
}
