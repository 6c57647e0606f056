package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/store"
)

// nextVersionNumber computes the version string following current. A release
// bump increments the major part and resets the minor; otherwise the minor
// part is incremented. Unparseable versions restart the chain.
func nextVersionNumber(current string, release bool) string {
	major, minor := 1, 0
	if parts := strings.SplitN(current, ".", 2); len(parts) == 2 {
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA == nil && errB == nil {
			major, minor = a, b
		}
	}
	if release {
		return fmt.Sprintf("%d.0", major+1)
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}

// newVersion snapshots the document into a fresh immutable version row,
// advancing the document's version number first. With newContent the file
// version advances in lockstep; otherwise it keeps pointing at the binary of
// the previous version.
func (c *Coordinator) newVersion(doc *models.Document, tx *Transaction, event string, release, newContent bool) *models.Version {
	if doc.Version == "" {
		doc.Version = c.cfg.StartVersion
		doc.FileVersion = c.cfg.StartVersion
	} else {
		doc.Version = nextVersionNumber(doc.Version, release)
		if newContent {
			doc.FileVersion = doc.Version
		}
	}

	v := &models.Version{
		DocID:       doc.ID,
		Version:     doc.Version,
		FileVersion: doc.FileVersion,
		FileSize:    doc.FileSize,
		Digest:      doc.Digest,
		FileName:    doc.FileName,
		TemplateID:  doc.TemplateID,
		Tags:        doc.Tags,
		CustomID:    doc.CustomID,
		Event:       event,
	}
	if tx != nil {
		v.Comment = tx.Comment
		if tx.User != nil {
			v.UserID = tx.User.ID
			v.Username = tx.User.Username
		}
	}
	return v
}

// storeVersionAsync persists a version row in the background, waiting for the
// owning document row to become visible first. The creating operation may not
// have committed its document write when the version is handed over, so the
// writer polls for the row at a fixed cadence up to a bounded number of
// checks and abandons the write if the document never materializes. Close
// drains these writers.
func (c *Coordinator) storeVersionAsync(version *models.Version) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		policy := backoff.WithContext(
			backoff.WithMaxRetries(
				backoff.NewConstantBackOff(c.cfg.VersionWriteCheckInterval),
				uint64(c.cfg.VersionWriteMaxChecks-1)),
			c.bg)

		documentExists := func() (bool, error) {
			var count int64
			if err := c.db.Raw("SELECT count(*) FROM documents WHERE id = ?", version.DocID).
				Scan(&count).Error; err != nil {
				return false, err
			}
			return count > 0, nil
		}

		err := backoff.Retry(func() error {
			ok, err := documentExists()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("document %d not yet persisted", version.DocID)
			}
			return nil
		}, policy)
		if err != nil {
			// Close may cancel the poll right after the document commit
			// landed. One last look so a shutdown does not drop a version
			// whose document is already there.
			ok, checkErr := documentExists()
			if checkErr != nil || !ok {
				c.logger.Warn("abandoning version write, document never materialized",
					"doc", version.DocID, "version", version.Version, "error", err)
				return
			}
		}

		if err := c.db.Create(version).Error; err != nil {
			c.logger.Error("failed to store version",
				"doc", version.DocID, "version", version.Version, "error", err)
		}
	}()
}

// Versions returns a document's version chain, newest first.
func (c *Coordinator) Versions(ctx context.Context, docID uint64) ([]models.Version, error) {
	if _, err := c.findDocument(ctx, docID); err != nil {
		return nil, err
	}
	return models.FindVersionsByDocID(c.db.WithContext(ctx), docID)
}

// DeleteVersion removes a single version from a document's chain and returns
// the version now at the head. Deleting a document's sole version is a no-op.
// When no surviving version references the removed version's binary, the
// binary and its renditions are purged from the content store. When the
// removed version was the current head, the document is downgraded to the
// newest surviving version.
func (c *Coordinator) DeleteVersion(ctx context.Context, versionID uint64, tx *Transaction) (*models.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	version, err := models.FindVersionByID(c.db.WithContext(ctx), versionID)
	if err != nil {
		return nil, &UnexistingReference{Kind: "version", ID: versionID}
	}
	doc, err := c.findDocument(ctx, version.DocID)
	if err != nil {
		return nil, err
	}

	versions, err := models.FindVersionsByDocID(c.db.WithContext(ctx), doc.ID)
	if err != nil {
		return nil, err
	}
	if len(versions) <= 1 {
		return version, nil
	}

	if err := c.db.WithContext(ctx).Model(&models.Version{}).
		Where("id = ?", version.ID).Update("deleted", 1).Error; err != nil {
		return nil, err
	}

	survivors := make([]models.Version, 0, len(versions)-1)
	fileVersionStillUsed := false
	for _, v := range versions {
		if v.ID == version.ID {
			continue
		}
		survivors = append(survivors, v)
		if v.FileVersion == version.FileVersion {
			fileVersionStillUsed = true
		}
	}

	if !fileVersionStillUsed {
		resources, err := c.store.ListResources(ctx, doc.ID, version.FileVersion)
		if err != nil {
			c.logger.Warn("cannot list resources of deleted version",
				"doc", doc.ID, "fileVersion", version.FileVersion, "error", err)
		} else if len(resources) > 0 {
			if err := c.store.Delete(ctx, doc.ID, resources...); err != nil {
				c.logger.Warn("cannot purge content of deleted version",
					"doc", doc.ID, "fileVersion", version.FileVersion, "error", err)
			}
		}
	}

	head := survivors[0]
	if doc.Version == version.Version {
		doc.Version = head.Version
		doc.FileVersion = head.FileVersion
		doc.FileSize = head.FileSize
		doc.Digest = head.Digest
		if err := c.save(ctx, doc); err != nil {
			return nil, err
		}
	}

	c.recordHistory(ctx, doc, tx, EventVersionDeleted)
	return &head, nil
}

// contentResourceName resolves the store resource of a document's current
// file version.
func contentResourceName(doc *models.Document) string {
	return store.ResourceName(doc, "", "")
}
