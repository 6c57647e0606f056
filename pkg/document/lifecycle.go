package document

import (
	"context"

	"github.com/papermill-forge/papermill/pkg/models"
)

// Lock puts the document in the given locked status on behalf of the
// transaction user. Any status code other than unlocked or archived is
// accepted, so callers can define their own lock flavors. Re-locking a
// document already held by the same user in the same status is an idempotent
// no-op; a lock held by anyone else is a conflict naming the holder.
func (c *Coordinator) Lock(ctx context.Context, docID uint64, status int, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if status == models.StatusUnlocked || status == models.StatusArchived {
		return &ValidationError{Field: "status", Reason: "not a lock status"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Status == status && doc.LockUserID != nil && *doc.LockUserID == tx.User.ID {
		return nil
	}
	if doc.Status != models.StatusUnlocked {
		return &PermissionConflict{DocID: doc.ID, Holder: doc.LockUserName, Cause: "cannot lock"}
	}

	doc.Status = status
	userID := tx.User.ID
	doc.LockUserID = &userID
	doc.LockUserName = tx.User.DisplayName()

	event := EventLocked
	if status == models.StatusCheckedOut {
		event = EventCheckedOut
	}
	return c.saveWithHistory(ctx, doc, tx, event)
}

// Unlock releases the document's lock. The lock holder or an administrator
// may unlock; an administrator force-unlocking an immutable document clears
// the immutability flag as well. Unlocking an already unlocked document is a
// no-op, immutable or not.
func (c *Coordinator) Unlock(ctx context.Context, docID uint64, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status == models.StatusUnlocked {
		return nil
	}

	admin := tx.User.IsAdmin()
	if doc.Immutable == 1 && !admin {
		return &ImmutableDocument{DocID: doc.ID}
	}
	if !admin {
		if doc.LockUserID == nil || *doc.LockUserID != tx.User.ID {
			return &PermissionConflict{DocID: doc.ID, Holder: doc.LockUserName, Cause: "cannot unlock"}
		}
	}

	doc.Status = models.StatusUnlocked
	doc.LockUserID = nil
	doc.LockUserName = ""
	doc.ExtResID = nil
	if doc.Immutable == 1 && admin {
		doc.Immutable = 0
	}
	return c.saveWithHistory(ctx, doc, tx, EventUnlocked)
}

// MakeImmutable marks the document immutable, whatever its lock status. The
// transaction must carry a comment explaining the change.
func (c *Coordinator) MakeImmutable(ctx context.Context, docID uint64, tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.Comment == "" {
		return &ValidationError{Field: "comment", Reason: "a comment is mandatory to make a document immutable"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.findDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Immutable == 1 {
		return &ValidationError{Field: "document", Reason: "already immutable"}
	}

	doc.Immutable = 1
	return c.saveWithHistory(ctx, doc, tx, EventImmutable)
}
