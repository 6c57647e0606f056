package document

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/papermill-forge/papermill/pkg/models"
)

// Transaction is the audit context every lifecycle operation runs under: who
// acts, in which session, and with what comment. It produces the history
// entries appended as operations progress. One Transaction may yield several
// entries (e.g. a checkin that also renames).
type Transaction struct {
	User      *models.User
	SessionID string

	Event   string
	Comment string
	Reason  string
}

// Validate checks the transaction carries an actor.
func (t *Transaction) Validate() error {
	if t == nil {
		return &ValidationError{Field: "transaction", Reason: "cannot be nil"}
	}
	return validation.ValidateStruct(t,
		validation.Field(&t.User, validation.Required.Error("transaction user cannot be nil")),
	)
}

// Derive copies the transaction so a nested operation can record its own
// event without clobbering the caller's.
func (t *Transaction) Derive() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// historyEntry builds a history record for the given document and event.
func (t *Transaction) historyEntry(doc *models.Document, event string) *models.DocumentHistory {
	entry := &models.DocumentHistory{
		Date:    time.Now(),
		Event:   event,
		Comment: t.Comment,
		Reason:  t.Reason,
	}
	if t.User != nil {
		entry.UserID = t.User.ID
		entry.Username = t.User.Username
	}
	entry.SessionID = t.SessionID
	if doc != nil {
		entry.TenantID = doc.TenantID
		entry.DocID = doc.ID
		entry.FolderID = doc.FolderID
		entry.Version = doc.Version
		entry.FileVersion = doc.FileVersion
		entry.FileName = doc.FileName
	}
	return entry
}
