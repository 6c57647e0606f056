package document

import (
	"context"

	"github.com/papermill-forge/papermill/pkg/models"
)

// Listener hooks into the checkin path. BeforeCheckin runs after metadata has
// been applied but before the document is persisted; AfterCheckin runs once
// the content write succeeded. The side-channel map is shared between the two
// calls of one checkin so a listener can hand state to itself. An error from
// either hook fails the whole operation.
type Listener interface {
	BeforeCheckin(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error
	AfterCheckin(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// functions are skipped.
type ListenerFuncs struct {
	Before func(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error
	After  func(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error
}

func (l ListenerFuncs) BeforeCheckin(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error {
	if l.Before == nil {
		return nil
	}
	return l.Before(ctx, doc, tx, sideChannel)
}

func (l ListenerFuncs) AfterCheckin(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error {
	if l.After == nil {
		return nil
	}
	return l.After(ctx, doc, tx, sideChannel)
}
