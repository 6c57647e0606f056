package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papermill-forge/papermill/pkg/models"
)

// CreateTicket issues a time-limited anonymous access ticket for a document.
// The caller must hold download permission on the document's folder. Tickets
// for aliases are issued against the referenced document. Expired tickets are
// swept opportunistically on every creation.
func (c *Coordinator) CreateTicket(ctx context.Context, ticket *models.Ticket, tx *Transaction) (*models.Ticket, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, &ValidationError{Field: "ticket", Reason: "cannot be nil"}
	}

	doc, err := c.findDocument(ctx, ticket.DocID)
	if err != nil {
		return nil, err
	}
	if doc.IsAlias() {
		if doc, err = c.findDocument(ctx, doc.ReferencedID()); err != nil {
			return nil, err
		}
		ticket.DocID = doc.ID
	}

	if !tx.User.IsAdmin() {
		allowed, err := models.IsDownloadAllowed(c.db.WithContext(ctx), doc.FolderID, tx.User.ID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &PermissionConflict{DocID: doc.ID, Cause: "no download permission on the folder"}
		}
	}

	ticket.TicketID = uuid.NewString()
	ticket.UserID = tx.User.ID

	hours := c.cfg.TicketTTLHours
	if ticket.ExpireHours != nil && *ticket.ExpireHours > 0 {
		hours = *ticket.ExpireHours
	}
	if ticket.Expired == nil {
		expiry := time.Now().Add(time.Duration(hours) * time.Hour)
		ticket.Expired = &expiry
	}

	if err := c.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, err
	}

	if c.cfg.ServerURL != "" {
		ticket.URL = fmt.Sprintf("%s/download-ticket?ticketId=%s", c.cfg.ServerURL, ticket.TicketID)
	}

	if err := models.DeleteExpiredTickets(c.db.WithContext(ctx)); err != nil {
		c.logger.Warn("cannot sweep expired tickets", "error", err)
	}

	c.recordHistory(ctx, doc, tx, EventTicketCreated)
	return ticket, nil
}
