package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papermill-forge/papermill/pkg/models"
)

func grantDownload(t *testing.T, e *testEnv, folderID, userID uint64) {
	require.NoError(t, e.db.Create(&models.FolderACL{
		FolderID: folderID, UserID: userID, Download: 1,
	}).Error)
}

func TestCreateTicket(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	grantDownload(t, e, folder.ID, user.ID)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	ctx := context.Background()
	ticket, err := e.c.CreateTicket(ctx, &models.Ticket{DocID: doc.ID, Type: models.TicketDownload}, testTx(user))
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.TicketID)
	assert.Contains(t, ticket.URL, "https://docs.example.com/download-ticket?ticketId=")
	assert.Contains(t, ticket.URL, ticket.TicketID)
	require.NotNil(t, ticket.Expired)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *ticket.Expired, time.Minute)

	entries, err := models.FindHistoryByDocID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, EventTicketCreated, entries[0].Event)
}

func TestCreateTicketCustomExpiry(t *testing.T) {
	e := setupCoordinator(t)
	admin := testUser(12, "root", models.GroupAdmin)
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", admin)

	hours := 2
	ticket, err := e.c.CreateTicket(context.Background(),
		&models.Ticket{DocID: doc.ID, ExpireHours: &hours}, testTx(admin))
	require.NoError(t, err)
	require.NotNil(t, ticket.Expired)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *ticket.Expired, time.Minute)
}

func TestCreateTicketRequiresDownloadPermission(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	_, err := e.c.CreateTicket(context.Background(), &models.Ticket{DocID: doc.ID}, testTx(user))
	var conflict *PermissionConflict
	require.ErrorAs(t, err, &conflict)
}

func TestCreateTicketResolvesAlias(t *testing.T) {
	e := setupCoordinator(t)
	admin := testUser(12, "root", models.GroupAdmin)
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", admin)

	ctx := context.Background()
	alias, err := e.c.CreateAlias(ctx, doc.ID, folder.ID, "", testTx(admin))
	require.NoError(t, err)

	ticket, err := e.c.CreateTicket(ctx, &models.Ticket{DocID: alias.ID}, testTx(admin))
	require.NoError(t, err)
	assert.Equal(t, doc.ID, ticket.DocID, "tickets are issued against the concrete document")
}

func TestCreateTicketSweepsExpired(t *testing.T) {
	e := setupCoordinator(t)
	admin := testUser(12, "root", models.GroupAdmin)
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", admin)

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, e.db.Create(&models.Ticket{
		TicketID: "stale-ticket", DocID: doc.ID, Expired: &stale,
	}).Error)

	_, err := e.c.CreateTicket(context.Background(), &models.Ticket{DocID: doc.ID}, testTx(admin))
	require.NoError(t, err)

	var count int64
	require.NoError(t, e.db.Model(&models.Ticket{}).Where("ticket_id = ?", "stale-ticket").Count(&count).Error)
	assert.Zero(t, count, "expired tickets are swept on creation")
}

func TestReplaceAlias(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	shared := createFolder(t, e.db, "shared", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "the payload", user)

	ctx := context.Background()
	alias, err := e.c.CreateAlias(ctx, doc.ID, shared.ID, "", testTx(user))
	require.NoError(t, err)

	// Without write capability on the alias folder the user is refused.
	_, err = e.c.ReplaceAlias(ctx, alias.ID, testTx(user))
	var conflict *PermissionConflict
	require.ErrorAs(t, err, &conflict)

	require.NoError(t, e.db.Create(&models.FolderACL{
		FolderID: shared.ID, UserID: user.ID, Write: 1,
	}).Error)

	replacement, err := e.c.ReplaceAlias(ctx, alias.ID, testTx(user))
	require.NoError(t, err)

	assert.False(t, replacement.IsAlias())
	assert.Equal(t, shared.ID, replacement.FolderID)
	assert.Equal(t, "a.txt", replacement.FileName)

	// The alias record is gone.
	_, err = models.FindDocumentByID(e.db, alias.ID)
	assert.Error(t, err)

	// The replacement owns an independent binary.
	stream, err := e.store.GetStream(ctx, replacement.ID, "1.0")
	require.NoError(t, err)
	stream.Close()

	// Replacing a concrete document is rejected.
	_, err = e.c.ReplaceAlias(ctx, doc.ID, testTx(user))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEnforceFilesIntoFolderStore(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")

	tier := 2
	pinned := createFolder(t, e.db, "cold", nil)
	require.NoError(t, e.db.Model(&models.Folder{}).Where("id = ?", pinned.ID).Update("store", tier).Error)
	child := createFolder(t, e.db, "cold-sub", &pinned.ID)

	doc := createDocument(t, e, child.ID, "a.txt", "chilly", user)

	ctx := context.Background()
	moved, err := e.c.EnforceFilesIntoFolderStore(ctx, pinned.ID, testTx(user))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	// The content is still reachable after the move.
	stream, err := e.store.GetStream(ctx, doc.ID, "1.0")
	require.NoError(t, err)
	stream.Close()

	// A second pass finds everything already in place.
	moved, err = e.c.EnforceFilesIntoFolderStore(ctx, pinned.ID, testTx(user))
	require.NoError(t, err)
	assert.Zero(t, moved)

	_, err = e.c.EnforceFilesIntoFolderStore(ctx, 999999, testTx(user))
	var unexisting *UnexistingReference
	require.ErrorAs(t, err, &unexisting)
}
