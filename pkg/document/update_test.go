package document

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papermill-forge/papermill/pkg/models"
	"github.com/papermill-forge/papermill/pkg/search"
)

func TestUpdateMetadata(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)
	e.c.Close()

	ctx := context.Background()
	tags := "fiscal,2026"
	comment := "tagged for audit"
	require.NoError(t, e.c.Update(ctx, doc.ID, DocumentChanges{Tags: &tags, Comment: &comment}, testTx(user)))

	updated, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "fiscal,2026", updated.Tags)
	assert.Equal(t, "tagged for audit", updated.Comment)
	assert.Equal(t, "1.1", updated.Version)
	assert.Equal(t, "1.0", updated.FileVersion, "metadata change must not advance the file version")

	versions, err := models.FindVersionsByDocID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1", versions[0].Version)
	assert.Equal(t, "fiscal,2026", versions[0].Tags)
}

func TestUpdateIndexedDocumentQueuesReindex(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	ctx := context.Background()
	_, err := e.c.Index(ctx, doc.ID, "", testTx(user))
	require.NoError(t, err)

	tags := "updated"
	require.NoError(t, e.c.Update(ctx, doc.ID, DocumentChanges{Tags: &tags}, testTx(user)))

	updated, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IndexToIndex, updated.Indexed)

	// The stale hit survives until the next indexing pass replaces it.
	_, err = e.c.search.GetHit(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestUpdateLocaleDropsHit(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	ctx := context.Background()
	_, err := e.c.Index(ctx, doc.ID, "", testTx(user))
	require.NoError(t, err)

	locale := "de"
	require.NoError(t, e.c.Update(ctx, doc.ID, DocumentChanges{Locale: &locale}, testTx(user)))

	updated, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "de", updated.Locale)
	assert.Equal(t, models.IndexToIndex, updated.Indexed)

	_, err = e.c.search.GetHit(ctx, doc.ID)
	assert.ErrorIs(t, err, search.ErrHitNotFound,
		"a locale change must drop the hit so it is re-analyzed in the new language")
}

func TestUpdateImmutableDocument(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	ctx := context.Background()
	tx := testTx(user)
	tx.Comment = "freeze"
	require.NoError(t, e.c.MakeImmutable(ctx, doc.ID, tx))

	tags := "nope"
	err := e.c.Update(ctx, doc.ID, DocumentChanges{Tags: &tags}, testTx(user))
	var immutable *ImmutableDocument
	require.ErrorAs(t, err, &immutable)
}

func TestRename(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "report.txt", "content", user)

	ctx := context.Background()
	require.NoError(t, e.c.Rename(ctx, doc.ID, "report-final.md", testTx(user)))

	renamed, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "report-final.md", renamed.FileName)
	assert.Equal(t, "md", renamed.Type)
	assert.Equal(t, "1.1", renamed.Version)

	entries, err := models.FindHistoryByDocID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, EventRenamed, entries[0].Event)
	assert.Equal(t, "report.txt", entries[0].FileNameOld)

	// Renaming to the current name changes nothing.
	require.NoError(t, e.c.Rename(ctx, doc.ID, "report-final.md", testTx(user)))
	same, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1", same.Version)
}

func TestMoveToFolder(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	inbox := createFolder(t, e.db, "inbox", nil)
	archive := createFolder(t, e.db, "archive", nil)
	doc := createDocument(t, e, inbox.ID, "a.txt", "content", user)

	ctx := context.Background()
	require.NoError(t, e.c.MoveToFolder(ctx, doc.ID, archive.ID, testTx(user)))

	moved, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, archive.ID, moved.FolderID)
	assert.Equal(t, "1.1", moved.Version, "a move cuts a minor version")

	entries, err := models.FindHistoryByDocID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, EventMoved, entries[0].Event)
	assert.NotEmpty(t, entries[0].PathOld)

	err = e.c.MoveToFolder(ctx, doc.ID, 999999, testTx(user))
	var unexisting *UnexistingReference
	require.ErrorAs(t, err, &unexisting)
}

func TestMoveIndexedDocumentDropsHit(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	inbox := createFolder(t, e.db, "inbox", nil)
	archive := createFolder(t, e.db, "archive", nil)
	doc := createDocument(t, e, inbox.ID, "a.txt", "content", user)

	ctx := context.Background()
	_, err := e.c.Index(ctx, doc.ID, "", testTx(user))
	require.NoError(t, err)

	require.NoError(t, e.c.MoveToFolder(ctx, doc.ID, archive.ID, testTx(user)))

	moved, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IndexToIndex, moved.Indexed)

	_, err = e.c.search.GetHit(ctx, doc.ID)
	assert.ErrorIs(t, err, search.ErrHitNotFound)
}

func TestCopyToFolder(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	inbox := createFolder(t, e.db, "inbox", nil)
	shared := createFolder(t, e.db, "shared", nil)

	customID := "SRC-1"
	source := &models.Document{TenantID: 1, FolderID: inbox.ID, FileName: "a.txt", CustomID: &customID}
	created, err := e.c.Create(context.Background(), strings.NewReader("the payload"), source, testTx(user))
	require.NoError(t, err)

	// A note and a link to carry over.
	require.NoError(t, e.db.Create(&models.DocumentNote{DocID: created.ID, Message: "check totals", FileVersion: "1.0"}).Error)
	other := createDocument(t, e, inbox.ID, "other.txt", "x", user)
	require.NoError(t, e.db.Create(&models.DocumentLink{Doc1ID: created.ID, Doc2ID: other.ID}).Error)

	ctx := context.Background()
	copied, err := e.c.CopyToFolder(ctx, created.ID, shared.ID, true, true, testTx(user))
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, copied.ID)
	assert.Equal(t, shared.ID, copied.FolderID)
	assert.Equal(t, "1.0", copied.Version, "a copy starts a fresh version chain")
	assert.Nil(t, copied.CustomID, "a copy never inherits the custom id")

	stream, err := e.store.GetStream(ctx, copied.ID, "1.0")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "the payload", string(data))

	notes, err := models.FindNotesByDocID(e.db, copied.ID, "")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "check totals", notes[0].Message)

	links, err := models.FindLinksByDocID(e.db, copied.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}
