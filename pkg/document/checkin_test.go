package document

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papermill-forge/papermill/pkg/models"
)

func TestCheckoutCheckinCycle(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "first", user)

	ctx := context.Background()
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(user)))

	out, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, out.Status)

	// Minor checkin: 1.0 -> 1.1.
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("second"), "a.txt", false, nil, testTx(user)))
	doc, err = models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1", doc.Version)
	assert.Equal(t, "1.1", doc.FileVersion)
	assert.Equal(t, models.StatusUnlocked, doc.Status)
	assert.Nil(t, doc.LockUserID)
	assert.Equal(t, models.IndexToIndex, doc.Indexed)

	// Release checkin: 1.1 -> 2.0.
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(user)))
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("third"), "a.txt", true, nil, testTx(user)))
	doc, err = models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "2.0", doc.FileVersion)

	// Every file version keeps its own binary.
	for version, want := range map[string]string{"1.0": "first", "1.1": "second", "2.0": "third"} {
		stream, err := e.store.GetStream(ctx, doc.ID, version)
		require.NoError(t, err, "missing binary for %s", version)
		data, err := io.ReadAll(stream)
		require.NoError(t, err)
		stream.Close()
		assert.Equal(t, want, string(data))
	}

	e.c.Close()
	versions, err := models.FindVersionsByDocID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 3)
}

func TestCheckinWithoutCheckout(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	// No checkout first: the coordinator swaps the content anyway, the
	// calling layer owns any gating.
	ctx := context.Background()
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("new"), "a.txt", true, nil, testTx(user)))

	checked, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0", checked.Version)
	assert.Equal(t, models.StatusUnlocked, checked.Status)
}

func TestCheckinByAnotherUser(t *testing.T) {
	e := setupCoordinator(t)
	holder := testUser(10, "jdoe")
	other := testUser(11, "msmith")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", holder)

	ctx := context.Background()
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(holder)))

	// A checkin by any other user takes over the checkout and releases it.
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("taken over"), "a.txt", false, nil, testTx(other)))

	checked, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnlocked, checked.Status)
	assert.Nil(t, checked.LockUserID)
	assert.Equal(t, "msmith", checked.Publisher)
}

func TestCheckinRecordsDateAndComment(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "first", user)

	ctx := context.Background()
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(user)))

	tx := testTx(user)
	tx.Comment = "nightly correction"
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("second"), "a.txt", false, nil, tx))

	checked, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly correction", checked.Comment)
	require.NotNil(t, checked.Date)
	assert.WithinDuration(t, time.Now(), *checked.Date, time.Minute)
}

func TestCheckinWithMetadataOverride(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "first", user)

	taken := "TAKEN"
	other := &models.Document{TenantID: 1, FolderID: folder.ID, FileName: "other.txt", CustomID: &taken}
	_, err := e.c.Create(context.Background(), strings.NewReader("x"), other, testTx(user))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(user)))

	// A colliding custom id rejects the whole checkin before any mutation.
	err = e.c.Checkin(ctx, doc.ID, strings.NewReader("second"), "a.txt", false,
		&DocumentChanges{CustomID: &taken}, testTx(user))
	var dup *DuplicateIdentifier
	require.ErrorAs(t, err, &dup)
	unchanged, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, unchanged.Status)

	tags := "fiscal,2026"
	customID := "INV-77"
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("second"), "a.txt", false,
		&DocumentChanges{Tags: &tags, CustomID: &customID}, testTx(user)))

	checked, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1", checked.Version)
	assert.Equal(t, "fiscal,2026", checked.Tags)
	require.NotNil(t, checked.CustomID)
	assert.Equal(t, "INV-77", *checked.CustomID)
}

func TestCheckinImmutableIsSilentNoop(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "original", user)

	ctx := context.Background()
	tx := testTx(user)
	tx.Comment = "freeze"
	require.NoError(t, e.c.MakeImmutable(ctx, doc.ID, tx))

	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("new"), "a.txt", false, nil, testTx(user)))

	unchanged, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", unchanged.Version)

	stream, err := e.store.GetStream(ctx, doc.ID, "1.0")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "original", string(data))
}

func TestCheckinRollsBackOnStoreFailure(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "original", user)

	ctx := context.Background()
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(user)))

	e.failingStore().failWrites = true
	err := e.c.Checkin(ctx, doc.ID, strings.NewReader("lost"), "b.txt", false, nil, testTx(user))
	var storeErr *StorageWriteFailure
	require.ErrorAs(t, err, &storeErr)

	// Every metadata change of the failed checkin is rolled back; the
	// document stays checked out so the user can retry.
	restored, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", restored.FileName)
	assert.Equal(t, "1.0", restored.Version)
	assert.Equal(t, "1.0", restored.FileVersion)
	assert.Equal(t, int64(len("original")), restored.FileSize)
	assert.Equal(t, doc.Digest, restored.Digest)
	assert.Equal(t, models.StatusCheckedOut, restored.Status)
	require.NotNil(t, restored.LockUserID)
	assert.Equal(t, user.ID, *restored.LockUserID)

	// Retry succeeds once the store recovers.
	e.failingStore().failWrites = false
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("recovered"), "b.txt", false, nil, testTx(user)))
	recovered, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1", recovered.Version)
	assert.Equal(t, "b.txt", recovered.FileName)
}

func TestCheckinListeners(t *testing.T) {
	var beforeCalled, afterCalled bool
	listener := ListenerFuncs{
		Before: func(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error {
			beforeCalled = true
			sideChannel["token"] = "handoff"
			return nil
		},
		After: func(ctx context.Context, doc *models.Document, tx *Transaction, sideChannel map[string]any) error {
			afterCalled = true
			assert.Equal(t, "handoff", sideChannel["token"])
			return nil
		},
	}

	e := setupCoordinator(t, WithListeners(listener))
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "content", user)

	ctx := context.Background()
	require.NoError(t, e.c.Checkout(ctx, doc.ID, testTx(user)))
	require.NoError(t, e.c.Checkin(ctx, doc.ID, strings.NewReader("new"), "a.txt", false, nil, testTx(user)))

	assert.True(t, beforeCalled)
	assert.True(t, afterCalled)
}

func TestReplaceFile(t *testing.T) {
	e := setupCoordinator(t)
	user := testUser(10, "jdoe")
	folder := createFolder(t, e.db, "inbox", nil)
	doc := createDocument(t, e, folder.ID, "a.txt", "original", user)

	ctx := context.Background()
	require.NoError(t, e.c.ReplaceFile(ctx, doc.ID, "", strings.NewReader("swapped in"), testTx(user)))

	// No new version, but the binary, size and digest follow the new content.
	replaced, err := models.FindDocumentByID(e.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", replaced.Version)
	assert.Equal(t, int64(len("swapped in")), replaced.FileSize)
	assert.NotEqual(t, doc.Digest, replaced.Digest)

	stream, err := e.store.GetStream(ctx, doc.ID, "1.0")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "swapped in", string(data))
}
