package local

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAdapter(t *testing.T) *Adapter {
	adapter, err := NewAdapterWithFs(&Config{
		Tiers: map[int]string{1: "/store1", 2: "/store2"},
	}, afero.NewMemMapFs())
	require.NoError(t, err)
	return adapter
}

func TestConfigValidate(t *testing.T) {
	err := (&Config{}).Validate()
	assert.ErrorContains(t, err, "at least one tier")

	err = (&Config{Tiers: map[int]string{2: "/x"}}).Validate()
	assert.ErrorContains(t, err, "default tier 1")

	assert.NoError(t, (&Config{Tiers: map[int]string{2: "/x"}, DefaultTier: 2}).Validate())
}

func TestStoreAndGetStream(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Store(ctx, 1, "1.0", strings.NewReader("hello")))

	stream, err := adapter.GetStream(ctx, 1, "1.0")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "hello", string(data))

	size, err := adapter.Size(ctx, 1, "1.0")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	_, err = adapter.GetStream(ctx, 1, "9.9")
	assert.Error(t, err)
}

func TestListResourcesByFileVersion(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Store(ctx, 1, "1.0", strings.NewReader("a")))
	require.NoError(t, adapter.Store(ctx, 1, "1.0-conversion.pdf", strings.NewReader("b")))
	require.NoError(t, adapter.Store(ctx, 1, "1.1", strings.NewReader("c")))

	all, err := adapter.ListResources(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "1.0-conversion.pdf", "1.1"}, all)

	ofVersion, err := adapter.ListResources(ctx, 1, "1.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "1.0-conversion.pdf"}, ofVersion)
}

func TestDeleteAndDeleteAll(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Store(ctx, 1, "1.0", strings.NewReader("a")))
	require.NoError(t, adapter.Store(ctx, 1, "1.1", strings.NewReader("b")))

	require.NoError(t, adapter.Delete(ctx, 1, "1.0"))
	remaining, err := adapter.ListResources(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1"}, remaining)

	// Deleting an absent resource is not an error.
	require.NoError(t, adapter.Delete(ctx, 1, "9.9"))

	require.NoError(t, adapter.DeleteAll(ctx, 1))
	remaining, err = adapter.ListResources(ctx, 1, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMoveResourcesToStore(t *testing.T) {
	adapter := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Store(ctx, 1, "1.0", strings.NewReader("a")))
	require.NoError(t, adapter.Store(ctx, 1, "1.0-thumb.png", strings.NewReader("b")))

	moved, err := adapter.MoveResourcesToStore(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	// Content remains reachable from the other tier.
	stream, err := adapter.GetStream(ctx, 1, "1.0")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "a", string(data))

	// Already in place: nothing moves.
	moved, err = adapter.MoveResourcesToStore(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, moved)

	_, err = adapter.MoveResourcesToStore(ctx, 1, 9)
	assert.ErrorContains(t, err, "unknown tier")
}
