package checkpoint_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/fedloop/pkg/checkpoint"
	"github.com/absmach/fedloop/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWith(v float64) fl.State {
	return fl.State{Model: fl.Model{"w": {v}}}
}

func TestFileStoreColdStart(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	initial := stateWith(1)
	state, round, err := store.LoadLatest(context.Background(), initial)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.NoRound, round)
	assert.Equal(t, initial, state)
}

func TestFileStoreLoadLatestPicksHighestRound(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, round := range []int{3, 7, 5} {
		require.NoError(t, store.Save(ctx, stateWith(float64(round)), round))
	}

	state, round, err := store.LoadLatest(ctx, fl.State{})
	require.NoError(t, err)
	assert.Equal(t, 7, round)
	assert.Equal(t, stateWith(7), state)
}

func TestFileStoreOverwriteSameRound(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, stateWith(1), 4))
	require.NoError(t, store.Save(ctx, stateWith(2), 4))

	state, round, err := store.LoadLatest(ctx, fl.State{})
	require.NoError(t, err)
	assert.Equal(t, 4, round)
	assert.Equal(t, stateWith(2), state)
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := checkpoint.NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, stateWith(2), 2))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckpt_abc.cbor"), []byte("x"), 0o644))

	_, round, err := store.LoadLatest(ctx, fl.State{})
	require.NoError(t, err)
	assert.Equal(t, 2, round)
}

func TestFileStoreCorruptLatest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := checkpoint.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ckpt_9.cbor"), []byte("not cbor"), 0o644))

	_, _, err = store.LoadLatest(context.Background(), fl.State{})
	assert.ErrorIs(t, err, checkpoint.ErrCorrupt)
}

func TestFileStoreNegativeRound(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save(context.Background(), stateWith(1), -1))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := checkpoint.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), stateWith(1), 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ckpt_0.cbor", entries[0].Name())
}
