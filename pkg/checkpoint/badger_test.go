package checkpoint_test

import (
	"context"
	"testing"

	"github.com/absmach/fedloop/pkg/checkpoint"
	"github.com/absmach/fedloop/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStoreColdStart(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	initial := stateWith(1)
	state, round, err := store.LoadLatest(context.Background(), initial)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.NoRound, round)
	assert.Equal(t, initial, state)
}

func TestBadgerStoreLoadLatestPicksHighestRound(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, round := range []int{3, 7, 5} {
		require.NoError(t, store.Save(ctx, stateWith(float64(round)), round))
	}

	state, round, err := store.LoadLatest(ctx, fl.State{})
	require.NoError(t, err)
	assert.Equal(t, 7, round)
	assert.Equal(t, stateWith(7), state)
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	store, err := checkpoint.NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, stateWith(6), 6))
	require.NoError(t, store.Close())

	reopened, err := checkpoint.NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	state, round, err := reopened.LoadLatest(ctx, fl.State{})
	require.NoError(t, err)
	assert.Equal(t, 6, round)
	assert.Equal(t, stateWith(6), state)
}

func TestBadgerStoreNegativeRound(t *testing.T) {
	t.Parallel()

	store, err := checkpoint.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Save(context.Background(), stateWith(1), -1))
}
