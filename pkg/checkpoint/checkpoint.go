package checkpoint

import (
	"context"
	"errors"

	"github.com/absmach/fedloop/pkg/fl"
)

// NoRound is returned by LoadLatest when the store holds no checkpoint.
// The caller starts cold from the initial state at round zero.
const NoRound = -1

var (
	ErrCorrupt = errors.New("corrupt checkpoint")
	ErrStore   = errors.New("checkpoint store unreachable")
)

// Store persists round-keyed process state. Checkpoints are write-once per
// round and never mutated; later rounds supersede earlier ones without
// deleting them.
type Store interface {
	// LoadLatest returns the state of the highest-numbered checkpoint and
	// its round. An empty store is not an error: it returns initial and
	// NoRound so the caller takes the cold-start path.
	LoadLatest(ctx context.Context, initial fl.State) (fl.State, int, error)

	// Save durably persists the checkpoint for round. A crash mid-save
	// must never leave a checkpoint that LoadLatest later returns as
	// valid-but-partial.
	Save(ctx context.Context, state fl.State, round int) error
}

type record struct {
	Round int      `cbor:"round"`
	State fl.State `cbor:"state"`
}
