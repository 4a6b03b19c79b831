package checkpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/absmach/fedloop/pkg/fl"
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const keyPrefix = "ckpt:"

// BadgerStore keeps checkpoints in an embedded badger database. Rounds are
// encoded as big-endian uint64 keys so a reverse iteration yields the latest
// checkpoint first. Badger transactions give the save the required
// all-or-nothing behavior.
type BadgerStore struct {
	db *badgerdb.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) LoadLatest(_ context.Context, initial fl.State) (fl.State, int, error) {
	var rec record
	found := false

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible round key, then step back to it.
		it.Seek(key(int(^uint(0) >> 1)))
		if !it.ValidForPrefix([]byte(keyPrefix)) {
			return nil
		}

		found = true

		return it.Item().Value(func(val []byte) error {
			return cbor.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return fl.State{}, 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if !found {
		return initial, NoRound, nil
	}

	return rec.State, rec.Round, nil
}

func (s *BadgerStore) Save(_ context.Context, state fl.State, round int) error {
	if round < 0 {
		return fmt.Errorf("checkpoint round must be non-negative, got %d", round)
	}

	val, err := cbor.Marshal(record{Round: round, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(round), val)
	})
	if err != nil {
		return fmt.Errorf("failed to persist checkpoint for round %d: %w", round, err)
	}

	return nil
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, badgerdb.ErrDBClosed) {
		return fmt.Errorf("failed to close checkpoint database: %w", err)
	}

	return nil
}

func key(round int) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], uint64(round))

	return k
}
