package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/absmach/fedloop/pkg/fl"
	"github.com/fxamacker/cbor/v2"
)

const (
	ckptPrefix = "ckpt_"
	ckptSuffix = ".cbor"
)

// FileStore keeps one CBOR-encoded checkpoint file per round in a single
// directory. Saves go through a temp file plus rename in the same directory,
// so a partially written checkpoint is never visible under its final name.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) LoadLatest(_ context.Context, initial fl.State) (fl.State, int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fl.State{}, 0, fmt.Errorf("%w: %s: %w", ErrStore, s.dir, err)
	}

	latest := NoRound
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		round, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		if round > latest {
			latest = round
		}
	}
	if latest == NoRound {
		return initial, NoRound, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name(latest)))
	if err != nil {
		return fl.State{}, 0, fmt.Errorf("failed to read checkpoint for round %d: %w", latest, err)
	}

	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return fl.State{}, 0, fmt.Errorf("%w: round %d: %w", ErrCorrupt, latest, err)
	}
	if rec.Round != latest {
		return fl.State{}, 0, fmt.Errorf("%w: round %d file holds round %d", ErrCorrupt, latest, rec.Round)
	}

	return rec.State, latest, nil
}

func (s *FileStore) Save(_ context.Context, state fl.State, round int) error {
	if round < 0 {
		return fmt.Errorf("checkpoint round must be non-negative, got %d", round)
	}

	data, err := cbor.Marshal(record{Round: round, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ckptPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name(round))); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	return nil
}

func name(round int) string {
	return fmt.Sprintf("%s%d%s", ckptPrefix, round, ckptSuffix)
}

func parseName(s string) (int, bool) {
	if !strings.HasPrefix(s, ckptPrefix) || !strings.HasSuffix(s, ckptSuffix) {
		return 0, false
	}
	round, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(s, ckptPrefix), ckptSuffix))
	if err != nil || round < 0 {
		return 0, false
	}

	return round, true
}
