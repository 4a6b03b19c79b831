package executor

import (
	"fmt"
	"io"
	"sync"
)

// Runtime is the execution backend the iterative process runs on. It is the
// only piece of process-wide mutable state: the transient-failure path swaps
// the backend wholesale, never mutates it.
type Runtime interface {
	Rebuild() error
	Close() error
}

type runtime struct {
	mu      sync.Mutex
	factory func() (io.Closer, error)
	backend io.Closer
}

// NewRuntime builds the initial backend from factory. Rebuild tears the
// current backend down and replaces it atomically.
func NewRuntime(factory func() (io.Closer, error)) (Runtime, error) {
	backend, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to build execution backend: %w", err)
	}

	return &runtime{factory: factory, backend: backend}, nil
}

func (r *runtime) Rebuild() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend != nil {
		if err := r.backend.Close(); err != nil {
			return fmt.Errorf("failed to tear down execution backend: %w", err)
		}
	}

	backend, err := r.factory()
	if err != nil {
		return fmt.Errorf("failed to rebuild execution backend: %w", err)
	}
	r.backend = backend

	return nil
}

func (r *runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return nil
	}
	err := r.backend.Close()
	r.backend = nil

	return err
}

// NopBackend is a backend with no resources to manage, for processes that
// run in-process.
type NopBackend struct{}

func (NopBackend) Close() error { return nil }
