// Package maintenance gates stock-sensitive work against catalog replacement.
//
// Cart and settlement operations run on the shared side of the window; the
// catalog import takes the exclusive side while it wipes the catalog, so no
// reservation or sale can observe a half-deleted catalog.
package maintenance

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
)

// Window is a process-wide reader/writer gate. A nil Window gates nothing.
type Window struct {
	mu sync.RWMutex
}

func NewWindow() *Window {
	return &Window{}
}

// Shared runs fn while no exclusive holder is active.
func (w *Window) Shared(fn func() error) error {
	if w == nil {
		return fn()
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn()
}

// Exclusive runs fn once every shared holder has left.
func (w *Window) Exclusive(fn func() error) error {
	if w == nil {
		return fn()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn()
}

// Locker is a cross-instance lock, typically Redis SET NX.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ImportGuard admits one catalog import at a time: one per process through a
// mutex and, when a Locker is configured, one across instances.
type ImportGuard struct {
	local       sync.Mutex
	distributed Locker
}

// NewImportGuard builds a guard; distributed may be nil.
func NewImportGuard(distributed Locker) *ImportGuard {
	return &ImportGuard{distributed: distributed}
}

// ErrImportRunning is wrapped by the Conflict returned when the guard is held.
var ErrImportRunning = errors.New("import already running")

// TryAcquire claims the import slot without waiting. The returned func
// releases it.
func (g *ImportGuard) TryAcquire(ctx context.Context) (func(), error) {
	if !g.local.TryLock() {
		return nil, running()
	}
	if g.distributed == nil {
		return g.local.Unlock, nil
	}

	ok, err := g.distributed.Acquire(ctx)
	if err != nil {
		g.local.Unlock()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire import lock")
	}
	if !ok {
		g.local.Unlock()
		return nil, running()
	}
	return func() {
		// release even when the request context is already gone
		_ = g.distributed.Release(context.WithoutCancel(ctx))
		g.local.Unlock()
	}, nil
}

func running() error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrImportRunning, "import already running")
}
