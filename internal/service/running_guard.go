package service

import (
	"context"
	"sync"
)

// ExportedInflightGuard is an exported alias so _test packages can test the guard.
type ExportedInflightGuard = inflightGuard

// ─────────────────────────────────────────────────────────────
// inflightGuard: tracks running lookups so shutdown can drain them
// ─────────────────────────────────────────────────────────────

// inflightGuard admits requests until closed and lets shutdown wait for the
// ones already admitted.
type inflightGuard struct {
	mu     sync.Mutex
	closed bool
	active int
	wg     sync.WaitGroup
}

// Enter admits one request. Returns false once the guard is closed.
// Every successful Enter must be paired with Leave.
func (g *inflightGuard) Enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.active++
	g.wg.Add(1)
	return true
}

// Leave marks an admitted request as finished.
func (g *inflightGuard) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	g.wg.Done()
}

// Close stops admitting requests. It reports whether this call closed the guard.
func (g *inflightGuard) Close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}

func (g *inflightGuard) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Active returns the number of admitted requests still running.
func (g *inflightGuard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// WaitAll blocks until all admitted requests complete or ctx is cancelled.
func (g *inflightGuard) WaitAll(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
