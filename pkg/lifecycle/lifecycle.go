// Package lifecycle coordinates startup and staged shutdown of long-lived
// subsystems.
//
// Shutdown runs in three stages. Drain hooks stop intake (HTTP listeners,
// queue subscriptions). Flush hooks then persist buffered work. Shutdown
// hooks run last and release connections the earlier stages depend on.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startupWg  sync.WaitGroup
	drainWg    sync.WaitGroup
	flushWg    sync.WaitGroup
	shutdownWg sync.WaitGroup

	drained  chan struct{}
	flushed  chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	ready   bool
	readyMu sync.RWMutex
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:     ctx,
		cancel:  cancel,
		drained: make(chan struct{}),
		flushed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Context returns the coordinator's context, cancelled when shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnDrain registers a function that runs as soon as shutdown begins.
func (c *Coordinator) OnDrain(fn func()) {
	c.drainWg.Go(func() {
		<-c.ctx.Done()
		fn()
	})
}

// OnFlush registers a function that runs once every drain hook has returned.
func (c *Coordinator) OnFlush(fn func()) {
	c.flushWg.Go(func() {
		<-c.drained
		fn()
	})
}

// OnShutdown registers a function that runs once every flush hook has
// returned. Hooks may still block on <-c.Context().Done(); it is already
// closed by then.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(func() {
		<-c.flushed
		fn()
	})
}

// Ready returns true after all startup hooks have completed.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.readyMu.Lock()
	c.ready = true
	c.readyMu.Unlock()
}

// Shutdown cancels the context and waits for every stage to complete within
// the given timeout. Calling it again waits on the same run.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.stopOnce.Do(func() {
		c.readyMu.Lock()
		c.ready = false
		c.readyMu.Unlock()

		c.cancel()

		go func() {
			c.drainWg.Wait()
			close(c.drained)
			c.flushWg.Wait()
			close(c.flushed)
			c.shutdownWg.Wait()
			close(c.done)
		}()
	})

	select {
	case <-c.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
