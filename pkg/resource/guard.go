// Package resource owns opaque engine references on behalf of handles.
package resource

import (
	"runtime"
	"sync"

	"vaultfs/pkg/fserr"
	"vaultfs/pkg/logging"
)

// ReleaseFunc 释放底层资源；返回的错误只会被记录，不会传给调用方
type ReleaseFunc[T any] func(T) error

// cell 持有真正的资源。cleanup 回调只能引用 cell，不能引用 Guard 本身，
// 否则 Guard 永远不会被回收
type cell[T any] struct {
	mu       sync.Mutex
	val      T
	release  ReleaseFunc[T]
	released bool
	name     string
}

// drop 至多执行一次 release
func (c *cell[T]) drop() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	val, release := c.val, c.release
	var zero T
	c.val = zero
	c.release = nil
	c.mu.Unlock()

	if release == nil {
		return
	}
	if err := release(val); err != nil {
		logging.Debug("release failed", logging.String("resource", c.name), logging.Err(err))
	}
}

// Guard owns exactly one resource and releases it exactly once.
//
// Close is idempotent and never fails. If the Guard becomes unreachable
// without Close, a runtime cleanup releases the resource instead.
type Guard[T any] struct {
	c       *cell[T]
	cleanup runtime.Cleanup
}

// New takes ownership of val. name only shows up in logs.
func New[T any](name string, val T, release ReleaseFunc[T]) *Guard[T] {
	c := &cell[T]{val: val, release: release, name: name}
	g := &Guard[T]{c: c}
	g.cleanup = runtime.AddCleanup(g, func(c *cell[T]) { c.drop() }, c)
	return g
}

// Get returns the owned resource, or ErrClosed after Close.
func (g *Guard[T]) Get() (T, error) {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	if g.c.released {
		var zero T
		return zero, fserr.ErrClosed
	}
	return g.c.val, nil
}

// IsClosed reports whether the resource has been released.
func (g *Guard[T]) IsClosed() bool {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	return g.c.released
}

// Close releases the resource. Calling it again is a no-op.
func (g *Guard[T]) Close() {
	g.cleanup.Stop()
	g.c.drop()
}
