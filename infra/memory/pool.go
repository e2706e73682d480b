package memory

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed sync.Pool that scrubs values on return and counts how
// often it had to construct a fresh one.
type Pool[T any] struct {
	p         sync.Pool
	reset     func(*T)
	allocated atomic.Uint64
}

// NewPool builds values with ctor. reset, when non-nil, runs on every
// value handed back through Put.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	pool := &Pool[T]{reset: reset}
	pool.p.New = func() any {
		pool.allocated.Add(1)
		return ctor()
	}
	return pool
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

// Put hands v back for reuse. Callers must drop every reference to v
// first.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// Allocated is the number of values built by the constructor so far.
func (p *Pool[T]) Allocated() uint64 { return p.allocated.Load() }
