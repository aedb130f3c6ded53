package bootstrap

import "sync"

// Lazy is a deferred reference. The first successful Get resolves and caches
// the value; a failed resolve is retried on the next Get.
type Lazy[T any] struct {
	mu       sync.Mutex
	resolve  func() (T, error)
	val      T
	resolved bool
}

// NewLazy returns a Lazy that resolves through fn.
func NewLazy[T any](fn func() (T, error)) *Lazy[T] {
	return &Lazy[T]{resolve: fn}
}

// Resolved returns a Lazy already holding v.
func Resolved[T any](v T) *Lazy[T] {
	return &Lazy[T]{val: v, resolved: true}
}

// Get returns the cached value, resolving it first if needed.
func (l *Lazy[T]) Get() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved {
		return l.val, nil
	}
	v, err := l.resolve()
	if err != nil {
		var zero T
		return zero, err
	}
	l.val, l.resolved = v, true
	l.resolve = nil
	return v, nil
}

// IsResolved reports whether Get has succeeded.
func (l *Lazy[T]) IsResolved() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolved
}
