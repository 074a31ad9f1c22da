package store

import (
	"context"
	"sync"
	"time"
)

// Failure describes a persistence request that did not complete.
type Failure struct {
	Time   time.Time `json:"time"`
	Entity string    `json:"entity"`
	Op     string    `json:"op"`
	ID     string    `json:"id"`
	Error  string    `json:"error"`
}

// Notifier is told about every failed persistence request.
type Notifier interface {
	NotifyFailure(ctx context.Context, f Failure)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, f Failure)

func (fn NotifierFunc) NotifyFailure(ctx context.Context, f Failure) { fn(ctx, f) }

// DefaultFailureLogSize bounds FailureLog when no size is given.
const DefaultFailureLogSize = 50

// FailureLog keeps the most recent failures in memory.
type FailureLog struct {
	mu    sync.Mutex
	max   int
	items []Failure
}

func NewFailureLog(size int) *FailureLog {
	if size <= 0 {
		size = DefaultFailureLogSize
	}
	return &FailureLog{max: size}
}

func (l *FailureLog) NotifyFailure(_ context.Context, f Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, f)
	if len(l.items) > l.max {
		l.items = l.items[len(l.items)-l.max:]
	}
}

// Recent returns failures newest first.
func (l *FailureLog) Recent() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Failure, len(l.items))
	for i, f := range l.items {
		out[len(l.items)-1-i] = f
	}
	return out
}

// Clear drops every recorded failure.
func (l *FailureLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}
