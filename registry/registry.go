// Package registry holds the pending occurrence of every scheduled task.
//
// A Registry is owned by a single goroutine (the scheduler loop) and does
// no locking of its own.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/shelltaskenv/shelltask/action"
	"github.com/shelltaskenv/shelltask/schedule"
)

var ErrNotFound = errors.New("task not found")

// NotFoundError is returned when a key is not in the registry.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("'%s' not found", e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Entry is one scheduled task.
type Entry struct {
	Key        string
	Occurrence schedule.Occurrence
	// Spec is what Occurrence was computed from and is recomputed from
	// after every dispatch.
	Spec   schedule.RawSpec
	Action action.Action
}

type Registry struct {
	keys    []string
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Add inserts entry under key. An existing key is left untouched and Add
// reports false.
func (r *Registry) Add(key string, entry Entry) bool {
	if _, ok := r.entries[key]; ok {
		return false
	}
	entry.Key = key
	r.keys = append(r.keys, key)
	r.entries[key] = entry
	return true
}

func (r *Registry) Get(key string) (Entry, error) {
	entry, ok := r.entries[key]
	if !ok {
		return Entry{}, &NotFoundError{Key: key}
	}
	return entry, nil
}

// Entries returns every entry in insertion order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.entries[key])
	}
	return out
}

func (r *Registry) Update(key string, entry Entry) error {
	if _, ok := r.entries[key]; !ok {
		return &NotFoundError{Key: key}
	}
	entry.Key = key
	r.entries[key] = entry
	return nil
}

func (r *Registry) Remove(key string) error {
	if _, ok := r.entries[key]; !ok {
		return &NotFoundError{Key: key}
	}
	delete(r.entries, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Size() int {
	return len(r.keys)
}

// FirstDue returns the first entry, in insertion order, whose occurrence
// is due at now.
func (r *Registry) FirstDue(now time.Time) (Entry, bool) {
	for _, key := range r.keys {
		if entry := r.entries[key]; entry.Occurrence.Due(now) {
			return entry, true
		}
	}
	return Entry{}, false
}
