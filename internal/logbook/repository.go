package logbook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"batterycare/internal/storage"
)

const (
	batteriesKey = "batterycare_batteries"
	notesKey     = "batterycare_notes"
	remindersKey = "batterycare_reminders"
)

// Repository persists one list of records as a JSON blob under a single
// store key. Saves upsert by id; last write wins.
type Repository[T any] struct {
	store storage.Store
	key   string
	id    func(T) uuid.UUID
}

func Batteries(store storage.Store) *Repository[Battery] {
	return &Repository[Battery]{store: store, key: batteriesKey, id: func(b Battery) uuid.UUID { return b.ID }}
}

func Notes(store storage.Store) *Repository[Note] {
	return &Repository[Note]{store: store, key: notesKey, id: func(n Note) uuid.UUID { return n.ID }}
}

func Reminders(store storage.Store) *Repository[Reminder] {
	return &Repository[Reminder]{store: store, key: remindersKey, id: func(r Reminder) uuid.UUID { return r.ID }}
}

func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.key, err)
	}
	if !ok || raw == "" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return items, nil
}

// Save inserts the record or replaces the one sharing its id.
func (r *Repository[T]) Save(ctx context.Context, item T) error {
	items, err := r.List(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range items {
		if r.id(items[i]) == r.id(item) {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	return r.persist(ctx, items)
}

func (r *Repository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	items, err := r.List(ctx)
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, it := range items {
		if r.id(it) != id {
			kept = append(kept, it)
		}
	}
	return r.persist(ctx, kept)
}

func (r *Repository[T]) persist(ctx context.Context, items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.key, err)
	}
	if err := r.store.Set(ctx, r.key, string(raw)); err != nil {
		return fmt.Errorf("persist %s: %w", r.key, err)
	}
	return nil
}
