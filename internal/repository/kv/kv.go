// Package kv is the device-storage backend: every collection is stored as a
// single JSON document under a fixed key and rewritten whole on each change.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"invoicer/internal/core"
	"invoicer/internal/repository"
)

// Fixed keys, one per collection.
const (
	InvoicesKey  = "invoices"
	CustomersKey = "customers"
	UsersKey     = "users"
	SettingsKey  = "settings"
)

// Driver reads and writes raw documents by key.
type Driver interface {
	// Get reports ok=false when the key has never been written.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Store implements repository.Repository over a Driver.
type Store struct {
	driver    Driver
	invoices  *collection[core.Invoice]
	customers *collection[core.Customer]
	users     *collection[core.User]
	settings  *settingsDoc
}

var _ repository.Repository = (*Store)(nil)

func New(d Driver) *Store {
	return &Store{
		driver:    d,
		invoices:  newCollection[core.Invoice](d, InvoicesKey),
		customers: newCollection[core.Customer](d, CustomersKey),
		users:     newCollection[core.User](d, UsersKey),
		settings:  &settingsDoc{driver: d},
	}
}

func (s *Store) Invoices() repository.Collection[core.Invoice] { return s.invoices }

func (s *Store) Customers() repository.Collection[core.Customer] { return s.customers }

func (s *Store) Users() repository.Collection[core.User] { return s.users }

func (s *Store) Settings() repository.SettingsStore { return s.settings }

func (s *Store) Close() error { return s.driver.Close() }

// Ping checks the driver when it has a connection to check.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.driver.(repository.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// collection serialises read-modify-write cycles on one key within the process.
type collection[T core.Entity] struct {
	mu     sync.Mutex
	driver Driver
	key    string
	place  repository.Placement
}

func newCollection[T core.Entity](d Driver, key string) *collection[T] {
	return &collection[T]{driver: d, key: key, place: repository.PlacementOf[T]()}
}

func (c *collection[T]) FetchAll(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *collection[T]) Upsert(ctx context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	items, _ = repository.UpsertSlice(items, v, c.place)
	return c.store(ctx, items)
}

func (c *collection[T]) DeleteByID(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	before := len(items)
	items = repository.DeleteFromSlice(items, id)
	if len(items) == before {
		return nil
	}
	return c.store(ctx, items)
}

func (c *collection[T]) load(ctx context.Context) ([]T, error) {
	b, ok, err := c.driver.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.key, err)
	}
	if !ok || len(b) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	return items, nil
}

func (c *collection[T]) store(ctx context.Context, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.driver.Set(ctx, c.key, b); err != nil {
		return fmt.Errorf("write %s: %w", c.key, err)
	}
	return nil
}

type settingsDoc struct {
	driver Driver
}

func (s *settingsDoc) Fetch(ctx context.Context) (core.Settings, bool, error) {
	b, ok, err := s.driver.Get(ctx, SettingsKey)
	if err != nil {
		return core.Settings{}, false, fmt.Errorf("read settings: %w", err)
	}
	if !ok || len(b) == 0 {
		return core.Settings{}, false, nil
	}
	var out core.Settings
	if err := json.Unmarshal(b, &out); err != nil {
		return core.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return out, true, nil
}

func (s *settingsDoc) Save(ctx context.Context, v core.Settings) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.driver.Set(ctx, SettingsKey, b); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
