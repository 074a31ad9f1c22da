// Package memory is a process-local repository backend, used for development
// and tests. It can be seeded from JSON files in a data directory.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"invoicer/internal/core"
	"invoicer/internal/repository"
)

// Seed file names looked up by NewFromFiles.
const (
	InvoicesFile  = "invoices.json"
	CustomersFile = "customers.json"
	UsersFile     = "users.json"
	SettingsFile  = "settings.json"
)

type Collection[T core.Entity] struct {
	mu    sync.Mutex
	items []T
	place repository.Placement
}

func newCollection[T core.Entity](seed []T) *Collection[T] {
	return &Collection[T]{items: slices.Clone(seed), place: repository.PlacementOf[T]()}
}

func (c *Collection[T]) FetchAll(_ context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items), nil
}

func (c *Collection[T]) Upsert(_ context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items, _ = repository.UpsertSlice(c.items, v, c.place)
	return nil
}

func (c *Collection[T]) DeleteByID(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = repository.DeleteFromSlice(c.items, id)
	return nil
}

// Len is the number of stored records.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type settingsStore struct {
	mu    sync.Mutex
	value *core.Settings
}

func (s *settingsStore) Fetch(_ context.Context) (core.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return core.Settings{}, false, nil
	}
	return *s.value, true, nil
}

func (s *settingsStore) Save(_ context.Context, v core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = &v
	return nil
}

// Store keeps every collection in memory.
type Store struct {
	invoices  *Collection[core.Invoice]
	customers *Collection[core.Customer]
	users     *Collection[core.User]
	settings  *settingsStore
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		invoices:  newCollection[core.Invoice](nil),
		customers: newCollection[core.Customer](nil),
		users:     newCollection[core.User](nil),
		settings:  &settingsStore{},
	}
}

// NewFromFiles seeds a Store from JSON files in base. Missing or unreadable
// files leave the matching collection empty.
func NewFromFiles(base string) *Store {
	s := New()
	if base == "" {
		return s
	}
	s.invoices = newCollection(readJSON[[]core.Invoice](filepath.Join(base, InvoicesFile)))
	s.customers = newCollection(readJSON[[]core.Customer](filepath.Join(base, CustomersFile)))
	s.users = newCollection(readJSON[[]core.User](filepath.Join(base, UsersFile)))
	if settings := readJSON[*core.Settings](filepath.Join(base, SettingsFile)); settings != nil {
		s.settings.value = settings
	}
	return s
}

func (s *Store) Invoices() repository.Collection[core.Invoice]   { return s.invoices }
func (s *Store) Customers() repository.Collection[core.Customer] { return s.customers }
func (s *Store) Users() repository.Collection[core.User]         { return s.users }
func (s *Store) Settings() repository.SettingsStore              { return s.settings }
func (s *Store) Close() error                                    { return nil }

func readJSON[T any](path string) T {
	var out T
	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		slog.Warn("Ignoring malformed seed file", "path", path, "error", err)
		var zero T
		return zero
	}
	return out
}
