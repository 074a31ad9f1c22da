// Package store holds the in-memory entity collections of a running instance.
//
// Every change is applied locally first and then handed to the repository in
// the background. A failed write is logged and reported to the Notifier; the
// local change stays in place.
//
// Each mutation is available in three forms:
//
//	Apply*   changes memory only, synchronously
//	Persist* writes to the repository only, synchronously
//	Save* / Delete*  Apply then Persist in a goroutine
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"invoicer/internal/core"
	"invoicer/internal/repository"
)

// Entity names used in failure reports and logs.
const (
	EntityInvoice  = "invoice"
	EntityCustomer = "customer"
	EntityUser     = "user"
	EntitySettings = "settings"
)

// Persistence operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

type Store struct {
	mu          sync.RWMutex
	invoices    []core.Invoice
	customers   []core.Customer
	users       []core.User
	settings    core.Settings
	hasSettings bool

	repo     repository.Repository
	notifier Notifier
	now      func() time.Time
	inflight sync.WaitGroup
}

type Option func(*Store)

// WithNotifier replaces the default FailureLog.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides time.Now for failure timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store backed by repo.
func New(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		notifier: NewFailureLog(DefaultFailureLogSize),
		now:      time.Now,
		settings: core.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notifier returns the notifier failures are reported to.
func (s *Store) Notifier() Notifier { return s.notifier }

// Load replaces the in-memory collections with the repository's contents.
// Collections that fail to load are left as they were; the failures are
// returned joined.
func (s *Store) Load(ctx context.Context) error {
	var (
		invoices     []core.Invoice
		customers    []core.Customer
		users        []core.User
		settings     core.Settings
		found        bool
		errInvoices  error
		errCustomers error
		errUsers     error
		errSettings  error
	)

	var g errgroup.Group
	g.Go(func() error {
		invoices, errInvoices = s.repo.Invoices().FetchAll(ctx)
		return nil
	})
	g.Go(func() error {
		customers, errCustomers = s.repo.Customers().FetchAll(ctx)
		return nil
	})
	g.Go(func() error {
		users, errUsers = s.repo.Users().FetchAll(ctx)
		return nil
	})
	g.Go(func() error {
		settings, found, errSettings = s.repo.Settings().Fetch(ctx)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if errInvoices != nil {
		errs = append(errs, fmt.Errorf("load invoices: %w", errInvoices))
	} else {
		s.invoices = invoices
	}
	if errCustomers != nil {
		errs = append(errs, fmt.Errorf("load customers: %w", errCustomers))
	} else {
		s.customers = customers
	}
	if errUsers != nil {
		errs = append(errs, fmt.Errorf("load users: %w", errUsers))
	} else {
		s.users = users
	}
	if errSettings != nil {
		errs = append(errs, fmt.Errorf("load settings: %w", errSettings))
	} else if found {
		s.settings = settings
		s.hasSettings = true
	}

	slog.InfoContext(ctx, "Store loaded",
		"invoices", len(s.invoices),
		"customers", len(s.customers),
		"users", len(s.users),
		"settings_found", s.hasSettings,
		"errors", len(errs))
	return errors.Join(errs...)
}

// Wait blocks until every background persistence request has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// persistAsync runs fn in the background on a context that outlives the caller.
func (s *Store) persistAsync(ctx context.Context, entity, op, id string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := fn(ctx); err != nil {
			s.reportFailure(ctx, entity, op, id, err)
			return
		}
		slog.DebugContext(ctx, "Persisted", "entity", entity, "op", op, "id", id)
	}()
}

func (s *Store) reportFailure(ctx context.Context, entity, op, id string, err error) {
	slog.ErrorContext(ctx, "Persistence failed, keeping local state",
		"entity", entity, "op", op, "id", id, "error", err)
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyFailure(ctx, Failure{
		Time:   s.now(),
		Entity: entity,
		Op:     op,
		ID:     id,
		Error:  err.Error(),
	})
}

func find[T core.Entity](items []T, id string) (T, bool) {
	for _, it := range items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Invoices

// Invoices returns a copy of all invoices, most recent first.
func (s *Store) Invoices() []core.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Invoice, len(s.invoices))
	for i, inv := range s.invoices {
		out[i] = inv.Clone()
	}
	return out
}

func (s *Store) Invoice(id string) (core.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := find(s.invoices, id)
	return inv.Clone(), ok
}

// ApplyInvoice inserts or replaces inv in memory and reports whether it was new.
func (s *Store) ApplyInvoice(inv core.Invoice) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added bool
	s.invoices, added = repository.UpsertSlice(s.invoices, inv.Clone(), repository.Prepend)
	return added
}

// ApplyInvoiceDelete removes the invoice from memory and reports whether it existed.
func (s *Store) ApplyInvoiceDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.invoices)
	s.invoices = repository.DeleteFromSlice(s.invoices, id)
	return len(s.invoices) != before
}

func (s *Store) PersistInvoice(ctx context.Context, inv core.Invoice) error {
	return s.repo.Invoices().Upsert(ctx, inv)
}

func (s *Store) PersistInvoiceDelete(ctx context.Context, id string) error {
	return s.repo.Invoices().DeleteByID(ctx, id)
}

// SaveInvoice recomputes the totals of inv, applies it and persists it in the
// background. The returned invoice is what the store now holds.
func (s *Store) SaveInvoice(ctx context.Context, inv core.Invoice) core.Invoice {
	inv = inv.Clone()
	inv.Recalculate()
	s.ApplyInvoice(inv)
	saved := inv.Clone()
	s.persistAsync(ctx, EntityInvoice, OpUpsert, inv.ID, func(ctx context.Context) error {
		return s.PersistInvoice(ctx, saved)
	})
	return inv
}

// DeleteInvoice removes the invoice locally and deletes it from the repository
// in the background. Unknown ids are still sent to the repository.
func (s *Store) DeleteInvoice(ctx context.Context, id string) {
	s.ApplyInvoiceDelete(id)
	s.persistAsync(ctx, EntityInvoice, OpDelete, id, func(ctx context.Context) error {
		return s.PersistInvoiceDelete(ctx, id)
	})
}

// SetInvoiceStatus saves a copy of the invoice with a new status.
func (s *Store) SetInvoiceStatus(ctx context.Context, id string, status core.InvoiceStatus) (core.Invoice, error) {
	if !status.IsValid() {
		return core.Invoice{}, fmt.Errorf("%w: %q", core.ErrInvalidStatus, status)
	}
	inv, ok := s.Invoice(id)
	if !ok {
		return core.Invoice{}, fmt.Errorf("invoice %s: %w", id, core.ErrNotFound)
	}
	inv.Status = status
	return s.SaveInvoice(ctx, inv), nil
}

// Customers

// Customers returns a copy of all customers in insertion order.
func (s *Store) Customers() []core.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.customers)
}

func (s *Store) Customer(id string) (core.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.customers, id)
}

func (s *Store) ApplyCustomer(c core.Customer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added bool
	s.customers, added = repository.UpsertSlice(s.customers, c, repository.Append)
	return added
}

func (s *Store) ApplyCustomerDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.customers)
	s.customers = repository.DeleteFromSlice(s.customers, id)
	return len(s.customers) != before
}

func (s *Store) PersistCustomer(ctx context.Context, c core.Customer) error {
	return s.repo.Customers().Upsert(ctx, c)
}

func (s *Store) PersistCustomerDelete(ctx context.Context, id string) error {
	return s.repo.Customers().DeleteByID(ctx, id)
}

func (s *Store) SaveCustomer(ctx context.Context, c core.Customer) core.Customer {
	s.ApplyCustomer(c)
	s.persistAsync(ctx, EntityCustomer, OpUpsert, c.ID, func(ctx context.Context) error {
		return s.PersistCustomer(ctx, c)
	})
	return c
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) {
	s.ApplyCustomerDelete(id)
	s.persistAsync(ctx, EntityCustomer, OpDelete, id, func(ctx context.Context) error {
		return s.PersistCustomerDelete(ctx, id)
	})
}

// Users

// Users returns a copy of all users in insertion order.
func (s *Store) Users() []core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.users)
}

func (s *Store) User(id string) (core.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.users, id)
}

func (s *Store) ApplyUser(u core.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added bool
	s.users, added = repository.UpsertSlice(s.users, u, repository.Append)
	return added
}

func (s *Store) ApplyUserDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.users)
	s.users = repository.DeleteFromSlice(s.users, id)
	return len(s.users) != before
}

func (s *Store) PersistUser(ctx context.Context, u core.User) error {
	return s.repo.Users().Upsert(ctx, u)
}

func (s *Store) PersistUserDelete(ctx context.Context, id string) error {
	return s.repo.Users().DeleteByID(ctx, id)
}

func (s *Store) SaveUser(ctx context.Context, u core.User) core.User {
	s.ApplyUser(u)
	s.persistAsync(ctx, EntityUser, OpUpsert, u.ID, func(ctx context.Context) error {
		return s.PersistUser(ctx, u)
	})
	return u
}

func (s *Store) DeleteUser(ctx context.Context, id string) {
	s.ApplyUserDelete(id)
	s.persistAsync(ctx, EntityUser, OpDelete, id, func(ctx context.Context) error {
		return s.PersistUserDelete(ctx, id)
	})
}

// Settings

// Settings returns the saved settings, or the defaults when none were saved.
func (s *Store) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// HasSettings reports whether settings were loaded or saved in this session.
func (s *Store) HasSettings() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasSettings
}

func (s *Store) ApplySettings(v core.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
	s.hasSettings = true
}

func (s *Store) PersistSettings(ctx context.Context, v core.Settings) error {
	return s.repo.Settings().Save(ctx, v)
}

// SaveSettings replaces the singleton and persists it under core.SettingsID.
func (s *Store) SaveSettings(ctx context.Context, v core.Settings) core.Settings {
	s.ApplySettings(v)
	s.persistAsync(ctx, EntitySettings, OpUpsert, fmt.Sprint(core.SettingsID), func(ctx context.Context) error {
		return s.PersistSettings(ctx, v)
	})
	return v
}
