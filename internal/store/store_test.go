package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
	"invoicer/internal/repository"
	"invoicer/internal/repository/memory"
)

var errBackend = errors.New("backend unavailable")

// flakyRepo wraps a memory store and fails selected operations.
type flakyRepo struct {
	*memory.Store
	failWrites bool
	failFetch  map[string]bool
}

func (r *flakyRepo) Invoices() repository.Collection[core.Invoice] {
	return flakyCollection[core.Invoice]{r.Store.Invoices(), r, "invoices"}
}

func (r *flakyRepo) Customers() repository.Collection[core.Customer] {
	return flakyCollection[core.Customer]{r.Store.Customers(), r, "customers"}
}

func (r *flakyRepo) Users() repository.Collection[core.User] {
	return flakyCollection[core.User]{r.Store.Users(), r, "users"}
}

func (r *flakyRepo) Settings() repository.SettingsStore {
	return flakySettings{r.Store.Settings(), r}
}

type flakyCollection[T core.Entity] struct {
	inner repository.Collection[T]
	r     *flakyRepo
	name  string
}

func (c flakyCollection[T]) FetchAll(ctx context.Context) ([]T, error) {
	if c.r.failFetch[c.name] {
		return nil, errBackend
	}
	return c.inner.FetchAll(ctx)
}

func (c flakyCollection[T]) Upsert(ctx context.Context, v T) error {
	if c.r.failWrites {
		return errBackend
	}
	return c.inner.Upsert(ctx, v)
}

func (c flakyCollection[T]) DeleteByID(ctx context.Context, id string) error {
	if c.r.failWrites {
		return errBackend
	}
	return c.inner.DeleteByID(ctx, id)
}

type flakySettings struct {
	inner repository.SettingsStore
	r     *flakyRepo
}

func (s flakySettings) Fetch(ctx context.Context) (core.Settings, bool, error) {
	if s.r.failFetch["settings"] {
		return core.Settings{}, false, errBackend
	}
	return s.inner.Fetch(ctx)
}

func (s flakySettings) Save(ctx context.Context, v core.Settings) error {
	if s.r.failWrites {
		return errBackend
	}
	return s.inner.Save(ctx, v)
}

func newInvoice(id string, qty, rate int64) core.Invoice {
	return core.Invoice{
		ID:     id,
		Status: core.StatusDraft,
		Date:   core.NewDate(2024, 5, 10),
		Items: []core.InvoiceItem{
			{ID: id + "-1", Quantity: decimal.NewFromInt(qty), Rate: decimal.NewFromInt(rate)},
		},
	}
}

func TestSaveInvoiceRecalculatesAndPersists(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := New(repo)

	inv := newInvoice("a", 2, 4500)
	inv.Items = append(inv.Items, core.InvoiceItem{ID: "a-2", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(3000)})
	inv.Total = decimal.NewFromInt(1) // authored totals are ignored

	saved := s.SaveInvoice(ctx, inv)
	if !saved.Total.Equal(decimal.NewFromInt(12960)) {
		t.Fatalf("total = %s", saved.Total)
	}
	got, ok := s.Invoice("a")
	if !ok || !got.Tax.Equal(decimal.NewFromInt(960)) {
		t.Fatalf("in memory = %+v ok=%v", got, ok)
	}

	s.Wait()
	stored, _ := repo.Invoices().FetchAll(ctx)
	if len(stored) != 1 || !stored[0].Total.Equal(decimal.NewFromInt(12960)) {
		t.Fatalf("persisted = %+v", stored)
	}
}

func TestUpsertSizeAndOrdering(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())

	s.SaveInvoice(ctx, newInvoice("a", 1, 1))
	s.SaveInvoice(ctx, newInvoice("b", 1, 1))
	if n := len(s.Invoices()); n != 2 {
		t.Fatalf("size = %d", n)
	}
	if s.Invoices()[0].ID != "b" {
		t.Fatalf("new invoices should come first")
	}

	replacement := newInvoice("a", 3, 1)
	replacement.ClientName = "Replaced"
	s.SaveInvoice(ctx, replacement)
	invs := s.Invoices()
	if len(invs) != 2 || invs[1].ID != "a" || invs[1].ClientName != "Replaced" || !invs[1].Subtotal.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("replace = %+v", invs)
	}

	s.SaveCustomer(ctx, core.Customer{ID: "c1", Name: "One"})
	s.SaveCustomer(ctx, core.Customer{ID: "c2", Name: "Two"})
	s.SaveCustomer(ctx, core.Customer{ID: "c1", Name: "Uno"})
	cs := s.Customers()
	if len(cs) != 2 || cs[0].ID != "c1" || cs[0].Name != "Uno" || cs[1].ID != "c2" {
		t.Fatalf("customers = %+v", cs)
	}

	s.SaveUser(ctx, core.User{ID: "u1"})
	s.SaveUser(ctx, core.User{ID: "u2"})
	us := s.Users()
	if len(us) != 2 || us[1].ID != "u2" {
		t.Fatalf("users = %+v", us)
	}
	s.Wait()
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	s.SaveCustomer(ctx, core.Customer{ID: "c1"})

	if s.ApplyCustomerDelete("missing") {
		t.Fatalf("absent delete reported a removal")
	}
	s.DeleteCustomer(ctx, "missing")
	s.DeleteInvoice(ctx, "missing")
	s.DeleteUser(ctx, "missing")
	s.Wait()
	if len(s.Customers()) != 1 {
		t.Fatalf("size changed")
	}
	if recent := s.Notifier().(*FailureLog).Recent(); len(recent) != 0 {
		t.Fatalf("unexpected failures: %+v", recent)
	}

	s.DeleteCustomer(ctx, "c1")
	if _, ok := s.Customer("c1"); ok {
		t.Fatalf("customer still present")
	}
	s.Wait()
}

func TestPersistenceFailureKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Store: memory.New(), failWrites: true}
	failures := NewFailureLog(10)
	fixed := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	s := New(repo, WithNotifier(failures), WithClock(func() time.Time { return fixed }))

	s.SaveInvoice(ctx, newInvoice("a", 1, 100))
	s.SaveSettings(ctx, core.Settings{BusinessName: "Kept"})
	s.Wait()

	if _, ok := s.Invoice("a"); !ok {
		t.Fatalf("invoice rolled back")
	}
	if s.Settings().BusinessName != "Kept" {
		t.Fatalf("settings rolled back")
	}
	recent := failures.Recent()
	if len(recent) != 2 {
		t.Fatalf("failures = %+v", recent)
	}
	for _, f := range recent {
		if f.Op != OpUpsert || f.Error != errBackend.Error() || !f.Time.Equal(fixed) {
			t.Fatalf("failure = %+v", f)
		}
	}
	if stored, _ := repo.Store.Invoices().FetchAll(ctx); len(stored) != 0 {
		t.Fatalf("nothing should have been persisted")
	}

	s.DeleteInvoice(ctx, "a")
	s.Wait()
	if _, ok := s.Invoice("a"); ok {
		t.Fatalf("delete not applied locally")
	}
	if f := failures.Recent()[0]; f.Op != OpDelete || f.Entity != EntityInvoice || f.ID != "a" {
		t.Fatalf("latest failure = %+v", f)
	}
}

func TestApplyAndPersistSeparately(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := New(repo)

	inv := newInvoice("a", 1, 10)
	if !s.ApplyInvoice(inv) {
		t.Fatalf("expected insert")
	}
	if s.ApplyInvoice(inv) {
		t.Fatalf("expected replace")
	}
	if stored, _ := repo.Invoices().FetchAll(ctx); len(stored) != 0 {
		t.Fatalf("apply must not persist")
	}
	if err := s.PersistInvoice(ctx, inv); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if stored, _ := repo.Invoices().FetchAll(ctx); len(stored) != 1 {
		t.Fatalf("persist did not write")
	}

	failing := New(&flakyRepo{Store: memory.New(), failWrites: true})
	if err := failing.PersistUser(ctx, core.User{ID: "u"}); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestSettingsSingleton(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := New(repo)

	if s.HasSettings() || s.Settings().BusinessName != core.DefaultSettings().BusinessName {
		t.Fatalf("expected defaults before any save")
	}
	for _, name := range []string{"A", "B", "C"} {
		s.SaveSettings(ctx, core.Settings{BusinessName: name})
		s.Wait()
	}
	got, found, _ := repo.Settings().Fetch(ctx)
	if !found || got.BusinessName != "C" || s.Settings().BusinessName != "C" {
		t.Fatalf("settings = %+v", got)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	_ = repo.Invoices().Upsert(ctx, newInvoice("a", 1, 1))
	_ = repo.Invoices().Upsert(ctx, newInvoice("b", 1, 1))
	_ = repo.Customers().Upsert(ctx, core.Customer{ID: "c"})
	_ = repo.Settings().Save(ctx, core.Settings{BusinessName: "Loaded"})

	s := New(repo)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	invs := s.Invoices()
	if len(invs) != 2 || invs[0].ID != "b" {
		t.Fatalf("invoices = %+v", invs)
	}
	if len(s.Customers()) != 1 || !s.HasSettings() || s.Settings().BusinessName != "Loaded" {
		t.Fatalf("customers/settings not loaded")
	}
}

func TestLoadPartialFailure(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	_ = inner.Customers().Upsert(ctx, core.Customer{ID: "c"})
	repo := &flakyRepo{Store: inner, failFetch: map[string]bool{"invoices": true, "settings": true}}

	s := New(repo)
	s.ApplyInvoice(newInvoice("local", 1, 1))
	err := s.Load(ctx)
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected joined backend error, got %v", err)
	}
	if _, ok := s.Invoice("local"); !ok {
		t.Fatalf("failed collection should be left untouched")
	}
	if len(s.Customers()) != 1 {
		t.Fatalf("successful collection not loaded")
	}
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	s.SaveInvoice(ctx, newInvoice("a", 1, 1))
	invs := s.Invoices()
	invs[0].Items[0].Description = "mutated"
	invs[0].ClientName = "mutated"
	got, _ := s.Invoice("a")
	if got.ClientName == "mutated" || got.Items[0].Description == "mutated" {
		t.Fatalf("store state leaked")
	}
	s.Wait()
}

func TestSetInvoiceStatus(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New())
	s.SaveInvoice(ctx, newInvoice("a", 1, 1))

	inv, err := s.SetInvoiceStatus(ctx, "a", core.StatusPaid)
	if err != nil || inv.Status != core.StatusPaid {
		t.Fatalf("set status: %+v %v", inv, err)
	}
	if _, err := s.SetInvoiceStatus(ctx, "zzz", core.StatusPaid); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.SetInvoiceStatus(ctx, "a", "Void"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	s.Wait()
}

func TestConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	s := New(repo)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SaveUser(ctx, core.User{ID: string(rune('a' + i))})
		}()
	}
	wg.Wait()
	s.Wait()
	if len(s.Users()) != 20 {
		t.Fatalf("users = %d", len(s.Users()))
	}
	stored, _ := repo.Users().FetchAll(ctx)
	if len(stored) != 20 {
		t.Fatalf("persisted users = %d", len(stored))
	}
}

func TestFailureLogBounded(t *testing.T) {
	l := NewFailureLog(2)
	for _, id := range []string{"1", "2", "3"} {
		l.NotifyFailure(context.Background(), Failure{ID: id})
	}
	got := l.Recent()
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Fatalf("recent = %+v", got)
	}
	l.Clear()
	if len(l.Recent()) != 0 {
		t.Fatalf("clear failed")
	}
}
