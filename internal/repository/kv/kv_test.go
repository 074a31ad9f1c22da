package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := NewFileDriver(dir)
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	return New(d), dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, dir := newFileStore(t)

	empty, err := s.Invoices().FetchAll(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty fetch: %v %v", empty, err)
	}

	inv := core.Invoice{ID: "i1", ClientName: "Acme", Date: core.NewDate(2024, 5, 10), Status: core.StatusPaid}
	inv.AddItem(core.InvoiceItem{Quantity: decimal.NewFromInt(2), Rate: decimal.NewFromInt(4500)})
	if err := s.Invoices().Upsert(ctx, inv); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Invoices().Upsert(ctx, core.Invoice{ID: "i2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, InvoicesKey+".json")); err != nil {
		t.Fatalf("expected invoices document: %v", err)
	}

	got, err := s.Invoices().FetchAll(ctx)
	if err != nil || len(got) != 2 {
		t.Fatalf("fetch: %v %v", got, err)
	}
	if got[0].ID != "i2" || got[1].ID != "i1" {
		t.Fatalf("invoices not most recent first: %s, %s", got[0].ID, got[1].ID)
	}
	if !got[1].Total.Equal(decimal.NewFromInt(9720)) || got[1].Date.String() != "2024-05-10" {
		t.Fatalf("decoded invoice = %+v", got[1])
	}

	if err := s.Invoices().DeleteByID(ctx, "i2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Invoices().DeleteByID(ctx, "absent"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	got, _ = s.Invoices().FetchAll(ctx)
	if len(got) != 1 || got[0].ID != "i1" {
		t.Fatalf("after delete: %+v", got)
	}
}

func TestFileStoreUsersAppend(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)
	for _, id := range []string{"u1", "u2", "u3"} {
		if err := s.Users().Upsert(ctx, core.User{ID: id, Role: core.RoleViewer}); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.Users().Upsert(ctx, core.User{ID: "u2", Role: core.RoleAdmin})
	got, _ := s.Users().FetchAll(ctx)
	if len(got) != 3 || got[0].ID != "u1" || got[1].Role != core.RoleAdmin || got[2].ID != "u3" {
		t.Fatalf("users = %+v", got)
	}
}

func TestFileStoreSettings(t *testing.T) {
	ctx := context.Background()
	s, dir := newFileStore(t)
	if _, found, err := s.Settings().Fetch(ctx); found || err != nil {
		t.Fatalf("expected no settings, found=%v err=%v", found, err)
	}
	for _, name := range []string{"A", "B"} {
		if err := s.Settings().Save(ctx, core.Settings{BusinessName: name}); err != nil {
			t.Fatal(err)
		}
	}
	got, found, err := s.Settings().Fetch(ctx)
	if err != nil || !found || got.BusinessName != "B" {
		t.Fatalf("got %+v found=%v err=%v", got, found, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected a single settings document, got %d entries", len(entries))
	}
}

func TestCorruptDocument(t *testing.T) {
	ctx := context.Background()
	s, dir := newFileStore(t)
	if err := os.WriteFile(filepath.Join(dir, CustomersKey+".json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customers().FetchAll(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := s.Customers().Upsert(ctx, core.Customer{ID: "c"}); err == nil {
		t.Fatalf("upsert over corrupt document should fail")
	}
}

type failingDriver struct{}

var errDriver = errors.New("driver down")

func (failingDriver) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDriver }
func (failingDriver) Set(context.Context, string, []byte) error         { return errDriver }
func (failingDriver) Close() error                                      { return nil }

func TestDriverErrorsWrapped(t *testing.T) {
	s := New(failingDriver{})
	_, err := s.Users().FetchAll(context.Background())
	if !errors.Is(err, errDriver) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if err := s.Settings().Save(context.Background(), core.Settings{}); !errors.Is(err, errDriver) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestRedisDriver(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" || testing.Short() {
		t.Skip("REDIS_URL not set, skipping redis test")
	}
	ctx := context.Background()
	d, err := NewRedisDriver(ctx, url, "invoicer-test:"+t.Name()+":")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer d.Close()
	if _, ok, err := d.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := d.Set(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := d.Get(ctx, "k")
	if err != nil || !ok || string(b) != `[1]` {
		t.Fatalf("get: %s %v %v", b, ok, err)
	}
}
