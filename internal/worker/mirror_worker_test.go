package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invoicer/internal/amqp"
	"invoicer/internal/core"
	"invoicer/internal/repository/memory"
	sheetsmem "invoicer/internal/sheets/memory"
)

type failingMirror struct {
	err error
}

func (f failingMirror) UpsertInvoice(context.Context, core.Invoice) error { return f.err }

func (f failingMirror) DeleteInvoice(context.Context, string) error { return f.err }

func (f failingMirror) Resync(context.Context, []core.Invoice) error { return f.err }

// countingMirror records how often Resync runs.
type countingMirror struct {
	*sheetsmem.Mirror
	mu      sync.Mutex
	resyncs int
}

func (c *countingMirror) Resync(ctx context.Context, invoices []core.Invoice) error {
	c.mu.Lock()
	c.resyncs++
	c.mu.Unlock()
	return c.Mirror.Resync(ctx, invoices)
}

func (c *countingMirror) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resyncs
}

func seededRepo(t *testing.T, invoices ...core.Invoice) *memory.Store {
	t.Helper()
	repo := memory.New()
	for _, inv := range invoices {
		if err := repo.Invoices().Upsert(context.Background(), inv); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return repo
}

func TestHandleMessage_UpsertFetchesCurrentInvoice(t *testing.T) {
	ctx := context.Background()
	inv := core.NewInvoice(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	repo := seededRepo(t, inv)
	mirror := sheetsmem.New()
	w := NewMirrorWorker(repo, mirror, Config{})

	if err := w.HandleMessage(ctx, amqp.NewInvoiceSyncMessage(inv.ID)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].InvoiceNumber != inv.InvoiceNumber {
		t.Fatalf("mirror rows = %+v", rows)
	}
}

func TestHandleMessage_Delete(t *testing.T) {
	ctx := context.Background()
	inv := core.Invoice{ID: "a"}
	mirror := sheetsmem.New()
	_ = mirror.UpsertInvoice(ctx, inv)
	w := NewMirrorWorker(seededRepo(t), mirror, Config{})

	if err := w.HandleMessage(ctx, amqp.NewInvoiceDeleteMessage("a")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if n := len(mirror.Rows()); n != 0 {
		t.Fatalf("mirror rows = %d, want 0", n)
	}
}

func TestHandleMessage_UpsertOfMissingInvoiceRemovesRow(t *testing.T) {
	ctx := context.Background()
	mirror := sheetsmem.New()
	_ = mirror.UpsertInvoice(ctx, core.Invoice{ID: "gone"})
	w := NewMirrorWorker(seededRepo(t), mirror, Config{})

	if err := w.HandleMessage(ctx, amqp.NewInvoiceSyncMessage("gone")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if n := len(mirror.Rows()); n != 0 {
		t.Fatalf("mirror rows = %d, want 0", n)
	}
}

func TestHandleMessage_MirrorErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("sheet unavailable")
	inv := core.Invoice{ID: "a"}
	w := NewMirrorWorker(seededRepo(t, inv), failingMirror{err: boom}, Config{})

	if err := w.HandleMessage(ctx, amqp.NewInvoiceSyncMessage("a")); !errors.Is(err, boom) {
		t.Fatalf("upsert err = %v, want %v", err, boom)
	}
	if err := w.HandleMessage(ctx, amqp.NewInvoiceDeleteMessage("a")); !errors.Is(err, boom) {
		t.Fatalf("delete err = %v, want %v", err, boom)
	}
}

func TestResync_WritesAllInvoicesInRepositoryOrder(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(t, core.Invoice{ID: "old"}, core.Invoice{ID: "new"})
	mirror := sheetsmem.New()
	w := NewMirrorWorker(repo, mirror, Config{})

	if err := w.Resync(ctx); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 2 || rows[0].ID != "new" || rows[1].ID != "old" {
		t.Fatalf("rows = %+v, want most recent first", rows)
	}
}

func TestMirrorWorker_Lifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mirror := &countingMirror{Mirror: sheetsmem.New()}
	w := NewMirrorWorker(seededRepo(t), mirror, Config{ResyncInterval: 10 * time.Millisecond})

	if w.IsRunning() {
		t.Fatal("should not be running before Start")
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for mirror.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mirror.count() < 2 {
		t.Fatalf("resyncs = %d, want at least 2", mirror.count())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("should not be running after Stop")
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNewMirrorWorker_DefaultInterval(t *testing.T) {
	w := NewMirrorWorker(seededRepo(t), sheetsmem.New(), Config{})
	if w.config.ResyncInterval != DefaultResyncInterval {
		t.Fatalf("interval = %v", w.config.ResyncInterval)
	}
}
