// Package worker keeps the invoice mirror in step with the repository.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invoicer/internal/amqp"
	"invoicer/internal/core"
	"invoicer/internal/repository"
	"invoicer/internal/sheets"
)

// DefaultResyncInterval is used when Config.ResyncInterval is not positive.
const DefaultResyncInterval = 15 * time.Minute

// Config holds the worker settings.
type Config struct {
	// ResyncInterval is how often the whole mirror is rewritten (default: 15m).
	ResyncInterval time.Duration
}

// MirrorWorker applies invoice sync messages to the mirror and periodically
// rewrites the mirror from the repository to recover from lost messages.
type MirrorWorker struct {
	repo   repository.Repository
	mirror sheets.InvoiceMirror
	config Config

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorWorker(repo repository.Repository, mirror sheets.InvoiceMirror, config Config) *MirrorWorker {
	if config.ResyncInterval <= 0 {
		config.ResyncInterval = DefaultResyncInterval
	}
	return &MirrorWorker{repo: repo, mirror: mirror, config: config}
}

// HandleMessage processes a single invoice sync message from AMQP.
// Upserts fetch the current invoice; an invoice that no longer exists is
// removed from the mirror instead.
func (w *MirrorWorker) HandleMessage(ctx context.Context, msg *amqp.InvoiceSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"invoice_id", msg.InvoiceID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDelete {
		if err := w.mirror.DeleteInvoice(ctx, msg.InvoiceID); err != nil {
			return fmt.Errorf("delete invoice from mirror: %w", err)
		}
		slog.InfoContext(ctx, "Invoice removed from mirror", "invoice_id", msg.InvoiceID)
		return nil
	}

	inv, err := repository.FindInvoice(ctx, w.repo, msg.InvoiceID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Invoice gone before sync, removing from mirror", "invoice_id", msg.InvoiceID)
		if err := w.mirror.DeleteInvoice(ctx, msg.InvoiceID); err != nil {
			return fmt.Errorf("delete invoice from mirror: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get invoice from repository: %w", err)
	}

	if err := w.mirror.UpsertInvoice(ctx, inv); err != nil {
		return fmt.Errorf("upsert invoice in mirror: %w", err)
	}
	slog.InfoContext(ctx, "Invoice mirrored",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"status", inv.Status)
	return nil
}

// Resync rewrites the mirror with every invoice in the repository.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	invoices, err := w.repo.Invoices().FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch invoices: %w", err)
	}
	if err := w.mirror.Resync(ctx, invoices); err != nil {
		return fmt.Errorf("resync mirror: %w", err)
	}
	slog.InfoContext(ctx, "Mirror resync completed", "count", len(invoices))
	return nil
}

// Start runs a resync immediately and then on every interval until Stop or
// ctx cancellation. Returns an error if already running.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("mirror worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror worker started", "resync_interval", w.config.ResyncInterval)
	return nil
}

// Stop signals the loop and waits for it to finish.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the resync loop is active.
func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *MirrorWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.ResyncInterval)
	defer ticker.Stop()

	w.resyncLogged(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resyncLogged(ctx)
		}
	}
}

func (w *MirrorWorker) resyncLogged(ctx context.Context) {
	if err := w.Resync(ctx); err != nil {
		slog.ErrorContext(ctx, "Mirror resync failed", "error", err)
	}
}
