package services

import (
	"context"
	"fmt"
	"log/slog"

	"invoicer/internal/core"
	"invoicer/internal/repository"
)

// Publisher announces invoice changes to downstream consumers.
type Publisher interface {
	PublishInvoiceSync(ctx context.Context, id string) error
	PublishInvoiceDelete(ctx context.Context, id string) error
	Close() error
}

// PublishingRepository wraps a repository and publishes a sync message after
// every successful invoice write. A publish failure is logged and the write
// still counts as successful.
type PublishingRepository struct {
	repository.Repository
	publisher Publisher
}

var _ repository.Repository = (*PublishingRepository)(nil)

// NewPublishingRepository returns repo unchanged when publisher is nil.
func NewPublishingRepository(repo repository.Repository, publisher Publisher) repository.Repository {
	if publisher == nil {
		return repo
	}
	return &PublishingRepository{Repository: repo, publisher: publisher}
}

func (r *PublishingRepository) Invoices() repository.Collection[core.Invoice] {
	return publishingInvoices{inner: r.Repository.Invoices(), publisher: r.publisher}
}

// Close closes both the repository and the publisher.
func (r *PublishingRepository) Close() error {
	var errs []error
	if err := r.Repository.Close(); err != nil {
		errs = append(errs, fmt.Errorf("repository: %w", err))
	}
	if err := r.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close publishing repository: %v", errs)
	}
	return nil
}

type publishingInvoices struct {
	inner     repository.Collection[core.Invoice]
	publisher Publisher
}

func (c publishingInvoices) FetchAll(ctx context.Context) ([]core.Invoice, error) {
	return c.inner.FetchAll(ctx)
}

func (c publishingInvoices) Upsert(ctx context.Context, inv core.Invoice) error {
	if err := c.inner.Upsert(ctx, inv); err != nil {
		return err
	}
	if err := c.publisher.PublishInvoiceSync(ctx, inv.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "invoice_id", inv.ID, "error", err)
	}
	return nil
}

func (c publishingInvoices) DeleteByID(ctx context.Context, id string) error {
	if err := c.inner.DeleteByID(ctx, id); err != nil {
		return err
	}
	if err := c.publisher.PublishInvoiceDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "invoice_id", id, "error", err)
	}
	return nil
}

// Ping checks the wrapped repository.
func (r *PublishingRepository) Ping(ctx context.Context) error {
	return repository.Ping(ctx, r.Repository)
}

// GetInvoice delegates to the wrapped repository when it supports single lookups.
func (r *PublishingRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	return repository.FindInvoice(ctx, r.Repository, id)
}
