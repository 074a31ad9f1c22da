package sheets

import (
	"context"

	"invoicer/internal/core"
)

// Ports for outbound adapters.
type (
	// InvoiceMirror keeps an external, human-readable copy of the invoice list.
	InvoiceMirror interface {
		// UpsertInvoice writes the invoice row, replacing an existing row with the same id.
		UpsertInvoice(ctx context.Context, inv core.Invoice) error
		// DeleteInvoice removes the row for id. Unknown ids are ignored.
		DeleteInvoice(ctx context.Context, id string) error
		// Resync replaces the whole mirror with invoices, in the given order.
		Resync(ctx context.Context, invoices []core.Invoice) error
	}
)
