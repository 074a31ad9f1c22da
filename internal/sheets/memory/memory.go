// Package memory is an in-process invoice mirror for local runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"invoicer/internal/core"
)

type Mirror struct {
	mu   sync.Mutex
	rows []core.Invoice
}

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) UpsertInvoice(_ context.Context, inv core.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.rows, func(r core.Invoice) bool { return r.ID == inv.ID })
	if i >= 0 {
		m.rows[i] = inv.Clone()
		return nil
	}
	m.rows = append(m.rows, inv.Clone())
	return nil
}

func (m *Mirror) DeleteInvoice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = slices.DeleteFunc(m.rows, func(r core.Invoice) bool { return r.ID == id })
	return nil
}

func (m *Mirror) Resync(_ context.Context, invoices []core.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make([]core.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		m.rows = append(m.rows, inv.Clone())
	}
	return nil
}

// Rows returns a snapshot of the mirrored invoices.
func (m *Mirror) Rows() []core.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Invoice, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Clone()
	}
	return out
}
