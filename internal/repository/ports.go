// Package repository defines the persistence collaborator used by the store.
//
// Backends live in sub-packages (memory, kv, postgres) and in
// internal/storage for the database/sql dialects.
package repository

import (
	"context"
	"fmt"

	"invoicer/internal/core"
)

// Ports for persistence backends.
type (
	// Collection is the durable side of one keyed entity collection.
	Collection[T core.Entity] interface {
		// FetchAll returns every record. Invoices come back most recent first,
		// customers and users in insertion order.
		FetchAll(ctx context.Context) ([]T, error)
		// Upsert replaces the record with the same id or inserts it.
		Upsert(ctx context.Context, v T) error
		// DeleteByID removes the record. Deleting an unknown id is not an error.
		DeleteByID(ctx context.Context, id string) error
	}

	// SettingsStore persists the settings singleton under core.SettingsID.
	SettingsStore interface {
		// Fetch reports found=false when settings were never saved.
		Fetch(ctx context.Context) (s core.Settings, found bool, err error)
		Save(ctx context.Context, s core.Settings) error
	}

	// Repository bundles the collections of one backend.
	Repository interface {
		Invoices() Collection[core.Invoice]
		Customers() Collection[core.Customer]
		Users() Collection[core.User]
		Settings() SettingsStore
		Close() error
	}

	// InvoiceGetter is implemented by backends that can load one invoice directly.
	InvoiceGetter interface {
		GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	}

	// Pinger is implemented by backends with a remote connection to check.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Ping checks the backend connection. Backends without one always succeed.
func Ping(ctx context.Context, repo Repository) error {
	if p, ok := repo.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// FindInvoice loads one invoice, using GetInvoice when the backend has it and
// scanning FetchAll otherwise. A missing id yields core.ErrNotFound.
func FindInvoice(ctx context.Context, repo Repository, id string) (core.Invoice, error) {
	if g, ok := repo.(InvoiceGetter); ok {
		return g.GetInvoice(ctx, id)
	}
	all, err := repo.Invoices().FetchAll(ctx)
	if err != nil {
		return core.Invoice{}, err
	}
	for _, inv := range all {
		if inv.ID == id {
			return inv, nil
		}
	}
	return core.Invoice{}, fmt.Errorf("invoice %s: %w", id, core.ErrNotFound)
}

// Placement says where a new record goes in an ordered collection.
type Placement int

const (
	// Append puts new records last.
	Append Placement = iota
	// Prepend puts new records first.
	Prepend
)

// PlacementOf returns how new records of T are ordered: invoices most recent
// first, everything else in insertion order.
func PlacementOf[T core.Entity]() Placement {
	var zero T
	if _, ok := any(zero).(core.Invoice); ok {
		return Prepend
	}
	return Append
}

// UpsertSlice replaces the element with v's id or inserts v according to p.
// It reports whether a new element was added.
func UpsertSlice[T core.Entity](items []T, v T, p Placement) ([]T, bool) {
	for i := range items {
		if items[i].EntityID() == v.EntityID() {
			items[i] = v
			return items, false
		}
	}
	if p == Prepend {
		out := make([]T, 0, len(items)+1)
		out = append(out, v)
		return append(out, items...), true
	}
	return append(items, v), true
}

// DeleteFromSlice removes every element whose id matches.
func DeleteFromSlice[T core.Entity](items []T, id string) []T {
	out := items[:0]
	for _, it := range items {
		if it.EntityID() != id {
			out = append(out, it)
		}
	}
	clear(items[len(out):])
	return out
}
