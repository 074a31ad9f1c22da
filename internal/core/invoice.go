package core

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPaymentTermDays is the gap between invoice date and due date for new invoices.
const DefaultPaymentTermDays = 14

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// NewItem returns a blank line item with quantity 1 and rate 0.
func NewItem() InvoiceItem {
	return InvoiceItem{
		ID:       NewID(),
		Quantity: decimal.NewFromInt(1),
		Rate:     decimal.Zero,
	}
}

// NewInvoice returns an unsaved Draft invoice dated today with a single blank item.
func NewInvoice(now time.Time) Invoice {
	today := DateOf(now)
	inv := Invoice{
		ID:            NewID(),
		InvoiceNumber: fmt.Sprintf("INV-%d-%03d", today.Year(), rand.IntN(1000)),
		Date:          today,
		DueDate:       today.AddDays(DefaultPaymentTermDays),
		Items:         []InvoiceItem{NewItem()},
		Status:        StatusDraft,
	}
	inv.Recalculate()
	return inv
}

// NewCustomer assigns an id to c when it has none.
func NewCustomer(c Customer) Customer {
	if c.ID == "" {
		c.ID = NewID()
	}
	return c
}

// NewUser assigns an id to u when it has none.
func NewUser(u User) User {
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.Role == "" {
		u.Role = RoleViewer
	}
	return u
}

// ApplyCustomer copies the customer's contact fields onto the invoice.
// Later edits to the customer do not reach invoices it was applied to.
func (inv *Invoice) ApplyCustomer(c Customer) {
	inv.ClientName = c.DisplayName()
	inv.ClientEmail = c.Email
	inv.ClientAddress = c.Address
}

// Recalculate refreshes Subtotal, Tax and Total from Items.
func (inv *Invoice) Recalculate() {
	t := ComputeTotals(inv.Items)
	inv.Subtotal = t.Subtotal
	inv.Tax = t.Tax
	inv.Total = t.Total
}

// RoundItems rounds every item's quantity and rate to ItemPlaces and
// refreshes the totals.
func (inv *Invoice) RoundItems() {
	for i := range inv.Items {
		inv.Items[i].Quantity = inv.Items[i].Quantity.Round(ItemPlaces)
		inv.Items[i].Rate = inv.Items[i].Rate.Round(ItemPlaces)
	}
	inv.Recalculate()
}

// Totals returns the invoice's derived amounts.
func (inv Invoice) Totals() Totals {
	return Totals{Subtotal: inv.Subtotal, Tax: inv.Tax, Total: inv.Total}
}

// AddItem appends it, assigning an id when missing.
func (inv *Invoice) AddItem(it InvoiceItem) {
	if it.ID == "" {
		it.ID = NewID()
	}
	inv.Items = append(inv.Items, it)
	inv.Recalculate()
}

// UpdateItem replaces the item with the same id. It reports whether one was found.
func (inv *Invoice) UpdateItem(it InvoiceItem) bool {
	i := slices.IndexFunc(inv.Items, func(x InvoiceItem) bool { return x.ID == it.ID })
	if i < 0 {
		return false
	}
	inv.Items[i] = it
	inv.Recalculate()
	return true
}

// RemoveItem drops the item with the given id. Removing an unknown id is a no-op.
func (inv *Invoice) RemoveItem(id string) {
	inv.Items = slices.DeleteFunc(inv.Items, func(x InvoiceItem) bool { return x.ID == id })
	inv.Recalculate()
}

// ReplaceItems swaps the whole item list.
func (inv *Invoice) ReplaceItems(items []InvoiceItem) {
	inv.Items = slices.Clone(items)
	inv.Recalculate()
}
