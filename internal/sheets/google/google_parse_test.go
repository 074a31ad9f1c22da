package google

import (
	"testing"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

func TestInvoiceRow_ColumnsMatchHeader(t *testing.T) {
	inv := core.Invoice{
		ID:            "id-1",
		InvoiceNumber: "INV-2024-007",
		ClientName:    "Acme",
		ClientEmail:   "ap@acme.test",
		Date:          core.NewDate(2024, 1, 31),
		DueDate:       core.NewDate(2024, 2, 14),
		Status:        core.StatusDraft,
		Items:         []core.InvoiceItem{{ID: "x", Quantity: decimal.NewFromInt(3), Rate: decimal.RequireFromString("10.5")}},
	}
	inv.Recalculate()

	row := invoiceRow(inv)
	if len(row) != len(headers) {
		t.Fatalf("row has %d cells, header %d", len(row), len(headers))
	}
	want := []any{"id-1", "INV-2024-007", "Acme", "ap@acme.test", "2024-01-31", "2024-02-14", "Draft", "31.50", "2.52", "34.02"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %s = %v, want %v", headers[i], row[i], want[i])
		}
	}
}

func TestIndexRows(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"a"},
		{},
		{" b "},
		{""},
		{"a"},
	}
	idx := indexRows(values)
	if len(idx) != 2 {
		t.Fatalf("index = %v", idx)
	}
	if idx["a"] != 2 || idx["b"] != 4 {
		t.Fatalf("index = %v, want a:2 b:4", idx)
	}
}
