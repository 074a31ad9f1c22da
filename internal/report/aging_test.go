package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

func TestDaysPastDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  core.Date
		want int
	}{
		{"no due date", core.Date{}, 0},
		{"due later", core.NewDate(2024, 6, 20), 0},
		{"due today", core.NewDate(2024, 6, 15), 0},
		{"one day late", core.NewDate(2024, 6, 14), 1},
		{"across months", core.NewDate(2024, 4, 15), 61},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysPastDue(core.Invoice{DueDate: tt.due}, now); got != tt.want {
				t.Errorf("DaysPastDue = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAging(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	inv := func(status core.InvoiceStatus, due core.Date, total int64) core.Invoice {
		return core.Invoice{Status: status, DueDate: due, Total: decimal.NewFromInt(total)}
	}
	invoices := []core.Invoice{
		inv(core.StatusPending, core.NewDate(2024, 6, 30), 100),
		inv(core.StatusPending, core.NewDate(2024, 6, 1), 200),
		inv(core.StatusOverdue, core.NewDate(2024, 5, 1), 300),
		inv(core.StatusOverdue, core.NewDate(2024, 1, 1), 400),
		inv(core.StatusPaid, core.NewDate(2024, 1, 1), 999),
		inv(core.StatusDraft, core.NewDate(2024, 1, 1), 999),
	}

	got := Aging(invoices, now)
	want := []struct {
		label  string
		count  int
		amount int64
	}{
		{"Current", 1, 100},
		{"1-30", 1, 200},
		{"31-60", 1, 300},
		{"61-90", 0, 0},
		{"90+", 1, 400},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(got), len(want))
	}
	for i, w := range want {
		b := got[i]
		if b.Label != w.label || b.Count != w.count || !b.Amount.Equal(decimal.NewFromInt(w.amount)) {
			t.Errorf("bucket %d = %+v, want %s count=%d amount=%d", i, b, w.label, w.count, w.amount)
		}
	}
}
