package report

import (
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

// AgingBucket totals unpaid invoices whose days past due fall in [MinDays, MaxDays].
// MaxDays < 0 means unbounded.
type AgingBucket struct {
	Label   string          `json:"label"`
	MinDays int             `json:"minDays"`
	MaxDays int             `json:"maxDays"`
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
}

func agingBuckets() []AgingBucket {
	return []AgingBucket{
		{Label: "Current", MinDays: 0, MaxDays: 0},
		{Label: "1-30", MinDays: 1, MaxDays: 30},
		{Label: "31-60", MinDays: 31, MaxDays: 60},
		{Label: "61-90", MinDays: 61, MaxDays: 90},
		{Label: "90+", MinDays: 91, MaxDays: -1},
	}
}

func (b AgingBucket) contains(days int) bool {
	return days >= b.MinDays && (b.MaxDays < 0 || days <= b.MaxDays)
}

// DaysPastDue counts whole calendar days from the due date to now. Invoices
// not yet due, or without a due date, report 0.
func DaysPastDue(inv core.Invoice, now time.Time) int {
	if inv.DueDate.IsZero() {
		return 0
	}
	today := core.DateOf(now)
	days := int(today.Sub(inv.DueDate.Time).Hours() / 24)
	return max(days, 0)
}

// Aging groups Pending and Overdue invoices by how far past due they are.
// Statuses are read, never changed.
func Aging(invoices []core.Invoice, now time.Time) []AgingBucket {
	buckets := agingBuckets()
	for i := range buckets {
		buckets[i].Amount = decimal.Zero
	}
	for _, inv := range invoices {
		if inv.Status != core.StatusPending && inv.Status != core.StatusOverdue {
			continue
		}
		days := DaysPastDue(inv, now)
		for i := range buckets {
			if buckets[i].contains(days) {
				buckets[i].Count++
				buckets[i].Amount = buckets[i].Amount.Add(inv.Total)
				break
			}
		}
	}
	return buckets
}
