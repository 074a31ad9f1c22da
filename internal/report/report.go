// Package report derives read-only statistics from a set of invoices.
//
// Every function here is pure: results depend only on the arguments and the
// input slices are never modified.
package report

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

// TrendMonths is the number of calendar months covered by MonthlyTrend.
const TrendMonths = 6

// RecentLimit is the number of invoices shown in the dashboard recent list.
const RecentLimit = 5

// Stats are the headline dashboard figures.
type Stats struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	PendingAmount decimal.Decimal `json:"pendingAmount"`
	InvoiceCount  int             `json:"invoiceCount"`
}

// MonthAmount is one bucket of the monthly trend.
type MonthAmount struct {
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// RangeReport summarises the invoices dated inside an inclusive range.
type RangeReport struct {
	Start         core.Date                  `json:"start"`
	End           core.Date                  `json:"end"`
	Invoices      []core.Invoice             `json:"invoices"`
	TotalInvoiced decimal.Decimal            `json:"totalInvoiced"`
	TotalReceived decimal.Decimal            `json:"totalReceived"`
	TotalPending  decimal.Decimal            `json:"totalPending"`
	TotalTax      decimal.Decimal            `json:"totalTax"`
	StatusCounts  map[core.InvoiceStatus]int `json:"statusCounts"`
}

// Dashboard sums Paid totals as revenue and Pending totals as the pending amount.
// Draft and Overdue invoices count toward InvoiceCount only.
func Dashboard(invoices []core.Invoice) Stats {
	s := Stats{
		TotalRevenue:  decimal.Zero,
		PendingAmount: decimal.Zero,
		InvoiceCount:  len(invoices),
	}
	for _, inv := range invoices {
		switch inv.Status {
		case core.StatusPaid:
			s.TotalRevenue = s.TotalRevenue.Add(inv.Total)
		case core.StatusPending:
			s.PendingAmount = s.PendingAmount.Add(inv.Total)
		}
	}
	return s
}

// MonthlyTrend returns the Paid totals of the trailing six calendar months,
// oldest first, ending with the month containing now. Months without paid
// invoices report zero.
func MonthlyTrend(invoices []core.Invoice, now time.Time) []MonthAmount {
	out := make([]MonthAmount, TrendMonths)
	for i := range TrendMonths {
		first := time.Date(now.Year(), now.Month()-time.Month(TrendMonths-1-i), 1, 0, 0, 0, 0, time.UTC)
		out[i] = MonthAmount{
			Year:   first.Year(),
			Month:  first.Month(),
			Label:  first.Format("Jan"),
			Amount: decimal.Zero,
		}
	}
	for _, inv := range invoices {
		if inv.Status != core.StatusPaid || inv.Date.IsZero() {
			continue
		}
		for i := range out {
			if out[i].Year == inv.Date.Year() && out[i].Month == inv.Date.Month() {
				out[i].Amount = out[i].Amount.Add(inv.Total)
				break
			}
		}
	}
	return out
}

// DateRange filters invoices dated on or between start and end and sorts them
// by date, oldest first. Invoices sharing a date keep their input order.
func DateRange(invoices []core.Invoice, start, end core.Date) RangeReport {
	r := RangeReport{
		Start:         start,
		End:           end,
		Invoices:      []core.Invoice{},
		TotalInvoiced: decimal.Zero,
		TotalReceived: decimal.Zero,
		TotalPending:  decimal.Zero,
		TotalTax:      decimal.Zero,
		StatusCounts:  map[core.InvoiceStatus]int{},
	}
	for _, inv := range invoices {
		if !inRange(inv.Date, start, end) {
			continue
		}
		r.Invoices = append(r.Invoices, inv.Clone())
	}
	slices.SortStableFunc(r.Invoices, func(a, b core.Invoice) int {
		return a.Date.Compare(b.Date.Time)
	})
	for _, inv := range r.Invoices {
		r.TotalInvoiced = r.TotalInvoiced.Add(inv.Total)
		r.TotalTax = r.TotalTax.Add(inv.Tax)
		switch inv.Status {
		case core.StatusPaid:
			r.TotalReceived = r.TotalReceived.Add(inv.Total)
		case core.StatusPending, core.StatusOverdue:
			r.TotalPending = r.TotalPending.Add(inv.Total)
		}
		r.StatusCounts[inv.Status]++
	}
	return r
}

// inRange compares calendar days, so the end day is included in full.
func inRange(d, start, end core.Date) bool {
	if d.IsZero() {
		return false
	}
	day := core.DateOf(d.Time)
	if !start.IsZero() && day.Before(core.DateOf(start.Time).Time) {
		return false
	}
	if !end.IsZero() && day.After(core.DateOf(end.Time).Time) {
		return false
	}
	return true
}

// Recent returns at most n invoices from the front of the list, which the
// store keeps most recent first.
func Recent(invoices []core.Invoice, n int) []core.Invoice {
	if n < 0 {
		n = 0
	}
	if len(invoices) < n {
		n = len(invoices)
	}
	out := make([]core.Invoice, n)
	for i := range n {
		out[i] = invoices[i].Clone()
	}
	return out
}

// DefaultRange is the first day of now's month through now's day.
func DefaultRange(now time.Time) (core.Date, core.Date) {
	return core.NewDate(now.Year(), int(now.Month()), 1), core.DateOf(now)
}
