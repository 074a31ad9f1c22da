package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"invoicer/internal/core"
)

const (
	summarySheet      = "Summary"
	transactionsSheet = "Transactions"
)

// WriteXLSX writes r as a workbook with a summary sheet and one row per invoice.
func WriteXLSX(w io.Writer, r RangeReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{
		{"Period", r.Start.String() + " to " + r.End.String()},
		{"Total Invoiced", r.TotalInvoiced.InexactFloat64()},
		{"Received", r.TotalReceived.InexactFloat64()},
		{"Pending / Overdue", r.TotalPending.InexactFloat64()},
		{"Tax Collected", r.TotalTax.InexactFloat64()},
	}
	for _, st := range core.InvoiceStatuses() {
		summary = append(summary, []any{string(st) + " invoices", r.StatusCounts[st]})
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, cell("A", i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header := []any{"Date", "Invoice #", "Client", "Status", "Subtotal", "Tax", "Total"}
	if err := f.SetSheetRow(transactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, inv := range r.Invoices {
		row := []any{
			inv.Date.String(),
			inv.InvoiceNumber,
			inv.ClientName,
			string(inv.Status),
			inv.Subtotal.InexactFloat64(),
			inv.Tax.InexactFloat64(),
			inv.Total.InexactFloat64(),
		}
		if err := f.SetSheetRow(transactionsSheet, cell("A", i+2), &row); err != nil {
			return fmt.Errorf("write invoice row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// XLSXFilename names the export for a report period.
func XLSXFilename(r RangeReport) string {
	name := fmt.Sprintf("report_%s_%s.xlsx", r.Start.String(), r.End.String())
	return strings.ReplaceAll(name, "__", "_")
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
