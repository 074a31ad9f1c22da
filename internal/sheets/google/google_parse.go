package google

import (
	"fmt"
	"strings"

	"invoicer/internal/core"
)

// lastColumn is the rightmost column written for an invoice row.
const lastColumn = "J"

var headers = []string{
	"ID", "Number", "Client", "Email", "Date", "Due", "Status", "Subtotal", "Tax", "Total",
}

func header() []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

// invoiceRow lays an invoice out in the column order of headers.
func invoiceRow(inv core.Invoice) []any {
	return []any{
		inv.ID,
		inv.InvoiceNumber,
		inv.ClientName,
		inv.ClientEmail,
		inv.Date.String(),
		inv.DueDate.String(),
		string(inv.Status),
		core.FormatAmount(inv.Subtotal),
		core.FormatAmount(inv.Tax),
		core.FormatAmount(inv.Total),
	}
}

// indexRows maps ids found in column A to their 1-based row, skipping the
// header and cleared rows. The first occurrence of an id wins.
func indexRows(values [][]any) map[string]int {
	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, headers[0])) {
			continue
		}
		if _, seen := index[id]; !seen {
			index[id] = i + 1
		}
	}
	return index
}
