// Package pdf renders invoices as A4 documents.
package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"invoicer/internal/core"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

// item table column widths in mm; they add up to the printable width.
var colWidths = [4]float64{95, 25, 30, 30}

// Filename is the suggested download name for an invoice PDF.
func Filename(inv core.Invoice) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, inv.InvoiceNumber)
	if name == "" {
		name = inv.ID
	}
	return "invoice_" + name + ".pdf"
}

// Render writes the invoice to w. Nothing is written when layout fails.
func Render(w io.Writer, inv core.Invoice, s core.Settings) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.SetTitle(inv.InvoiceNumber, true)
	doc.SetCreator(s.BusinessName, true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	drawHeader(doc, tr, inv, s)
	drawClient(doc, tr, inv)
	drawItems(doc, tr, inv)
	drawTotals(doc, inv)
	drawNotes(doc, tr, inv)

	if err := doc.Error(); err != nil {
		return fmt.Errorf("layout invoice %s: %w", inv.InvoiceNumber, err)
	}
	if err := doc.Output(w); err != nil {
		return fmt.Errorf("write invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

func drawHeader(doc *gofpdf.Fpdf, tr func(string) string, inv core.Invoice, s core.Settings) {
	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(110, 9, tr(s.BusinessName), "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", 22)
	doc.CellFormat(0, 9, "INVOICE", "", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	left := []string{s.BusinessSubtitle, s.Address, s.Email, s.Phone}
	if s.GstTin != "" {
		left = append(left, "GST/TIN: "+s.GstTin)
	}
	right := []string{
		"No. " + inv.InvoiceNumber,
		"Date: " + inv.Date.String(),
		"Due: " + inv.DueDate.String(),
		"Status: " + string(inv.Status),
	}
	for i := range max(len(left), len(right)) {
		doc.CellFormat(110, lineHeight, tr(at(left, i)), "", 0, "L", false, 0, "")
		doc.CellFormat(0, lineHeight, tr(at(right, i)), "", 1, "R", false, 0, "")
	}
	doc.Ln(lineHeight)
}

func drawClient(doc *gofpdf.Fpdf, tr func(string) string, inv core.Invoice) {
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(0, lineHeight, "Bill To", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	for _, line := range []string{inv.ClientName, inv.ClientEmail} {
		if line != "" {
			doc.CellFormat(0, lineHeight, tr(line), "", 1, "L", false, 0, "")
		}
	}
	if inv.ClientAddress != "" {
		doc.MultiCell(0, lineHeight, tr(inv.ClientAddress), "", "L", false)
	}
	doc.Ln(lineHeight)
}

func drawItems(doc *gofpdf.Fpdf, tr func(string) string, inv core.Invoice) {
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(235, 235, 235)
	for i, h := range []string{"Description", "Qty", "Rate", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		doc.CellFormat(colWidths[i], 8, h, "B", 0, align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, it := range inv.Items {
		doc.CellFormat(colWidths[0], 7, tr(truncate(it.Description, 60)), "", 0, "L", false, 0, "")
		doc.CellFormat(colWidths[1], 7, it.Quantity.String(), "", 0, "R", false, 0, "")
		doc.CellFormat(colWidths[2], 7, core.FormatAmount(it.Rate), "", 0, "R", false, 0, "")
		doc.CellFormat(colWidths[3], 7, core.FormatAmount(it.Amount()), "", 1, "R", false, 0, "")
	}
	doc.Ln(2)
}

func drawTotals(doc *gofpdf.Fpdf, inv core.Invoice) {
	labelWidth := colWidths[0] + colWidths[1] + colWidths[2]
	rows := []struct {
		label string
		value string
		bold  bool
	}{
		{"Subtotal", core.FormatAmount(inv.Subtotal), false},
		{fmt.Sprintf("Tax (%s%%)", core.TaxRate.Shift(2).String()), core.FormatAmount(inv.Tax), false},
		{"Total", core.FormatAmount(inv.Total), true},
	}
	for _, r := range rows {
		style := ""
		if r.bold {
			style = "B"
		}
		doc.SetFont("Helvetica", style, 10)
		doc.CellFormat(labelWidth, 7, r.label, "", 0, "R", false, 0, "")
		doc.CellFormat(colWidths[3], 7, r.value, "T", 1, "R", false, 0, "")
	}
}

func drawNotes(doc *gofpdf.Fpdf, tr func(string) string, inv core.Invoice) {
	if strings.TrimSpace(inv.Notes) == "" {
		return
	}
	doc.Ln(lineHeight)
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(0, lineHeight, "Notes", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
}

func at(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
