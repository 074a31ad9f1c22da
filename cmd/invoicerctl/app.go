package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"invoicer/internal/backend"
	appcli "invoicer/internal/cli"
	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/pdf"
	"invoicer/internal/report"
	"invoicer/internal/store"
)

// session is the store opened for one command.
type session struct {
	store  *store.Store
	result *backend.Result
	now    func() time.Time
}

func newApp(out io.Writer) *cli.App {
	sess := &session{now: time.Now}

	return &cli.App{
		Name:      "invoicerctl",
		Usage:     "inspect and export invoices from the configured backend",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of tables"},
		},
		Before: func(c *cli.Context) error {
			if c.Args().Len() == 0 || c.Args().First() == "help" || c.Args().First() == "h" {
				return nil
			}
			return sess.open(c.Context)
		},
		After: func(c *cli.Context) error {
			return sess.close()
		},
		Commands: []*cli.Command{
			{
				Name:   "dashboard",
				Usage:  "show revenue, pending amount and the six month trend",
				Action: sess.dashboard,
			},
			{
				Name:  "invoices",
				Usage: "list invoices, most recent first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "only invoices with this status"},
				},
				Action: sess.invoices,
			},
			{
				Name:  "report",
				Usage: "summarise invoices dated within a range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "first day (YYYY-MM-DD), default first of this month"},
					&cli.StringFlag{Name: "to", Usage: "last day (YYYY-MM-DD), default today"},
					&cli.StringFlag{Name: "xlsx", Usage: "also write the report to this spreadsheet file"},
				},
				Action: sess.report,
			},
			{
				Name:  "pdf",
				Usage: "render an invoice as PDF",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true, Usage: "invoice id"},
					&cli.StringFlag{Name: "out", Usage: "output file, default invoice_<number>.pdf"},
				},
				Action: sess.pdf,
			},
			{
				Name:  "set-status",
				Usage: "change the status of an invoice",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true, Usage: "invoice id"},
					&cli.StringFlag{Name: "status", Required: true, Usage: "Draft, Pending, Paid or Overdue"},
				},
				Action: sess.setStatus,
			},
		},
	}
}

func (s *session) open(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	cfg, err := appcli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentCLI)
	st, result, err := appcli.OpenStore(ctx, logger, cfg)
	if err != nil {
		return err
	}
	s.store, s.result = st, result
	return nil
}

func (s *session) close() error {
	if s.store == nil {
		return nil
	}
	s.store.Wait()
	return s.result.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *session) dashboard(c *cli.Context) error {
	invoices := s.store.Invoices()
	stats := report.Dashboard(invoices)
	trend := report.MonthlyTrend(invoices, s.now())
	aging := report.Aging(invoices, s.now())

	if c.Bool("json") {
		return printJSON(c.App.Writer, map[string]any{"stats": stats, "trend": trend, "aging": aging})
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total revenue\t%s\n", core.FormatAmount(stats.TotalRevenue))
	fmt.Fprintf(tw, "Pending\t%s\n", core.FormatAmount(stats.PendingAmount))
	fmt.Fprintf(tw, "Invoices\t%d\n", stats.InvoiceCount)
	fmt.Fprintln(tw)
	for _, m := range trend {
		fmt.Fprintf(tw, "%s %d\t%s\n", m.Label, m.Year, core.FormatAmount(m.Amount))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Days past due\tInvoices\tAmount")
	for _, b := range aging {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Label, b.Count, core.FormatAmount(b.Amount))
	}
	return tw.Flush()
}

func (s *session) invoices(c *cli.Context) error {
	invoices := s.store.Invoices()
	if v := c.String("status"); v != "" {
		status, err := core.ParseStatus(v)
		if err != nil {
			return err
		}
		filtered := invoices[:0]
		for _, inv := range invoices {
			if inv.Status == status {
				filtered = append(filtered, inv)
			}
		}
		invoices = filtered
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, invoices)
	}
	return writeInvoiceTable(c.App.Writer, invoices)
}

func writeInvoiceTable(w io.Writer, invoices []core.Invoice) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tCLIENT\tDATE\tSTATUS\tTOTAL")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID, inv.InvoiceNumber, inv.ClientName, inv.Date, inv.Status, core.FormatAmount(inv.Total))
	}
	return tw.Flush()
}

func (s *session) report(c *cli.Context) error {
	start, end := report.DefaultRange(s.now())
	var err error
	if v := c.String("from"); v != "" {
		if start, err = core.ParseDate(v); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if v := c.String("to"); v != "" {
		if end, err = core.ParseDate(v); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}
	if start.After(end.Time) {
		return fmt.Errorf("--from %s is after --to %s", start, end)
	}

	rep := report.DateRange(s.store.Invoices(), start, end)

	if path := c.String("xlsx"); path != "" {
		if err := writeFile(path, func(w io.Writer) error { return report.WriteXLSX(w, rep) }); err != nil {
			return err
		}
		fmt.Fprintf(c.App.ErrWriter, "wrote %s\n", path)
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, rep)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\t%s to %s\n", rep.Start, rep.End)
	fmt.Fprintf(tw, "Invoiced\t%s\n", core.FormatAmount(rep.TotalInvoiced))
	fmt.Fprintf(tw, "Received\t%s\n", core.FormatAmount(rep.TotalReceived))
	fmt.Fprintf(tw, "Outstanding\t%s\n", core.FormatAmount(rep.TotalPending))
	fmt.Fprintf(tw, "Tax\t%s\n", core.FormatAmount(rep.TotalTax))
	for _, st := range core.InvoiceStatuses() {
		fmt.Fprintf(tw, "%s\t%d\n", st, rep.StatusCounts[st])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer)
	return writeInvoiceTable(c.App.Writer, rep.Invoices)
}

func (s *session) pdf(c *cli.Context) error {
	inv, ok := s.store.Invoice(c.String("id"))
	if !ok {
		return fmt.Errorf("invoice %s: %w", c.String("id"), core.ErrNotFound)
	}
	path := c.String("out")
	if path == "" {
		path = pdf.Filename(inv)
	}
	settings := s.store.Settings()
	if err := writeFile(path, func(w io.Writer) error { return pdf.Render(w, inv, settings) }); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}

// setStatus waits for the write to reach the backend so a failure can be reported.
func (s *session) setStatus(c *cli.Context) error {
	status, err := core.ParseStatus(c.String("status"))
	if err != nil {
		return err
	}
	inv, err := s.store.SetInvoiceStatus(c.Context, c.String("id"), status)
	if err != nil {
		return err
	}
	s.store.Wait()

	if log, ok := s.store.Notifier().(*store.FailureLog); ok {
		for _, f := range log.Recent() {
			if f.ID == inv.ID {
				return fmt.Errorf("status changed locally but not saved: %s", f.Error)
			}
		}
	}
	fmt.Fprintf(c.App.Writer, "%s %s -> %s\n", inv.InvoiceNumber, inv.ID, inv.Status)
	return nil
}

// writeFile writes through a temporary file so a failed render leaves no partial output.
func writeFile(path string, render func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".invoicerctl-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := render(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
