package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"

	"invoicer/internal/core"
)

func TestMaskDSN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"host=db user=app password=s3cret dbname=inv", "host=db user=app password=*** dbname=inv"},
		{"postgres://app:s3cret@db:5432/inv?sslmode=disable", "postgres://app:***@db:5432/inv?sslmode=disable"},
		{"postgres://db:5432/inv", "postgres://db:5432/inv"},
	}
	for _, tc := range cases {
		if got := maskDSN(tc.in); got != tc.want {
			t.Fatalf("maskDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRowConversion(t *testing.T) {
	inv := core.Invoice{
		ID:      "i1",
		Date:    core.NewDate(2024, 5, 10),
		DueDate: core.NewDate(2024, 5, 24),
		Status:  core.StatusPaid,
		Items: []core.InvoiceItem{
			{ID: "a", Quantity: decimal.NewFromInt(2), Rate: decimal.NewFromInt(4500)},
			{ID: "b", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(3000)},
		},
	}
	inv.Recalculate()
	row := toInvoiceRow(inv)
	if len(row.Items) != 2 || row.Items[1].Position != 1 || row.Items[0].InvoiceID != "i1" {
		t.Fatalf("items = %+v", row.Items)
	}
	back := row.toCore()
	if back.Date.String() != "2024-05-10" || !back.Total.Equal(decimal.NewFromInt(12960)) || back.Items[1].ID != "b" {
		t.Fatalf("round trip = %+v", back)
	}
	if toSettingsRow(core.Settings{BusinessName: "x"}).ID != core.SettingsID {
		t.Fatalf("settings row must use the fixed id")
	}
}

func TestInvoiceItemKeyIsPerInvoice(t *testing.T) {
	sch, err := schema.Parse(&invoiceItemRow{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	var cols []string
	for _, f := range sch.PrimaryFields {
		cols = append(cols, f.DBName)
	}
	if len(cols) != 2 || cols[0] != "invoice_id" || cols[1] != "id" {
		t.Fatalf("primary key = %v, want [invoice_id id]", cols)
	}
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("POSTGRES_DSN not set, skipping postgres test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	repo, err := ConnectAndMigrate(ctx, dsn, Options{Attempts: 1})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer repo.Close()

	inv := core.Invoice{ID: "pg-" + core.NewID(), InvoiceNumber: "INV-PG", ClientName: "Acme",
		Date: core.NewDate(2024, 5, 10), DueDate: core.NewDate(2024, 5, 24), Status: core.StatusDraft}
	inv.AddItem(core.InvoiceItem{Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)})
	if err := repo.Invoices().Upsert(ctx, inv); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	defer repo.Invoices().DeleteByID(ctx, inv.ID)

	inv.AddItem(core.InvoiceItem{Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(50)})
	if err := repo.Invoices().Upsert(ctx, inv); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetInvoice(ctx, inv.ID)
	if err != nil || len(got.Items) != 2 || !got.Total.Equal(inv.Total) {
		t.Fatalf("get: %+v %v", got, err)
	}

	dup := inv.Clone()
	dup.ID = "pg-" + core.NewID()
	dup.Items[0].Rate = decimal.RequireFromString("0.3333")
	dup.Items[0].Quantity = decimal.RequireFromString("1.5")
	dup.Recalculate()
	if err := repo.Invoices().Upsert(ctx, dup); err != nil {
		t.Fatalf("upsert copy sharing item ids: %v", err)
	}
	defer repo.Invoices().DeleteByID(ctx, dup.ID)
	gotDup, err := repo.GetInvoice(ctx, dup.ID)
	if err != nil || !gotDup.Subtotal.Equal(dup.Subtotal) {
		t.Fatalf("copy round trip: %+v %v", gotDup, err)
	}
	if _, err := repo.GetInvoice(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Settings().Save(ctx, core.Settings{BusinessName: "PG"}); err != nil {
		t.Fatalf("settings: %v", err)
	}
	s, found, err := repo.Settings().Fetch(ctx)
	if err != nil || !found || s.BusinessName != "PG" {
		t.Fatalf("settings fetch: %+v %v %v", s, found, err)
	}
}
