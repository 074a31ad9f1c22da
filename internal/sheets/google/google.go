package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"invoicer/internal/core"
	ports "invoicer/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when GOOGLE_SHEET_NAME is unset.
const DefaultSheetName = "Invoices"

const defaultIndexTTL = 30 * time.Second

// valuesAPI is the slice of the Sheets values endpoint the mirror needs.
type valuesAPI interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, values [][]any) error
	append(ctx context.Context, rng string, values [][]any) error
	clear(ctx context.Context, rng string) error
}

// Client mirrors invoices into one sheet, one row per invoice keyed by id in column A.
type Client struct {
	values valuesAPI
	sheet  string

	mu             sync.Mutex
	index          map[string]int
	indexExpiresAt time.Time
	indexTTL       time.Duration
}

var _ ports.InvoiceMirror = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID and service account credentials.
// Optional: GOOGLE_SHEET_NAME (default "Invoices").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheet == "" {
		sheet = DefaultSheetName
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: spreadsheetID}, sheet), nil
}

func newClient(values valuesAPI, sheet string) *Client {
	return &Client{values: values, sheet: sheet, indexTTL: defaultIndexTTL}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials() ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API
// with connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// UpsertInvoice rewrites the invoice's row in place, or appends one.
func (c *Client) UpsertInvoice(ctx context.Context, inv core.Invoice) error {
	row, ok, err := c.findRow(ctx, inv.ID)
	if err != nil {
		return err
	}
	values := [][]any{invoiceRow(inv)}
	if ok {
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, row, lastColumn, row)
		if err := c.values.update(ctx, rng, values); err != nil {
			c.invalidateIndex()
			return fmt.Errorf("update row %d in sheet %s: %w", row, c.sheet, err)
		}
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	if err := c.values.append(ctx, rng, values); err != nil {
		return fmt.Errorf("append invoice to sheet %s: %w", c.sheet, err)
	}
	// The appended row number is not known; rebuild on next lookup.
	c.invalidateIndex()
	return nil
}

// DeleteInvoice clears the row holding id.
func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	row, ok, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, row, lastColumn, row)
	if err := c.values.clear(ctx, rng); err != nil {
		c.invalidateIndex()
		return fmt.Errorf("clear row %d in sheet %s: %w", row, c.sheet, err)
	}
	c.mu.Lock()
	delete(c.index, id)
	c.mu.Unlock()
	return nil
}

// Resync clears the sheet and writes the header plus every invoice.
func (c *Client) Resync(ctx context.Context, invoices []core.Invoice) error {
	if err := c.values.clear(ctx, fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)); err != nil {
		return fmt.Errorf("clear sheet %s: %w", c.sheet, err)
	}
	values := make([][]any, 0, len(invoices)+1)
	values = append(values, header())
	index := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		values = append(values, invoiceRow(inv))
		// Row 1 is the header.
		index[inv.ID] = i + 2
	}
	if err := c.values.update(ctx, fmt.Sprintf("%s!A1", c.sheet), values); err != nil {
		c.invalidateIndex()
		return fmt.Errorf("write sheet %s: %w", c.sheet, err)
	}

	c.mu.Lock()
	c.index = index
	c.indexExpiresAt = time.Now().Add(c.indexTTL)
	c.mu.Unlock()
	slog.InfoContext(ctx, "Invoice sheet resynced", "sheet", c.sheet, "rows", len(invoices))
	return nil
}

// findRow returns the 1-based sheet row of id.
func (c *Client) findRow(ctx context.Context, id string) (int, bool, error) {
	c.mu.Lock()
	if c.index != nil && time.Now().Before(c.indexExpiresAt) {
		row, ok := c.index[id]
		c.mu.Unlock()
		return row, ok, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", c.sheet)
	values, err := c.values.get(ctx, rng)
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", rng, err)
	}
	index := indexRows(values)

	c.mu.Lock()
	c.index = index
	c.indexExpiresAt = time.Now().Add(c.indexTTL)
	c.mu.Unlock()

	row, ok := index[id]
	return row, ok, nil
}

func (c *Client) invalidateIndex() {
	c.mu.Lock()
	c.index = nil
	c.mu.Unlock()
}

// serviceValues adapts the generated Sheets client to valuesAPI.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) update(ctx context.Context, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceValues) append(ctx context.Context, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *serviceValues) clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
