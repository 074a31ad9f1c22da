// Package storage is the database/sql repository backend. It supports an
// embedded SQLite file and a MySQL server, sharing one schema layout.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"invoicer/internal/core"
	"invoicer/internal/repository"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// upsert builds an insert that overwrites every column in update on a key clash.
func (d Dialect) upsert(table string, cols, update []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
	sets := make([]string, len(update))
	for i, c := range update {
		if d == MySQL {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
	}
	if d == MySQL {
		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return q + " ON CONFLICT(id) DO UPDATE SET " + strings.Join(sets, ", ")
}

// SQLRepository implements repository.Repository over database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect

	seqMu   sync.Mutex
	lastSeq int64

	invoices  *table[core.Invoice]
	customers *table[core.Customer]
	users     *table[core.User]
	settings  *settingsTable
}

var _ repository.Repository = (*SQLRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database file and migrates it.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(SQLite, dbPath)
}

// NewMySQLRepository connects to dsn and migrates the schema.
func NewMySQLRepository(dsn string) (*SQLRepository, error) {
	return Open(MySQL, dsn)
}

// Open connects with the given dialect, runs migrations and returns the repository.
func Open(d Dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if d == SQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &SQLRepository{db: db, dialect: d}
	r.invoices = newInvoiceTable(r)
	r.customers = newCustomerTable(r)
	r.users = newUserTable(r)
	r.settings = &settingsTable{r: r}

	slog.Info("SQL repository ready", "dialect", d)
	return r, nil
}

func (r *SQLRepository) Invoices() repository.Collection[core.Invoice] { return r.invoices }

func (r *SQLRepository) Customers() repository.Collection[core.Customer] { return r.customers }

func (r *SQLRepository) Users() repository.Collection[core.User] { return r.users }

func (r *SQLRepository) Settings() repository.SettingsStore { return r.settings }

// DB exposes the underlying handle for health checks.
func (r *SQLRepository) DB() *sql.DB { return r.db }

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// nextSeq returns a strictly increasing insertion stamp so ordering survives
// inserts within the same clock tick.
func (r *SQLRepository) nextSeq() int64 {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	now := time.Now().UnixNano()
	if now <= r.lastSeq {
		now = r.lastSeq + 1
	}
	r.lastSeq = now
	return now
}

type rowScanner interface {
	Scan(dest ...any) error
}

// table maps one entity collection onto a SQL table whose first column is id
// and whose last column is created_at.
type table[T core.Entity] struct {
	r     *SQLRepository
	name  string
	cols  []string
	order string
	args  func(T) ([]any, error)
	scan  func(rowScanner) (T, error)
}

func (t *table[T]) FetchAll(ctx context.Context) ([]T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at %s", strings.Join(t.cols, ", "), t.name, t.order)
	rows, err := t.r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return out, nil
}

// Get loads one record by id, returning core.ErrNotFound when absent.
func (t *table[T]) Get(ctx context.Context, id string) (T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(t.cols, ", "), t.name)
	v, err := t.scan(t.r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", t.name, id, core.ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("get %s: %w", t.name, err)
	}
	return v, nil
}

func (t *table[T]) Upsert(ctx context.Context, v T) error {
	args, err := t.args(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.name, err)
	}
	args = append(args, t.r.nextSeq())
	// created_at keeps its first value so updates do not reorder rows.
	update := t.cols[1 : len(t.cols)-1]
	q := t.r.dialect.upsert(t.name, t.cols, update)
	if _, err := t.r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", t.name, err)
	}
	return nil
}

func (t *table[T]) DeleteByID(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name)
	if _, err := t.r.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	return nil
}

func newInvoiceTable(r *SQLRepository) *table[core.Invoice] {
	return &table[core.Invoice]{
		r:    r,
		name: "invoices",
		cols: []string{
			"id", "invoice_number", "client_name", "client_email", "client_address",
			"invoice_date", "due_date", "items", "notes", "status",
			"subtotal", "tax", "total", "created_at",
		},
		order: "DESC",
		args: func(inv core.Invoice) ([]any, error) {
			items := inv.Items
			if items == nil {
				items = []core.InvoiceItem{}
			}
			b, err := json.Marshal(items)
			if err != nil {
				return nil, err
			}
			return []any{
				inv.ID, inv.InvoiceNumber, inv.ClientName, inv.ClientEmail, inv.ClientAddress,
				inv.Date.String(), inv.DueDate.String(), string(b), inv.Notes, string(inv.Status),
				inv.Subtotal, inv.Tax, inv.Total,
			}, nil
		},
		scan: func(s rowScanner) (core.Invoice, error) {
			var (
				inv           core.Invoice
				date, due     string
				items, status string
				createdAt     int64
			)
			err := s.Scan(
				&inv.ID, &inv.InvoiceNumber, &inv.ClientName, &inv.ClientEmail, &inv.ClientAddress,
				&date, &due, &items, &inv.Notes, &status,
				&inv.Subtotal, &inv.Tax, &inv.Total, &createdAt,
			)
			if err != nil {
				return inv, err
			}
			inv.Status = core.InvoiceStatus(status)
			if inv.Date, err = parseStoredDate(date); err != nil {
				return inv, err
			}
			if inv.DueDate, err = parseStoredDate(due); err != nil {
				return inv, err
			}
			if err := json.Unmarshal([]byte(items), &inv.Items); err != nil {
				return inv, fmt.Errorf("decode items: %w", err)
			}
			return inv, nil
		},
	}
}

func newCustomerTable(r *SQLRepository) *table[core.Customer] {
	return &table[core.Customer]{
		r:     r,
		name:  "customers",
		cols:  []string{"id", "name", "company_name", "email", "phone", "address", "created_at"},
		order: "ASC",
		args: func(c core.Customer) ([]any, error) {
			return []any{c.ID, c.Name, c.CompanyName, c.Email, c.Phone, c.Address}, nil
		},
		scan: func(s rowScanner) (core.Customer, error) {
			var (
				c         core.Customer
				createdAt int64
			)
			err := s.Scan(&c.ID, &c.Name, &c.CompanyName, &c.Email, &c.Phone, &c.Address, &createdAt)
			return c, err
		},
	}
}

func newUserTable(r *SQLRepository) *table[core.User] {
	return &table[core.User]{
		r:     r,
		name:  "users",
		cols:  []string{"id", "name", "email", "role", "created_at"},
		order: "ASC",
		args: func(u core.User) ([]any, error) {
			return []any{u.ID, u.Name, u.Email, string(u.Role)}, nil
		},
		scan: func(s rowScanner) (core.User, error) {
			var (
				u         core.User
				role      string
				createdAt int64
			)
			err := s.Scan(&u.ID, &u.Name, &u.Email, &role, &createdAt)
			u.Role = core.Role(role)
			return u, err
		},
	}
}

type settingsTable struct {
	r *SQLRepository
}

var settingsCols = []string{
	"id", "business_name", "business_subtitle", "address", "email", "phone", "gst_tin", "logo_url",
}

func (s *settingsTable) Fetch(ctx context.Context) (core.Settings, bool, error) {
	var out core.Settings
	var id int
	q := fmt.Sprintf("SELECT %s FROM settings WHERE id = ?", strings.Join(settingsCols, ", "))
	err := s.r.db.QueryRowContext(ctx, q, core.SettingsID).Scan(
		&id, &out.BusinessName, &out.BusinessSubtitle, &out.Address,
		&out.Email, &out.Phone, &out.GstTin, &out.LogoURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, false, nil
	}
	if err != nil {
		return core.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}
	return out, true, nil
}

// Save always writes the row with id core.SettingsID.
func (s *settingsTable) Save(ctx context.Context, v core.Settings) error {
	q := s.r.dialect.upsert("settings", settingsCols, settingsCols[1:])
	_, err := s.r.db.ExecContext(ctx, q,
		core.SettingsID, v.BusinessName, v.BusinessSubtitle, v.Address,
		v.Email, v.Phone, v.GstTin, v.LogoURL,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GetInvoice loads a single invoice by id.
func (r *SQLRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	return r.invoices.Get(ctx, id)
}

func parseStoredDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}
