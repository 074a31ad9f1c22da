// Package postgres is the networked database backend, built on gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"invoicer/internal/core"
	"invoicer/internal/repository"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Repository implements repository.Repository on PostgreSQL.
type Repository struct {
	db *gorm.DB
}

var _ repository.Repository = (*Repository)(nil)

// Options tune the connection.
type Options struct {
	// Debug logs every SQL statement.
	Debug bool
	// Attempts overrides the number of connection attempts.
	Attempts int
}

// ConnectAndMigrate opens dsn, retrying while the server comes up, and
// migrates the schema.
func ConnectAndMigrate(ctx context.Context, dsn string, opts Options) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	logLevel := logger.Silent
	if opts.Debug {
		logLevel = logger.Info
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = connectAttempts
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= attempts; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			err = db.WithContext(ctx).Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}
		slog.WarnContext(ctx, "Retrying database connection", "attempt", i, "dsn", maskDSN(dsn), "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", attempts, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&invoiceRow{}, &invoiceItemRow{}, &customerRow{}, &userRow{}, &settingsRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := widenItemKey(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate invoice_items key: %w", err)
	}
	slog.InfoContext(ctx, "Postgres repository ready", "dsn", maskDSN(dsn))
	return &Repository{db: db}, nil
}

// widenItemKey moves invoice_items created with a single-column key onto
// (invoice_id, id). AutoMigrate never rewrites an existing primary key.
func widenItemKey(ctx context.Context, db *gorm.DB) error {
	var keyCols int64
	err := db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM information_schema.key_column_usage k
		JOIN information_schema.table_constraints c
		  ON c.constraint_name = k.constraint_name AND c.table_name = k.table_name
		WHERE c.table_name = 'invoice_items' AND c.constraint_type = 'PRIMARY KEY'
		  AND c.table_schema = current_schema()`).Scan(&keyCols).Error
	if err != nil || keyCols != 1 {
		return err
	}
	slog.InfoContext(ctx, "Widening invoice_items primary key to (invoice_id, id)")
	return db.WithContext(ctx).Exec(`
		ALTER TABLE invoice_items
		  DROP CONSTRAINT invoice_items_pkey,
		  ADD PRIMARY KEY (invoice_id, id)`).Error
}

func (r *Repository) Invoices() repository.Collection[core.Invoice] { return invoices{db: r.db} }

func (r *Repository) Customers() repository.Collection[core.Customer] { return customers{db: r.db} }

func (r *Repository) Users() repository.Collection[core.User] { return users{db: r.db} }

func (r *Repository) Settings() repository.SettingsStore { return settings{db: r.db} }

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type invoices struct{ db *gorm.DB }

func (c invoices) FetchAll(ctx context.Context) ([]core.Invoice, error) {
	var rows []invoiceRow
	err := c.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]core.Invoice, len(rows))
	for i, row := range rows {
		out[i] = row.toCore()
	}
	return out, nil
}

// Upsert replaces the invoice row and all of its items in one transaction.
func (c invoices) Upsert(ctx context.Context, inv core.Invoice) error {
	row := toInvoiceRow(inv)
	items := row.Items
	row.Items = nil
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"invoice_number", "client_name", "client_email", "client_address",
				"date", "due_date", "notes", "status", "subtotal", "tax", "total", "updated_at",
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&invoiceItemRow{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

func (c invoices) DeleteByID(ctx context.Context, id string) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&invoiceItemRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&invoiceRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

// GetInvoice loads one invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	var row invoiceRow
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Invoice{}, fmt.Errorf("invoice %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	return row.toCore(), nil
}

type customers struct{ db *gorm.DB }

func (c customers) FetchAll(ctx context.Context) ([]core.Customer, error) {
	var rows []customerRow
	if err := c.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]core.Customer, len(rows))
	for i, row := range rows {
		out[i] = row.toCore()
	}
	return out, nil
}

func (c customers) Upsert(ctx context.Context, v core.Customer) error {
	row := toCustomerRow(v)
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "company_name", "email", "phone", "address", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (c customers) DeleteByID(ctx context.Context, id string) error {
	if err := c.db.WithContext(ctx).Where("id = ?", id).Delete(&customerRow{}).Error; err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

type users struct{ db *gorm.DB }

func (c users) FetchAll(ctx context.Context) ([]core.User, error) {
	var rows []userRow
	if err := c.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]core.User, len(rows))
	for i, row := range rows {
		out[i] = row.toCore()
	}
	return out, nil
}

func (c users) Upsert(ctx context.Context, v core.User) error {
	row := toUserRow(v)
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (c users) DeleteByID(ctx context.Context, id string) error {
	if err := c.db.WithContext(ctx).Where("id = ?", id).Delete(&userRow{}).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

type settings struct{ db *gorm.DB }

func (s settings) Fetch(ctx context.Context) (core.Settings, bool, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Where("id = ?", core.SettingsID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Settings{}, false, nil
	}
	if err != nil {
		return core.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}
	return row.toCore(), true, nil
}

func (s settings) Save(ctx context.Context, v core.Settings) error {
	row := toSettingsRow(v)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

var passwordRe = regexp.MustCompile(`(password=)([^\s]+)|(://[^:/@]+:)([^@]+)(@)`)

// maskDSN hides passwords in key/value and URL style DSNs.
func maskDSN(dsn string) string {
	return passwordRe.ReplaceAllStringFunc(dsn, func(m string) string {
		sub := passwordRe.FindStringSubmatch(m)
		if sub[1] != "" {
			return sub[1] + "***"
		}
		return sub[3] + "***" + sub[5]
	})
}
