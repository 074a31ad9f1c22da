package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

type invoiceRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	InvoiceNumber string `gorm:"size:50;not null"`
	ClientName    string `gorm:"size:200;not null"`
	ClientEmail   string `gorm:"size:255"`
	ClientAddress string
	Date          time.Time        `gorm:"type:date;index"`
	DueDate       time.Time        `gorm:"type:date"`
	Items         []invoiceItemRow `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Notes         string
	Status        string          `gorm:"size:16;not null;default:Draft"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Tax           decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Total         decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	CreatedAt     time.Time       `gorm:"index"`
	UpdatedAt     time.Time
}

func (invoiceRow) TableName() string { return "invoices" }

// Item ids are only unique within their invoice.
type invoiceItemRow struct {
	InvoiceID   string          `gorm:"primaryKey;size:64"`
	ID          string          `gorm:"primaryKey;size:64"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"size:500"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Rate        decimal.Decimal `gorm:"type:numeric(18,4);not null"`
}

func (invoiceItemRow) TableName() string { return "invoice_items" }

type customerRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:200;not null"`
	CompanyName string `gorm:"size:200"`
	Email       string `gorm:"size:255"`
	Phone       string `gorm:"size:50"`
	Address     string
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (customerRow) TableName() string { return "customers" }

type userRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:200;not null"`
	Email     string    `gorm:"size:255;not null"`
	Role      string    `gorm:"size:16;not null;default:Viewer"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type settingsRow struct {
	ID               int    `gorm:"primaryKey;autoIncrement:false"`
	BusinessName     string `gorm:"size:200;not null"`
	BusinessSubtitle string `gorm:"size:200"`
	Address          string
	Email            string `gorm:"size:255"`
	Phone            string `gorm:"size:50"`
	GstTin           string `gorm:"size:50"`
	LogoURL          string
	UpdatedAt        time.Time
}

func (settingsRow) TableName() string { return "settings" }

func toInvoiceRow(inv core.Invoice) invoiceRow {
	row := invoiceRow{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		ClientAddress: inv.ClientAddress,
		Date:          inv.Date.Time,
		DueDate:       inv.DueDate.Time,
		Notes:         inv.Notes,
		Status:        string(inv.Status),
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
	}
	for i, it := range inv.Items {
		row.Items = append(row.Items, invoiceItemRow{
			ID:          it.ID,
			InvoiceID:   inv.ID,
			Position:    i,
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		})
	}
	return row
}

func (r invoiceRow) toCore() core.Invoice {
	inv := core.Invoice{
		ID:            r.ID,
		InvoiceNumber: r.InvoiceNumber,
		ClientName:    r.ClientName,
		ClientEmail:   r.ClientEmail,
		ClientAddress: r.ClientAddress,
		Date:          core.DateOf(r.Date),
		DueDate:       core.DateOf(r.DueDate),
		Items:         make([]core.InvoiceItem, 0, len(r.Items)),
		Notes:         r.Notes,
		Status:        core.InvoiceStatus(r.Status),
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Total:         r.Total,
	}
	for _, it := range r.Items {
		inv.Items = append(inv.Items, core.InvoiceItem{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		})
	}
	return inv
}

func toCustomerRow(c core.Customer) customerRow {
	return customerRow{ID: c.ID, Name: c.Name, CompanyName: c.CompanyName, Email: c.Email, Phone: c.Phone, Address: c.Address}
}

func (r customerRow) toCore() core.Customer {
	return core.Customer{ID: r.ID, Name: r.Name, CompanyName: r.CompanyName, Email: r.Email, Phone: r.Phone, Address: r.Address}
}

func toUserRow(u core.User) userRow {
	return userRow{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

func (r userRow) toCore() core.User {
	return core.User{ID: r.ID, Name: r.Name, Email: r.Email, Role: core.Role(r.Role)}
}

func toSettingsRow(s core.Settings) settingsRow {
	return settingsRow{
		ID:               core.SettingsID,
		BusinessName:     s.BusinessName,
		BusinessSubtitle: s.BusinessSubtitle,
		Address:          s.Address,
		Email:            s.Email,
		Phone:            s.Phone,
		GstTin:           s.GstTin,
		LogoURL:          s.LogoURL,
	}
}

func (r settingsRow) toCore() core.Settings {
	return core.Settings{
		BusinessName:     r.BusinessName,
		BusinessSubtitle: r.BusinessSubtitle,
		Address:          r.Address,
		Email:            r.Email,
		Phone:            r.Phone,
		GstTin:           r.GstTin,
		LogoURL:          r.LogoURL,
	}
}
