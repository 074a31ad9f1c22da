package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusDraft   InvoiceStatus = "Draft"
	StatusPending InvoiceStatus = "Pending"
	StatusPaid    InvoiceStatus = "Paid"
	StatusOverdue InvoiceStatus = "Overdue"
)

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// SettingsID is the fixed identity of the Settings singleton in every backend.
const SettingsID = 1

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type (
	InvoiceStatus string

	Role string

	// Date is a calendar date without time of day, always in UTC.
	Date struct {
		time.Time
	}

	InvoiceItem struct {
		ID          string          `json:"id" validate:"required"`
		Description string          `json:"description" validate:"max=500"`
		Quantity    decimal.Decimal `json:"quantity"`
		Rate        decimal.Decimal `json:"rate"`
	}

	Invoice struct {
		ID            string          `json:"id" validate:"required"`
		InvoiceNumber string          `json:"invoiceNumber" validate:"required,max=50"`
		ClientName    string          `json:"clientName" validate:"required,max=200"`
		ClientEmail   string          `json:"clientEmail" validate:"omitempty,email"`
		ClientAddress string          `json:"clientAddress,omitempty"`
		Date          Date            `json:"date"`
		DueDate       Date            `json:"dueDate"`
		Items         []InvoiceItem   `json:"items" validate:"dive"`
		Notes         string          `json:"notes,omitempty"`
		Status        InvoiceStatus   `json:"status" validate:"required,invoice_status"`
		Subtotal      decimal.Decimal `json:"subtotal"`
		Tax           decimal.Decimal `json:"tax"`
		Total         decimal.Decimal `json:"total"`
	}

	Customer struct {
		ID          string `json:"id" validate:"required"`
		Name        string `json:"name" validate:"required,max=200"`
		CompanyName string `json:"companyName" validate:"max=200"`
		Email       string `json:"email" validate:"omitempty,email"`
		Phone       string `json:"phone" validate:"max=50"`
		Address     string `json:"address"`
	}

	User struct {
		ID    string `json:"id" validate:"required"`
		Name  string `json:"name" validate:"required,max=200"`
		Email string `json:"email" validate:"required,email"`
		Role  Role   `json:"role" validate:"required,user_role"`
	}

	Settings struct {
		BusinessName     string `json:"businessName" validate:"required,max=200"`
		BusinessSubtitle string `json:"businessSubtitle"`
		Address          string `json:"address"`
		Email            string `json:"email" validate:"omitempty,email"`
		Phone            string `json:"phone"`
		GstTin           string `json:"gstTin"`
		LogoURL          string `json:"logoUrl,omitempty" validate:"omitempty,url"`
	}

	// Entity is implemented by every record kept in a keyed collection.
	Entity interface {
		Invoice | Customer | User
		EntityID() string
	}
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidStatus = errors.New("invalid invoice status")
	ErrInvalidRole   = errors.New("invalid user role")
)

// InvoiceStatuses returns every status in display order.
func InvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{StatusDraft, StatusPending, StatusPaid, StatusOverdue}
}

func (s InvoiceStatus) IsValid() bool {
	return slices.Contains(InvoiceStatuses(), s)
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(s string) (InvoiceStatus, error) {
	for _, st := range InvoiceStatuses() {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY-MM-DD, a full RFC 3339 timestamp, or an empty string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (inv Invoice) EntityID() string { return inv.ID }

func (c Customer) EntityID() string { return c.ID }

func (u User) EntityID() string { return u.ID }

// Clone returns a copy whose Items slice is not shared with inv.
func (inv Invoice) Clone() Invoice {
	inv.Items = slices.Clone(inv.Items)
	return inv
}

// DisplayName is the client label used when a customer is picked for an invoice.
func (c Customer) DisplayName() string {
	if strings.TrimSpace(c.CompanyName) != "" {
		return fmt.Sprintf("%s (%s)", c.CompanyName, c.Name)
	}
	return c.Name
}

// DefaultSettings is used until a Settings record has been saved.
func DefaultSettings() Settings {
	return Settings{
		BusinessName: "My Business",
	}
}
