package core

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Violations maps a JSON field path to the rule it broke.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Error lists violations in a stable order.
func (v Violations) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("invoice_status", func(fl validator.FieldLevel) bool {
			return InvoiceStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
			return Role(fl.Field().String()).IsValid()
		})
		validate = v
	})
	return validate
}

// check runs struct tag validation and converts the result to Violations.
func check(s any) Violations {
	out := Violations{}
	err := validatorInstance().Struct(s)
	if err == nil {
		return out
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ves {
		out[fieldPath(fe.Namespace())] = fe.Tag()
	}
	return out
}

// fieldPath strips the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Validate checks an invoice before it crosses into the store.
// Items must have distinct ids and non-negative quantity and rate, and the
// due date may not precede the invoice date.
func (inv Invoice) Validate() error {
	v := check(inv)
	if inv.Date.IsZero() {
		v["date"] = "required"
	}
	if inv.DueDate.IsZero() {
		v["dueDate"] = "required"
	} else if !inv.Date.IsZero() && inv.DueDate.Before(inv.Date.Time) {
		v["dueDate"] = "gtefield"
	}
	seen := make(map[string]bool, len(inv.Items))
	for i, it := range inv.Items {
		if it.ID != "" && seen[it.ID] {
			v[fmt.Sprintf("items[%d].id", i)] = "unique"
		}
		seen[it.ID] = true
		if it.Quantity.IsNegative() {
			v[fmt.Sprintf("items[%d].quantity", i)] = "min"
		}
		if it.Rate.IsNegative() {
			v[fmt.Sprintf("items[%d].rate", i)] = "min"
		}
	}
	if v.Empty() {
		return nil
	}
	return v
}

func (c Customer) Validate() error {
	if v := check(c); !v.Empty() {
		return v
	}
	return nil
}

func (u User) Validate() error {
	if v := check(u); !v.Empty() {
		return v
	}
	return nil
}

func (s Settings) Validate() error {
	if v := check(s); !v.Empty() {
		return v
	}
	return nil
}
