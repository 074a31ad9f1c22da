package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"invoicer/internal/core"
)

var errNoItems = errors.New("no items in response")

type suggestedItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// parseItems reads the model's JSON array. Markdown code fences around the
// array are tolerated. Negative numbers are clamped to zero.
func parseItems(text string) ([]core.InvoiceItem, error) {
	text = stripFence(text)
	if text == "" {
		return nil, errNoItems
	}

	var raw []suggestedItem
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	items := make([]core.InvoiceItem, 0, len(raw))
	for _, r := range raw {
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			continue
		}
		items = append(items, core.InvoiceItem{
			Description: desc,
			Quantity:    decimal.Max(r.Quantity, decimal.Zero),
			Rate:        decimal.Max(r.Rate, decimal.Zero),
		})
	}
	if len(items) == 0 {
		return nil, errNoItems
	}
	return items, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
