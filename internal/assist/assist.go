// Package assist drafts invoice line items and cover emails with a
// generative text model. Every call degrades to an empty or fixed result
// when the model is unavailable; callers never see an error.
package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"invoicer/internal/cache"
	"invoicer/internal/core"
)

// FallbackEmail is returned when drafting an email fails.
const FallbackEmail = "Please find attached the invoice."

const (
	suggestionCacheSize = 100
	suggestionCacheTTL  = time.Hour
	requestTimeout      = 30 * time.Second
)

// Generator produces text for a prompt. When jsonOutput is set the model is
// asked for a JSON document instead of prose.
type Generator interface {
	Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

type Client struct {
	gen         Generator
	suggestions *cache.LRUCache[[]core.InvoiceItem]
}

// New wraps gen. A nil gen yields a client that is permanently disabled.
func New(gen Generator) *Client {
	return &Client{
		gen:         gen,
		suggestions: cache.NewLRUCache[[]core.InvoiceItem](suggestionCacheSize, suggestionCacheTTL),
	}
}

// Enabled reports whether a model is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.gen != nil
}

// Cache exposes the suggestion cache for periodic cleanup.
func (c *Client) Cache() cache.Cleaner {
	return c.suggestions
}

// SuggestItems turns a rough description of work into line items with
// fresh ids. It returns an empty slice when the description is blank, the
// client is disabled, or the model fails.
func (c *Client) SuggestItems(ctx context.Context, businessName, description string) []core.InvoiceItem {
	description = strings.TrimSpace(description)
	if description == "" || !c.Enabled() {
		return []core.InvoiceItem{}
	}

	key := strings.ToLower(businessName + "\x00" + description)
	if items, ok := c.suggestions.Get(key); ok {
		return withFreshIDs(items)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	text, err := c.gen.Generate(ctx, suggestPrompt(businessName, description), true)
	if err != nil {
		slog.WarnContext(ctx, "Item suggestion failed", "error", err)
		return []core.InvoiceItem{}
	}
	items, err := parseItems(text)
	if err != nil {
		slog.WarnContext(ctx, "Item suggestion unreadable", "error", err)
		return []core.InvoiceItem{}
	}

	c.suggestions.Set(key, items)
	return withFreshIDs(items)
}

// EmailDraft writes a short cover email for inv. It returns "" when the
// client is disabled and FallbackEmail when the model fails.
func (c *Client) EmailDraft(ctx context.Context, inv core.Invoice, businessName string) string {
	if !c.Enabled() {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	text, err := c.gen.Generate(ctx, emailPrompt(inv, businessName), false)
	if err != nil {
		slog.WarnContext(ctx, "Email draft failed", "invoice_id", inv.ID, "error", err)
		return FallbackEmail
	}
	return strings.TrimSpace(text)
}

func suggestPrompt(businessName, description string) string {
	return fmt.Sprintf(`Create a list of professional invoice line items for a business called %q based on this rough description: %q.
Assume reasonable market rates if none are given.
Answer with a JSON array of objects with the fields "description" (string), "quantity" (number) and "rate" (number).`,
		businessName, description)
}

func emailPrompt(inv core.Invoice, businessName string) string {
	return fmt.Sprintf(`Write a polite, professional email to send invoice #%s to %s.
The total is %s, due on %s.
The business is %s.
Keep it brief and friendly.`,
		inv.InvoiceNumber, inv.ClientName, core.FormatAmount(inv.Total), inv.DueDate.String(), businessName)
}

func withFreshIDs(items []core.InvoiceItem) []core.InvoiceItem {
	out := make([]core.InvoiceItem, len(items))
	for i, it := range items {
		it.ID = core.NewID()
		out[i] = it
	}
	return out
}
