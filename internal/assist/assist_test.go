package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/api/generativelanguage/v1beta"

	"invoicer/internal/core"
)

type fakeGenerator struct {
	text    string
	err     error
	calls   int
	prompts []string
	json    []bool
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, jsonOutput bool) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.json = append(f.json, jsonOutput)
	return f.text, f.err
}

func TestSuggestItems(t *testing.T) {
	gen := &fakeGenerator{text: `[{"description":"Photo shoot","quantity":2,"rate":4500},{"description":"Editing","quantity":"1","rate":3000}]`}
	c := New(gen)

	items := c.SuggestItems(context.Background(), "Studio", "wedding shoot")
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID == "" || items[0].ID == items[1].ID {
		t.Fatalf("items need distinct ids: %+v", items)
	}
	if !items[0].Quantity.Equal(decimal.NewFromInt(2)) || !items[1].Rate.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("unexpected amounts: %+v", items)
	}
	if !gen.json[0] {
		t.Error("expected JSON output to be requested")
	}
	if !strings.Contains(gen.prompts[0], "wedding shoot") || !strings.Contains(gen.prompts[0], "Studio") {
		t.Errorf("prompt missing inputs: %q", gen.prompts[0])
	}
}

func TestSuggestItems_CachesByPrompt(t *testing.T) {
	gen := &fakeGenerator{text: `[{"description":"Design","quantity":1,"rate":100}]`}
	c := New(gen)

	first := c.SuggestItems(context.Background(), "Studio", "logo design")
	second := c.SuggestItems(context.Background(), "Studio", "Logo Design")
	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls)
	}
	if first[0].ID == second[0].ID {
		t.Error("cached items should get fresh ids")
	}
}

func TestSuggestItems_Degrades(t *testing.T) {
	tests := []struct {
		name        string
		client      *Client
		description string
	}{
		{"disabled", New(nil), "anything"},
		{"blank description", New(&fakeGenerator{text: "[]"}), "   "},
		{"generator error", New(&fakeGenerator{err: errors.New("quota")}), "anything"},
		{"bad json", New(&fakeGenerator{text: "not json"}), "anything"},
		{"empty array", New(&fakeGenerator{text: "[]"}), "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := tt.client.SuggestItems(context.Background(), "Studio", tt.description)
			if items == nil || len(items) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", items)
			}
		})
	}
}

func TestEmailDraft(t *testing.T) {
	inv := core.Invoice{InvoiceNumber: "INV-2024-001", ClientName: "Acme", Total: decimal.RequireFromString("12960")}

	t.Run("disabled", func(t *testing.T) {
		if got := New(nil).EmailDraft(context.Background(), inv, "Studio"); got != "" {
			t.Fatalf("got %q, want empty", got)
		}
	})
	t.Run("failure falls back", func(t *testing.T) {
		c := New(&fakeGenerator{err: errors.New("boom")})
		if got := c.EmailDraft(context.Background(), inv, "Studio"); got != FallbackEmail {
			t.Fatalf("got %q, want fallback", got)
		}
	})
	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{text: "  Dear Acme, ...  "}
		got := New(gen).EmailDraft(context.Background(), inv, "Studio")
		if got != "Dear Acme, ..." {
			t.Fatalf("got %q", got)
		}
		if gen.json[0] {
			t.Error("email should request prose")
		}
		if !strings.Contains(gen.prompts[0], "INV-2024-001") || !strings.Contains(gen.prompts[0], "12960.00") {
			t.Errorf("prompt missing invoice data: %q", gen.prompts[0])
		}
	})
}

func TestParseItems(t *testing.T) {
	items, err := parseItems("```json\n[{\"description\":\" Shoot \",\"quantity\":-1,\"rate\":10},{\"description\":\"\",\"quantity\":1,\"rate\":1}]\n```")
	if err != nil {
		t.Fatalf("parseItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Description != "Shoot" || !items[0].Quantity.IsZero() {
		t.Errorf("unexpected item: %+v", items[0])
	}

	if _, err := parseItems(""); !errors.Is(err, errNoItems) {
		t.Errorf("empty text: got %v", err)
	}
}

func TestNewFromKey_NoKeyDisabled(t *testing.T) {
	c, err := NewFromKey(context.Background(), "", "")
	if err != nil {
		t.Fatalf("NewFromKey: %v", err)
	}
	if c.Enabled() {
		t.Fatal("client without key should be disabled")
	}
}

func TestResponseText(t *testing.T) {
	resp := &generativelanguage.GenerateContentResponse{
		Candidates: []*generativelanguage.Candidate{
			{Content: &generativelanguage.Content{}},
			{Content: &generativelanguage.Content{Parts: []*generativelanguage.Part{{Text: "a"}, {Text: "b"}}}},
		},
	}
	got, err := responseText(resp)
	if err != nil || got != "ab" {
		t.Fatalf("responseText = %q, %v", got, err)
	}
	if _, err := responseText(&generativelanguage.GenerateContentResponse{}); !errors.Is(err, errEmptyResponse) {
		t.Fatalf("expected errEmptyResponse, got %v", err)
	}
}
