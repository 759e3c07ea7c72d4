package list

import (
	"errors"
	"strings"
	"testing"

	"github.com/erazemk/gimmie/internal/model"
)

func mustCost(t *testing.T, s string) model.Cost {
	t.Helper()
	c, err := model.ParseCost(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNormalizeDefaults(t *testing.T) {
	f, err := Fields{Name: "  Bike\x00 "}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if f.Name != "Bike" {
		t.Errorf("name = %q, want Bike", f.Name)
	}
	if f.Type != model.CategoryWant {
		t.Errorf("type = %q, want want", f.Type)
	}
	if f.AddedBy != model.UnknownMember {
		t.Errorf("added_by = %q, want Unknown", f.AddedBy)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    Fields
		field string
	}{
		{"empty name", Fields{Name: "   "}, "name"},
		{"symbols only", Fields{Name: "!!!"}, "name"},
		{"long name", Fields{Name: strings.Repeat("a", 256)}, "name"},
		{"negative cost", Fields{Name: "x", Cost: mustCost(t, "-1")}, "cost"},
		{"huge cost", Fields{Name: "x", Cost: mustCost(t, "1000000.01")}, "cost"},
		{"three decimals", Fields{Name: "x", Cost: mustCost(t, "1.005")}, "cost"},
		{"bad scheme", Fields{Name: "x", Link: "javascript://alert(1)"}, "link"},
		{"bad host", Fields{Name: "x", Link: "https://exa mple.com"}, "link"},
		{"long link", Fields{Name: "x", Link: "https://example.com/" + strings.Repeat("a", 2000)}, "link"},
		{"bad type", Fields{Name: "x", Type: "maybe"}, "type"},
		{"long member", Fields{Name: "x", AddedBy: strings.Repeat("b", 101)}, "added_by"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Normalize()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestNormalizeLink(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"example.com/bike", "https://example.com/bike"},
		{" http://shop.example.com:8080/x ", "http://shop.example.com:8080/x"},
		{"ftp://files.example.com/a", "ftp://files.example.com/a"},
	}
	for _, tt := range tests {
		got, err := normalizeLink(tt.in)
		if err != nil {
			t.Errorf("normalizeLink(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAcceptsCostBounds(t *testing.T) {
	for _, s := range []string{"0", "12.5", "29.99", "1000000"} {
		if _, err := (Fields{Name: "x", Cost: mustCost(t, s)}).Normalize(); err != nil {
			t.Errorf("cost %s: %v", s, err)
		}
	}
}

func TestPatchApply(t *testing.T) {
	item := &model.Item{
		Name:    "Bike",
		Cost:    mustCost(t, "100"),
		Link:    "https://example.com",
		Type:    model.CategoryWant,
		AddedBy: "Ana",
	}

	name := " Road bike "
	need := model.CategoryNeed
	empty := ""
	cleared := model.Cost{}
	p := Patch{Name: &name, Type: &need, Link: &empty, Cost: &cleared}
	if err := p.apply(item); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if item.Name != "Road bike" || item.Type != model.CategoryNeed || item.Link != "" || item.Cost.Valid {
		t.Errorf("unexpected item after patch: %+v", item)
	}
	if item.AddedBy != "Ana" {
		t.Errorf("added_by changed to %q", item.AddedBy)
	}

	blank := ""
	if err := (Patch{Name: &blank}).apply(item); err == nil {
		t.Error("expected error for blank name")
	}
	if item.Name != "Road bike" {
		t.Errorf("failed patch modified item: %q", item.Name)
	}
}
