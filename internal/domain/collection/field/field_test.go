package field

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	tests := []struct {
		name string
		role Role
		max  int
	}{
		{"source_id", Identity, 200},
		{"title", Source, 500},
		{"title_description", Derived, 2500},
		{strings.Repeat("x", 64), Source, 0},
	}

	for _, tt := range tests {
		f, err := New(tt.name, tt.role, tt.max)
		if err != nil {
			t.Errorf("New(%q, %q) unexpected error: %v", tt.name, tt.role, err)
			continue
		}
		if f.Name() != tt.name {
			t.Errorf("Name() = %q, want %q", f.Name(), tt.name)
		}
		if f.Role() != tt.role {
			t.Errorf("Role() = %q, want %q", f.Role(), tt.role)
		}
		if f.MaxLength() != tt.max {
			t.Errorf("MaxLength() = %d, want %d", f.MaxLength(), tt.max)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		role Role
	}{
		{"", Source},
		{strings.Repeat("x", 65), Source},
		{"embedding", Source},
		{"id", Identity},
		{"title", Role("vector")},
	}

	for _, tt := range tests {
		if _, err := New(tt.name, tt.role, 10); err == nil {
			t.Errorf("New(%q, %q) expected error", tt.name, tt.role)
		}
	}
}

func TestFits(t *testing.T) {
	f := MustNew("title", Source, 3)
	if !f.Fits("abc") {
		t.Error("expected 3 chars to fit")
	}
	if f.Fits("abcd") {
		t.Error("expected 4 chars not to fit")
	}
	// runes, not bytes
	if !f.Fits("日本語") {
		t.Error("expected 3 runes to fit")
	}

	unbounded := MustNew("text", Source, 0)
	if !unbounded.Fits(strings.Repeat("a", 100000)) {
		t.Error("expected unbounded field to fit anything")
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustNew("", Source, 0)
}
