package validation

import (
	"strings"
	"testing"
)

func TestNewShareCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code, err := NewShareCode()
		if err != nil {
			t.Fatalf("NewShareCode error: %v", err)
		}
		if !IsValidShareCode(code) {
			t.Fatalf("generated code %q is not valid", code)
		}
		seen[code] = true
	}

	// Сто подряд одинаковых кодов — признак сломанного генератора.
	if len(seen) < 2 {
		t.Fatalf("generator produced identical codes")
	}
}

func TestIsValidShareCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid upper alnum", "ABCD1234", true},
		{"too short", "ABC123", false},
		{"too long", "ABCD12345", false},
		{"lowercase", "abcd1234", false},
		{"punctuation", "ABCD12-4", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidShareCode(tt.code); got != tt.want {
				t.Fatalf("IsValidShareCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestNewOrderNo(t *testing.T) {
	no, err := NewOrderNo()
	if err != nil {
		t.Fatalf("NewOrderNo error: %v", err)
	}

	if !strings.HasPrefix(no, "ORD") {
		t.Fatalf("order number %q must start with ORD", no)
	}
	if len(no) < len("ORD")+13+6 {
		t.Fatalf("order number %q is too short", no)
	}

	other, err := NewOrderNo()
	if err != nil {
		t.Fatalf("NewOrderNo error: %v", err)
	}
	if no == other {
		t.Fatalf("two generated order numbers collided: %q", no)
	}
}
