package types_test

import (
	"encoding/json"
	"testing"

	"github.com/splitpot/revenue/types"
)

func TestParseUSD(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"whole dollars", "25", 2500, false},
		{"one fractional digit", "25.5", 2550, false},
		{"two fractional digits", "25.55", 2555, false},
		{"zero", "0", 0, false},
		{"negative", "-3.07", -307, false},
		{"explicit plus", "+1.25", 125, false},
		{"bare fraction", ".5", 50, false},
		{"sub-cent precision", "1.005", 0, true},
		{"empty", "", 0, true},
		{"not a number", "abc", 0, true},
		{"lone dot", ".", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseUSD(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseUSD(%q) succeeded with %v, want error", tt.input, got)
				}

				return
			}
			if err != nil {
				t.Fatalf("ParseUSD(%q) error: %v", tt.input, err)
			}
			if got.Cents() != tt.want {
				t.Errorf("ParseUSD(%q) = %d cents, want %d", tt.input, got.Cents(), tt.want)
			}
		})
	}
}

func TestFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		want    int64
		wantErr bool
	}{
		{"whole", 25, 2500, false},
		{"half dollar", 25.5, 2550, false},
		{"binary-awkward cent", 10.1, 1010, false},
		{"negative", -3.07, -307, false},
		{"sub-cent", 1.005, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.FromFloat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FromFloat(%v) succeeded with %v, want error", tt.input, got)
				}

				return
			}
			if err != nil {
				t.Fatalf("FromFloat(%v) error: %v", tt.input, err)
			}
			if got.Cents() != tt.want {
				t.Errorf("FromFloat(%v) = %d cents, want %d", tt.input, got.Cents(), tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := types.Cents(2500)
	b := types.Cents(1000)

	if got := a.Add(b); got.Cents() != 3500 {
		t.Errorf("Add = %d, want 3500", got.Cents())
	}
	if got := b.Sub(a); got.Cents() != -1500 {
		t.Errorf("Sub = %d, want -1500", got.Cents())
	}
	if !b.Sub(a).IsNegative() {
		t.Error("negative result not reported as negative")
	}
	if !types.Dollars(3).IsPositive() {
		t.Error("positive amount not reported as positive")
	}
	if !types.Cents(0).IsZero() {
		t.Error("zero not reported as zero")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{2550, "25.50"},
		{2500, "25.00"},
		{-307, "-3.07"},
		{5, "0.05"},
		{0, "0.00"},
	}

	for _, tt := range tests {
		if got := types.Cents(tt.cents).String(); got != tt.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestJSONEncoding(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  string
	}{
		{"whole amount encodes as integer", 2500, "25"},
		{"half dollar trims trailing zero", 2550, "25.5"},
		{"odd cents keep both digits", 2555, "25.55"},
		{"negative", -307, "-3.07"},
		{"zero", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(types.Cents(tt.cents))
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal(%d cents) = %s, want %s", tt.cents, data, tt.want)
			}

			var back types.Money
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", data, err)
			}
			if back.Cents() != tt.cents {
				t.Errorf("round trip = %d cents, want %d", back.Cents(), tt.cents)
			}
		})
	}
}

func TestJSONDecodeString(t *testing.T) {
	var m types.Money
	if err := json.Unmarshal([]byte(`"12.34"`), &m); err != nil {
		t.Fatalf("Unmarshal quoted error: %v", err)
	}
	if m.Cents() != 1234 {
		t.Errorf("quoted decode = %d cents, want 1234", m.Cents())
	}

	if err := json.Unmarshal([]byte(`"1.999"`), &m); err == nil {
		t.Error("sub-cent precision accepted")
	}
}

func TestScan(t *testing.T) {
	var m types.Money
	if err := m.Scan(int64(1234)); err != nil {
		t.Fatalf("Scan(int64) error: %v", err)
	}
	if m.Cents() != 1234 {
		t.Errorf("Scan(int64) = %d, want 1234", m.Cents())
	}

	if err := m.Scan([]byte("5600")); err != nil {
		t.Fatalf("Scan([]byte) error: %v", err)
	}
	if m.Cents() != 5600 {
		t.Errorf("Scan([]byte) = %d, want 5600", m.Cents())
	}

	if err := m.Scan("oops"); err == nil {
		t.Error("Scan(string) succeeded, want error")
	}
}
