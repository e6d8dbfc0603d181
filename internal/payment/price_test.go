package payment

import (
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0.001", want: "$0.001"},
		{in: "$1.00", want: "$1"},
		{in: " $2.5 ", want: "$2.5"},
		{in: "", wantErr: true},
		{in: "$", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			p, err := ParsePrice(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPrice) {
					t.Fatalf("expected ErrInvalidPrice, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.in, err)
			}
			if p.String() != tt.want {
				t.Fatalf("want %s, got %s", tt.want, p.String())
			}
		})
	}
}

func TestPrice_AtomicAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price   string
		want    string
		wantErr bool
	}{
		{price: "0.001", want: "1000"},
		{price: "1.00", want: "1000000"},
		{price: "0.000001", want: "1"},
		{price: "0.0000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			t.Parallel()

			got, err := MustPrice(tt.price).AtomicAmount(usdcDecimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected precision error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("atomic amount: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPrice_UnitsOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total, unit string
		want        int64
	}{
		{total: "1.00", unit: "0.001", want: 1000},
		{total: "1.00", unit: "0.3", want: 3},
		{total: "0.001", unit: "1.00", want: 0},
		{total: "5", unit: "5", want: 1},
	}

	for _, tt := range tests {
		got := MustPrice(tt.total).UnitsOf(MustPrice(tt.unit))
		if got != tt.want {
			t.Fatalf("%s / %s: want %d, got %d", tt.total, tt.unit, tt.want, got)
		}
	}

	if got := MustPrice("1").UnitsOf(Price{}); got != 0 {
		t.Fatalf("zero unit should yield 0, got %d", got)
	}
}

func TestPrice_UnmarshalText(t *testing.T) {
	t.Parallel()

	var p Price
	err := p.UnmarshalText([]byte("$0.25"))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.String() != "$0.25" {
		t.Fatalf("got %s", p.String())
	}

	err = p.UnmarshalText([]byte("free"))
	if err == nil {
		t.Fatal("expected error")
	}
	if p.String() != "$0.25" {
		t.Fatalf("failed unmarshal must not clobber value, got %s", p.String())
	}
}
