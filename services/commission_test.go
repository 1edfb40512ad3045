package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCommissionEngine_Calculate(t *testing.T) {
	engine, err := NewCommissionEngine(0.10, 0.20)
	if err != nil {
		t.Fatalf("NewCommissionEngine: %v", err)
	}

	tests := []struct {
		name           string
		amount         float64
		premium        bool
		wantCommission float64
		wantEarning    float64
		wantRate       float64
	}{
		{"standard 1000", 1000, false, 200, 800, 0.20},
		{"premium 1000", 1000, true, 100, 900, 0.10},
		{"standard odd cents", 333.33, false, 66.67, 266.66, 0.20},
		{"premium odd cents", 99.99, true, 10, 89.99, 0.10},
		{"zero", 0, false, 0, 0, 0.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := engine.Calculate(tt.amount, tt.premium)
			if s.PlatformCommission != tt.wantCommission {
				t.Errorf("commission: got %v, want %v", s.PlatformCommission, tt.wantCommission)
			}
			if s.PartnerEarning != tt.wantEarning {
				t.Errorf("earning: got %v, want %v", s.PartnerEarning, tt.wantEarning)
			}
			if s.Rate != tt.wantRate {
				t.Errorf("rate: got %v, want %v", s.Rate, tt.wantRate)
			}
			sum := decimal.NewFromFloat(s.PlatformCommission).Add(decimal.NewFromFloat(s.PartnerEarning))
			if !sum.Equal(decimal.NewFromFloat(tt.amount).Round(2)) {
				t.Errorf("commission + earning = %s, want %v", sum, tt.amount)
			}
		})
	}
}

func TestNewCommissionEngine_RejectsBadRates(t *testing.T) {
	if _, err := NewCommissionEngine(-0.1, 0.2); err == nil {
		t.Fatal("negative rate accepted")
	}
	if _, err := NewCommissionEngine(0.1, 1.5); err == nil {
		t.Fatal("rate above 1 accepted")
	}
}

func TestBookingAmount(t *testing.T) {
	if got := BookingAmount(2, 500); got != 1000 {
		t.Fatalf("2h x 500: got %v", got)
	}
	if got := BookingAmount(1.5, 333.33); got != 500 {
		t.Fatalf("1.5h x 333.33: got %v", got)
	}
}

func TestToPaise(t *testing.T) {
	if got := ToPaise(1000); got != 100000 {
		t.Fatalf("1000: got %d", got)
	}
	if got := ToPaise(19.99); got != 1999 {
		t.Fatalf("19.99: got %d", got)
	}
}
