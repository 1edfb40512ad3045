package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Split is the platform/partner division of a booking amount.
type Split struct {
	PlatformCommission float64 `json:"platformCommission"`
	PartnerEarning     float64 `json:"partnerEarning"`
	Rate               float64 `json:"commissionRate"`
}

// CommissionEngine computes the platform cut from the payer's tier.
type CommissionEngine struct {
	premiumRate  decimal.Decimal
	standardRate decimal.Decimal
}

// NewCommissionEngine validates the rates; each must lie in [0, 1].
func NewCommissionEngine(premiumRate, standardRate float64) (*CommissionEngine, error) {
	for _, r := range []float64{premiumRate, standardRate} {
		if r < 0 || r > 1 {
			return nil, fmt.Errorf("commission rate %v out of range [0,1]", r)
		}
	}
	return &CommissionEngine{
		premiumRate:  decimal.NewFromFloat(premiumRate),
		standardRate: decimal.NewFromFloat(standardRate),
	}, nil
}

// Calculate splits totalAmount. The partner gets the remainder after the
// rounded commission, so the two parts always sum to the rounded total.
func (c *CommissionEngine) Calculate(totalAmount float64, payerPremiumActive bool) Split {
	rate := c.standardRate
	if payerPremiumActive {
		rate = c.premiumRate
	}
	total := decimal.NewFromFloat(totalAmount).Round(2)
	commission := total.Mul(rate).Round(2)
	earning := total.Sub(commission)

	return Split{
		PlatformCommission: commission.InexactFloat64(),
		PartnerEarning:     earning.InexactFloat64(),
		Rate:               rate.InexactFloat64(),
	}
}

// BookingAmount is hours × hourlyRate rounded to two places.
func BookingAmount(hours, hourlyRate float64) float64 {
	return decimal.NewFromFloat(hours).Mul(decimal.NewFromFloat(hourlyRate)).Round(2).InexactFloat64()
}

// ToPaise converts a rupee amount into the gateway's minor unit.
func ToPaise(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
