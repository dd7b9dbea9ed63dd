package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Split is how one gross amount divides between platform and seller.
// AffiliateCommission is carved out of PlatformFee, never added to it.
type Split struct {
	GrossAmount         int64 `json:"gross_amount"`
	PlatformFee         int64 `json:"platform_fee"`
	AffiliateCommission int64 `json:"affiliate_commission"`
	SellerNet           int64 `json:"seller_net"`
}

// percentOf rounds amount*pct/100 half-up to a whole minor unit.
func percentOf(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Round(0).IntPart()
}

func ComputeSplit(grossAmount int64, level int, affiliatePercent decimal.Decimal) (Split, error) {
	if grossAmount < 0 {
		return Split{}, fmt.Errorf("%w: gross amount %d is negative", ErrInvalidAmount, grossAmount)
	}
	if affiliatePercent.IsNegative() || affiliatePercent.GreaterThan(hundred) {
		return Split{}, fmt.Errorf("%w: affiliate commission %s%% is outside 0-100", ErrInvalidPercentage, affiliatePercent)
	}

	platformFee := percentOf(grossAmount, decimal.NewFromInt(int64(FeePercent(level))))

	var affiliate int64
	if affiliatePercent.IsPositive() {
		affiliate = min(percentOf(grossAmount, affiliatePercent), platformFee)
	}

	return Split{
		GrossAmount:         grossAmount,
		PlatformFee:         platformFee,
		AffiliateCommission: affiliate,
		SellerNet:           grossAmount - platformFee,
	}, nil
}

// ApplicationFee is what the processor withholds for the platform:
// PlatformFee + AffiliateCommission. The affiliate is paid out of it
// separately; the seller ledger is still credited SellerNet.
func (s Split) ApplicationFee() int64 {
	return s.PlatformFee + s.AffiliateCommission
}
