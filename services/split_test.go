package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeePercent(t *testing.T) {
	cases := map[int]int{1: 29, 2: 20, 3: 15, 4: 12, 5: 9, 0: 29, 99: 29, -1: 29, 6: 29}
	for level, want := range cases {
		assert.Equal(t, want, FeePercent(level), "level %d", level)
	}
}

func TestComputeSplit_Examples(t *testing.T) {
	tests := []struct {
		name      string
		gross     int64
		level     int
		affiliate decimal.Decimal
		want      Split
	}{
		{"level 1", 10000, 1, decimal.Zero, Split{10000, 2900, 0, 7100}},
		{"level 5", 10000, 5, decimal.Zero, Split{10000, 900, 0, 9100}},
		{"affiliate carved from fee", 10000, 1, decimal.NewFromInt(10), Split{10000, 2900, 1000, 7100}},
		{"affiliate capped at fee", 10000, 5, decimal.NewFromInt(50), Split{10000, 900, 900, 9100}},
		{"half rounds up", 150, 1, decimal.Zero, Split{150, 44, 0, 106}},
		{"fractional percent", 999, 2, decimal.RequireFromString("12.5"), Split{999, 200, 125, 799}},
		{"zero gross", 0, 3, decimal.NewFromInt(10), Split{0, 0, 0, 0}},
		{"unknown level charges level 1", 10000, 0, decimal.Zero, Split{10000, 2900, 0, 7100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeSplit(tt.gross, tt.level, tt.affiliate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSplit_Invariants(t *testing.T) {
	percents := []decimal.Decimal{decimal.Zero, decimal.NewFromInt(1), decimal.RequireFromString("7.5"), decimal.NewFromInt(33), decimal.NewFromInt(100)}
	for gross := int64(0); gross <= 5000; gross += 37 {
		for level := 0; level <= 6; level++ {
			for _, pct := range percents {
				s, err := ComputeSplit(gross, level, pct)
				require.NoError(t, err)
				assert.Equal(t, gross, s.PlatformFee+s.SellerNet)
				assert.LessOrEqual(t, s.AffiliateCommission, s.PlatformFee)
				assert.GreaterOrEqual(t, s.SellerNet, int64(0))
				assert.Equal(t, s.PlatformFee+s.AffiliateCommission, s.ApplicationFee())
			}
		}
	}
}

func TestComputeSplit_RejectsBadInput(t *testing.T) {
	_, err := ComputeSplit(-1, 1, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ComputeSplit(100, 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = ComputeSplit(100, 1, decimal.RequireFromString("100.01"))
	assert.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestSplit_ApplicationFeeWithholdsAffiliateToo(t *testing.T) {
	s, err := ComputeSplit(10000, 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, int64(3900), s.ApplicationFee())
	assert.Equal(t, int64(7100), s.SellerNet)

	s, err = ComputeSplit(10000, 1, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, int64(2900), s.ApplicationFee())
}
