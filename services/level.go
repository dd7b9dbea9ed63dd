package services

import (
	"context"
	"fmt"

	"github.com/anjiri1684/creator_market/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinLevel = 1
	MaxLevel = 5
)

// levelThresholds are cumulative earnings in minor units needed to leave
// the level at the same index (+1).
var levelThresholds = []int64{10000, 50000, 200000, 1000000}

// RecomputeLevel maps cumulative seller-net earnings, in minor units
// (10000 is 100.00), to a level in 1..5.
func RecomputeLevel(cumulativeEarnings int64) int {
	for i, threshold := range levelThresholds {
		if cumulativeEarnings < threshold {
			return MinLevel + i
		}
	}
	return MaxLevel
}

// LevelTracker keeps a seller's stored level in step with earnings. Levels
// are a high-water mark: refunds and payouts never lower them.
type LevelTracker struct {
	store  database.Store
	logger *zap.Logger
}

func NewLevelTracker(store database.Store, logger *zap.Logger) *LevelTracker {
	return &LevelTracker{store: store, logger: logger}
}

// Apply recomputes the seller's level from completed earnings and raises the
// stored level if needed. It returns the level the seller holds afterwards.
func (lt *LevelTracker) Apply(ctx context.Context, sellerID uuid.UUID) (int, error) {
	seller, err := lt.store.GetSeller(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load seller %s: %w", sellerID, err)
	}
	totals, err := lt.store.SellerTotals(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum earnings for seller %s: %w", sellerID, err)
	}

	computed := RecomputeLevel(totals.Earned)
	if computed <= seller.Level {
		return seller.Level, nil
	}

	if err := lt.store.RaiseSellerLevel(ctx, sellerID, computed); err != nil {
		return seller.Level, fmt.Errorf("failed to raise level for seller %s: %w", sellerID, err)
	}
	lt.logger.Info("seller level raised",
		zap.String("seller_id", sellerID.String()),
		zap.Int("from", seller.Level),
		zap.Int("to", computed),
		zap.Int64("cumulative_earnings", totals.Earned))
	return computed, nil
}
