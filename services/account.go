package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/creator_market/database"
	"github.com/google/uuid"
)

// Account is the seller's balance view. Nothing here is stored; every field
// is derived from transactions and payouts on read.
type Account struct {
	SellerID           uuid.UUID `json:"seller_id"`
	Level              int       `json:"level"`
	AvailableBalance   int64     `json:"available_balance"`
	CumulativeEarnings int64     `json:"cumulative_earnings"`
	ReservedAmount     int64     `json:"reserved_amount"`
}

func accountFrom(sellerID uuid.UUID, level int, totals database.SellerTotals) Account {
	return Account{
		SellerID:           sellerID,
		Level:              level,
		AvailableBalance:   totals.Earned - totals.Reserved,
		CumulativeEarnings: totals.Earned,
		ReservedAmount:     totals.Reserved,
	}
}

func GetAccount(ctx context.Context, store database.Store, sellerID uuid.UUID) (*Account, error) {
	seller, err := store.GetSeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: seller %s", ErrNotFound, sellerID)
		}
		return nil, err
	}
	totals, err := store.SellerTotals(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	acc := accountFrom(sellerID, seller.Level, totals)
	return &acc, nil
}
