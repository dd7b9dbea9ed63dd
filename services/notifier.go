package services

import (
	"context"

	"github.com/anjiri1684/creator_market/models"
)

// Notifier is told about settled money movements after they are durable.
// Implementations must not block the caller for long.
type Notifier interface {
	TransactionSettled(ctx context.Context, tx *models.Transaction, account *Account)
	PayoutUpdated(ctx context.Context, payout *models.Payout, account *Account)
}

type NopNotifier struct{}

func (NopNotifier) TransactionSettled(context.Context, *models.Transaction, *Account) {}
func (NopNotifier) PayoutUpdated(context.Context, *models.Payout, *Account)           {}
