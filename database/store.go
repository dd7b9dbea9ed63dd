package database

import (
	"context"
	"errors"

	"github.com/anjiri1684/creator_market/models"
	"github.com/google/uuid"
)

var ErrRecordNotFound = errors.New("record not found")

// Catalog is the read side owned by the product and user services.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetSeller(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
	GetPromoterByCode(ctx context.Context, code string) (*models.Promoter, error)
	GetPromoterByUser(ctx context.Context, userID uuid.UUID) (*models.Promoter, error)
	CreatePromoter(ctx context.Context, p *models.Promoter) error
}

// SellerTotals are the two aggregates every balance is derived from.
type SellerTotals struct {
	// Earned is the seller-net sum over completed transactions.
	Earned int64
	// Reserved is the amount sum over pending, processing and completed payouts.
	Reserved int64
}

type Store interface {
	Catalog

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetTransactionBySession(ctx context.Context, sessionID string) (*models.Transaction, error)
	GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, t *models.Transaction) error

	CreatePayout(ctx context.Context, p *models.Payout) error
	GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	SavePayout(ctx context.Context, p *models.Payout) error
	ListPayoutsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error)
	ListPayoutsByStatus(ctx context.Context, status string) ([]models.Payout, error)

	SellerTotals(ctx context.Context, sellerID uuid.UUID) (SellerTotals, error)
	// RaiseSellerLevel stores level only if it is above the current one.
	RaiseSellerLevel(ctx context.Context, sellerID uuid.UUID, level int) error

	// WithinSellerTx runs fn atomically while holding the seller's row.
	WithinSellerTx(ctx context.Context, sellerID uuid.UUID, fn func(Store) error) error
}
