package services

import (
	"context"
	"testing"
	"time"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/payments/paymentstest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store      *database.MemoryStore
	processor  *paymentstest.Processor
	locker     *KeyedMutex
	levels     *LevelTracker
	checkout   *CheckoutService
	payouts    *PayoutManager
	reconciler *Reconciler
	promoters  *PromoterService

	seller  models.Seller
	buyer   models.User
	product models.Product
}

var testSchedule = PayoutSchedule{
	MinFreeAmount: 5000,
	FlatFee:       100,
	PercentFee:    decimal.Zero,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := database.NewMemoryStore()
	processor := paymentstest.NewProcessor()
	locker := NewKeyedMutex()

	account := "acct_seller"
	sellerUser := models.User{ID: uuid.New(), FullName: "Ada Seller", Email: "ada@example.com", Role: models.RoleSeller, IsActive: true}
	seller := models.Seller{UserID: sellerUser.ID, PayoutAccountID: &account, ChargesEnabled: true, PayoutsEnabled: true, Level: 1}
	buyer := models.User{ID: uuid.New(), FullName: "Bo Buyer", Email: "bo@example.com", Role: models.RoleBuyer, IsActive: true}
	product := models.Product{
		ID:                         uuid.New(),
		SellerID:                   seller.UserID,
		Title:                      "Lightroom presets",
		Description:                "40 film presets",
		Price:                      10000,
		Currency:                   "EUR",
		AffiliateCommissionPercent: decimal.NewFromInt(10),
		IsActive:                   true,
	}
	store.AddUser(sellerUser)
	store.AddUser(buyer)
	store.AddSeller(seller)
	store.AddProduct(product)

	levels := NewLevelTracker(store, logger)
	builder := NewCheckoutBuilder(store, "eur", CheckoutURLs{Success: "https://shop.test/ok", Cancel: "https://shop.test/cancel"})
	payouts := NewPayoutManager(store, locker, processor, testSchedule, "eur", time.Second, nil, logger)

	return &fixture{
		store:      store,
		processor:  processor,
		locker:     locker,
		levels:     levels,
		checkout:   NewCheckoutService(store, builder, processor, time.Second, logger),
		payouts:    payouts,
		reconciler: NewReconciler(store, processor, locker, levels, payouts, nil, logger),
		promoters:  NewPromoterService(store, logger),
		seller:     seller,
		buyer:      buyer,
		product:    product,
	}
}

// sell runs a checkout for the fixture product and delivers its completion
// notification, returning the settled transaction.
func (f *fixture) sell(t *testing.T) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	res, err := f.checkout.CreateCheckout(ctx, f.buyer.ID, f.product.ID, "")
	require.NoError(t, err)

	meta := f.processor.LastCheckout().Metadata
	payload := paymentstest.CheckoutCompleted("evt_"+res.SessionID, res.SessionID, "pi_"+res.SessionID, f.product.Price, meta)
	require.NoError(t, f.reconciler.HandleNotification(ctx, payload, paymentstest.Sign(payload)))

	tx, err := f.store.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	return tx
}

// credit records a completed sale worth net to the seller without going
// through checkout.
func (f *fixture) credit(t *testing.T, net int64) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ProductID:       f.product.ID,
		BuyerID:         f.buyer.ID,
		SellerID:        f.seller.UserID,
		GrossAmount:     net,
		SellerNetAmount: net,
		Currency:        "eur",
		Status:          models.TransactionCompleted,
	}
	require.NoError(t, f.store.CreateTransaction(context.Background(), tx))
	return tx
}

func (f *fixture) account(t *testing.T) *Account {
	t.Helper()
	acc, err := GetAccount(context.Background(), f.store, f.seller.UserID)
	require.NoError(t, err)
	return acc
}
