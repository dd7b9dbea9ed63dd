package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/metrics"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Metadata keys carried on the payment session and echoed back on the
// completion notification.
const (
	MetaTransactionID       = "transaction_id"
	MetaProductID           = "product_id"
	MetaBuyerID             = "buyer_id"
	MetaSellerID            = "seller_id"
	MetaPromoterCode        = "promoter_code"
	MetaPlatformFee         = "platform_fee"
	MetaAffiliateCommission = "affiliate_commission"
)

type CheckoutURLs struct {
	Success string
	Cancel  string
}

// CheckoutBuilder turns a purchase intent into a processor request that
// encodes the fee split. It performs no I/O beyond promoter lookup.
type CheckoutBuilder struct {
	catalog  database.Catalog
	currency string
	urls     CheckoutURLs
}

func NewCheckoutBuilder(catalog database.Catalog, currency string, urls CheckoutURLs) *CheckoutBuilder {
	return &CheckoutBuilder{catalog: catalog, currency: currency, urls: urls}
}

// CheckoutPlan is the pending transaction and the request that will open
// its payment session.
type CheckoutPlan struct {
	Split       Split
	Transaction *models.Transaction
	Request     *payments.CheckoutRequest
}

func (b *CheckoutBuilder) Build(ctx context.Context, product *models.Product, buyer *models.User, seller *models.Seller, promoterCode string) (*CheckoutPlan, error) {
	if !seller.CanReceiveCharges() {
		return nil, fmt.Errorf("%w: seller %s cannot receive charges", ErrSellerNotPayable, seller.UserID)
	}

	promoter, err := resolvePromoter(ctx, b.catalog, strings.TrimSpace(promoterCode), buyer.ID, seller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve promoter code: %w", err)
	}

	affiliatePercent := product.AffiliateCommissionPercent
	if promoter == nil {
		affiliatePercent = decimal.Zero
	}
	split, err := ComputeSplit(product.Price, seller.Level, affiliatePercent)
	if err != nil {
		return nil, err
	}

	currency := product.Currency
	if currency == "" {
		currency = b.currency
	}
	currency = strings.ToLower(currency)

	tx := &models.Transaction{
		ID:                  uuid.New(),
		ProductID:           product.ID,
		BuyerID:             buyer.ID,
		SellerID:            seller.UserID,
		GrossAmount:         split.GrossAmount,
		PlatformFee:         split.PlatformFee,
		AffiliateCommission: split.AffiliateCommission,
		SellerNetAmount:     split.SellerNet,
		Currency:            currency,
		Status:              models.TransactionPending,
	}
	code := ""
	if promoter != nil {
		code = promoter.Code
		tx.PromoterID = &promoter.ID
		tx.PromoterCode = &promoter.Code
	}

	item := payments.LineItem{
		Name:        product.Title,
		Description: product.Description,
		UnitAmount:  split.GrossAmount,
		Quantity:    1,
	}
	if product.ImageURL != nil {
		item.ImageURL = *product.ImageURL
	}

	req := &payments.CheckoutRequest{
		ClientReferenceID:    tx.ID.String(),
		Currency:             currency,
		CustomerEmail:        buyer.Email,
		LineItem:             item,
		DestinationAccount:   *seller.PayoutAccountID,
		ApplicationFeeAmount: split.ApplicationFee(),
		Metadata: map[string]string{
			MetaTransactionID:       tx.ID.String(),
			MetaProductID:           product.ID.String(),
			MetaBuyerID:             buyer.ID.String(),
			MetaSellerID:            seller.UserID.String(),
			MetaPromoterCode:        code,
			MetaPlatformFee:         strconv.FormatInt(split.PlatformFee, 10),
			MetaAffiliateCommission: strconv.FormatInt(split.AffiliateCommission, 10),
		},
		SuccessURL: b.urls.Success,
		CancelURL:  b.urls.Cancel,
	}

	return &CheckoutPlan{Split: split, Transaction: tx, Request: req}, nil
}

type CheckoutResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	SessionID     string    `json:"session_id"`
	RedirectURL   string    `json:"redirect_url"`
	Split         Split     `json:"split"`
}

type CheckoutService struct {
	store     database.Store
	builder   *CheckoutBuilder
	processor payments.CheckoutCreator
	timeout   time.Duration
	logger    *zap.Logger
}

func NewCheckoutService(store database.Store, builder *CheckoutBuilder, processor payments.CheckoutCreator, timeout time.Duration, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{store: store, builder: builder, processor: processor, timeout: timeout, logger: logger}
}

// CreateCheckout opens a payment session for buyerID on productID and
// records the pending transaction that the completion notification settles.
func (s *CheckoutService) CreateCheckout(ctx context.Context, buyerID, productID uuid.UUID, promoterCode string) (*CheckoutResult, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, "product %s", productID)
	}
	if !product.IsActive || product.Price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}
	if product.SellerID == buyerID {
		return nil, ErrSelfPurchase
	}

	buyer, err := s.store.GetUser(ctx, buyerID)
	if err != nil {
		return nil, notFoundOr(err, "buyer %s", buyerID)
	}
	seller, err := s.store.GetSeller(ctx, product.SellerID)
	if err != nil {
		return nil, notFoundOr(err, "seller %s", product.SellerID)
	}

	plan, err := s.builder.Build(ctx, product, buyer, seller, promoterCode)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, plan.Transaction); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	metrics.TransactionTransitions.WithLabelValues(models.TransactionPending).Inc()
	log := s.logger.With(
		zap.String("transaction_id", plan.Transaction.ID.String()),
		zap.String("product_id", productID.String()))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	session, err := s.processor.CreateCheckoutSession(callCtx, plan.Request)
	if err != nil {
		log.Error("failed to create checkout session", zap.Error(err))
		s.abandon(ctx, plan.Transaction, log)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	// An unattached session still settles through its transaction_id metadata.
	if err := s.attachSession(ctx, plan.Transaction, session.ID); err != nil {
		log.Error("failed to attach session to transaction", zap.String("session_id", session.ID), zap.Error(err))
	}

	s.logger.Info("checkout created",
		zap.String("transaction_id", plan.Transaction.ID.String()),
		zap.String("session_id", session.ID),
		zap.String("seller_id", seller.UserID.String()),
		zap.Int64("gross_amount", plan.Split.GrossAmount),
		zap.Int64("platform_fee", plan.Split.PlatformFee),
		zap.Int64("affiliate_commission", plan.Split.AffiliateCommission))

	return &CheckoutResult{
		TransactionID: plan.Transaction.ID,
		SessionID:     session.ID,
		RedirectURL:   session.URL,
		Split:         plan.Split,
	}, nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, database.ErrRecordNotFound) {
		return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
	}
	return err
}

func (s *CheckoutService) attachSession(ctx context.Context, tx *models.Transaction, sessionID string) error {
	return s.store.WithinSellerTx(ctx, tx.SellerID, func(st database.Store) error {
		current, err := st.GetTransaction(ctx, tx.ID)
		if err != nil {
			return err
		}
		if current.SessionID != nil {
			return nil
		}
		current.SessionID = &sessionID
		if err := st.SaveTransaction(ctx, current); err != nil {
			return err
		}
		*tx = *current
		return nil
	})
}

// abandon fails a transaction whose session was never opened.
func (s *CheckoutService) abandon(ctx context.Context, tx *models.Transaction, log *zap.Logger) {
	tx.Status = models.TransactionFailed
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		log.Error("failed to mark abandoned transaction failed", zap.Error(err))
		return
	}
	metrics.TransactionTransitions.WithLabelValues(models.TransactionFailed).Inc()
}
