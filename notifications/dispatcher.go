package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Publisher pushes live events to a seller's open connections.
type Publisher interface {
	Publish(sellerID uuid.UUID, event any)
}

// AccountEvent is what live clients receive after a money movement.
type AccountEvent struct {
	Type        string              `json:"type"`
	Account     *services.Account   `json:"account"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Payout      *models.Payout      `json:"payout,omitempty"`
}

const (
	EventTransactionUpdated = "transaction.updated"
	EventPayoutUpdated      = "payout.updated"
)

// Dispatcher fans settlement events out to live connections and email.
// Email goes out on its own goroutine so callers never wait on Brevo.
type Dispatcher struct {
	mailer    *Mailer
	publisher Publisher
	catalog   database.Catalog
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDispatcher(mailer *Mailer, publisher Publisher, catalog database.Catalog, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, publisher: publisher, catalog: catalog, timeout: timeout, logger: logger}
}

func (d *Dispatcher) TransactionSettled(_ context.Context, tx *models.Transaction, account *services.Account) {
	d.publish(tx.SellerID, AccountEvent{Type: EventTransactionUpdated, Account: account, Transaction: tx})

	switch tx.Status {
	case models.TransactionCompleted:
		d.mail(tx.SellerID, "You made a sale!", fmt.Sprintf(
			"<h1>New sale</h1><p>You earned %s. Your available balance is now %s.</p>",
			formatMinor(tx.SellerNetAmount, tx.Currency), formatMinor(account.AvailableBalance, tx.Currency)))
	case models.TransactionRefunded:
		d.mail(tx.SellerID, "A sale was refunded", fmt.Sprintf(
			"<h1>Refund</h1><p>A sale of %s was refunded and removed from your balance.</p>",
			formatMinor(tx.GrossAmount, tx.Currency)))
	}
}

func (d *Dispatcher) PayoutUpdated(_ context.Context, p *models.Payout, account *services.Account) {
	d.publish(p.SellerID, AccountEvent{Type: EventPayoutUpdated, Account: account, Payout: p})

	switch p.Status {
	case models.PayoutCompleted:
		d.mail(p.SellerID, "Your payout is on its way", fmt.Sprintf(
			"<h1>Payout sent</h1><p>Payout %s of %s has been paid out.</p>",
			p.ReferenceNumber, formatMinor(p.NetAmount, p.Currency)))
	case models.PayoutFailed:
		reason := "unknown reason"
		if p.FailureReason != nil {
			reason = *p.FailureReason
		}
		d.mail(p.SellerID, "Your payout failed", fmt.Sprintf(
			"<h1>Payout failed</h1><p>Payout %s could not be completed (%s). The amount is back in your balance.</p>",
			p.ReferenceNumber, reason))
	}
}

func (d *Dispatcher) publish(sellerID uuid.UUID, ev AccountEvent) {
	if d.publisher != nil {
		d.publisher.Publish(sellerID, ev)
	}
}

func (d *Dispatcher) mail(sellerID uuid.UUID, subject, html string) {
	if d.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		user, err := d.catalog.GetUser(ctx, sellerID)
		if err != nil {
			d.logger.Warn("no recipient for seller email", zap.String("seller_id", sellerID.String()), zap.Error(err))
			return
		}
		if err := d.mailer.Send(ctx, user.FullName, user.Email, subject, html); err != nil {
			d.logger.Error("failed to send seller email", zap.String("seller_id", sellerID.String()), zap.Error(err))
		}
	}()
}

func formatMinor(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
