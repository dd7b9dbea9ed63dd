package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/metrics"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/payments"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	resultProcessed        = "processed"
	resultDuplicate        = "duplicate"
	resultIgnored          = "ignored"
	resultInvalidSignature = "invalid_signature"
	resultMalformed        = "malformed"
	resultInvalidState     = "invalid_state"
	resultError            = "error"
)

// MetaPayoutID links a processor payout back to our payout row.
const MetaPayoutID = "payout_id"

// DisbursementCallbacks receives payout outcomes reported by the processor.
type DisbursementCallbacks interface {
	HandleDisbursementCallback(ctx context.Context, payoutID uuid.UUID, outcome DisbursementOutcome) error
}

// Reconciler applies verified processor notifications to transactions
// exactly once. Replays are acknowledged without side effects.
type Reconciler struct {
	store    database.Store
	verifier payments.NotificationVerifier
	locker   Locker
	levels   *LevelTracker
	payouts  DisbursementCallbacks
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewReconciler(store database.Store, verifier payments.NotificationVerifier, locker Locker, levels *LevelTracker, payouts DisbursementCallbacks, notifier Notifier, logger *zap.Logger) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reconciler{
		store:    store,
		verifier: verifier,
		locker:   locker,
		levels:   levels,
		payouts:  payouts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleNotification verifies and applies one raw notification. It returns
// nil for duplicates and ignored event types.
func (r *Reconciler) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	n, err := r.verifier.VerifyAndParseNotification(payload, signature)
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		metrics.WebhookNotifications.WithLabelValues("unknown", resultInvalidSignature).Inc()
		r.logger.Warn("rejected notification with invalid signature", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, payments.ErrMalformedPayload):
		metrics.WebhookNotifications.WithLabelValues("unknown", resultMalformed).Inc()
		r.logger.Error("verified notification is malformed", zap.ByteString("payload", payload), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	case err != nil:
		return err
	}

	log := r.logger.With(zap.String("event_id", n.ID), zap.String("event_type", string(n.Type)))
	result, err := r.dispatch(ctx, n, log)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidState):
			result = resultInvalidState
			metrics.InvalidState.WithLabelValues("notification").Inc()
			log.Error("notification conflicts with stored state", zap.Error(err))
		case errors.Is(err, ErrMalformedNotification):
			result = resultMalformed
			log.Error("verified notification is malformed", zap.ByteString("payload", payload), zap.Error(err))
		default:
			result = resultError
			log.Error("failed to apply notification", zap.Error(err))
		}
	}
	metrics.WebhookNotifications.WithLabelValues(string(n.Type), result).Inc()
	return err
}

func (r *Reconciler) dispatch(ctx context.Context, n *payments.Notification, log *zap.Logger) (string, error) {
	switch n.Type {
	case payments.EventCheckoutCompleted:
		if !n.Paid {
			log.Info("checkout completed without payment, awaiting async outcome", zap.String("session_id", n.SessionID))
			return resultIgnored, nil
		}
		return r.settle(ctx, n, log)
	case payments.EventCheckoutExpired, payments.EventCheckoutAsyncFailed:
		return r.fail(ctx, n, log)
	case payments.EventChargeRefunded:
		return r.refund(ctx, n, log)
	case payments.EventPayoutPaid, payments.EventPayoutFailed:
		return r.payoutOutcome(ctx, n)
	default:
		log.Debug("ignoring notification type")
		return resultIgnored, nil
	}
}

func metaAmount(meta map[string]string, key string) (int64, error) {
	raw, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("%w: metadata %q missing", ErrMalformedNotification, key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: metadata %q=%q is not a minor-unit amount", ErrMalformedNotification, key, raw)
	}
	return v, nil
}

// sessionTransaction finds the transaction a checkout event belongs to,
// falling back to the transaction id carried in the session metadata for
// rows whose session id was never attached.
func (r *Reconciler) sessionTransaction(ctx context.Context, n *payments.Notification) (*models.Transaction, error) {
	tx, err := r.store.GetTransactionBySession(ctx, n.SessionID)
	if !errors.Is(err, database.ErrRecordNotFound) {
		return tx, err
	}
	id, parseErr := uuid.Parse(n.Metadata[MetaTransactionID])
	if parseErr != nil {
		return nil, err
	}
	tx, err = r.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.SessionID != nil && *tx.SessionID != n.SessionID {
		return nil, database.ErrRecordNotFound
	}
	return tx, nil
}

func (r *Reconciler) settle(ctx context.Context, n *payments.Notification, log *zap.Logger) (string, error) {
	log = log.With(zap.String("session_id", n.SessionID))

	unlockSession, err := r.locker.Lock(ctx, sessionKey(n.SessionID))
	if err != nil {
		return resultError, err
	}
	defer unlockSession()

	tx, err := r.sessionTransaction(ctx, n)
	if errors.Is(err, database.ErrRecordNotFound) {
		log.Info("no transaction for completed session", zap.NamedError("reason", ErrDuplicateNotification))
		return resultDuplicate, nil
	}
	if err != nil {
		return resultError, err
	}
	if tx.IsTerminal() {
		log.Info("session already settled", zap.String("status", tx.Status), zap.NamedError("reason", ErrDuplicateNotification))
		return resultDuplicate, nil
	}

	platformFee, err := metaAmount(n.Metadata, MetaPlatformFee)
	if err != nil {
		return resultMalformed, err
	}
	affiliate, err := metaAmount(n.Metadata, MetaAffiliateCommission)
	if err != nil {
		return resultMalformed, err
	}
	gross := n.AmountTotal
	if gross <= 0 {
		gross = tx.GrossAmount
	}
	if platformFee > gross || affiliate > platformFee {
		return resultMalformed, fmt.Errorf("%w: fee %d / commission %d do not fit gross %d", ErrMalformedNotification, platformFee, affiliate, gross)
	}

	unlockSeller, err := r.locker.Lock(ctx, sellerKey(tx.SellerID))
	if err != nil {
		return resultError, err
	}
	defer unlockSeller()

	duplicate := false
	err = r.store.WithinSellerTx(ctx, tx.SellerID, func(st database.Store) error {
		current, err := st.GetTransaction(ctx, tx.ID)
		if err != nil {
			return err
		}
		if current.IsTerminal() {
			duplicate = true
			return nil
		}
		now := r.now()
		if current.SessionID == nil {
			sid := n.SessionID
			current.SessionID = &sid
		}
		current.GrossAmount = gross
		current.PlatformFee = platformFee
		current.AffiliateCommission = affiliate
		current.SellerNetAmount = gross - platformFee
		current.Status = models.TransactionCompleted
		current.SettledAt = &now
		if n.PaymentIntentID != "" {
			pi := n.PaymentIntentID
			current.PaymentIntentID = &pi
		}
		if err := st.SaveTransaction(ctx, current); err != nil {
			return err
		}
		tx = current
		return nil
	})
	if err != nil {
		return resultError, fmt.Errorf("failed to settle transaction %s: %w", tx.ID, err)
	}
	if duplicate {
		log.Info("session settled concurrently", zap.NamedError("reason", ErrDuplicateNotification))
		return resultDuplicate, nil
	}

	metrics.TransactionTransitions.WithLabelValues(models.TransactionCompleted).Inc()
	metrics.SettledAmount.WithLabelValues("gross").Add(float64(tx.GrossAmount))
	metrics.SettledAmount.WithLabelValues("platform_fee").Add(float64(tx.PlatformFee))
	metrics.SettledAmount.WithLabelValues("affiliate_commission").Add(float64(tx.AffiliateCommission))
	metrics.SettledAmount.WithLabelValues("seller_net").Add(float64(tx.SellerNetAmount))

	if _, err := r.levels.Apply(ctx, tx.SellerID); err != nil {
		// The sale is durable; the next settlement retries the level.
		log.Error("failed to recompute seller level", zap.Error(err))
	}

	log.Info("transaction settled",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("seller_id", tx.SellerID.String()),
		zap.Int64("gross_amount", tx.GrossAmount),
		zap.Int64("seller_net_amount", tx.SellerNetAmount))
	r.notifySettled(ctx, tx, log)
	return resultProcessed, nil
}

func (r *Reconciler) fail(ctx context.Context, n *payments.Notification, log *zap.Logger) (string, error) {
	log = log.With(zap.String("session_id", n.SessionID))

	unlock, err := r.locker.Lock(ctx, sessionKey(n.SessionID))
	if err != nil {
		return resultError, err
	}
	defer unlock()

	tx, err := r.sessionTransaction(ctx, n)
	if errors.Is(err, database.ErrRecordNotFound) {
		log.Info("no transaction for failed session")
		return resultIgnored, nil
	}
	if err != nil {
		return resultError, err
	}

	switch tx.Status {
	case models.TransactionPending:
	case models.TransactionFailed:
		log.Info("session already failed", zap.NamedError("reason", ErrDuplicateNotification))
		return resultDuplicate, nil
	default:
		return resultInvalidState, fmt.Errorf("%w: transaction %s is %s, cannot fail", ErrInvalidState, tx.ID, tx.Status)
	}

	tx.Status = models.TransactionFailed
	if tx.SessionID == nil {
		sid := n.SessionID
		tx.SessionID = &sid
	}
	if err := r.store.SaveTransaction(ctx, tx); err != nil {
		return resultError, fmt.Errorf("failed to mark transaction %s failed: %w", tx.ID, err)
	}
	metrics.TransactionTransitions.WithLabelValues(models.TransactionFailed).Inc()
	log.Info("transaction failed", zap.String("transaction_id", tx.ID.String()))
	return resultProcessed, nil
}

func (r *Reconciler) refund(ctx context.Context, n *payments.Notification, log *zap.Logger) (string, error) {
	log = log.With(zap.String("payment_intent_id", n.PaymentIntentID))
	if !n.FullyRefunded {
		log.Info("partial refund does not change settlement", zap.Int64("amount_refunded", n.AmountRefunded))
		return resultIgnored, nil
	}

	tx, err := r.store.GetTransactionByPaymentIntent(ctx, n.PaymentIntentID)
	if errors.Is(err, database.ErrRecordNotFound) {
		log.Warn("refund for unknown payment")
		return resultIgnored, nil
	}
	if err != nil {
		return resultError, err
	}

	unlock, err := r.locker.Lock(ctx, sellerKey(tx.SellerID))
	if err != nil {
		return resultError, err
	}
	defer unlock()

	result := resultProcessed
	err = r.store.WithinSellerTx(ctx, tx.SellerID, func(st database.Store) error {
		current, err := st.GetTransaction(ctx, tx.ID)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.TransactionCompleted:
		case models.TransactionRefunded:
			result = resultDuplicate
			return nil
		default:
			result = resultInvalidState
			return fmt.Errorf("%w: transaction %s is %s, cannot refund", ErrInvalidState, current.ID, current.Status)
		}
		now := r.now()
		current.Status = models.TransactionRefunded
		current.RefundedAt = &now
		if err := st.SaveTransaction(ctx, current); err != nil {
			return err
		}
		tx = current
		return nil
	})
	if err != nil {
		if result == resultProcessed {
			result = resultError
		}
		return result, err
	}
	if result == resultDuplicate {
		log.Info("transaction already refunded", zap.NamedError("reason", ErrDuplicateNotification))
		return result, nil
	}

	metrics.TransactionTransitions.WithLabelValues(models.TransactionRefunded).Inc()
	log.Info("transaction refunded",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("seller_id", tx.SellerID.String()),
		zap.Int64("seller_net_amount", tx.SellerNetAmount))
	r.notifySettled(ctx, tx, log)
	return result, nil
}

func (r *Reconciler) payoutOutcome(ctx context.Context, n *payments.Notification) (string, error) {
	raw := n.Metadata[MetaPayoutID]
	payoutID, err := uuid.Parse(raw)
	if err != nil {
		return resultMalformed, fmt.Errorf("%w: payout metadata %q", ErrMalformedNotification, raw)
	}

	outcome := DisbursementOutcome{Status: models.PayoutCompleted, ExternalID: n.ExternalPayoutID}
	if n.Type == payments.EventPayoutFailed {
		outcome.Status = models.PayoutFailed
		outcome.Reason = n.FailureReason
	}
	if err := r.payouts.HandleDisbursementCallback(ctx, payoutID, outcome); err != nil {
		if errors.Is(err, ErrNotFound) {
			return resultIgnored, nil
		}
		return resultError, err
	}
	return resultProcessed, nil
}

func (r *Reconciler) notifySettled(ctx context.Context, tx *models.Transaction, log *zap.Logger) {
	account, err := GetAccount(ctx, r.store, tx.SellerID)
	if err != nil {
		log.Warn("failed to load account for notification", zap.Error(err))
		return
	}
	r.notifier.TransactionSettled(ctx, tx, account)
}
