package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/anjiri1684/creator_market/database"
	"github.com/anjiri1684/creator_market/metrics"
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/payments"
	"github.com/anjiri1684/creator_market/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayoutSchedule is the configured withdrawal fee policy. All amounts are
// minor units.
type PayoutSchedule struct {
	// MinFreeAmount and above are withdrawn without a fee.
	MinFreeAmount int64
	FlatFee       int64
	PercentFee    decimal.Decimal
	// Minimum is the balance a seller must hold before requesting any payout.
	Minimum int64
}

// Fee returns the fee charged on a withdrawal of amount. Below the free
// threshold the fee is at least one minor unit and never exceeds amount.
func (s PayoutSchedule) Fee(amount int64) int64 {
	if amount <= 0 || amount >= s.MinFreeAmount {
		return 0
	}
	fee := s.FlatFee + percentOf(amount, s.PercentFee)
	return min(max(fee, 1), amount)
}

// DisbursementOutcome is the disbursement channel's final word on a payout.
type DisbursementOutcome struct {
	Status     string `json:"outcome" validate:"required,oneof=completed failed"`
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

type PayoutManager struct {
	store     database.Store
	locker    Locker
	disburser payments.Disburser
	schedule  PayoutSchedule
	currency  string
	timeout   time.Duration
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewPayoutManager(store database.Store, locker Locker, disburser payments.Disburser, schedule PayoutSchedule, currency string, timeout time.Duration, notifier Notifier, logger *zap.Logger) *PayoutManager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PayoutManager{
		store:     store,
		locker:    locker,
		disburser: disburser,
		schedule:  schedule,
		currency:  currency,
		timeout:   timeout,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestPayout reserves amount from the seller's available balance as a
// pending payout. Validation and reservation happen in one critical section.
func (m *PayoutManager) RequestPayout(ctx context.Context, sellerID uuid.UUID, amount int64) (*models.Payout, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payout amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	unlock, err := m.locker.Lock(ctx, sellerKey(sellerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var payout *models.Payout
	err = m.store.WithinSellerTx(ctx, sellerID, func(st database.Store) error {
		totals, err := st.SellerTotals(ctx, sellerID)
		if err != nil {
			return err
		}
		available := totals.Earned - totals.Reserved
		if amount > available {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, amount, available)
		}

		seller, err := st.GetSeller(ctx, sellerID)
		if err != nil {
			return err
		}
		if !seller.CanReceivePayouts() {
			return fmt.Errorf("%w: seller %s", ErrSellerNotPayable, sellerID)
		}
		if m.schedule.Minimum > 0 && available < m.schedule.Minimum {
			return fmt.Errorf("%w: available %d, minimum %d", ErrBelowMinimumThreshold, available, m.schedule.Minimum)
		}

		fee := m.schedule.Fee(amount)
		payout = &models.Payout{
			ID:              uuid.New(),
			SellerID:        sellerID,
			Amount:          amount,
			Fee:             fee,
			NetAmount:       amount - fee,
			Currency:        m.currency,
			Status:          models.PayoutPending,
			ReferenceNumber: utils.NewPayoutReference(),
			CreatedAt:       m.now(),
		}
		return st.CreatePayout(ctx, payout)
	})
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: seller %s", ErrNotFound, sellerID)
		}
		return nil, err
	}

	metrics.PayoutTransitions.WithLabelValues(models.PayoutPending).Inc()
	m.logger.Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.String("reference", payout.ReferenceNumber),
		zap.Int64("amount", payout.Amount),
		zap.Int64("fee", payout.Fee))
	m.notify(ctx, payout)
	return payout, nil
}

// CancelPayout withdraws a pending payout request and releases its
// reservation. Cancelling an already cancelled payout is a no-op.
func (m *PayoutManager) CancelPayout(ctx context.Context, sellerID, payoutID uuid.UUID) (*models.Payout, error) {
	unlock, err := m.locker.Lock(ctx, sellerKey(sellerID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var payout *models.Payout
	changed := false
	err = m.store.WithinSellerTx(ctx, sellerID, func(st database.Store) error {
		p, err := st.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.SellerID != sellerID {
			return database.ErrRecordNotFound
		}
		payout = p
		switch p.Status {
		case models.PayoutCancelled:
			return nil
		case models.PayoutPending:
		default:
			return fmt.Errorf("%w: payout %s is %s, only pending payouts can be cancelled", ErrInvalidState, p.ID, p.Status)
		}
		now := m.now()
		p.Status = models.PayoutCancelled
		p.ProcessedAt = &now
		changed = true
		return st.SavePayout(ctx, p)
	})
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payout %s", ErrNotFound, payoutID)
		}
		return nil, err
	}
	if changed {
		metrics.PayoutTransitions.WithLabelValues(models.PayoutCancelled).Inc()
		m.logger.Info("payout cancelled",
			zap.String("payout_id", payoutID.String()),
			zap.String("seller_id", sellerID.String()))
		m.notify(ctx, payout)
	}
	return payout, nil
}

// transition applies fn to the payout under its seller's lock and storage
// transaction, returning the saved row.
func (m *PayoutManager) transition(ctx context.Context, payoutID uuid.UUID, fn func(p *models.Payout) (bool, error)) (*models.Payout, bool, error) {
	p, err := m.store.GetPayout(ctx, payoutID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: payout %s", ErrNotFound, payoutID)
		}
		return nil, false, err
	}

	unlock, err := m.locker.Lock(ctx, sellerKey(p.SellerID))
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	changed := false
	err = m.store.WithinSellerTx(ctx, p.SellerID, func(st database.Store) error {
		current, err := st.GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if changed, err = fn(current); err != nil || !changed {
			p = current
			return err
		}
		p = current
		return st.SavePayout(ctx, current)
	})
	return p, changed, err
}

// InitiateDisbursement moves a pending payout to processing and instructs
// the disbursement channel to pay the net amount. A rejected instruction
// fails the payout, which releases its reservation. When the channel's answer
// is lost the payout stays processing; calling again resends the instruction
// under the same reference.
func (m *PayoutManager) InitiateDisbursement(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	resend := false
	payout, _, err := m.transition(ctx, payoutID, func(p *models.Payout) (bool, error) {
		if p.Status == models.PayoutProcessing && p.ExternalPayoutID == nil {
			resend = true
			return false, nil
		}
		if p.Status != models.PayoutPending {
			return false, fmt.Errorf("%w: payout %s is %s, only pending payouts can be disbursed", ErrInvalidState, p.ID, p.Status)
		}
		p.Status = models.PayoutProcessing
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log := m.logger.With(
		zap.String("payout_id", payout.ID.String()),
		zap.String("seller_id", payout.SellerID.String()),
		zap.String("reference", payout.ReferenceNumber))
	if resend {
		log.Info("resending unconfirmed disbursement")
	} else {
		metrics.PayoutTransitions.WithLabelValues(models.PayoutProcessing).Inc()
	}

	if payout.NetAmount == 0 {
		log.Info("payout fully consumed by fee, completing without disbursement")
		return m.complete(ctx, payout.ID, DisbursementOutcome{Status: models.PayoutCompleted})
	}

	seller, err := m.store.GetSeller(ctx, payout.SellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seller for payout %s: %w", payout.ID, err)
	}
	if !seller.CanReceivePayouts() {
		if resend {
			return payout, fmt.Errorf("%w: payout %s: %w", ErrDisbursementUnconfirmed, payout.ID, ErrSellerNotPayable)
		}
		log.Warn("seller payout account disabled after request")
		return m.complete(ctx, payout.ID, DisbursementOutcome{Status: models.PayoutFailed, Reason: ErrSellerNotPayable.Error()})
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	d, err := m.disburser.Disburse(callCtx, &payments.DisbursementInstruction{
		DestinationAccount: *seller.PayoutAccountID,
		Amount:             payout.NetAmount,
		Currency:           payout.Currency,
		Reference:          payout.ReferenceNumber,
		Metadata:           map[string]string{MetaPayoutID: payout.ID.String(), MetaSellerID: payout.SellerID.String()},
	})
	if errors.Is(err, payments.ErrDisbursementRejected) {
		log.Error("disbursement instruction rejected", zap.Error(err))
		return m.complete(ctx, payout.ID, DisbursementOutcome{Status: models.PayoutFailed, Reason: err.Error()})
	}
	if err != nil {
		log.Warn("disbursement outcome unknown, payout stays processing", zap.Error(err))
		return payout, fmt.Errorf("%w: payout %s: %w", ErrDisbursementUnconfirmed, payout.ID, err)
	}

	payout, _, err = m.transition(ctx, payout.ID, func(p *models.Payout) (bool, error) {
		if p.ExternalPayoutID != nil {
			return false, nil
		}
		p.ExternalPayoutID = &d.ID
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record external payout id %s: %w", d.ID, err)
	}
	log.Info("disbursement initiated", zap.String("external_payout_id", d.ID), zap.Int64("net_amount", payout.NetAmount))
	m.notify(ctx, payout)
	return payout, nil
}

// HandleDisbursementCallback records the channel's outcome for a processing
// payout. Replaying the outcome already recorded is a no-op.
func (m *PayoutManager) HandleDisbursementCallback(ctx context.Context, payoutID uuid.UUID, outcome DisbursementOutcome) error {
	_, err := m.complete(ctx, payoutID, outcome)
	return err
}

func (m *PayoutManager) complete(ctx context.Context, payoutID uuid.UUID, outcome DisbursementOutcome) (*models.Payout, error) {
	if outcome.Status != models.PayoutCompleted && outcome.Status != models.PayoutFailed {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome.Status)
	}

	payout, changed, err := m.transition(ctx, payoutID, func(p *models.Payout) (bool, error) {
		if p.Status == outcome.Status {
			return false, nil
		}
		if p.Status != models.PayoutProcessing {
			return false, fmt.Errorf("%w: payout %s is %s, cannot become %s", ErrInvalidState, p.ID, p.Status, outcome.Status)
		}
		now := m.now()
		p.Status = outcome.Status
		p.ProcessedAt = &now
		if outcome.ExternalID != "" && p.ExternalPayoutID == nil {
			id := outcome.ExternalID
			p.ExternalPayoutID = &id
		}
		if outcome.Status == models.PayoutFailed {
			reason := outcome.Reason
			if reason == "" {
				reason = "disbursement failed"
			}
			p.FailureReason = &reason
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			metrics.InvalidState.WithLabelValues("payout").Inc()
			m.logger.Error("rejected payout transition", zap.String("payout_id", payoutID.String()), zap.Error(err))
		}
		return nil, err
	}
	if !changed {
		m.logger.Info("payout outcome already recorded",
			zap.String("payout_id", payoutID.String()),
			zap.String("status", payout.Status))
		return payout, nil
	}

	metrics.PayoutTransitions.WithLabelValues(payout.Status).Inc()
	m.logger.Info("payout finished",
		zap.String("payout_id", payout.ID.String()),
		zap.String("seller_id", payout.SellerID.String()),
		zap.String("status", payout.Status))
	m.notify(ctx, payout)
	return payout, nil
}

// ProcessPendingPayouts resends unconfirmed disbursements, then initiates
// every pending payout, oldest first. One payout failing does not stop the
// sweep.
func (m *PayoutManager) ProcessPendingPayouts(ctx context.Context) (int, error) {
	processing, err := m.store.ListPayoutsByStatus(ctx, models.PayoutProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to list processing payouts: %w", err)
	}
	pending, err := m.store.ListPayoutsByStatus(ctx, models.PayoutPending)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending payouts: %w", err)
	}

	due := make([]models.Payout, 0, len(processing)+len(pending))
	for _, p := range processing {
		if p.ExternalPayoutID == nil {
			due = append(due, p)
		}
	}
	due = append(due, pending...)

	initiated := 0
	for _, p := range due {
		if ctx.Err() != nil {
			return initiated, ctx.Err()
		}
		payout, err := m.InitiateDisbursement(ctx, p.ID)
		switch {
		case errors.Is(err, ErrInvalidState):
			continue
		case errors.Is(err, ErrDisbursementUnconfirmed):
			m.logger.Warn("payout left unconfirmed", zap.String("payout_id", p.ID.String()), zap.Error(err))
			continue
		case err != nil:
			m.logger.Error("failed to initiate payout", zap.String("payout_id", p.ID.String()), zap.Error(err))
			continue
		}
		if payout.Status == models.PayoutProcessing || payout.Status == models.PayoutCompleted {
			initiated++
		}
	}
	return initiated, nil
}

func (m *PayoutManager) ListPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error) {
	return m.store.ListPayoutsBySeller(ctx, sellerID)
}

var payoutStatuses = []string{models.PayoutPending, models.PayoutProcessing, models.PayoutCompleted, models.PayoutFailed, models.PayoutCancelled}

func (m *PayoutManager) ListPayoutsByStatus(ctx context.Context, status string) ([]models.Payout, error) {
	if !slices.Contains(payoutStatuses, status) {
		return nil, fmt.Errorf("%w: payout status %q", ErrInvalidStatus, status)
	}
	return m.store.ListPayoutsByStatus(ctx, status)
}

func (m *PayoutManager) notify(ctx context.Context, p *models.Payout) {
	account, err := GetAccount(ctx, m.store, p.SellerID)
	if err != nil {
		m.logger.Warn("failed to load account for notification", zap.String("payout_id", p.ID.String()), zap.Error(err))
		return
	}
	m.notifier.PayoutUpdated(ctx, p, account)
}
