package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/payments"
	"github.com/anjiri1684/creator_market/payments/paymentstest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPayoutSchedule_Fee(t *testing.T) {
	flat := testSchedule
	for _, amount := range []int64{1, 50, 99, 1000, 4999} {
		fee := flat.Fee(amount)
		assert.Greater(t, fee, int64(0), "amount %d", amount)
		assert.LessOrEqual(t, fee, amount, "amount %d", amount)
	}
	assert.Equal(t, int64(100), flat.Fee(1000))
	assert.Equal(t, int64(50), flat.Fee(50))
	assert.Equal(t, int64(0), flat.Fee(5000))
	assert.Equal(t, int64(0), flat.Fee(123456))

	pct := PayoutSchedule{MinFreeAmount: 5000, PercentFee: decimal.RequireFromString("2.5")}
	assert.Equal(t, int64(25), pct.Fee(1000))
	assert.Equal(t, int64(1), pct.Fee(10))
	assert.Equal(t, int64(0), pct.Fee(5000))
}

func TestRequestPayout_BalanceBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)

	_, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7101)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, p.Status)
	assert.Equal(t, int64(0), p.Fee)
	assert.Equal(t, int64(7100), p.NetAmount)
	assert.Regexp(t, `^PO-[0-9A-Z]{26}$`, p.ReferenceNumber)

	acc := f.account(t)
	assert.Equal(t, int64(0), acc.AvailableBalance)
	assert.Equal(t, int64(7100), acc.ReservedAmount)
}

func TestRequestPayout_ChargesFeeBelowFreeThreshold(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 7100)

	p, err := f.payouts.RequestPayout(context.Background(), f.seller.UserID, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Fee)
	assert.Equal(t, int64(900), p.NetAmount)
	assert.Equal(t, p.Amount, p.Fee+p.NetAmount)
	assert.Equal(t, int64(6100), f.account(t).AvailableBalance)
}

func TestRequestPayout_ValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.payouts.RequestPayout(ctx, f.seller.UserID, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	seller := f.seller
	seller.PayoutsEnabled = false
	f.store.AddSeller(seller)

	// Balance is checked before the payout account.
	_, err = f.payouts.RequestPayout(ctx, f.seller.UserID, 100)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	f.credit(t, 7100)
	_, err = f.payouts.RequestPayout(ctx, f.seller.UserID, 100)
	assert.ErrorIs(t, err, ErrSellerNotPayable)

	_, err = f.payouts.RequestPayout(ctx, uuid.New(), 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestPayout_MinimumThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	schedule := testSchedule
	schedule.Minimum = 10000
	m := NewPayoutManager(f.store, f.locker, f.processor, schedule, "eur", time.Second, nil, zaptest.NewLogger(t))

	f.credit(t, 7100)
	_, err := m.RequestPayout(ctx, f.seller.UserID, 100)
	assert.ErrorIs(t, err, ErrBelowMinimumThreshold)

	f.credit(t, 2900)
	_, err = m.RequestPayout(ctx, f.seller.UserID, 100)
	assert.NoError(t, err)
}

func TestRequestPayout_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	f.credit(t, 10000)

	var ok, insufficient atomic.Int32
	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payouts.RequestPayout(context.Background(), f.seller.UserID, 1000)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientBalance):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, int32(15), insufficient.Load())
	assert.Equal(t, int64(0), f.account(t).AvailableBalance)
}

func TestCancelPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 6000)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), f.account(t).AvailableBalance)

	_, err = f.payouts.CancelPayout(ctx, uuid.New(), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, err := f.payouts.CancelPayout(ctx, f.seller.UserID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCancelled, cancelled.Status)
	assert.Equal(t, int64(7100), f.account(t).AvailableBalance)

	again, err := f.payouts.CancelPayout(ctx, f.seller.UserID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCancelled, again.Status)
	assert.Equal(t, int64(7100), f.account(t).AvailableBalance)
}

func TestCancelPayout_RejectsProcessingAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 20000)

	processing, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 6000)
	require.NoError(t, err)
	_, err = f.payouts.InitiateDisbursement(ctx, processing.ID)
	require.NoError(t, err)

	_, err = f.payouts.CancelPayout(ctx, f.seller.UserID, processing.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, f.payouts.HandleDisbursementCallback(ctx, processing.ID, DisbursementOutcome{Status: models.PayoutCompleted}))
	_, err = f.payouts.CancelPayout(ctx, f.seller.UserID, processing.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, int64(14000), f.account(t).AvailableBalance)
}

func TestInitiateDisbursement_InstructsNetAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 1000)
	require.NoError(t, err)

	got, err := f.payouts.InitiateDisbursement(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessing, got.Status)
	require.NotNil(t, got.ExternalPayoutID)

	require.Len(t, f.processor.Disbursements, 1)
	in := f.processor.Disbursements[0]
	assert.Equal(t, int64(900), in.Amount)
	assert.Equal(t, "acct_seller", in.DestinationAccount)
	assert.Equal(t, p.ReferenceNumber, in.Reference)
	assert.Equal(t, p.ID.String(), in.Metadata[MetaPayoutID])

	_, err = f.payouts.InitiateDisbursement(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDisbursementCallback_FailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)
	_, err = f.payouts.InitiateDisbursement(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.account(t).AvailableBalance)

	failed := DisbursementOutcome{Status: models.PayoutFailed, Reason: "account closed"}
	require.NoError(t, f.payouts.HandleDisbursementCallback(ctx, p.ID, failed))
	require.NoError(t, f.payouts.HandleDisbursementCallback(ctx, p.ID, failed))
	assert.Equal(t, int64(7100), f.account(t).AvailableBalance)

	got, err := f.store.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "account closed", *got.FailureReason)

	err = f.payouts.HandleDisbursementCallback(ctx, p.ID, DisbursementOutcome{Status: models.PayoutCompleted})
	assert.ErrorIs(t, err, ErrInvalidState)
	err = f.payouts.HandleDisbursementCallback(ctx, p.ID, DisbursementOutcome{Status: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestDisbursementCallback_RequiresProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)

	err = f.payouts.HandleDisbursementCallback(ctx, p.ID, DisbursementOutcome{Status: models.PayoutCompleted})
	assert.ErrorIs(t, err, ErrInvalidState)

	err = f.payouts.HandleDisbursementCallback(ctx, uuid.New(), DisbursementOutcome{Status: models.PayoutCompleted})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInitiateDisbursement_RejectedInstructionFailsPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)
	f.processor.DisburseErr = fmt.Errorf("%w: insufficient platform balance", payments.ErrDisbursementRejected)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)

	got, err := f.payouts.InitiateDisbursement(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutFailed, got.Status)
	assert.Equal(t, int64(7100), f.account(t).AvailableBalance)
}

func TestInitiateDisbursement_TimeoutKeepsReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)
	f.processor.DisburseErr = context.DeadlineExceeded

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)

	got, err := f.payouts.InitiateDisbursement(ctx, p.ID)
	assert.ErrorIs(t, err, ErrDisbursementUnconfirmed)
	require.NotNil(t, got)
	assert.Equal(t, models.PayoutProcessing, got.Status)
	assert.Equal(t, int64(0), f.account(t).AvailableBalance)

	_, err = f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, f.deliver(paymentstest.PayoutEvent("evt_late", true, "po_late", p.ID.String(), "")))
	done, err := f.store.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, done.Status)
	require.NotNil(t, done.ExternalPayoutID)
	assert.Equal(t, "po_late", *done.ExternalPayoutID)
	assert.Equal(t, int64(0), f.account(t).AvailableBalance)
}

func TestProcessPendingPayouts_ResendsUnconfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)
	f.processor.DisburseErr = errors.New("connection reset by peer")

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)
	n, err := f.payouts.ProcessPendingPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.processor.Disbursements)

	f.processor.DisburseErr = nil
	n, err = f.payouts.ProcessPendingPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, f.processor.Disbursements, 1)
	assert.Equal(t, p.ReferenceNumber, f.processor.Disbursements[0].Reference)
	got, err := f.store.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessing, got.Status)
	assert.NotNil(t, got.ExternalPayoutID)

	n, err = f.payouts.ProcessPendingPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, f.processor.Disbursements, 1)
}

func TestPayoutNotificationsCompletePayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 7100)

	p, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7100)
	require.NoError(t, err)
	p, err = f.payouts.InitiateDisbursement(ctx, p.ID)
	require.NoError(t, err)

	payload := paymentstest.PayoutEvent("evt_po", true, *p.ExternalPayoutID, p.ID.String(), "")
	require.NoError(t, f.deliver(payload))
	require.NoError(t, f.deliver(payload))

	got, err := f.store.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Equal(t, int64(0), f.account(t).AvailableBalance)
}

func TestProcessPendingPayouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.credit(t, 20000)

	a, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 6000)
	require.NoError(t, err)
	b, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 7000)
	require.NoError(t, err)
	c, err := f.payouts.RequestPayout(ctx, f.seller.UserID, 5000)
	require.NoError(t, err)
	_, err = f.payouts.CancelPayout(ctx, f.seller.UserID, c.ID)
	require.NoError(t, err)

	n, err := f.payouts.ProcessPendingPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	processing, err := f.payouts.ListPayoutsByStatus(ctx, models.PayoutProcessing)
	require.NoError(t, err)
	ids := []uuid.UUID{processing[0].ID, processing[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

	all, err := f.payouts.ListPayouts(ctx, f.seller.UserID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.payouts.ListPayoutsByStatus(ctx, "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
