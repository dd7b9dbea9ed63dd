// Package paymentstest provides an in-process payment processor for tests.
package paymentstest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/creator_market/payments"
)

const WebhookSecret = "whsec_test_secret"

// Processor records checkout and disbursement calls. Set CheckoutErr or
// DisburseErr to make the next calls fail.
type Processor struct {
	*payments.WebhookVerifier

	mu            sync.Mutex
	Checkouts     []payments.CheckoutRequest
	Disbursements []payments.DisbursementInstruction
	CheckoutErr   error
	DisburseErr   error
	seq           int
}

func NewProcessor() *Processor {
	return &Processor{WebhookVerifier: payments.NewWebhookVerifier(WebhookSecret, payments.DefaultTolerance)}
}

func (p *Processor) CreateCheckoutSession(_ context.Context, req *payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CheckoutErr != nil {
		return nil, p.CheckoutErr
	}
	p.seq++
	p.Checkouts = append(p.Checkouts, *req)
	id := fmt.Sprintf("cs_test_%d", p.seq)
	return &payments.CheckoutSession{ID: id, URL: "https://checkout.test/pay/" + id}, nil
}

func (p *Processor) Disburse(_ context.Context, in *payments.DisbursementInstruction) (*payments.Disbursement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DisburseErr != nil {
		return nil, p.DisburseErr
	}
	p.seq++
	p.Disbursements = append(p.Disbursements, *in)
	return &payments.Disbursement{ID: fmt.Sprintf("po_test_%d", p.seq), Status: "pending"}, nil
}

func (p *Processor) LastCheckout() payments.CheckoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Checkouts[len(p.Checkouts)-1]
}

// Sign returns the signature header the processor would send for payload.
func Sign(payload []byte) string {
	return payments.SignPayload(WebhookSecret, payload, time.Now())
}

func event(id, typ string, object map[string]any) []byte {
	body, err := json.Marshal(map[string]any{
		"id":   id,
		"type": typ,
		"data": map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return body
}

func CheckoutCompleted(eventID, sessionID, paymentIntentID string, amount int64, metadata map[string]string) []byte {
	return event(eventID, string(payments.EventCheckoutCompleted), map[string]any{
		"id":             sessionID,
		"payment_intent": paymentIntentID,
		"amount_total":   amount,
		"payment_status": "paid",
		"metadata":       metadata,
	})
}

func CheckoutExpired(eventID, sessionID string) []byte {
	return event(eventID, string(payments.EventCheckoutExpired), map[string]any{
		"id":             sessionID,
		"payment_status": "unpaid",
	})
}

func ChargeRefunded(eventID, paymentIntentID string, amount, refunded int64) []byte {
	return event(eventID, string(payments.EventChargeRefunded), map[string]any{
		"id":              "ch_" + eventID,
		"payment_intent":  paymentIntentID,
		"amount":          amount,
		"amount_refunded": refunded,
		"refunded":        refunded >= amount,
	})
}

func PayoutEvent(eventID string, paid bool, externalID, payoutID, failure string) []byte {
	typ := payments.EventPayoutPaid
	if !paid {
		typ = payments.EventPayoutFailed
	}
	return event(eventID, string(typ), map[string]any{
		"id":              externalID,
		"failure_message": failure,
		"metadata":        map[string]string{"payout_id": payoutID},
	})
}
