package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTolerance = 5 * time.Minute

// WebhookVerifier checks `t=<unix>,v1=<hex hmac>` signature headers computed
// over "<t>.<payload>" with the endpoint secret.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

func SignPayload(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature([]byte(secret), ts, payload))
}

func computeSignature(secret []byte, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *WebhookVerifier) Verify(payload []byte, header string) error {
	if header == "" {
		return fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	var ts string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if ts == "" || len(candidates) == 0 {
		return fmt.Errorf("%w: header has no timestamp or v1 signature", ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := v.now().Sub(time.Unix(unix, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected, _ := hex.DecodeString(computeSignature(v.secret, ts, payload))
	for _, c := range candidates {
		got, err := hex.DecodeString(c)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", ErrInvalidSignature)
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeCharge struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Refunded       bool              `json:"refunded"`
	Metadata       map[string]string `json:"metadata"`
}

type stripePayout struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	FailureMessage string            `json:"failure_message"`
	Metadata       map[string]string `json:"metadata"`
}

// VerifyAndParseNotification authenticates payload before decoding any of it.
func (v *WebhookVerifier) VerifyAndParseNotification(payload []byte, signature string) (*Notification, error) {
	if err := v.Verify(payload, signature); err != nil {
		return nil, err
	}

	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: event id or type missing", ErrMalformedPayload)
	}

	n := &Notification{ID: ev.ID, Type: EventType(ev.Type)}

	switch n.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaid, EventCheckoutAsyncFailed, EventCheckoutExpired:
		var s stripeSession
		if err := decodeObject(ev.Data.Object, &s); err != nil {
			return nil, err
		}
		n.SessionID = s.ID
		n.PaymentIntentID = s.PaymentIntent
		n.AmountTotal = s.AmountTotal
		n.Paid = s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
		n.Metadata = s.Metadata
		if n.Type == EventCheckoutAsyncPaid {
			n.Type = EventCheckoutCompleted
			n.Paid = true
		}
	case EventChargeRefunded:
		var c stripeCharge
		if err := decodeObject(ev.Data.Object, &c); err != nil {
			return nil, err
		}
		n.PaymentIntentID = c.PaymentIntent
		n.AmountTotal = c.Amount
		n.AmountRefunded = c.AmountRefunded
		n.FullyRefunded = c.Refunded
		n.Metadata = c.Metadata
	case EventPayoutPaid, EventPayoutFailed:
		var p stripePayout
		if err := decodeObject(ev.Data.Object, &p); err != nil {
			return nil, err
		}
		n.ExternalPayoutID = p.ID
		n.FailureReason = p.FailureMessage
		n.Metadata = p.Metadata
	}

	return n, nil
}

func decodeObject(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: data.object missing", ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
