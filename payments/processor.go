package payments

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrDisbursementRejected marks a definitive refusal of a disbursement.
	// Transport errors and timeouts are not wrapped with it: the processor
	// may still have accepted the instruction.
	ErrDisbursementRejected = errors.New("disbursement rejected by processor")
)

type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

// CheckoutRequest is everything the processor needs to open a payment session
// that routes the seller share to DestinationAccount and withholds
// ApplicationFeeAmount for the platform.
type CheckoutRequest struct {
	ClientReferenceID    string
	Currency             string
	CustomerEmail        string
	LineItem             LineItem
	DestinationAccount   string
	ApplicationFeeAmount int64
	Metadata             map[string]string
	SuccessURL           string
	CancelURL            string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventCheckoutAsyncPaid   EventType = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed EventType = "checkout.session.async_payment_failed"
	EventCheckoutExpired     EventType = "checkout.session.expired"
	EventChargeRefunded      EventType = "charge.refunded"
	EventPayoutPaid          EventType = "payout.paid"
	EventPayoutFailed        EventType = "payout.failed"
)

// Notification is a verified processor event reduced to the fields the
// settlement core reads. Fields irrelevant to Type are left zero.
type Notification struct {
	ID   string
	Type EventType

	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Paid            bool

	AmountRefunded int64
	FullyRefunded  bool

	ExternalPayoutID string
	FailureReason    string

	Metadata map[string]string
}

type DisbursementInstruction struct {
	DestinationAccount string
	Amount             int64
	Currency           string
	Reference          string
	Metadata           map[string]string
}

type Disbursement struct {
	ID     string
	Status string
}

type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
}

type NotificationVerifier interface {
	VerifyAndParseNotification(payload []byte, signature string) (*Notification, error)
}

type Disburser interface {
	Disburse(ctx context.Context, in *DisbursementInstruction) (*Disbursement, error)
}
