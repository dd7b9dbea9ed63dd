package services

import "errors"

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidPercentage     = errors.New("invalid percentage")
	ErrInvalidSignature      = errors.New("invalid notification signature")
	ErrMalformedNotification = errors.New("malformed notification")
	ErrSellerNotPayable      = errors.New("seller payout account is not enabled")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrBelowMinimumThreshold = errors.New("balance below minimum payout threshold")
	ErrInvalidState          = errors.New("invalid state transition")
	// ErrDuplicateNotification is logged, never returned to callers.
	ErrDuplicateNotification = errors.New("duplicate notification")

	ErrNotFound           = errors.New("not found")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrSelfPurchase       = errors.New("sellers cannot buy their own products")
	ErrAlreadyPromoter    = errors.New("user already has a promoter code")
	ErrInvalidOutcome     = errors.New("invalid disbursement outcome")
	ErrInvalidStatus      = errors.New("unknown status")
	// ErrDisbursementUnconfirmed means the channel may or may not have taken
	// the instruction; the payout keeps its reservation until an outcome arrives.
	ErrDisbursementUnconfirmed = errors.New("disbursement not confirmed")
)
