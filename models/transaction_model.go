package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
	TransactionRefunded  = "refunded"
)

// Transaction is one product sale. Amounts are minor currency units and the
// split columns always satisfy PlatformFee + SellerNetAmount == GrossAmount.
type Transaction struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProductID           uuid.UUID  `gorm:"type:uuid;not null" json:"product_id"`
	BuyerID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"seller_id"`
	PromoterID          *uuid.UUID `gorm:"type:uuid" json:"promoter_id,omitempty"`
	PromoterCode        *string    `gorm:"size:10" json:"promoter_code,omitempty"`
	GrossAmount         int64      `gorm:"not null" json:"gross_amount"`
	PlatformFee         int64      `gorm:"not null" json:"platform_fee"`
	AffiliateCommission int64      `gorm:"not null;default:0" json:"affiliate_commission"`
	SellerNetAmount     int64      `gorm:"not null" json:"seller_net_amount"`
	Currency            string     `gorm:"size:3;not null" json:"currency"`
	Status              string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	SessionID           *string    `gorm:"size:255;unique" json:"session_id,omitempty"`
	PaymentIntentID     *string    `gorm:"size:255;unique" json:"payment_intent_id,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsTerminal reports whether settlement events can no longer complete t.
func (t *Transaction) IsTerminal() bool {
	return t.Status != TransactionPending
}
