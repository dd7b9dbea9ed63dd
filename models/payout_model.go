package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
	PayoutCancelled  = "cancelled"
)

// ReservingPayoutStatuses hold their amount against the seller's balance.
var ReservingPayoutStatuses = []string{PayoutPending, PayoutProcessing, PayoutCompleted}

type Payout struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SellerID         uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Fee              int64     `gorm:"not null" json:"fee"`
	NetAmount        int64     `gorm:"not null" json:"net_amount"`
	Currency         string    `gorm:"size:3;not null" json:"currency"`
	Status           string    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReferenceNumber  string    `gorm:"size:40;not null;unique" json:"reference_number"`
	ExternalPayoutID *string   `gorm:"size:255" json:"external_payout_id,omitempty"`
	FailureReason    *string   `gorm:"type:text" json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p *Payout) Reserves() bool {
	for _, s := range ReservingPayoutStatuses {
		if p.Status == s {
			return true
		}
	}
	return false
}
