package models

import (
	"time"

	"github.com/google/uuid"
)

// Seller is the payout-side profile of a user who lists products. Level is a
// high-water mark and only ever moves up.
type Seller struct {
	UserID          uuid.UUID `gorm:"type:uuid;primary_key" json:"user_id"`
	PayoutAccountID *string   `gorm:"size:255;unique" json:"payout_account_id"`
	ChargesEnabled  bool      `gorm:"default:false" json:"charges_enabled"`
	PayoutsEnabled  bool      `gorm:"default:false" json:"payouts_enabled"`
	Level           int       `gorm:"not null;default:1" json:"level"`
	User            User      `gorm:"foreignkey:UserID" json:"user"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

func (s *Seller) CanReceiveCharges() bool {
	return s.PayoutAccountID != nil && *s.PayoutAccountID != "" && s.ChargesEnabled
}

func (s *Seller) CanReceivePayouts() bool {
	return s.PayoutAccountID != nil && *s.PayoutAccountID != "" && s.PayoutsEnabled
}
