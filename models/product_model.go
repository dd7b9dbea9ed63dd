package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID                         uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SellerID                   uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_id"`
	Title                      string          `gorm:"size:255;not null" json:"title"`
	Description                string          `gorm:"type:text" json:"description"`
	ImageURL                   *string         `gorm:"size:255" json:"image_url"`
	Price                      int64           `gorm:"not null" json:"price"`
	Currency                   string          `gorm:"size:3;not null" json:"currency"`
	AffiliateCommissionPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"affiliate_commission_percent"`
	IsActive                   bool            `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
