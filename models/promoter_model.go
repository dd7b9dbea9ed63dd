package models

import (
	"time"

	"github.com/google/uuid"
)

type Promoter struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;unique" json:"user_id"`
	Code     string    `gorm:"size:10;not null;unique" json:"code"`
	IsActive bool      `gorm:"default:true" json:"is_active"`

	User User `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
