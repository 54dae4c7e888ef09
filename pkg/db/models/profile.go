package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile shadows the hosted auth provider's account record. ID equals the
// auth provider's user id; CustomerID backfills once billing links the account.
type Profile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email      string    `gorm:"column:email;not null;uniqueIndex"`
	CustomerID *string   `gorm:"column:customer_id;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
