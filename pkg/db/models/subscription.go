package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow-backend/pkg/enums"
)

// Subscription persists Polar subscription state per customer.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID     string                   `gorm:"column:subscription_id;not null;uniqueIndex"`
	CustomerID         string                   `gorm:"column:customer_id;not null;index"`
	ProductID          string                   `gorm:"column:product_id;not null"`
	PriceID            *string                  `gorm:"column:price_id"`
	Status             enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	CurrentPeriodStart *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
