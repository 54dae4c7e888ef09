package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow-backend/pkg/enums"
)

// Customer persists the billing-provider party record, optionally linked to a
// platform account via AuthID.
type Customer struct {
	ID                 uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID         string                    `gorm:"column:customer_id;not null;uniqueIndex"`
	Email              string                    `gorm:"column:email;not null;uniqueIndex"`
	AuthID             *uuid.UUID                `gorm:"column:auth_id;type:uuid;index"`
	SubscriptionStatus *enums.SubscriptionStatus `gorm:"column:subscription_status"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
