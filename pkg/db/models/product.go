package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow-backend/pkg/enums"
)

// Product mirrors a fixed recurring Polar price for display. One row per
// price id, so a product with monthly and yearly prices yields two rows.
type Product struct {
	ID              uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PolarProductID  string                `gorm:"column:polar_product_id;not null;index"`
	PolarPriceID    string                `gorm:"column:polar_price_id;not null;uniqueIndex"`
	Name            string                `gorm:"column:name;not null"`
	Description     string                `gorm:"column:description;not null;default:''"`
	PriceAmount     int64                 `gorm:"column:price_amount;not null"`
	PriceCurrency   string                `gorm:"column:price_currency;not null"`
	BillingInterval enums.BillingInterval `gorm:"column:billing_interval;not null"`
	IsArchived      bool                  `gorm:"column:is_archived;not null;default:false"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
