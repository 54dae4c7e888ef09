package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenUsage tracks the AI token entitlement for a platform account, one row
// per user per month. TokenLimit only ever moves up or holds; reconciliation
// never drops it below a previously granted maximum.
type TokenUsage struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_token_usage_user_month"`
	Month       string     `gorm:"column:month;not null;uniqueIndex:idx_token_usage_user_month"`
	TokenLimit  int64      `gorm:"column:token_limit;not null;default:0"`
	TokensUsed  int64      `gorm:"column:tokens_used;not null;default:0"`
	LastResetAt *time.Time `gorm:"column:last_reset_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
