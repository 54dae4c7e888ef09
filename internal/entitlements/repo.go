package entitlements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
)

// Repository persists per-user monthly token entitlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserMonth(ctx context.Context, userID uuid.UUID, month string) (*models.TokenUsage, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.TokenUsage, error)
	Upsert(ctx context.Context, usage *models.TokenUsage) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an entitlements repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserMonth(ctx context.Context, userID uuid.UUID, month string) (*models.TokenUsage, error) {
	if userID == uuid.Nil || month == "" {
		return nil, nil
	}
	var usage models.TokenUsage
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND month = ?", userID, month).
		First(&usage).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

// FindLatestByUser returns the most recent month's row for the user.
func (r *repository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.TokenUsage, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var usage models.TokenUsage
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("month DESC").
		First(&usage).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

// Upsert inserts or updates on (user_id, month), then re-reads the stored row.
func (r *repository) Upsert(ctx context.Context, usage *models.TokenUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "month"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"token_limit",
			"last_reset_at",
			"updated_at",
		}),
	}).Create(usage).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("user_id = ? AND month = ?", usage.UserID, usage.Month).
		First(usage).Error
}
