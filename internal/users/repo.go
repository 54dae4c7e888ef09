package users

import (
	"context"

	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
)

// Repository reads and links auth-provider profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateCustomerID(ctx context.Context, profile *models.Profile, customerID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a profile repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if email == "" {
		return nil, nil
	}
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// UpdateCustomerID links the billing customer to the profile.
func (r *repository) UpdateCustomerID(ctx context.Context, profile *models.Profile, customerID string) error {
	if profile == nil || customerID == "" {
		return nil
	}
	profile.CustomerID = &customerID
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profile.ID).
		Update("customer_id", customerID).Error
}
