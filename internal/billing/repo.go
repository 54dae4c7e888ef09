package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	"github.com/scribeflow/scribeflow-backend/pkg/enums"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCustomerByProviderID(ctx context.Context, customerID string) (*models.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	UpsertSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status enums.SubscriptionStatus) error
	FindSubscriptionByProviderID(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCustomerByProviderID(ctx context.Context, customerID string) (*models.Customer, error) {
	if customerID == "" {
		return nil, nil
	}
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&customer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	if email == "" {
		return nil, nil
	}
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&customer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

// UpsertSubscription inserts or updates on the provider subscription id, then
// re-reads the stored row so generated fields are populated.
func (r *repository) UpsertSubscription(ctx context.Context, subscription *models.Subscription) error {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"product_id",
			"price_id",
			"status",
			"current_period_start",
			"current_period_end",
			"updated_at",
		}),
	}).Create(subscription).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("subscription_id = ?", subscription.SubscriptionID).
		First(subscription).Error
}

// UpdateSubscriptionStatus transitions a subscription in place. Missing rows
// are not an error; a status event may arrive before its activation event.
func (r *repository) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status enums.SubscriptionStatus) error {
	if subscriptionID == "" {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Update("status", status).Error
}

func (r *repository) FindSubscriptionByProviderID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	if subscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
