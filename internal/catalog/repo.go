package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
)

// Repository handles catalog persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertProduct(ctx context.Context, product *models.Product) error
	ArchiveExcept(ctx context.Context, keepPriceIDs []string) (int64, error)
	ListActive(ctx context.Context) ([]models.Product, error)
	FindByPriceID(ctx context.Context, priceID string) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertProduct inserts or updates on the provider price id, then re-reads the
// stored row so generated fields are populated.
func (r *repository) UpsertProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "polar_price_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"polar_product_id",
			"name",
			"description",
			"price_amount",
			"price_currency",
			"billing_interval",
			"is_archived",
			"updated_at",
		}),
	}).Create(product).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("polar_price_id = ?", product.PolarPriceID).
		First(product).Error
}

// ArchiveExcept marks every product whose price id is not in keepPriceIDs as
// archived and reports the number of rows touched. An empty keep list archives
// the whole catalog.
func (r *repository) ArchiveExcept(ctx context.Context, keepPriceIDs []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_archived = ?", false)
	if len(keepPriceIDs) > 0 {
		query = query.Where("polar_price_id NOT IN ?", keepPriceIDs)
	}
	result := query.Update("is_archived", true)
	return result.RowsAffected, result.Error
}

func (r *repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("price_amount ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindByPriceID(ctx context.Context, priceID string) (*models.Product, error) {
	if priceID == "" {
		return nil, nil
	}
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("polar_price_id = ?", priceID).
		First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}
