package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	"github.com/scribeflow/scribeflow-backend/pkg/enums"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
	"github.com/scribeflow/scribeflow-backend/pkg/polar"
)

type productLister interface {
	ListProducts(ctx context.Context) ([]polar.Product, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	Provider          productLister
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service mirrors the provider's catalog into local storage and serves it to
// the storefront.
type Service struct {
	repo     Repository
	provider productLister
	txRunner txRunner
	logger   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repo required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product provider required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:     params.Repo,
		provider: params.Provider,
		txRunner: params.TransactionRunner,
		logger:   params.Logger,
	}, nil
}

// SyncResult summarizes one catalog sync pass.
type SyncResult struct {
	Upserted int   `json:"upserted"`
	Archived int64 `json:"archived"`
}

// Sync pulls the provider's products and reconciles local rows: one row per
// fixed recurring price, everything else archived. A provider failure leaves
// the stored catalog untouched.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	products, err := s.provider.ListProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list provider products")
	}

	rows := flattenPrices(products)

	result := &SyncResult{}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		seen := make([]string, 0, len(rows))
		for i := range rows {
			if err := repo.UpsertProduct(ctx, &rows[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert product").WithDetails(map[string]any{
					"polar_price_id": rows[i].PolarPriceID,
				})
			}
			seen = append(seen, rows[i].PolarPriceID)
		}

		archived, err := repo.ArchiveExcept(ctx, seen)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive stale products")
		}

		result.Upserted = len(seen)
		result.Archived = archived
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{
			"upserted": result.Upserted,
			"archived": result.Archived,
		}), "catalog.sync.complete")
	}
	return result, nil
}

// ListActive returns the sellable catalog, cheapest first.
func (s *Service) ListActive(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// flattenPrices turns provider products into one storable row per fixed
// recurring price. Archived products and non-recurring or custom prices are
// skipped.
func flattenPrices(products []polar.Product) []models.Product {
	var rows []models.Product
	for _, product := range products {
		if product.IsArchived || !product.IsRecurring {
			continue
		}
		for _, price := range product.Prices {
			if price.IsArchived || !price.IsFixedRecurring() {
				continue
			}
			interval, err := enums.ParseBillingInterval(price.RecurringInterval)
			if err != nil {
				continue
			}
			rows = append(rows, models.Product{
				PolarProductID:  product.ID,
				PolarPriceID:    price.ID,
				Name:            product.Name,
				Description:     product.Description,
				PriceAmount:     price.PriceAmount,
				PriceCurrency:   price.PriceCurrency,
				BillingInterval: interval,
			})
		}
	}
	return rows
}
