package subscriptions

import (
	"context"
	"strings"
	"time"

	"github.com/scribeflow/scribeflow-backend/internal/billing"
	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	"github.com/scribeflow/scribeflow-backend/pkg/enums"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
)

type productFinder interface {
	FindByPriceID(ctx context.Context, priceID string) (*models.Product, error)
}

type ServiceParams struct {
	BillingRepo billing.Repository
	CatalogRepo productFinder
}

// Service answers subscription lookups for the storefront and account pages.
type Service struct {
	billingRepo billing.Repository
	catalogRepo productFinder
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.CatalogRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repo required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		catalogRepo: params.CatalogRepo,
	}, nil
}

// SubscriptionView is a subscription joined with its catalog entry.
type SubscriptionView struct {
	SubscriptionID     string                   `json:"subscription_id"`
	Status             enums.SubscriptionStatus `json:"status"`
	ProductID          string                   `json:"product_id"`
	ProductName        string                   `json:"product_name,omitempty"`
	PriceAmount        int64                    `json:"price_amount,omitempty"`
	PriceCurrency      string                   `json:"price_currency,omitempty"`
	BillingInterval    enums.BillingInterval    `json:"billing_interval,omitempty"`
	CurrentPeriodStart *time.Time               `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
}

// ListByEmail returns every subscription recorded for the customer behind the
// address, newest first. An unknown address yields an empty list, not an
// error; the storefront treats both the same way.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]SubscriptionView, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	customer, err := s.billingRepo.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find customer")
	}
	if customer == nil {
		return []SubscriptionView{}, nil
	}

	return s.listForCustomer(ctx, customer.CustomerID)
}

// ActiveForCustomer returns the customer's newest active subscription, or nil
// when none exists.
func (s *Service) ActiveForCustomer(ctx context.Context, customerID string) (*SubscriptionView, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	views, err := s.listForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].Status.IsActive() {
			return &views[i], nil
		}
	}
	return nil, nil
}

func (s *Service) listForCustomer(ctx context.Context, customerID string) ([]SubscriptionView, error) {
	subs, err := s.billingRepo.ListSubscriptionsByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}

	views := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		view := SubscriptionView{
			SubscriptionID:     sub.SubscriptionID,
			Status:             sub.Status,
			ProductID:          sub.ProductID,
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		}
		if sub.PriceID != nil {
			product, err := s.catalogRepo.FindByPriceID(ctx, *sub.PriceID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if product != nil {
				view.ProductName = product.Name
				view.PriceAmount = product.PriceAmount
				view.PriceCurrency = product.PriceCurrency
				view.BillingInterval = product.BillingInterval
			}
		}
		views = append(views, view)
	}
	return views, nil
}
