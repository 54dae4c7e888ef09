package polarwebhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow-backend/internal/billing"
	"github.com/scribeflow/scribeflow-backend/pkg/config"
	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	"github.com/scribeflow/scribeflow-backend/pkg/email"
	"github.com/scribeflow/scribeflow-backend/pkg/enums"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
)

type profileRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateCustomerID(ctx context.Context, profile *models.Profile, customerID string) error
}

type entitlementGranter interface {
	EnsureLimit(ctx context.Context, userID uuid.UUID, floor int64) (*models.TokenUsage, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	ProfileRepo       profileRepository
	Entitlements      entitlementGranter
	TransactionRunner txRunner
	EntitlementsCfg   config.EntitlementsConfig
	EmailSender       email.Sender
	Logger            *logger.Logger
}

type Service struct {
	billingRepo  billing.Repository
	profileRepo  profileRepository
	entitlements entitlementGranter
	txRunner     txRunner
	cfg          config.EntitlementsConfig
	sender       email.Sender
	logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.ProfileRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile repo required")
	}
	if params.Entitlements == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "entitlements service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		billingRepo:  params.BillingRepo,
		profileRepo:  params.ProfileRepo,
		entitlements: params.Entitlements,
		txRunner:     params.TransactionRunner,
		cfg:          params.EntitlementsCfg,
		sender:       params.EmailSender,
		logger:       params.Logger,
	}, nil
}

// HandleEvent processes billing subscription lifecycle events. Unknown event
// types are acknowledged without action so the provider stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}
	if s.logger != nil {
		ctx = s.logger.WithEventType(ctx, event.Type)
		ctx = s.logger.WithSubscriptionID(ctx, event.Data.ID)
	}

	switch strings.ToLower(event.Type) {
	case EventSubscriptionActive:
		return s.handleActivated(ctx, event.Data)
	case EventSubscriptionCanceled:
		return s.handleStatusChange(ctx, event.Data, enums.SubscriptionStatusCanceled)
	case EventSubscriptionRevoked:
		return s.handleStatusChange(ctx, event.Data, enums.SubscriptionStatusRevoked)
	default:
		return nil
	}
}

// handleActivated reconciles an activation: resolve the customer, upsert the
// subscription, and raise the account's token entitlement. Entitlement and
// email steps are best-effort; the subscription write is the source of truth.
func (s *Service) handleActivated(ctx context.Context, data SubscriptionData) error {
	if data.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	if data.CustomerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id missing")
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		customer, err := s.resolveCustomer(ctx, repo, data)
		if err != nil {
			return err
		}

		status := parseStatus(data.Status)
		sub := &models.Subscription{
			SubscriptionID:     data.ID,
			CustomerID:         customer.CustomerID,
			ProductID:          data.ProductID,
			PriceID:            data.FirstPriceID(),
			Status:             status,
			CurrentPeriodStart: data.CurrentPeriodStart,
			CurrentPeriodEnd:   data.CurrentPeriodEnd,
		}
		if err := repo.UpsertSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription").WithDetails(map[string]any{"step": "subscription"})
		}

		if customer.SubscriptionStatus == nil || *customer.SubscriptionStatus != status {
			customer.SubscriptionStatus = &status
			if err := repo.UpdateCustomer(ctx, customer); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer status").WithDetails(map[string]any{"step": "customer"})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Entitlement lives outside the transaction: the original delivery may
	// have already committed the subscription while this step failed, and a
	// retry must still be able to grant tokens.
	s.grantEntitlement(ctx, data, s.cfg.LimitFor(data.ProductID), true)
	return nil
}

// handleStatusChange marks a subscription canceled or revoked. The token
// entitlement drops to the default floor but never below an allowance the
// account already holds.
func (s *Service) handleStatusChange(ctx context.Context, data SubscriptionData, status enums.SubscriptionStatus) error {
	if data.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		if err := repo.UpdateSubscriptionStatus(ctx, data.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription status").WithDetails(map[string]any{"step": "subscription"})
		}

		sub, err := repo.FindSubscriptionByProviderID(ctx, data.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription").WithDetails(map[string]any{"step": "subscription"})
		}
		if sub == nil {
			// Status events can arrive before the activation was seen.
			s.warn(ctx, "status change for unknown subscription")
			return nil
		}

		customer, err := repo.FindCustomerByProviderID(ctx, sub.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer").WithDetails(map[string]any{"step": "customer"})
		}
		if customer != nil && (customer.SubscriptionStatus == nil || *customer.SubscriptionStatus != status) {
			customer.SubscriptionStatus = &status
			if err := repo.UpdateCustomer(ctx, customer); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer status").WithDetails(map[string]any{"step": "customer"})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.grantEntitlement(ctx, data, s.cfg.DefaultTokenLimit, false)
	return nil
}

// resolveCustomer finds the billing customer by provider id, then by email,
// and finally inserts a new row. A payload without an email gets a
// placeholder address derived from the provider customer id.
func (s *Service) resolveCustomer(ctx context.Context, repo billing.Repository, data SubscriptionData) (*models.Customer, error) {
	customer, err := repo.FindCustomerByProviderID(ctx, data.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find customer").WithDetails(map[string]any{"step": "customer"})
	}
	if customer != nil {
		return customer, nil
	}

	customerEmail := data.Email()
	if customerEmail == "" {
		customerEmail = fmt.Sprintf("%s@example.com", data.CustomerID)
	}

	customer, err = repo.FindCustomerByEmail(ctx, customerEmail)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find customer by email").WithDetails(map[string]any{"step": "customer"})
	}
	if customer != nil {
		// Same account, new provider identity: adopt the id in place.
		customer.CustomerID = data.CustomerID
		if err := repo.UpdateCustomer(ctx, customer); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "relink customer").WithDetails(map[string]any{"step": "customer"})
		}
		return customer, nil
	}

	customer = &models.Customer{
		CustomerID: data.CustomerID,
		Email:      customerEmail,
	}
	if err := repo.CreateCustomer(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer").WithDetails(map[string]any{"step": "customer"})
	}
	return customer, nil
}

// grantEntitlement links the platform account by the payload's real email and
// raises its token floor. Failures are logged, never returned: a missing
// profile only means the user has not signed up yet.
func (s *Service) grantEntitlement(ctx context.Context, data SubscriptionData, floor int64, notify bool) {
	profileEmail := data.Email()
	if profileEmail == "" {
		s.warn(ctx, "event has no customer email, skipping entitlement")
		return
	}

	profile, err := s.profileRepo.FindByEmail(ctx, profileEmail)
	if err != nil {
		s.error(ctx, "load profile", err)
		return
	}
	if profile == nil {
		s.warn(ctx, "no profile found for customer email")
		return
	}

	if profile.CustomerID == nil || *profile.CustomerID != data.CustomerID {
		if err := s.profileRepo.UpdateCustomerID(ctx, profile, data.CustomerID); err != nil {
			s.error(ctx, "link profile to customer", err)
		}
	}

	usage, err := s.entitlements.EnsureLimit(ctx, profile.ID, floor)
	if err != nil {
		s.error(ctx, "ensure token limit", err)
		return
	}

	if notify && s.sender != nil {
		params := email.SendParams{
			To:      profileEmail,
			Subject: "Your subscription is active",
			BodyHTML: fmt.Sprintf(
				"<p>Your plan is now active. You have %d AI tokens available this month.</p>",
				usage.TokenLimit,
			),
			Tag: "subscription-activated",
		}
		if err := s.sender.Send(ctx, params); err != nil {
			s.error(ctx, "send activation email", err)
		}
	}
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logger != nil {
		s.logger.Warn(ctx, msg)
	}
}

func (s *Service) error(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.Error(ctx, msg, err)
	}
}

func parseStatus(raw string) enums.SubscriptionStatus {
	status, err := enums.ParseSubscriptionStatus(raw)
	if err != nil {
		return enums.SubscriptionStatusActive
	}
	return status
}
