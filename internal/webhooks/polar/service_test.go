package polarwebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow-backend/internal/billing"
	"github.com/scribeflow/scribeflow-backend/pkg/config"
	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	"github.com/scribeflow/scribeflow-backend/pkg/enums"
)

func testEntitlementsConfig() config.EntitlementsConfig {
	return config.EntitlementsConfig{
		TokenLimits: map[string]int64{
			"prod_standard": 500000,
			"prod_premium":  1000000,
		},
		DefaultTokenLimit: 500,
	}
}

func newTestService(t *testing.T, billingRepo *stubBillingRepo, profileRepo *stubProfileRepo, grants *stubEntitlements) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		BillingRepo:       billingRepo,
		ProfileRepo:       profileRepo,
		Entitlements:      grants,
		TransactionRunner: &stubTxRunner{},
		EntitlementsCfg:   testEntitlementsConfig(),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func activeEvent(subID, custID, productID, email string) *WebhookEvent {
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	data := SubscriptionData{
		ID:               subID,
		Status:           "active",
		ProductID:        productID,
		CustomerID:       custID,
		CurrentPeriodEnd: &end,
		Prices:           []PriceRef{{ID: "price_1"}},
	}
	if email != "" {
		data.Customer = &CustomerPayload{ID: custID, Email: email}
	}
	return &WebhookEvent{Type: EventSubscriptionActive, Data: data}
}

func TestHandleActivatedCreatesCustomerAndSubscription(t *testing.T) {
	profileID := uuid.New()
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{
		"writer@example.com": {ID: profileID, Email: "writer@example.com"},
	}}
	grants := &stubEntitlements{}
	service := newTestService(t, billingRepo, profileRepo, grants)

	event := activeEvent("sub_1", "cus_1", "prod_standard", "writer@example.com")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	customer := billingRepo.customersByProviderID["cus_1"]
	if customer == nil {
		t.Fatal("expected customer created")
	}
	if customer.Email != "writer@example.com" {
		t.Fatalf("unexpected customer email %q", customer.Email)
	}

	sub := billingRepo.subscriptions["sub_1"]
	if sub == nil {
		t.Fatal("expected subscription upserted")
	}
	if sub.CustomerID != "cus_1" || sub.ProductID != "prod_standard" {
		t.Fatalf("unexpected subscription fields: %+v", sub)
	}
	if sub.PriceID == nil || *sub.PriceID != "price_1" {
		t.Fatal("expected first price id recorded")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected status %s", sub.Status)
	}

	if len(grants.calls) != 1 {
		t.Fatalf("expected one entitlement grant, got %d", len(grants.calls))
	}
	if grants.calls[0].userID != profileID || grants.calls[0].floor != 500000 {
		t.Fatalf("unexpected grant %+v", grants.calls[0])
	}

	// Profile is linked to the billing customer.
	if got := profileRepo.linked[profileID]; got != "cus_1" {
		t.Fatalf("expected profile linked to cus_1, got %q", got)
	}
}

func TestHandleActivatedPrefersProviderIDOverEmail(t *testing.T) {
	billingRepo := newStubBillingRepo()
	existing := &models.Customer{ID: uuid.New(), CustomerID: "cus_1", Email: "old@example.com"}
	billingRepo.addCustomer(existing)

	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	service := newTestService(t, billingRepo, profileRepo, &stubEntitlements{})

	event := activeEvent("sub_1", "cus_1", "prod_standard", "new@example.com")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if billingRepo.createdCustomers != 0 {
		t.Fatalf("expected no new customer, created %d", billingRepo.createdCustomers)
	}
	// The matched row keeps its stored email.
	if existing.Email != "old@example.com" {
		t.Fatalf("stored email must not change, got %q", existing.Email)
	}
}

func TestHandleActivatedRelinksCustomerByEmail(t *testing.T) {
	billingRepo := newStubBillingRepo()
	existing := &models.Customer{ID: uuid.New(), CustomerID: "cus_old", Email: "writer@example.com"}
	billingRepo.addCustomer(existing)

	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	service := newTestService(t, billingRepo, profileRepo, &stubEntitlements{})

	event := activeEvent("sub_1", "cus_new", "prod_standard", "writer@example.com")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if billingRepo.createdCustomers != 0 {
		t.Fatal("expected existing customer reused")
	}
	if existing.CustomerID != "cus_new" {
		t.Fatalf("expected provider id adopted, got %q", existing.CustomerID)
	}
	if billingRepo.subscriptions["sub_1"].CustomerID != "cus_new" {
		t.Fatal("subscription must reference the new provider id")
	}
}

func TestHandleActivatedWithoutEmailUsesPlaceholder(t *testing.T) {
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	grants := &stubEntitlements{}
	service := newTestService(t, billingRepo, profileRepo, grants)

	event := activeEvent("sub_1", "cus_1", "prod_standard", "")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	customer := billingRepo.customersByProviderID["cus_1"]
	if customer == nil {
		t.Fatal("expected customer created")
	}
	if customer.Email != "cus_1@example.com" {
		t.Fatalf("expected placeholder email, got %q", customer.Email)
	}

	// No email means no profile linkage and no grant.
	if len(grants.calls) != 0 {
		t.Fatal("expected no entitlement grant without an email")
	}
}

func TestHandleActivatedMissingProfileIsNotAnError(t *testing.T) {
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	grants := &stubEntitlements{}
	service := newTestService(t, billingRepo, profileRepo, grants)

	event := activeEvent("sub_1", "cus_1", "prod_standard", "nobody@example.com")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if billingRepo.subscriptions["sub_1"] == nil {
		t.Fatal("subscription write must survive a missing profile")
	}
	if len(grants.calls) != 0 {
		t.Fatal("expected no grant for unknown profile")
	}
}

func TestHandleActivatedUnknownProductUsesDefaultFloor(t *testing.T) {
	profileID := uuid.New()
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{
		"writer@example.com": {ID: profileID, Email: "writer@example.com"},
	}}
	grants := &stubEntitlements{}
	service := newTestService(t, billingRepo, profileRepo, grants)

	event := activeEvent("sub_1", "cus_1", "prod_mystery", "writer@example.com")
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(grants.calls) != 1 || grants.calls[0].floor != 500 {
		t.Fatalf("expected default floor grant, got %+v", grants.calls)
	}
}

func TestHandleActivatedRedeliveryUpdatesSameRow(t *testing.T) {
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	service := newTestService(t, billingRepo, profileRepo, &stubEntitlements{})

	first := activeEvent("sub_1", "cus_1", "prod_standard", "")
	if err := service.HandleEvent(context.Background(), first); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second := activeEvent("sub_1", "cus_1", "prod_premium", "")
	if err := service.HandleEvent(context.Background(), second); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if billingRepo.subscriptionCount() != 1 {
		t.Fatalf("expected single subscription row, got %d", billingRepo.subscriptionCount())
	}
	if billingRepo.subscriptions["sub_1"].ProductID != "prod_premium" {
		t.Fatal("redelivery must update the stored row")
	}
}

func TestHandleStatusChangeMarksCanceledAndDropsFloor(t *testing.T) {
	profileID := uuid.New()
	billingRepo := newStubBillingRepo()
	customer := &models.Customer{ID: uuid.New(), CustomerID: "cus_1", Email: "writer@example.com"}
	billingRepo.addCustomer(customer)
	billingRepo.subscriptions["sub_1"] = &models.Subscription{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		ProductID:      "prod_premium",
		Status:         enums.SubscriptionStatusActive,
	}

	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{
		"writer@example.com": {ID: profileID, Email: "writer@example.com"},
	}}
	grants := &stubEntitlements{}
	service := newTestService(t, billingRepo, profileRepo, grants)

	event := &WebhookEvent{
		Type: EventSubscriptionCanceled,
		Data: SubscriptionData{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Customer:   &CustomerPayload{ID: "cus_1", Email: "writer@example.com"},
		},
	}
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if billingRepo.subscriptions["sub_1"].Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("unexpected status %s", billingRepo.subscriptions["sub_1"].Status)
	}
	if customer.SubscriptionStatus == nil || *customer.SubscriptionStatus != enums.SubscriptionStatusCanceled {
		t.Fatal("customer status should follow the subscription")
	}
	// Floor drops to the default; the entitlement layer keeps any higher limit.
	if len(grants.calls) != 1 || grants.calls[0].floor != 500 {
		t.Fatalf("expected default floor grant, got %+v", grants.calls)
	}
}

func TestHandleStatusChangeUnknownSubscriptionIsAcknowledged(t *testing.T) {
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	service := newTestService(t, billingRepo, profileRepo, &stubEntitlements{})

	event := &WebhookEvent{
		Type: EventSubscriptionRevoked,
		Data: SubscriptionData{ID: "sub_ghost"},
	}
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
}

// Deliveries are applied in arrival order: an activation arriving after a
// cancellation re-activates the row. There is no event-timestamp guard.
func TestLateActivationOverridesCancellation(t *testing.T) {
	billingRepo := newStubBillingRepo()
	profileRepo := &stubProfileRepo{profiles: map[string]*models.Profile{}}
	service := newTestService(t, billingRepo, profileRepo, &stubEntitlements{})

	cancel := &WebhookEvent{
		Type: EventSubscriptionCanceled,
		Data: SubscriptionData{ID: "sub_1", CustomerID: "cus_1"},
	}
	activate := activeEvent("sub_1", "cus_1", "prod_standard", "")

	if err := service.HandleEvent(context.Background(), activate); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := service.HandleEvent(context.Background(), cancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := service.HandleEvent(context.Background(), activate); err != nil {
		t.Fatalf("late activate: %v", err)
	}

	if billingRepo.subscriptions["sub_1"].Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected arrival-order semantics, got %s", billingRepo.subscriptions["sub_1"].Status)
	}
}

func TestHandleEventUnknownTypeIsIgnored(t *testing.T) {
	billingRepo := newStubBillingRepo()
	service := newTestService(t, billingRepo, &stubProfileRepo{profiles: map[string]*models.Profile{}}, &stubEntitlements{})

	event := &WebhookEvent{Type: "order.created", Data: SubscriptionData{ID: "x"}}
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if billingRepo.subscriptionCount() != 0 {
		t.Fatal("unknown event must not write")
	}
}

func TestHandleActivatedValidation(t *testing.T) {
	service := newTestService(t, newStubBillingRepo(), &stubProfileRepo{profiles: map[string]*models.Profile{}}, &stubEntitlements{})

	missingSub := &WebhookEvent{Type: EventSubscriptionActive, Data: SubscriptionData{CustomerID: "cus_1"}}
	if err := service.HandleEvent(context.Background(), missingSub); err == nil {
		t.Fatal("expected error for missing subscription id")
	}

	missingCustomer := &WebhookEvent{Type: EventSubscriptionActive, Data: SubscriptionData{ID: "sub_1"}}
	if err := service.HandleEvent(context.Background(), missingCustomer); err == nil {
		t.Fatal("expected error for missing customer id")
	}

	if err := service.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

// --- stubs ---

type stubBillingRepo struct {
	customersByProviderID map[string]*models.Customer
	customersByEmail      map[string]*models.Customer
	subscriptions         map[string]*models.Subscription
	createdCustomers      int
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{
		customersByProviderID: map[string]*models.Customer{},
		customersByEmail:      map[string]*models.Customer{},
		subscriptions:         map[string]*models.Subscription{},
	}
}

func (s *stubBillingRepo) addCustomer(c *models.Customer) {
	s.customersByProviderID[c.CustomerID] = c
	s.customersByEmail[c.Email] = c
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) FindCustomerByProviderID(ctx context.Context, customerID string) (*models.Customer, error) {
	return s.customersByProviderID[customerID], nil
}

func (s *stubBillingRepo) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return s.customersByEmail[email], nil
}

func (s *stubBillingRepo) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	s.createdCustomers++
	s.addCustomer(customer)
	return nil
}

func (s *stubBillingRepo) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	for id, c := range s.customersByProviderID {
		if c.ID == customer.ID && id != customer.CustomerID {
			delete(s.customersByProviderID, id)
		}
	}
	s.addCustomer(customer)
	return nil
}

func (s *stubBillingRepo) UpsertSubscription(ctx context.Context, subscription *models.Subscription) error {
	if existing, ok := s.subscriptions[subscription.SubscriptionID]; ok {
		subscription.ID = existing.ID
	} else if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	s.subscriptions[subscription.SubscriptionID] = subscription
	return nil
}

func (s *stubBillingRepo) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status enums.SubscriptionStatus) error {
	if sub, ok := s.subscriptions[subscriptionID]; ok {
		sub.Status = status
	}
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByProviderID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	return s.subscriptions[subscriptionID], nil
}

func (s *stubBillingRepo) ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	for _, sub := range s.subscriptions {
		if sub.CustomerID == customerID {
			subs = append(subs, *sub)
		}
	}
	return subs, nil
}

func (s *stubBillingRepo) subscriptionCount() int {
	return len(s.subscriptions)
}

type stubProfileRepo struct {
	profiles map[string]*models.Profile
	linked   map[uuid.UUID]string
}

func (s *stubProfileRepo) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.profiles[email], nil
}

func (s *stubProfileRepo) UpdateCustomerID(ctx context.Context, profile *models.Profile, customerID string) error {
	if s.linked == nil {
		s.linked = map[uuid.UUID]string{}
	}
	profile.CustomerID = &customerID
	s.linked[profile.ID] = customerID
	return nil
}

type grantCall struct {
	userID uuid.UUID
	floor  int64
}

type stubEntitlements struct {
	calls []grantCall
}

func (s *stubEntitlements) EnsureLimit(ctx context.Context, userID uuid.UUID, floor int64) (*models.TokenUsage, error) {
	s.calls = append(s.calls, grantCall{userID: userID, floor: floor})
	return &models.TokenUsage{UserID: userID, TokenLimit: floor}, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
