package polarwebhook

import "time"

// Event types delivered by the billing provider.
const (
	EventSubscriptionActive   = "subscription.active"
	EventSubscriptionCanceled = "subscription.canceled"
	EventSubscriptionRevoked  = "subscription.revoked"
)

// WebhookEvent is the provider's delivery envelope.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data SubscriptionData `json:"data"`
}

// SubscriptionData carries the subscription snapshot inside an event.
type SubscriptionData struct {
	ID                 string           `json:"id"`
	Status             string           `json:"status"`
	ProductID          string           `json:"product_id"`
	CustomerID         string           `json:"customer_id"`
	CurrentPeriodStart *time.Time       `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time       `json:"current_period_end"`
	Prices             []PriceRef       `json:"prices"`
	Customer           *CustomerPayload `json:"customer"`
}

// PriceRef is the price attached to a subscription snapshot.
type PriceRef struct {
	ID string `json:"id"`
}

// CustomerPayload is the customer embedded in a subscription event.
type CustomerPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Email returns the customer's address when the payload carries one.
func (d SubscriptionData) Email() string {
	if d.Customer == nil {
		return ""
	}
	return d.Customer.Email
}

// FirstPriceID returns the id of the first attached price, if any.
func (d SubscriptionData) FirstPriceID() *string {
	if len(d.Prices) == 0 || d.Prices[0].ID == "" {
		return nil
	}
	id := d.Prices[0].ID
	return &id
}
