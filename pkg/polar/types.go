package polar

// Product is a Polar catalog product with its prices.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IsRecurring bool    `json:"is_recurring"`
	IsArchived  bool    `json:"is_archived"`
	Prices      []Price `json:"prices"`
}

// Price is a single price attached to a product. Only fixed recurring prices
// carry an amount; custom/free prices leave PriceAmount at zero.
type Price struct {
	ID                string `json:"id"`
	AmountType        string `json:"amount_type"`
	Type              string `json:"type"`
	RecurringInterval string `json:"recurring_interval"`
	PriceAmount       int64  `json:"price_amount"`
	PriceCurrency     string `json:"price_currency"`
	IsArchived        bool   `json:"is_archived"`
}

// IsFixedRecurring reports whether the price is a recurring price with a
// fixed amount, the only kind the storefront displays.
func (p Price) IsFixedRecurring() bool {
	return p.Type == "recurring" && p.AmountType == "fixed"
}

// productsPage is one page of the products listing.
type productsPage struct {
	Items      []Product `json:"items"`
	Pagination struct {
		TotalCount int `json:"total_count"`
		MaxPage    int `json:"max_page"`
	} `json:"pagination"`
}

// CheckoutCreateParams describes a hosted checkout session request.
type CheckoutCreateParams struct {
	ProductPriceID string            `json:"product_price_id"`
	SuccessURL     string            `json:"success_url,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Checkout is the hosted checkout session returned by Polar.
type Checkout struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Status         string `json:"status"`
	ProductPriceID string `json:"product_price_id"`
	CustomerEmail  string `json:"customer_email"`
}
