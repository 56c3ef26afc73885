package quote

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-trade/meridian/internal/quote/calc"
)

// ProductPayload is one product line as submitted by the client. Base price
// includes the supplier's VAT and is denominated in the product currency.
type ProductPayload struct {
	Name            string          `json:"name" validate:"required,max=200"`
	BasePrice       decimal.Decimal `json:"base_price"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	Quantity        decimal.Decimal `json:"quantity"`
	WeightKg        decimal.Decimal `json:"weight_kg"`
	CustomsCode     string          `json:"customs_code" validate:"max=20"`
	SupplierCountry string          `json:"supplier_country" validate:"required,len=2"`
	PickupCountry   string          `json:"pickup_country" validate:"omitempty,len=2"`
	DeliveryDate    time.Time       `json:"delivery_date" validate:"required"`
	Overrides       calc.Overrides  `json:"overrides"`
}

type CreateQuoteRequest struct {
	OrgID     int64               `json:"org_id" validate:"required,gt=0"`
	Customer  string              `json:"customer" validate:"required,max=200"`
	Variables calc.QuoteVariables `json:"variables"`
	Products  []ProductPayload    `json:"products" validate:"omitempty,dive"`
}

// UpdateQuoteRequest replaces the quote-level variables and, when products
// are present, the full product list. Allowed in DRAFT only.
type UpdateQuoteRequest struct {
	Customer  *string              `json:"customer,omitempty" validate:"omitempty,max=200"`
	Variables *calc.QuoteVariables `json:"variables,omitempty"`
	Products  *[]ProductPayload    `json:"products,omitempty" validate:"omitempty,dive"`
}

type DecisionRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type ListFilter struct {
	OrgID  int64
	Status Status
	Limit  int
	Offset int
}
