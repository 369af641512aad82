package models

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Campaign is a tenant's top-level selling unit. The display id is the small
// public integer used in checkout URLs; the internal id never leaves the
// service.
type Campaign struct {
	ID           int64     `db:"id" json:"-"`
	TenantID     int64     `db:"tenant_id" json:"-"`
	DisplayID    int       `db:"display_id" json:"campaign_id"`
	Name         string    `db:"name" json:"name"`
	Currency     string    `db:"currency" json:"currency"`
	Status       string    `db:"status" json:"status"`
	MustAgreeTOS bool      `db:"must_agree_tos" json:"must_agree_tos"`
	PreauthOnly  bool      `db:"preauth_only" json:"preauth_only"`
	TermsContent string    `db:"terms_content" json:"terms_content,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Campaign statuses
const (
	CampaignStatusActive   = "ACTIVE"
	CampaignStatusInactive = "INACTIVE"
)

// Offer is a purchasable configuration of a product within a campaign.
// Its display id is unique only inside the owning campaign.
type Offer struct {
	ID                int64               `db:"id" json:"-"`
	CampaignID        int64               `db:"campaign_id" json:"-"`
	DisplayID         int                 `db:"display_id" json:"offer_id"`
	ProductID         sql.NullInt64       `db:"product_id" json:"-"`
	Name              string              `db:"name" json:"name"`
	OfferType         string              `db:"offer_type" json:"offer_type"`
	BillingType       string              `db:"billing_type" json:"billing_type"`
	DiscountType      string              `db:"discount_type" json:"discount_type"`
	DiscountValue     decimal.Decimal     `db:"discount_value" json:"discount_value"`
	PriceOverride     decimal.NullDecimal `db:"price_override" json:"price_override,omitempty"`
	ShipPriceOverride decimal.NullDecimal `db:"ship_price_override" json:"ship_price_override,omitempty"`
	TrialEnabled      bool                `db:"trial_enabled" json:"trial_enabled"`
	TrialDays         int                 `db:"trial_days" json:"trial_days,omitempty"`
	TrialPrice        decimal.NullDecimal `db:"trial_price" json:"trial_price,omitempty"`
	Active            bool                `db:"active" json:"active"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// Discount types shared by offers and coupons. FREE is valid for offers
// only; the coupon path treats it as a no-op.
const (
	DiscountTypeNone       = "NONE"
	DiscountTypeFixed      = "FIXED"
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFree       = "FREE"
)

// Billing types
const (
	BillingTypeOneTime      = "ONE_TIME"
	BillingTypeSubscription = "SUBSCRIPTION"
)

// Product is a catalog item an offer may reference. Pure service offers
// carry no product.
type Product struct {
	ID           int64           `db:"id" json:"-"`
	TenantID     int64           `db:"tenant_id" json:"-"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	Description  string          `db:"description" json:"description,omitempty"`
	Price        decimal.Decimal `db:"price" json:"price"`
	ShippingCost decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Coupon is a campaign-scoped discount code. Codes are stored uppercase and
// matched case-insensitively.
type Coupon struct {
	ID            int64               `db:"id" json:"-"`
	CampaignID    int64               `db:"campaign_id" json:"-"`
	Code          string              `db:"code" json:"code"`
	DiscountType  string              `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal     `db:"discount_value" json:"discount_value"`
	MaxUses       sql.NullInt64       `db:"max_uses" json:"max_uses,omitempty"`
	CurrentUses   int64               `db:"current_uses" json:"current_uses"`
	MinOrderValue decimal.NullDecimal `db:"min_order_value" json:"min_order_value,omitempty"`
	Active        bool                `db:"active" json:"active"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

// ShippingOption is a campaign-scoped shipping choice. A free threshold of
// NULL means shipping is never waived for this option.
type ShippingOption struct {
	ID            int64               `db:"id" json:"id"`
	CampaignID    int64               `db:"campaign_id" json:"-"`
	Name          string              `db:"name" json:"name"`
	BaseCost      decimal.Decimal     `db:"base_cost" json:"base_cost"`
	FreeThreshold decimal.NullDecimal `db:"free_threshold" json:"free_threshold,omitempty"`
	Position      int                 `db:"position" json:"position"`
}

// CustomFieldDef describes a campaign-scoped custom field the checkout
// page renders and the lead step collects into the customer's
// custom_fields bag. Options carries type-specific extras, e.g. the choice
// list for a select field.
type CustomFieldDef struct {
	ID         int64          `db:"id" json:"id"`
	CampaignID int64          `db:"campaign_id" json:"-"`
	FieldKey   string         `db:"field_key" json:"field_key"`
	Label      string         `db:"label" json:"label"`
	FieldType  string         `db:"field_type" json:"field_type"`
	Required   bool           `db:"required" json:"required"`
	Options    types.JSONText `db:"options" json:"options,omitempty"`
	Position   int            `db:"position" json:"position"`
}

// Custom field types
const (
	FieldTypeText     = "TEXT"
	FieldTypeNumber   = "NUMBER"
	FieldTypeSelect   = "SELECT"
	FieldTypeCheckbox = "CHECKBOX"
)

// TaxRule is a campaign-scoped jurisdiction rate. A NULL region is the
// country-wide fallback; a region-specific rule wins over it.
type TaxRule struct {
	ID         int64           `db:"id" json:"id"`
	CampaignID int64           `db:"campaign_id" json:"-"`
	Country    string          `db:"country" json:"country"`
	Region     sql.NullString  `db:"region" json:"region,omitempty"`
	Rate       decimal.Decimal `db:"rate" json:"rate"`
}

// Customer is the funnel entity. It is created on first contact and mutated
// at each checkout step; funnel records are never hard-deleted.
type Customer struct {
	ID       int64          `db:"id" json:"id"`
	TenantID int64          `db:"tenant_id" json:"-"`
	Email    string         `db:"email" json:"email"`
	Name     sql.NullString `db:"name" json:"name,omitempty"`
	Phone    sql.NullString `db:"phone" json:"phone,omitempty"`
	Status   string         `db:"status" json:"status"`

	// First-touch attribution, write-once.
	CampaignID  sql.NullInt64  `db:"campaign_id" json:"-"`
	OfferID     sql.NullInt64  `db:"offer_id" json:"-"`
	SessionID   sql.NullString `db:"session_id" json:"session_id,omitempty"`
	IPAddress   sql.NullString `db:"ip_address" json:"-"`
	UserAgent   sql.NullString `db:"user_agent" json:"-"`
	Referrer    sql.NullString `db:"referrer" json:"-"`
	UTMSource   sql.NullString `db:"utm_source" json:"-"`
	UTMMedium   sql.NullString `db:"utm_medium" json:"-"`
	UTMCampaign sql.NullString `db:"utm_campaign" json:"-"`
	UTMTerm     sql.NullString `db:"utm_term" json:"-"`
	UTMContent  sql.NullString `db:"utm_content" json:"-"`

	ShipAddress1   sql.NullString `db:"ship_address1" json:"-"`
	ShipAddress2   sql.NullString `db:"ship_address2" json:"-"`
	ShipCity       sql.NullString `db:"ship_city" json:"-"`
	ShipState      sql.NullString `db:"ship_state" json:"-"`
	ShipPostalCode sql.NullString `db:"ship_postal_code" json:"-"`
	ShipCountry    sql.NullString `db:"ship_country" json:"-"`

	BillingSame    bool           `db:"billing_same" json:"-"`
	BillAddress1   sql.NullString `db:"bill_address1" json:"-"`
	BillAddress2   sql.NullString `db:"bill_address2" json:"-"`
	BillCity       sql.NullString `db:"bill_city" json:"-"`
	BillState      sql.NullString `db:"bill_state" json:"-"`
	BillPostalCode sql.NullString `db:"bill_postal_code" json:"-"`
	BillCountry    sql.NullString `db:"bill_country" json:"-"`

	DeclineCount      int            `db:"decline_count" json:"decline_count"`
	LastDeclineReason sql.NullString `db:"last_decline_reason" json:"last_decline_reason,omitempty"`
	LastDeclineCode   sql.NullString `db:"last_decline_code" json:"last_decline_code,omitempty"`

	ConvertedAt   sql.NullTime    `db:"converted_at" json:"converted_at,omitempty"`
	FirstOrderID  sql.NullInt64   `db:"first_order_id" json:"-"`
	LifetimeValue decimal.Decimal `db:"lifetime_value" json:"lifetime_value"`
	TotalOrders   int             `db:"total_orders" json:"total_orders"`

	CustomFields types.JSONText `db:"custom_fields" json:"custom_fields,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order is the terminal artifact of a successful checkout. Every monetary
// figure is the persisted snapshot from the address step, charged verbatim.
type Order struct {
	ID             int64           `db:"id" json:"id"`
	TenantID       int64           `db:"tenant_id" json:"-"`
	CustomerID     int64           `db:"customer_id" json:"customer_id"`
	CampaignID     int64           `db:"campaign_id" json:"-"`
	OfferID        int64           `db:"offer_id" json:"-"`
	OrderNumber    string          `db:"order_number" json:"order_number"`
	Currency       string          `db:"currency" json:"currency"`
	BasePrice      decimal.Decimal `db:"base_price" json:"base_price"`
	OfferDiscount  decimal.Decimal `db:"offer_discount" json:"offer_discount"`
	CouponDiscount decimal.Decimal `db:"coupon_discount" json:"coupon_discount"`
	CouponCode     sql.NullString  `db:"coupon_code" json:"coupon_code,omitempty"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Shipping       decimal.Decimal `db:"shipping" json:"shipping"`
	Tax            decimal.Decimal `db:"tax" json:"tax"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusAuthorized = "AUTHORIZED"
	OrderStatusRefunded   = "REFUNDED"
	OrderStatusVoided     = "VOIDED"
)

// Transaction records one gateway attempt against an order.
type Transaction struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	CustomerID   int64           `db:"customer_id" json:"customer_id"`
	Type         string          `db:"type" json:"type"`
	GatewayTxID  string          `db:"gateway_tx_id" json:"gateway_tx_id,omitempty"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`
	Succeeded    bool            `db:"succeeded" json:"succeeded"`
	Message      sql.NullString  `db:"message" json:"message,omitempty"`
	ErrorCode    sql.NullString  `db:"error_code" json:"error_code,omitempty"`
	CardType     sql.NullString  `db:"card_type" json:"card_type,omitempty"`
	CardLastFour sql.NullString  `db:"card_last_four" json:"card_last_four,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Transaction types
const (
	TransactionTypePurchase  = "PURCHASE"
	TransactionTypeAuthorize = "AUTHORIZE"
)

// TotalsSnapshot is the priced breakdown persisted at the address step and
// charged verbatim at the payment step, so the amount shown never drifts
// from the amount charged.
type TotalsSnapshot struct {
	CustomerID       int64           `json:"customer_id"`
	CampaignID       int64           `json:"campaign_id"`
	OfferID          int64           `json:"offer_id"`
	Currency         string          `json:"currency"`
	BasePrice        decimal.Decimal `json:"base_price"`
	OfferDiscount    decimal.Decimal `json:"offer_discount"`
	CouponDiscount   decimal.Decimal `json:"coupon_discount"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Shipping         decimal.Decimal `json:"shipping"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	ShippingOptionID int64           `json:"shipping_option_id,omitempty"`
	PricedAt         time.Time       `json:"priced_at"`
}

// ProcessedEvent for idempotent event consumption
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
