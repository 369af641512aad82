package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeLeadCaptured    = "LEAD_CAPTURED"
	EventTypeCheckoutPriced  = "CHECKOUT_PRICED"
	EventTypeOrderCompleted  = "ORDER_COMPLETED"
	EventTypePaymentDeclined = "PAYMENT_DECLINED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadCapturedEvent published when contact info is first captured
type LeadCapturedEvent struct {
	BaseEvent
	TenantID   int64  `json:"tenant_id"`
	CustomerID int64  `json:"customer_id"`
	CampaignID int64  `json:"campaign_id"`
	OfferID    int64  `json:"offer_id"`
	Email      string `json:"email"`
	Status     string `json:"status"`
}

// CheckoutPricedEvent published when the address step prices a checkout
type CheckoutPricedEvent struct {
	BaseEvent
	TenantID   int64           `json:"tenant_id"`
	CustomerID int64           `json:"customer_id"`
	CampaignID int64           `json:"campaign_id"`
	Currency   string          `json:"currency"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

// OrderCompletedEvent published when payment succeeds and the order is
// materialized
type OrderCompletedEvent struct {
	BaseEvent
	TenantID    int64           `json:"tenant_id"`
	CustomerID  int64           `json:"customer_id"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Currency    string          `json:"currency"`
	Total       decimal.Decimal `json:"total"`
}

// PaymentDeclinedEvent published on a gateway decline
type PaymentDeclinedEvent struct {
	BaseEvent
	TenantID     int64  `json:"tenant_id"`
	CustomerID   int64  `json:"customer_id"`
	Reason       string `json:"reason"`
	Code         string `json:"code,omitempty"`
	DeclineCount int    `json:"decline_count"`
}
