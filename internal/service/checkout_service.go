package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/catalog"
	"checkout-service/internal/funnel"
	"checkout-service/internal/models"
	"checkout-service/internal/pricing"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

// Orchestration errors. Handlers translate these to response codes; nothing
// here aborts the process, each step is independently retryable by the
// caller.
var (
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrAlreadyConverted       = errors.New("customer already completed a purchase")
	ErrLeadStepRequired       = errors.New("lead step has not been completed")
	ErrTermsNotAgreed         = errors.New("terms of service must be agreed")
	ErrBillingIncomplete      = errors.New("billing address is incomplete")
	ErrShippingOptionNotFound = errors.New("shipping option not found")
)

const validateCacheTTL = 30 * time.Second

// CheckoutService sequences the catalog resolver, funnel state machine and
// pricing engine across the lead and address steps.
type CheckoutService struct {
	store       *store.Store
	redis       *redisclient.Client
	resolver    *catalog.Resolver
	publisher   *broker.EventPublisher
	logger      *zap.Logger
	snapshotTTL time.Duration
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store *store.Store,
	redis *redisclient.Client,
	resolver *catalog.Resolver,
	publisher *broker.EventPublisher,
	snapshotTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		store:       store,
		redis:       redis,
		resolver:    resolver,
		publisher:   publisher,
		logger:      util.GetLogger(),
		snapshotTTL: snapshotTTL,
	}
}

// LeadRequest captures first contact with a visitor.
type LeadRequest struct {
	CampaignID   int            `json:"campaign_id" binding:"required,min=1"`
	OfferID      int            `json:"offer_id" binding:"required,min=1"`
	CustomerID   int64          `json:"customer_id,omitempty"`
	Email        string         `json:"email" binding:"required,email"`
	Name         string         `json:"name,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	UTMSource    string         `json:"utm_source,omitempty"`
	UTMMedium    string         `json:"utm_medium,omitempty"`
	UTMCampaign  string         `json:"utm_campaign,omitempty"`
	UTMTerm      string         `json:"utm_term,omitempty"`
	UTMContent   string         `json:"utm_content,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// ClientInfo is request metadata captured by the HTTP layer for first-touch
// attribution.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// LeadResponse is returned by the lead step.
type LeadResponse struct {
	CustomerID int64  `json:"customer_id"`
	Status     string `json:"status"`
	SessionID  string `json:"session_id"`
}

// Lead resolves or creates the customer for an email, applies the
// prospect-to-lead transition and persists write-once attribution. A
// supplied customer reference id takes precedence over email lookup;
// if it matches nothing the email path creates the record.
func (s *CheckoutService) Lead(ctx context.Context, tenantID int64, req *LeadRequest, client *ClientInfo) (*LeadResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Lead")
	defer span.End()

	res, err := s.resolver.Resolve(ctx, tenantID, req.CampaignID, req.OfferID)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("lead", "catalog").Inc()
		return nil, err
	}

	email := req.Email
	if req.CustomerID != 0 {
		existing, err := s.store.GetCustomerByID(ctx, tenantID, req.CustomerID)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to look up customer: %w", err)
		}
		if existing != nil {
			if funnel.IsConverted(funnel.Status(existing.Status)) {
				util.CheckoutsFailedTotal.WithLabelValues("lead", "already_converted").Inc()
				return nil, ErrAlreadyConverted
			}
			// The reference id wins over the submitted email; the upsert is
			// keyed on the record's own identity.
			email = existing.Email
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// A nil map marshals to JSON null, which the jsonb merge rejects.
	customFields := types.JSONText("{}")
	if len(req.CustomFields) > 0 {
		encoded, err := json.Marshal(req.CustomFields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode custom fields: %w", err)
		}
		customFields = types.JSONText(encoded)
	}

	lead := &store.LeadUpsert{
		TenantID:     tenantID,
		Email:        email,
		Name:         nullString(req.Name),
		Phone:        nullString(req.Phone),
		CampaignID:   sql.NullInt64{Int64: res.Campaign.ID, Valid: true},
		OfferID:      sql.NullInt64{Int64: res.Offer.ID, Valid: true},
		SessionID:    nullString(sessionID),
		IPAddress:    nullString(client.IPAddress),
		UserAgent:    nullString(client.UserAgent),
		Referrer:     nullString(client.Referrer),
		UTMSource:    nullString(req.UTMSource),
		UTMMedium:    nullString(req.UTMMedium),
		UTMCampaign:  nullString(req.UTMCampaign),
		UTMTerm:      nullString(req.UTMTerm),
		UTMContent:   nullString(req.UTMContent),
		CustomFields: customFields,
	}

	customer, err := s.store.UpsertLead(ctx, lead)
	if errors.Is(err, store.ErrConverted) {
		util.CheckoutsFailedTotal.WithLabelValues("lead", "already_converted").Inc()
		return nil, ErrAlreadyConverted
	}
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("lead", "db_error").Inc()
		return nil, fmt.Errorf("failed to upsert lead: %w", err)
	}

	// The session id is write-once like the other attribution fields, so an
	// existing customer keeps the one they started with.
	if customer.SessionID.Valid {
		sessionID = customer.SessionID.String
	}

	if err := s.redis.RegisterSession(ctx, sessionID, customer.ID, s.snapshotTTL); err != nil {
		s.logger.Warn("Failed to register session", zap.Error(err))
	}

	util.LeadsCapturedTotal.Inc()
	s.logger.Info("Lead captured",
		zap.Int64("customer_id", customer.ID),
		zap.String("status", customer.Status))

	event := &models.LeadCapturedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeLeadCaptured,
			Timestamp: time.Now(),
		},
		TenantID:   tenantID,
		CustomerID: customer.ID,
		CampaignID: res.Campaign.ID,
		OfferID:    res.Offer.ID,
		Email:      customer.Email,
		Status:     customer.Status,
	}
	if err := s.publisher.PublishLeadCaptured(ctx, event); err != nil {
		s.logger.Error("Failed to publish LeadCaptured event", zap.Error(err))
	}

	return &LeadResponse{
		CustomerID: customer.ID,
		Status:     customer.Status,
		SessionID:  sessionID,
	}, nil
}

// ValidateResponse describes a campaign/offer pair for checkout rendering:
// descriptors, baseline pricing with no destination yet, and what the
// address step will need.
type ValidateResponse struct {
	Campaign        *models.Campaign        `json:"campaign"`
	Offer           *models.Offer           `json:"offer"`
	Product         *models.Product         `json:"product,omitempty"`
	Pricing         pricing.Breakdown       `json:"pricing"`
	ShippingOptions []models.ShippingOption `json:"shipping_options"`
	TaxRules        []models.TaxRule        `json:"tax_rules"`
	CustomFields    []models.CustomFieldDef `json:"custom_fields"`
	HasCoupons      bool                    `json:"has_coupons"`
	MustAgreeTOS    bool                    `json:"must_agree_tos"`
	TermsContent    string                  `json:"terms_content,omitempty"`
}

// Validate resolves a campaign/offer pair and computes baseline pricing
// (no address, tax zero). An optional coupon code previews the discount
// read-only; redemption happens at the address step. Results without a
// coupon are cached briefly; the catalog changes rarely relative to
// checkout traffic.
func (s *CheckoutService) Validate(ctx context.Context, tenantID int64, campaignDisplayID, offerDisplayID int, couponCode string) (*ValidateResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Validate")
	defer span.End()

	if couponCode == "" {
		if cached, err := s.redis.GetCachedValidation(ctx, tenantID, campaignDisplayID, offerDisplayID); err == nil && cached != nil {
			var resp ValidateResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return &resp, nil
			}
		}
	}

	res, err := s.resolver.Resolve(ctx, tenantID, campaignDisplayID, offerDisplayID)
	if err != nil {
		return nil, err
	}

	options, err := s.store.GetShippingOptions(ctx, res.Campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping options: %w", err)
	}

	rules, err := s.store.GetTaxRules(ctx, res.Campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rules: %w", err)
	}

	fieldDefs, err := s.store.GetCustomFieldDefs(ctx, res.Campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom field definitions: %w", err)
	}

	hasCoupons, err := s.store.CampaignHasCoupons(ctx, res.Campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check coupons: %w", err)
	}

	opts := pricing.Options{}
	if couponCode != "" {
		coupon, err := s.store.GetActiveCoupon(ctx, res.Campaign.ID, couponCode)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to look up coupon: %w", err)
		}
		// An unknown or ineligible code previews without a discount.
		opts.Coupon = coupon
	}

	bd := pricing.Price(res.Campaign.Currency, res.Offer, res.Product, opts)

	resp := &ValidateResponse{
		Campaign:        res.Campaign,
		Offer:           res.Offer,
		Product:         res.Product,
		Pricing:         bd,
		ShippingOptions: options,
		TaxRules:        rules,
		CustomFields:    fieldDefs,
		HasCoupons:      hasCoupons,
		MustAgreeTOS:    res.Campaign.MustAgreeTOS,
		TermsContent:    res.Campaign.TermsContent,
	}

	if couponCode == "" {
		if payload, err := json.Marshal(resp); err == nil {
			if err := s.redis.CacheValidation(ctx, tenantID, campaignDisplayID, offerDisplayID, payload, validateCacheTTL); err != nil {
				s.logger.Warn("Failed to cache validation", zap.Error(err))
			}
		}
	}

	return resp, nil
}

// Address is a postal address submitted at the address step.
type Address struct {
	Address1   string `json:"address1" binding:"required"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

// AddressRequest prices the checkout and captures the destination.
type AddressRequest struct {
	CustomerID       int64    `json:"customer_id" binding:"required"`
	Shipping         Address  `json:"shipping" binding:"required"`
	BillingSame      bool     `json:"billing_same"`
	Billing          *Address `json:"billing,omitempty"`
	ShippingOptionID int64    `json:"shipping_option_id,omitempty"`
	CouponCode       string   `json:"coupon_code,omitempty"`
	AgreeTOS         bool     `json:"agree_tos,omitempty"`
}

// AddressResponse returns the funnel status and the full breakdown, whose
// figures are also snapshotted server-side for the payment step.
type AddressResponse struct {
	CustomerID int64             `json:"customer_id"`
	Status     string            `json:"status"`
	Pricing    pricing.Breakdown `json:"pricing"`
}

// AddressStep validates the destination, prices the checkout, persists the
// address and totals snapshot, and applies the lead-to-partial transition.
func (s *CheckoutService) AddressStep(ctx context.Context, tenantID int64, req *AddressRequest) (*AddressResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.AddressStep")
	defer span.End()

	customer, err := s.store.GetCustomerByID(ctx, tenantID, req.CustomerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrCustomerNotFound, req.CustomerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	if funnel.IsConverted(funnel.Status(customer.Status)) {
		util.CheckoutsFailedTotal.WithLabelValues("address", "already_converted").Inc()
		return nil, ErrAlreadyConverted
	}

	if !customer.CampaignID.Valid || !customer.OfferID.Valid {
		return nil, ErrLeadStepRequired
	}

	if !req.BillingSame {
		if req.Billing == nil || req.Billing.Address1 == "" || req.Billing.City == "" ||
			req.Billing.PostalCode == "" || req.Billing.Country == "" {
			return nil, ErrBillingIncomplete
		}
	}

	campaign, err := s.store.GetCampaignByID(ctx, customer.CampaignID.Int64)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign.MustAgreeTOS && !req.AgreeTOS {
		return nil, ErrTermsNotAgreed
	}

	offer, err := s.store.GetOfferByID(ctx, customer.OfferID.Int64)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer: %w", err)
	}

	var product *models.Product
	if offer.ProductID.Valid {
		product, err = s.store.GetProductByID(ctx, offer.ProductID.Int64)
		if err != nil {
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
	}

	opts := pricing.Options{
		Country: req.Shipping.Country,
		Region:  req.Shipping.State,
	}

	if req.ShippingOptionID != 0 {
		option, err := s.store.GetShippingOptionByID(ctx, campaign.ID, req.ShippingOptionID)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %d", ErrShippingOptionNotFound, req.ShippingOptionID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load shipping option: %w", err)
		}
		opts.ShippingOption = option
	}

	opts.TaxRules, err = s.store.GetTaxRules(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rules: %w", err)
	}

	// The redemption consumes a coupon use, so every other pricing input is
	// resolved first; the only failures left after this point are the
	// address persist and the snapshot write, both of which compensate.
	base := pricing.BasePrice(offer, product)
	if req.CouponCode != "" {
		coupon, err := s.store.RedeemCoupon(ctx, campaign.ID, req.CouponCode, base)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to redeem coupon: %w", err)
		}
		if coupon != nil {
			opts.Coupon = coupon
			opts.CouponVerified = true
			util.CouponsRedeemedTotal.Inc()
		} else {
			// Unknown or gated codes price through without a discount.
			s.logger.Info("Coupon not applied",
				zap.String("code", req.CouponCode),
				zap.Int64("campaign_id", campaign.ID))
		}
	}

	bd := pricing.Price(campaign.Currency, offer, product, opts)

	addr := &store.CustomerAddress{
		ShipAddress1:   req.Shipping.Address1,
		ShipAddress2:   nullString(req.Shipping.Address2),
		ShipCity:       req.Shipping.City,
		ShipState:      req.Shipping.State,
		ShipPostalCode: req.Shipping.PostalCode,
		ShipCountry:    req.Shipping.Country,
		BillingSame:    req.BillingSame,
	}
	if !req.BillingSame && req.Billing != nil {
		addr.BillAddress1 = nullString(req.Billing.Address1)
		addr.BillAddress2 = nullString(req.Billing.Address2)
		addr.BillCity = nullString(req.Billing.City)
		addr.BillState = nullString(req.Billing.State)
		addr.BillPostalCode = nullString(req.Billing.PostalCode)
		addr.BillCountry = nullString(req.Billing.Country)
	}

	if err := s.store.UpdateCustomerAddress(ctx, customer.ID, addr); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("address", "db_error").Inc()
		s.releaseCoupon(ctx, opts.Coupon)
		return nil, fmt.Errorf("failed to persist address: %w", err)
	}

	snap := &models.TotalsSnapshot{
		CustomerID:       customer.ID,
		CampaignID:       campaign.ID,
		OfferID:          offer.ID,
		Currency:         bd.Currency,
		BasePrice:        bd.BasePrice,
		OfferDiscount:    bd.OfferDiscount,
		CouponDiscount:   bd.CouponDiscount,
		CouponCode:       bd.CouponCode,
		Subtotal:         bd.Subtotal,
		Shipping:         bd.Shipping,
		Tax:              bd.Tax,
		Total:            bd.Total,
		ShippingOptionID: req.ShippingOptionID,
		PricedAt:         time.Now(),
	}
	if err := s.redis.SaveSnapshot(ctx, snap, s.snapshotTTL); err != nil {
		s.releaseCoupon(ctx, opts.Coupon)
		return nil, fmt.Errorf("failed to persist totals snapshot: %w", err)
	}

	status := funnel.Advance(funnel.Status(customer.Status), funnel.StatusPartial)

	util.CheckoutsPricedTotal.Inc()
	s.logger.Info("Checkout priced",
		zap.Int64("customer_id", customer.ID),
		zap.String("total", bd.Total.String()),
		zap.String("status", string(status)))

	event := &models.CheckoutPricedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutPriced,
			Timestamp: time.Now(),
		},
		TenantID:   tenantID,
		CustomerID: customer.ID,
		CampaignID: campaign.ID,
		Currency:   bd.Currency,
		Subtotal:   bd.Subtotal,
		Total:      bd.Total,
		CouponCode: bd.CouponCode,
	}
	if err := s.publisher.PublishCheckoutPriced(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutPriced event", zap.Error(err))
	}

	return &AddressResponse{
		CustomerID: customer.ID,
		Status:     string(status),
		Pricing:    bd,
	}, nil
}

// releaseCoupon compensates a redemption whose checkout step failed before
// pricing was persisted.
func (s *CheckoutService) releaseCoupon(ctx context.Context, coupon *models.Coupon) {
	if coupon == nil {
		return
	}
	if err := s.store.ReleaseCouponUse(ctx, coupon.ID); err != nil {
		s.logger.Error("Failed to release coupon use",
			zap.Int64("coupon_id", coupon.ID),
			zap.Error(err))
	}
}

// OrderDetail is a completed order with its gateway attempts, for the
// confirmation page.
type OrderDetail struct {
	Order        *models.Order        `json:"order"`
	Transactions []models.Transaction `json:"transactions"`
}

// GetOrder retrieves a completed order and its transactions.
func (s *CheckoutService) GetOrder(ctx context.Context, tenantID, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrderByID(ctx, tenantID, orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	txs, err := s.store.GetTransactionsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return &OrderDetail{Order: order, Transactions: txs}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
