package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/funnel"
	"checkout-service/internal/gateway"
	"checkout-service/internal/models"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrSnapshotMissing = errors.New("no priced totals for customer, address step required")
	ErrPaymentNotReady = errors.New("customer is not ready for payment")
	ErrNothingToRetry  = errors.New("no declined payment to retry")
)

// GatewayClient is the slice of the payment gateway the orchestrator
// needs. Satisfied by *gateway.Client.
type GatewayClient interface {
	Purchase(ctx context.Context, paymentMethodToken string, amountCents int64, currency string) (*gateway.Result, error)
	Authorize(ctx context.Context, paymentMethodToken string, amountCents int64, currency string) (*gateway.Result, error)
}

// PaymentService charges persisted totals snapshots through the gateway and
// owns the partial-to-customer and decline transitions.
type PaymentService struct {
	store     *store.Store
	redis     *redisclient.Client
	gateway   GatewayClient
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store *store.Store,
	redis *redisclient.Client,
	gw GatewayClient,
	publisher *broker.EventPublisher,
) *PaymentService {
	return &PaymentService{
		store:     store,
		redis:     redis,
		gateway:   gw,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// PaymentRequest charges a tokenized payment method against the customer's
// persisted totals. Card metadata is display-only.
type PaymentRequest struct {
	CustomerID         int64  `json:"customer_id" binding:"required"`
	PaymentMethodToken string `json:"payment_method_token" binding:"required"`
	CardType           string `json:"card_type,omitempty"`
	CardLastFour       string `json:"card_last_four,omitempty"`
}

// PaymentResponse reports the charge outcome. A decline is a structured
// failure distinct from a transport error, so the caller can offer retry.
type PaymentResponse struct {
	Succeeded     bool   `json:"succeeded"`
	OrderID       int64  `json:"order_id,omitempty"`
	OrderNumber   string `json:"order_number,omitempty"`
	Status        string `json:"status"`
	DeclineReason string `json:"decline_reason,omitempty"`
	DeclineCode   string `json:"decline_code,omitempty"`
}

// Payment runs the payment step: charge the snapshot, and on success
// materialize the order and convert the customer.
func (ps *PaymentService) Payment(ctx context.Context, tenantID int64, req *PaymentRequest) (*PaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Payment")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	return ps.chargeSnapshot(ctx, tenantID, req)
}

// Retry re-runs only the payment step for a previously declined customer.
// Identity, address and pricing are never re-collected or recomputed, so
// the amount charged is exactly the amount originally shown.
func (ps *PaymentService) Retry(ctx context.Context, tenantID int64, req *PaymentRequest) (*PaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Retry")
	defer span.End()

	customer, err := ps.store.GetCustomerByID(ctx, tenantID, req.CustomerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrCustomerNotFound, req.CustomerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	if funnel.IsConverted(funnel.Status(customer.Status)) {
		return nil, ErrAlreadyConverted
	}
	if customer.DeclineCount == 0 {
		return nil, ErrNothingToRetry
	}

	util.PaymentRetriesTotal.Inc()
	return ps.chargeSnapshot(ctx, tenantID, req)
}

func (ps *PaymentService) chargeSnapshot(ctx context.Context, tenantID int64, req *PaymentRequest) (*PaymentResponse, error) {
	customer, err := ps.store.GetCustomerByID(ctx, tenantID, req.CustomerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrCustomerNotFound, req.CustomerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	status := funnel.Status(customer.Status)
	if funnel.IsConverted(status) {
		return nil, ErrAlreadyConverted
	}
	if !funnel.CanRetryPayment(status) {
		return nil, ErrPaymentNotReady
	}

	snap, err := ps.redis.GetSnapshot(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load totals snapshot: %w", err)
	}
	if snap == nil {
		return nil, ErrSnapshotMissing
	}

	campaign, err := ps.store.GetCampaignByID(ctx, snap.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}

	amountCents := toMinorUnits(snap.Total)

	start := time.Now()
	var result *gateway.Result
	if campaign.PreauthOnly {
		result, err = ps.gateway.Authorize(ctx, req.PaymentMethodToken, amountCents, snap.Currency)
	} else {
		result, err = ps.gateway.Purchase(ctx, req.PaymentMethodToken, amountCents, snap.Currency)
	}
	util.GatewayRequestLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("gateway call failed: %w", err)
	}

	if !result.Succeeded {
		return ps.recordDecline(ctx, tenantID, customer, result)
	}

	return ps.completeOrder(ctx, tenantID, customer, snap, campaign, req, result)
}

func (ps *PaymentService) recordDecline(ctx context.Context, tenantID int64, customer *models.Customer, result *gateway.Result) (*PaymentResponse, error) {
	count, err := ps.store.RecordDecline(ctx, customer.ID, result.Message, result.ErrorCode)
	if err != nil {
		return nil, err
	}

	util.PaymentDeclinesTotal.WithLabelValues(result.ErrorCode).Inc()
	ps.logger.Warn("Payment declined",
		zap.Int64("customer_id", customer.ID),
		zap.String("reason", result.Message),
		zap.String("code", result.ErrorCode),
		zap.Int("decline_count", count))

	event := &models.PaymentDeclinedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentDeclined,
			Timestamp: time.Now(),
		},
		TenantID:     tenantID,
		CustomerID:   customer.ID,
		Reason:       result.Message,
		Code:         result.ErrorCode,
		DeclineCount: count,
	}
	if err := ps.publisher.PublishPaymentDeclined(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentDeclined event", zap.Error(err))
	}

	return &PaymentResponse{
		Succeeded:     false,
		Status:        string(funnel.StatusDeclined),
		DeclineReason: result.Message,
		DeclineCode:   result.ErrorCode,
	}, nil
}

func (ps *PaymentService) completeOrder(
	ctx context.Context,
	tenantID int64,
	customer *models.Customer,
	snap *models.TotalsSnapshot,
	campaign *models.Campaign,
	req *PaymentRequest,
	result *gateway.Result,
) (*PaymentResponse, error) {
	orderStatus := models.OrderStatusCompleted
	txType := models.TransactionTypePurchase
	if campaign.PreauthOnly {
		orderStatus = models.OrderStatusAuthorized
		txType = models.TransactionTypeAuthorize
	}

	order := &models.Order{
		TenantID:       tenantID,
		CustomerID:     customer.ID,
		CampaignID:     snap.CampaignID,
		OfferID:        snap.OfferID,
		OrderNumber:    newOrderNumber(),
		Currency:       snap.Currency,
		BasePrice:      snap.BasePrice,
		OfferDiscount:  snap.OfferDiscount,
		CouponDiscount: snap.CouponDiscount,
		CouponCode:     nullString(snap.CouponCode),
		Subtotal:       snap.Subtotal,
		Shipping:       snap.Shipping,
		Tax:            snap.Tax,
		Total:          snap.Total,
		Status:         orderStatus,
	}
	if err := ps.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	tx := &models.Transaction{
		OrderID:      order.ID,
		CustomerID:   customer.ID,
		Type:         txType,
		GatewayTxID:  result.TransactionToken,
		Amount:       snap.Total,
		Currency:     snap.Currency,
		Succeeded:    true,
		Message:      nullString(result.Message),
		CardType:     nullString(req.CardType),
		CardLastFour: nullString(req.CardLastFour),
	}
	if err := ps.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := ps.store.MarkCustomerConverted(ctx, customer.ID, order.ID); err != nil {
		return nil, fmt.Errorf("failed to convert customer: %w", err)
	}

	if err := ps.redis.DeleteSnapshot(ctx, customer.ID); err != nil {
		ps.logger.Warn("Failed to delete totals snapshot", zap.Error(err))
	}

	util.OrdersCompletedTotal.Inc()
	ps.logger.Info("Order completed",
		zap.Int64("customer_id", customer.ID),
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("tx_id", result.TransactionToken))

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		TenantID:    tenantID,
		CustomerID:  customer.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Currency:    order.Currency,
		Total:       order.Total,
	}
	if err := ps.publisher.PublishOrderCompleted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}

	return &PaymentResponse{
		Succeeded:   true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(funnel.StatusCustomer),
	}, nil
}

// toMinorUnits converts a decimal amount to the currency's minor unit for
// the gateway, rounding only here at the charge boundary.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
