package store

import (
	"context"

	"checkout-service/internal/models"
)

// CreateOrder materializes an order from a totals snapshot.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			tenant_id, customer_id, campaign_id, offer_id, order_number,
			currency, base_price, offer_discount, coupon_discount, coupon_code,
			subtotal, shipping, tax, total, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, order, query,
		order.TenantID, order.CustomerID, order.CampaignID, order.OfferID, order.OrderNumber,
		order.Currency, order.BasePrice, order.OfferDiscount, order.CouponDiscount, order.CouponCode,
		order.Subtotal, order.Shipping, order.Tax, order.Total, order.Status)
}

// GetOrderByID retrieves an order by internal id, scoped to a tenant.
func (s *Store) GetOrderByID(ctx context.Context, tenantID, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateTransaction records one gateway attempt.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			order_id, customer_id, type, gateway_tx_id, amount, currency,
			succeeded, message, error_code, card_type, card_last_four
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, tx, query,
		tx.OrderID, tx.CustomerID, tx.Type, tx.GatewayTxID, tx.Amount, tx.Currency,
		tx.Succeeded, tx.Message, tx.ErrorCode, tx.CardType, tx.CardLastFour)
}

// GetTransactionsByOrderID retrieves an order's transactions, newest first.
func (s *Store) GetTransactionsByOrderID(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM transactions WHERE order_id = $1 ORDER BY created_at DESC", orderID)
	return txs, err
}
