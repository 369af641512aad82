package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// GetActiveCoupon retrieves a campaign's active coupon by code,
// case-insensitively. Read-only; used for display pricing.
func (s *Store) GetActiveCoupon(ctx context.Context, campaignID int64, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon,
		"SELECT * FROM coupons WHERE campaign_id = $1 AND code = UPPER($2) AND active",
		campaignID, code)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// RedeemCoupon atomically checks every gate and increments the usage
// counter in one conditional update: active, usage below the cap, and the
// base price meeting the minimum order value. Under concurrent checkouts at
// the cap boundary only the winners get the discount; the rest see a nil
// coupon. Returns (nil, nil) when the code exists but is ineligible, and
// sql.ErrNoRows when the code is unknown for the campaign.
func (s *Store) RedeemCoupon(ctx context.Context, campaignID int64, code string, basePrice decimal.Decimal) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon, `
		UPDATE coupons SET current_uses = current_uses + 1
		WHERE campaign_id = $1
		  AND code = UPPER($2)
		  AND active
		  AND (max_uses IS NULL OR current_uses < max_uses)
		  AND (min_order_value IS NULL OR $3 >= min_order_value)
		RETURNING *`,
		campaignID, code, basePrice)
	if err == sql.ErrNoRows {
		// Distinguish an unknown code from a gated one.
		exists, existsErr := s.couponExists(ctx, campaignID, code)
		if existsErr != nil {
			return nil, existsErr
		}
		if !exists {
			return nil, sql.ErrNoRows
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}
	return &coupon, nil
}

// ReleaseCouponUse decrements the usage counter, compensating a redemption
// whose checkout failed before pricing was persisted.
func (s *Store) ReleaseCouponUse(ctx context.Context, couponID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE coupons SET current_uses = GREATEST(current_uses - 1, 0) WHERE id = $1",
		couponID)
	return err
}

func (s *Store) couponExists(ctx context.Context, campaignID int64, code string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM coupons WHERE campaign_id = $1 AND code = UPPER($2))",
		campaignID, code)
	return exists, err
}
