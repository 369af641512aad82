package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func snapshotKey(customerID int64) string {
	return fmt.Sprintf("checkout:snapshot:%d", customerID)
}

// SaveSnapshot persists the priced totals for a customer so the payment
// step charges exactly what was displayed, without re-derivation.
func (c *Client) SaveSnapshot(ctx context.Context, snap *models.TotalsSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey(snap.CustomerID), data, ttl).Err()
}

// GetSnapshot retrieves a customer's totals snapshot. Returns (nil, nil)
// when none exists or it has expired.
func (c *Client) GetSnapshot(ctx context.Context, customerID int64) (*models.TotalsSnapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(customerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.TotalsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot removes a customer's totals snapshot, typically after a
// completed order.
func (c *Client) DeleteSnapshot(ctx context.Context, customerID int64) error {
	return c.rdb.Del(ctx, snapshotKey(customerID)).Err()
}

// RegisterSession stores a session-to-customer binding. SETNX keeps the
// first binding if the same session id is submitted twice.
func (c *Client) RegisterSession(ctx context.Context, sessionID string, customerID int64, ttl time.Duration) error {
	return c.rdb.SetNX(ctx, fmt.Sprintf("checkout:session:%s", sessionID), customerID, ttl).Err()
}

// CacheValidation stores a serialized validate-endpoint payload under a
// campaign/offer key for a short TTL.
func (c *Client) CacheValidation(ctx context.Context, tenantID int64, campaignDisplayID, offerDisplayID int, payload []byte, ttl time.Duration) error {
	key := fmt.Sprintf("checkout:validate:%d:%d:%d", tenantID, campaignDisplayID, offerDisplayID)
	return c.rdb.Set(ctx, key, payload, ttl).Err()
}

// GetCachedValidation retrieves a cached validate payload, or nil on a
// miss.
func (c *Client) GetCachedValidation(ctx context.Context, tenantID int64, campaignDisplayID, offerDisplayID int) ([]byte, error) {
	key := fmt.Sprintf("checkout:validate:%d:%d:%d", tenantID, campaignDisplayID, offerDisplayID)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}
