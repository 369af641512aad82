package store

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetCampaignByDisplayID retrieves a campaign by its public display id,
// scoped to a tenant.
func (s *Store) GetCampaignByDisplayID(ctx context.Context, tenantID int64, displayID int) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.GetContext(ctx, &campaign,
		"SELECT * FROM campaigns WHERE tenant_id = $1 AND display_id = $2", tenantID, displayID)
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetCampaignByID retrieves a campaign by internal id.
func (s *Store) GetCampaignByID(ctx context.Context, id int64) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.GetContext(ctx, &campaign, "SELECT * FROM campaigns WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetOfferByDisplayID retrieves an offer by its display id within a
// campaign. Offer display ids are unique per campaign only, so the campaign
// internal id is always required.
func (s *Store) GetOfferByDisplayID(ctx context.Context, campaignID int64, displayID int) (*models.Offer, error) {
	var offer models.Offer
	err := s.db.GetContext(ctx, &offer,
		"SELECT * FROM offers WHERE campaign_id = $1 AND display_id = $2", campaignID, displayID)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// GetOfferByID retrieves an offer by internal id.
func (s *Store) GetOfferByID(ctx context.Context, id int64) (*models.Offer, error) {
	var offer models.Offer
	err := s.db.GetContext(ctx, &offer, "SELECT * FROM offers WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// GetProductByID retrieves a product by internal id.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetShippingOptions retrieves a campaign's shipping options in display
// order.
func (s *Store) GetShippingOptions(ctx context.Context, campaignID int64) ([]models.ShippingOption, error) {
	var options []models.ShippingOption
	err := s.db.SelectContext(ctx, &options,
		"SELECT * FROM shipping_options WHERE campaign_id = $1 ORDER BY position, id", campaignID)
	return options, err
}

// GetShippingOptionByID retrieves one shipping option, scoped to its
// campaign so an option id from another campaign cannot be selected.
func (s *Store) GetShippingOptionByID(ctx context.Context, campaignID, id int64) (*models.ShippingOption, error) {
	var option models.ShippingOption
	err := s.db.GetContext(ctx, &option,
		"SELECT * FROM shipping_options WHERE campaign_id = $1 AND id = $2", campaignID, id)
	if err != nil {
		return nil, err
	}
	return &option, nil
}

// GetCustomFieldDefs retrieves a campaign's custom field definitions in
// display order.
func (s *Store) GetCustomFieldDefs(ctx context.Context, campaignID int64) ([]models.CustomFieldDef, error) {
	var defs []models.CustomFieldDef
	err := s.db.SelectContext(ctx, &defs,
		"SELECT * FROM custom_field_definitions WHERE campaign_id = $1 ORDER BY position, id", campaignID)
	return defs, err
}

// GetTaxRules retrieves all tax rules for a campaign.
func (s *Store) GetTaxRules(ctx context.Context, campaignID int64) ([]models.TaxRule, error) {
	var rules []models.TaxRule
	err := s.db.SelectContext(ctx, &rules,
		"SELECT * FROM tax_rules WHERE campaign_id = $1 ORDER BY id", campaignID)
	return rules, err
}

// CampaignHasCoupons reports whether any active coupon exists for a
// campaign, without exposing the codes.
func (s *Store) CampaignHasCoupons(ctx context.Context, campaignID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM coupons WHERE campaign_id = $1 AND active)", campaignID)
	return exists, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
