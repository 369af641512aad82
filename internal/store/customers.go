package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// ErrConverted is returned when a mutating checkout step targets a customer
// who has already completed a purchase.
var ErrConverted = errors.New("customer already converted")

// LeadUpsert carries everything the lead step may write. Attribution
// columns are write-once: the upsert coalesces the existing value first, so
// a re-submission never overwrites first-touch data.
type LeadUpsert struct {
	TenantID     int64          `db:"tenant_id"`
	Email        string         `db:"email"`
	Name         sql.NullString `db:"name"`
	Phone        sql.NullString `db:"phone"`
	CampaignID   sql.NullInt64  `db:"campaign_id"`
	OfferID      sql.NullInt64  `db:"offer_id"`
	SessionID    sql.NullString `db:"session_id"`
	IPAddress    sql.NullString `db:"ip_address"`
	UserAgent    sql.NullString `db:"user_agent"`
	Referrer     sql.NullString `db:"referrer"`
	UTMSource    sql.NullString `db:"utm_source"`
	UTMMedium    sql.NullString `db:"utm_medium"`
	UTMCampaign  sql.NullString `db:"utm_campaign"`
	UTMTerm      sql.NullString `db:"utm_term"`
	UTMContent   sql.NullString `db:"utm_content"`
	CustomFields types.JSONText `db:"custom_fields"`
}

// UpsertLead inserts or updates a customer keyed on (tenant, email) in a
// single statement, so two simultaneous first-time checkouts with the same
// email cannot both insert. The status CASE applies the prospect-to-lead
// transition in the row itself; an already advanced customer keeps its
// status. A converted customer is refused by the DO UPDATE's WHERE clause,
// returning ErrConverted without touching the row.
func (s *Store) UpsertLead(ctx context.Context, lead *LeadUpsert) (*models.Customer, error) {
	query := `
		INSERT INTO customers (
			tenant_id, email, name, phone, status,
			campaign_id, offer_id, session_id, ip_address, user_agent, referrer,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			custom_fields
		) VALUES (
			:tenant_id, :email, :name, :phone, 'LEAD',
			:campaign_id, :offer_id, :session_id, :ip_address, :user_agent, :referrer,
			:utm_source, :utm_medium, :utm_campaign, :utm_term, :utm_content,
			COALESCE(:custom_fields, '{}'::jsonb)
		)
		ON CONFLICT (tenant_id, email) DO UPDATE SET
			status       = CASE WHEN customers.status = 'PROSPECT' THEN 'LEAD' ELSE customers.status END,
			name         = COALESCE(customers.name, EXCLUDED.name),
			phone        = COALESCE(customers.phone, EXCLUDED.phone),
			campaign_id  = COALESCE(customers.campaign_id, EXCLUDED.campaign_id),
			offer_id     = COALESCE(customers.offer_id, EXCLUDED.offer_id),
			session_id   = COALESCE(customers.session_id, EXCLUDED.session_id),
			ip_address   = COALESCE(customers.ip_address, EXCLUDED.ip_address),
			user_agent   = COALESCE(customers.user_agent, EXCLUDED.user_agent),
			referrer     = COALESCE(customers.referrer, EXCLUDED.referrer),
			utm_source   = COALESCE(customers.utm_source, EXCLUDED.utm_source),
			utm_medium   = COALESCE(customers.utm_medium, EXCLUDED.utm_medium),
			utm_campaign = COALESCE(customers.utm_campaign, EXCLUDED.utm_campaign),
			utm_term     = COALESCE(customers.utm_term, EXCLUDED.utm_term),
			utm_content  = COALESCE(customers.utm_content, EXCLUDED.utm_content),
			custom_fields = customers.custom_fields || EXCLUDED.custom_fields,
			updated_at   = NOW()
		WHERE customers.status <> 'CUSTOMER'
		RETURNING *`

	rows, err := s.db.NamedQueryContext(ctx, query, lead)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		// The only way the statement returns no row is the conflict branch
		// refusing a converted customer.
		return nil, ErrConverted
	}

	var customer models.Customer
	if err := rows.StructScan(&customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByID retrieves a customer by internal id, scoped to a tenant.
func (s *Store) GetCustomerByID(ctx context.Context, tenantID, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer,
		"SELECT * FROM customers WHERE tenant_id = $1 AND id = $2", tenantID, id)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerAddress carries the address fields written at the address step.
type CustomerAddress struct {
	ShipAddress1   string
	ShipAddress2   sql.NullString
	ShipCity       string
	ShipState      string
	ShipPostalCode string
	ShipCountry    string
	BillingSame    bool
	BillAddress1   sql.NullString
	BillAddress2   sql.NullString
	BillCity       sql.NullString
	BillState      sql.NullString
	BillPostalCode sql.NullString
	BillCountry    sql.NullString
}

// UpdateCustomerAddress persists address fields and applies the
// lead-to-partial transition in the same statement. The CASE keeps any
// already advanced status untouched.
func (s *Store) UpdateCustomerAddress(ctx context.Context, customerID int64, addr *CustomerAddress) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE customers SET
			ship_address1 = $2, ship_address2 = $3, ship_city = $4,
			ship_state = $5, ship_postal_code = $6, ship_country = $7,
			billing_same = $8,
			bill_address1 = $9, bill_address2 = $10, bill_city = $11,
			bill_state = $12, bill_postal_code = $13, bill_country = $14,
			status = CASE WHEN status = 'LEAD' THEN 'PARTIAL' ELSE status END,
			updated_at = NOW()
		WHERE id = $1`,
		customerID,
		addr.ShipAddress1, addr.ShipAddress2, addr.ShipCity,
		addr.ShipState, addr.ShipPostalCode, addr.ShipCountry,
		addr.BillingSame,
		addr.BillAddress1, addr.BillAddress2, addr.BillCity,
		addr.BillState, addr.BillPostalCode, addr.BillCountry)
	return err
}

// RecordDecline increments the decline counter, records the last reason and
// code, and moves the customer sideways into DECLINED. Declines never touch
// address or pricing data, so a retry charges exactly what was shown.
func (s *Store) RecordDecline(ctx context.Context, customerID int64, reason, code string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		UPDATE customers SET
			decline_count = decline_count + 1,
			last_decline_reason = $2,
			last_decline_code = NULLIF($3, ''),
			status = CASE WHEN status IN ('PARTIAL', 'DECLINED', 'CUSTOMER') THEN 'DECLINED' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING decline_count`,
		customerID, reason, code)
	if err != nil {
		return 0, fmt.Errorf("failed to record decline: %w", err)
	}
	return count, nil
}

// MarkCustomerConverted applies the terminal success transition. The WHERE
// clause only matches statuses a payment can legally convert from, so a
// duplicate success cannot double-convert, and the COALESCEs keep the first
// conversion marker and order reference.
func (s *Store) MarkCustomerConverted(ctx context.Context, customerID, orderID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET
			status = 'CUSTOMER',
			converted_at = COALESCE(converted_at, NOW()),
			first_order_id = COALESCE(first_order_id, $2),
			updated_at = NOW()
		WHERE id = $1 AND status IN ('PARTIAL', 'DECLINED')`,
		customerID, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("customer %d not in a convertible status", customerID)
	}
	return nil
}

// ApplyOrderStats adds a completed order's total to the customer's lifetime
// value and order count. Callers dedupe by event id, so replays are safe.
func (s *Store) ApplyOrderStats(ctx context.Context, customerID int64, total decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE customers SET
			lifetime_value = lifetime_value + $2,
			total_orders = total_orders + 1,
			updated_at = NOW()
		WHERE id = $1`,
		customerID, total)
	return err
}
