package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
)

// Resolution errors. Handlers map these to 404s with the offending display
// id echoed in the message.
var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCampaignInactive = errors.New("campaign not active")
	ErrOfferNotFound    = errors.New("offer not found")
	ErrOfferInactive    = errors.New("offer not active")
)

// Resolution is the resolved entity set for one checkout URL. Product is
// nil for pure service offers.
type Resolution struct {
	Campaign *models.Campaign
	Offer    *models.Offer
	Product  *models.Product
}

// Resolver maps public display ids to internal entities. Display ids are
// the only identifiers accepted from untrusted input; internal ids never
// leave the service.
type Resolver struct {
	store *store.Store
}

func NewResolver(store *store.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up the campaign by (tenant, display id) and the offer by
// (campaign, display id). Offer display ids are unique only within a
// campaign, so resolution always goes through the campaign first. Read-only.
func (r *Resolver) Resolve(ctx context.Context, tenantID int64, campaignDisplayID, offerDisplayID int) (*Resolution, error) {
	campaign, err := r.store.GetCampaignByDisplayID(ctx, tenantID, campaignDisplayID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, campaignDisplayID)
	}
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusActive {
		return nil, fmt.Errorf("%w: %d", ErrCampaignInactive, campaignDisplayID)
	}

	offer, err := r.store.GetOfferByDisplayID(ctx, campaign.ID, offerDisplayID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrOfferNotFound, offerDisplayID)
	}
	if err != nil {
		return nil, err
	}
	if !offer.Active {
		return nil, fmt.Errorf("%w: %d", ErrOfferInactive, offerDisplayID)
	}

	res := &Resolution{Campaign: campaign, Offer: offer}

	if offer.ProductID.Valid {
		product, err := r.store.GetProductByID(ctx, offer.ProductID.Int64)
		if err != nil {
			return nil, fmt.Errorf("failed to load product for offer %d: %w", offerDisplayID, err)
		}
		res.Product = product
	}

	return res, nil
}
