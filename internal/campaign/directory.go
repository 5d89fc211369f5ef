// Package campaign resolves an internal campaign against the campaign platform
// and keeps the two in agreement.
package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/znz-systems/coldpipe/internal/models"
	"github.com/znz-systems/coldpipe/internal/smartlead"
)

var (
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrExternalCampaignNotFound = errors.New("campaign not found on platform")
	ErrMismatch                 = errors.New("campaign does not match platform record")
)

// Store is the subset of the campaign store the directory needs.
type Store interface {
	CreateCampaign(ctx context.Context, name string, smartleadCampaignID int64) (*models.Campaign, error)
	GetCampaignByID(ctx context.Context, id string) (*models.Campaign, error)
}

// Platform is the subset of the Smartlead API the directory needs.
type Platform interface {
	GetCampaign(ctx context.Context, id int64) (*smartlead.Campaign, error)
	CreateCampaign(ctx context.Context, name string) (*smartlead.CreatedCampaign, error)
	DeleteCampaign(ctx context.Context, id int64) error
}

type Resolution struct {
	InternalCampaignID string `json:"internalCampaignId"`
	ExternalCampaignID int64  `json:"externalCampaignId"`
	Name               string `json:"name"`
}

type Directory struct {
	store    Store
	platform Platform
}

func NewDirectory(store Store, platform Platform) *Directory {
	return &Directory{store: store, platform: platform}
}

// Resolve loads the internal campaign, then fetches the platform campaign by
// the external id stored on it; the two must carry the same external id.
// Names may drift on the platform and are not compared. Absence and
// disagreement come back as the package sentinels; any other error is a
// lookup failure worth retrying.
func (d *Directory) Resolve(ctx context.Context, internalID string) (*Resolution, error) {
	internal, err := d.store.GetCampaignByID(ctx, internalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, internalID)
		}
		return nil, fmt.Errorf("load campaign %s: %w", internalID, err)
	}

	external, err := d.platform.GetCampaign(ctx, internal.SmartleadCampaignID)
	if err != nil {
		if errors.Is(err, smartlead.ErrCampaignNotFound) {
			return nil, fmt.Errorf("%w: %q is stored as platform campaign %d", ErrExternalCampaignNotFound, internal.Name, internal.SmartleadCampaignID)
		}
		return nil, fmt.Errorf("get platform campaign %d: %w", internal.SmartleadCampaignID, err)
	}

	return match(internal, external)
}

func match(internal *models.Campaign, external *smartlead.Campaign) (*Resolution, error) {
	if external.ID != internal.SmartleadCampaignID {
		return nil, fmt.Errorf("%w: %q is stored as platform campaign %d, platform returned %d",
			ErrMismatch, internal.Name, internal.SmartleadCampaignID, external.ID)
	}
	if external.Name != internal.Name {
		slog.Warn("platform campaign renamed", "campaign_id", internal.ID, "name", internal.Name, "platform_name", external.Name)
	}
	return &Resolution{
		InternalCampaignID: internal.ID,
		ExternalCampaignID: external.ID,
		Name:               internal.Name,
	}, nil
}

// Create creates the platform campaign first and then the internal record
// pointing at it. If the internal insert fails the platform campaign is
// removed again so the two never disagree.
func (d *Directory) Create(ctx context.Context, name string) (*models.Campaign, error) {
	created, err := d.platform.CreateCampaign(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create platform campaign: %w", err)
	}

	c, err := d.store.CreateCampaign(ctx, name, created.ID)
	if err != nil {
		if delErr := d.platform.DeleteCampaign(ctx, created.ID); delErr != nil {
			slog.Error("failed to remove orphaned platform campaign", "smartlead_campaign_id", created.ID, "error", delErr)
		}
		return nil, fmt.Errorf("store campaign: %w", err)
	}
	return c, nil
}

// IsFatal reports whether err means the campaign can never resolve as stored.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrExternalCampaignNotFound) ||
		errors.Is(err, ErrMismatch)
}
