package postgres

import (
	"context"
	"database/sql"

	"github.com/znz-systems/coldpipe/internal/models"
)

type CampaignStore struct {
	db *sql.DB
}

func NewCampaignStore(db *sql.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

func (s *CampaignStore) CreateCampaign(ctx context.Context, name string, smartleadCampaignID int64) (*models.Campaign, error) {
	c := &models.Campaign{
		ID:                  newID(),
		Name:                name,
		SmartleadCampaignID: smartleadCampaignID,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO campaigns (id, name, smartlead_campaign_id)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.SmartleadCampaignID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (s *CampaignStore) GetCampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, smartlead_campaign_id, created_at, updated_at
		 FROM campaigns WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.SmartleadCampaignID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
