package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/znz-systems/coldpipe/internal/models"
)

type GeneratedEmailStore struct {
	db *sql.DB
}

func NewGeneratedEmailStore(db *sql.DB) *GeneratedEmailStore {
	return &GeneratedEmailStore{db: db}
}

// CreateGeneratedEmail inserts an email for a sequence position. If the
// position was already written the stored row is returned unchanged, so the
// first successful generation wins.
func (s *GeneratedEmailStore) CreateGeneratedEmail(ctx context.Context, params models.GeneratedEmailCreateParams) (*models.GeneratedEmail, error) {
	e := &models.GeneratedEmail{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO generated_emails (id, contact_id, campaign_id, sequence_number, subject, message)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (contact_id, campaign_id, sequence_number) DO NOTHING
		 RETURNING id, contact_id, campaign_id, sequence_number, subject, message, created_at`,
		newID(), params.ContactID, params.CampaignID, params.SequenceNumber, params.Subject, params.Message,
	).Scan(&e.ID, &e.ContactID, &e.CampaignID, &e.SequenceNumber, &e.Subject, &e.Message, &e.CreatedAt)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, contact_id, campaign_id, sequence_number, subject, message, created_at
		 FROM generated_emails
		 WHERE contact_id = $1 AND campaign_id = $2 AND sequence_number = $3`,
		params.ContactID, params.CampaignID, params.SequenceNumber,
	).Scan(&e.ID, &e.ContactID, &e.CampaignID, &e.SequenceNumber, &e.Subject, &e.Message, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *GeneratedEmailStore) ListGeneratedEmails(ctx context.Context, contactID, campaignID string) ([]models.GeneratedEmail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, campaign_id, sequence_number, subject, message, created_at
		 FROM generated_emails
		 WHERE contact_id = $1 AND campaign_id = $2
		 ORDER BY sequence_number ASC`,
		contactID, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []models.GeneratedEmail
	for rows.Next() {
		var e models.GeneratedEmail
		if err := rows.Scan(&e.ID, &e.ContactID, &e.CampaignID, &e.SequenceNumber, &e.Subject, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
