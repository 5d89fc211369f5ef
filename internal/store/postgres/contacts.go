package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/znz-systems/coldpipe/internal/models"
)

const contactColumns = `id, email, linkedin_url, contact_json, profile_json,
	email_has_been_checked, email_is_valid, emails_written, linkedin_profile_fetched, synced_to_smartlead,
	created_at, updated_at`

type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) CreateContact(ctx context.Context, params models.ContactCreateParams) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO contacts (id, email, linkedin_url, contact_json)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+contactColumns,
		newID(), params.Email, params.LinkedinURL, []byte(params.ContactJSON),
	)
	c, err := scanContact(row)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (s *ContactStore) GetContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = $1`, email)
	return scanContact(row)
}

func (s *ContactStore) GetContactByID(ctx context.Context, id string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	return scanContact(row)
}

// UpdateContact applies update in a single statement. Flags are OR-ed into
// the stored values so a stale caller can never clear progress.
func (s *ContactStore) UpdateContact(ctx context.Context, id string, update models.ContactUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	bind := func(clause string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}

	if update.ProfileJSON != nil {
		bind("profile_json = $%d", []byte(update.ProfileJSON))
	}
	if update.EmailHasBeenChecked {
		sets = append(sets, "email_has_been_checked = TRUE")
	}
	if update.EmailIsValid != nil {
		bind("email_is_valid = email_is_valid OR $%d", *update.EmailIsValid)
	}
	if update.EmailsWritten {
		sets = append(sets, "emails_written = TRUE")
	}
	if update.LinkedinProfileFetched {
		sets = append(sets, "linkedin_profile_fetched = TRUE")
	}
	if update.SyncedToSmartlead {
		sets = append(sets, "synced_to_smartlead = TRUE")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanContact(row *sql.Row) (*models.Contact, error) {
	c := &models.Contact{}
	var contactJSON, profileJSON []byte
	err := row.Scan(
		&c.ID, &c.Email, &c.LinkedinURL, &contactJSON, &profileJSON,
		&c.EmailHasBeenChecked, &c.EmailIsValid, &c.EmailsWritten, &c.LinkedinProfileFetched, &c.SyncedToSmartlead,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ContactJSON = contactJSON
	if len(profileJSON) > 0 {
		c.ProfileJSON = profileJSON
	}
	return c, nil
}
