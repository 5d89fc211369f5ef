package postgres

import (
	"errors"

	"github.com/lib/pq"
	"github.com/znz-systems/coldpipe/internal/store"
)

const uniqueViolation = "23505"

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Join(store.ErrConflict, err)
	}
	return err
}
