package postgres

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// newID returns a lowercase ULID. ULIDs sort by creation time, which keeps
// btree inserts append-mostly.
func newID() string {
	return strings.ToLower(ulid.Make().String())
}
