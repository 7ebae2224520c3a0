package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres class 23 integrity violation we care about. The user repository
// maps a duplicate on users_email_key to domain.ErrEmailExists.
const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// An empty constraint matches any unique violation; otherwise the violated
// constraint must match by name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	if string(pqErr.Code) != pqUniqueViolation {
		return false
	}

	return constraint == "" || pqErr.Constraint == constraint
}
