package collector

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnavailable marks a fact whose backing extension, view or function is missing.
var ErrUnavailable = errors.New("feature unavailable")

// absenceCodes are the SQLSTATEs treated as an expected missing feature.
var absenceCodes = map[string]bool{
	"42P01": true, // undefined_table
	"42883": true, // undefined_function
	"55000": true, // object_not_in_prerequisite_state
}

// IsUnavailable reports whether err is an expected absence.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func wrapQueryError(name string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && absenceCodes[pgErr.Code] {
		return fmt.Errorf("query %s: %w: %w", name, ErrUnavailable, err)
	}
	return fmt.Errorf("query %s: %w", name, err)
}
