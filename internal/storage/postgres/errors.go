package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/links"
)

const uniqueViolation = "23505"

func isCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == "links_code_unique"
}

func mapRepoError(op, code string, err error) error {
	if ctxErr := errx.FromContext(op, err); ctxErr != nil {
		return ctxErr
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, fmt.Errorf("%w: %s", links.ErrNotFound, code))

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, fmt.Errorf("%w: %s: %v", links.ErrCodeConflict, code, err))

	default:
		return errx.E(op, errx.Storage, err)
	}
}
