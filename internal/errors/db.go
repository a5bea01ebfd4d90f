package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// keyDetail matches the column list of a unique violation detail such as
// "Key (home_account_id)=(abc) already exists.".
var keyDetail = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError converts driver and context errors into AppErrors. Errors it
// does not recognise are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "database call timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "database call canceled")
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "record not found")
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUnavailable, "database unreachable")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) *AppError {
	code := pgErr.Code
	switch {
	case code == pgerrcode.UniqueViolation:
		ae := Wrap(pgErr, ErrCodeConflict, "record already exists")
		ae.Field = pgErr.ColumnName
		if ae.Field == "" {
			if m := keyDetail.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
				ae.Field = m[1]
			}
		}
		return ae
	case code == pgerrcode.SerializationFailure, code == pgerrcode.DeadlockDetected:
		return Wrap(pgErr, ErrCodeConflict, "concurrent update, retry")
	case code == pgerrcode.NotNullViolation, code == pgerrcode.CheckViolation:
		ae := Wrap(pgErr, ErrCodeValidation, "invalid record")
		ae.Field = pgErr.ColumnName
		return ae
	case code == pgerrcode.QueryCanceled:
		return Wrap(pgErr, ErrCodeTimeout, "database call timed out")
	case pgerrcode.IsConnectionException(code),
		pgerrcode.IsInsufficientResources(code),
		pgerrcode.IsOperatorIntervention(code):
		return Wrap(pgErr, ErrCodeUnavailable, "database unavailable")
	default:
		return Wrap(pgErr, ErrCodeInternal, "database error")
	}
}
