package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/usuarios-api/internal/apperror"
)

// PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// mapWriteError converts a driver error from an INSERT or UPDATE into an
// application error. Unique violations become conflicts naming the column;
// everything else is a persistence failure.
func mapWriteError(op string, err error) error {
	if detail, ok := uniqueViolation(err); ok {
		switch {
		case strings.Contains(detail, "email"):
			return apperror.Conflict("email", "email already registered")
		case strings.Contains(detail, "username"):
			return apperror.Conflict("username", "username already taken")
		default:
			return apperror.Conflict("", "user already exists")
		}
	}
	return apperror.Persistence(op, err)
}

// uniqueViolation reports whether err is a unique-constraint failure and
// returns the text that names the offending constraint or column.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName + " " + pgErr.Detail, true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		msg := liteErr.Error() // "UNIQUE constraint failed: usuarios.email"
		switch code := liteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return msg, true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE"):
			return msg, true
		}
	}
	return "", false
}
