package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/model"
	"github.com/sakif/usuarios-api/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `uuid, nome_completo, email, username, senha_hash,
	url_avatar, url_capa, biografia, nivel_acesso, ativo,
	token_recuperacao_senha, token_verificacao_email, criado_em, atualizado_em`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanUser(s scanner) (*model.User, error) {
	var (
		r                       model.Record
		level                   string
		avatar, cover, bio      sql.NullString
		resetToken, verifyToken sql.NullString
		updatedAt               sql.NullTime
	)

	err := s.Scan(
		&r.UUID,
		&r.FullName,
		&r.Email,
		&r.Username,
		&r.PasswordHash,
		&avatar,
		&cover,
		&bio,
		&level,
		&r.Active,
		&resetToken,
		&verifyToken,
		&r.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.AccessLevel = model.AccessLevel(level)
	r.AvatarURL = stringPtr(avatar)
	r.CoverURL = stringPtr(cover)
	r.Bio = stringPtr(bio)
	r.PasswordResetToken = stringPtr(resetToken)
	r.EmailVerificationToken = stringPtr(verifyToken)
	if updatedAt.Valid {
		t := updatedAt.Time
		r.UpdatedAt = &t
	}

	return model.ReconstituteUser(r, db.clock), nil
}

// findOne runs a single-row SELECT on the given column.
func (db *DB) findOne(ctx context.Context, column, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+userColumns+` FROM usuarios WHERE `+column+` = ?`),
		value,
	)
	u, err := db.scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, apperror.Persistence("loading user", err)
	}
	return u, nil
}

func (db *DB) FindByUUID(ctx context.Context, uuid string) (*model.User, error) {
	return db.findOne(ctx, "uuid", uuid)
}

func (db *DB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findOne(ctx, "username", username)
}

func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.findOne(ctx, "email", email)
}

// List returns users newest first. A zero Limit means no limit.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios`
	var args []any

	if opts.Name != "" {
		query += ` WHERE LOWER(nome_completo) LIKE ?`
		args = append(args, likePattern(opts.Name))
	}
	query += ` ORDER BY criado_em DESC`

	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, max(opts.Offset, 0))
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, apperror.Persistence("listing users", err)
	}
	// ALWAYS close rows, or the connection never returns to the pool.
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		u, err := db.scanUser(rows)
		if err != nil {
			return nil, apperror.Persistence("scanning user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("iterating users", err)
	}

	return users, nil
}

// Count returns how many users List would return without paging.
func (db *DB) Count(ctx context.Context, name string) (int, error) {
	query := `SELECT COUNT(*) FROM usuarios`
	var args []any
	if name != "" {
		query += ` WHERE LOWER(nome_completo) LIKE ?`
		args = append(args, likePattern(name))
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, db.rebind(query), args...).Scan(&n); err != nil {
		return 0, apperror.Persistence("counting users", err)
	}
	return n, nil
}

// Save writes the user in a single transaction: check existence, then UPDATE
// or INSERT. On any failure the transaction is rolled back and nothing is
// written.
func (db *DB) Save(ctx context.Context, user *model.User) error {
	r := user.Record()

	return db.runInTx(ctx, func(ctx context.Context, q querier) error {
		var one int
		err := q.QueryRowContext(ctx,
			db.rebind(`SELECT 1 FROM usuarios WHERE uuid = ?`), r.UUID,
		).Scan(&one)

		switch {
		case err == nil:
			_, err = q.ExecContext(ctx, db.rebind(`
				UPDATE usuarios SET
					nome_completo = ?, email = ?, username = ?, senha_hash = ?,
					url_avatar = ?, url_capa = ?, biografia = ?, nivel_acesso = ?,
					ativo = ?, token_recuperacao_senha = ?, token_verificacao_email = ?,
					atualizado_em = ?
				WHERE uuid = ?`),
				r.FullName, r.Email, r.Username, r.PasswordHash,
				nullString(r.AvatarURL), nullString(r.CoverURL), nullString(r.Bio), string(r.AccessLevel),
				r.Active, nullString(r.PasswordResetToken), nullString(r.EmailVerificationToken),
				nullTime(r.UpdatedAt),
				r.UUID,
			)
			if err != nil {
				return mapWriteError("updating user", err)
			}

		case errors.Is(err, sql.ErrNoRows):
			_, err = q.ExecContext(ctx, db.rebind(`
				INSERT INTO usuarios (`+userColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				r.UUID, r.FullName, r.Email, r.Username, r.PasswordHash,
				nullString(r.AvatarURL), nullString(r.CoverURL), nullString(r.Bio), string(r.AccessLevel), r.Active,
				nullString(r.PasswordResetToken), nullString(r.EmailVerificationToken),
				r.CreatedAt, nullTime(r.UpdatedAt),
			)
			if err != nil {
				return mapWriteError("inserting user", err)
			}

		default:
			return apperror.Persistence("checking user existence", err)
		}
		return nil
	})
}

// Delete removes the user. Deleting a missing UUID is a not-found error.
func (db *DB) Delete(ctx context.Context, uuid string) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM usuarios WHERE uuid = ?`), uuid)
	if err != nil {
		return apperror.Persistence("deleting user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Persistence("deleting user", err)
	}
	if n == 0 {
		return apperror.NotFound("user", uuid)
	}
	return nil
}

func (db *DB) EmailExists(ctx context.Context, email, excludeUUID string) (bool, error) {
	return db.exists(ctx, "email", email, excludeUUID)
}

func (db *DB) UsernameExists(ctx context.Context, username, excludeUUID string) (bool, error) {
	return db.exists(ctx, "username", username, excludeUUID)
}

func (db *DB) exists(ctx context.Context, column, value, excludeUUID string) (bool, error) {
	query := `SELECT COUNT(*) FROM usuarios WHERE ` + column + ` = ?`
	args := []any{value}
	if excludeUUID != "" {
		query += ` AND uuid <> ?`
		args = append(args, excludeUUID)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, db.rebind(query), args...).Scan(&n); err != nil {
		return false, apperror.Persistence("checking "+column, err)
	}
	return n > 0, nil
}

// likePattern wraps name for a substring match. % and _ in name are not
// escaped.
func likePattern(name string) string {
	return "%" + strings.ToLower(name) + "%"
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
