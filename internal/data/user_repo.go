// Package data implements the persistence layer on PostgreSQL.
package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stormgate/auth-api/internal/data/pgxutil"
	"github.com/stormgate/auth-api/internal/domain/auth"
	"github.com/stormgate/auth-api/internal/domain/model"
	apperrors "github.com/stormgate/auth-api/internal/errors"
)

const userColumns = `
	id, email, first_name, last_name, password_hash, role, status,
	provider, federated_subject_id, application, display_name, bio,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

// UserRepo provides database operations for account records.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// Create inserts a new account record. A duplicate email maps to a
// conflict error.
func (r *UserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if user == nil {
		return nil, errors.New("user record is required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.timeProvider.Now().UTC()

	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (
				id, email, first_name, last_name, password_hash, role, status,
				provider, federated_subject_id, application, display_name, bio,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13
			) RETURNING`+userColumns,
			user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
			user.Role, user.Status, user.Provider, user.FederatedSubjectID,
			user.Application, user.DisplayName, user.Bio, now,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID returns the account with the given id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the account with the given email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, `SELECT`+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByFederatedID returns the account linked to the provider subject.
func (r *UserRepo) GetByFederatedID(ctx context.Context, subjectID string) (*model.User, error) {
	return r.getBy(ctx, `SELECT`+userColumns+` FROM users WHERE federated_subject_id = $1`, subjectID)
}

// GetByResetTokenHash returns the account holding the given stored
// reset token hash.
func (r *UserRepo) GetByResetTokenHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getBy(ctx, `SELECT`+userColumns+` FROM users WHERE reset_token_hash = $1`, hash)
}

func (r *UserRepo) getBy(ctx context.Context, query string, arg any) (*model.User, error) {
	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// UpdateProfile applies the non-nil profile fields and returns the
// updated record.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error) {
	now := r.timeProvider.Now().UTC()
	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE users SET
				first_name = COALESCE($2, first_name),
				last_name = COALESCE($3, last_name),
				display_name = COALESCE($4, display_name),
				bio = COALESCE($5, bio),
				updated_at = $6
			WHERE id = $1
			RETURNING`+userColumns,
			id, update.FirstName, update.LastName, update.DisplayName, update.Bio, now)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// SetStatus updates the approval status and returns the updated record.
func (r *UserRepo) SetStatus(ctx context.Context, id string, status auth.Status) (*model.User, error) {
	now := r.timeProvider.Now().UTC()
	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE users SET status = $2, updated_at = $3
			WHERE id = $1
			RETURNING`+userColumns, id, status, now)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// SetFederatedID links the account to a provider subject id.
func (r *UserRepo) SetFederatedID(ctx context.Context, id, subjectID string) error {
	return r.exec(ctx, `
		UPDATE users SET federated_subject_id = $2, updated_at = $3
		WHERE id = $1`, id, subjectID, r.timeProvider.Now().UTC())
}

// SetPassword replaces the account's password hash.
func (r *UserRepo) SetPassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1`, id, passwordHash, r.timeProvider.Now().UTC())
}

// SetResetToken stores the hashed reset token and its expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = $4
		WHERE id = $1`, id, tokenHash, expiresAt.UTC(), r.timeProvider.Now().UTC())
}

// ClearResetToken removes any stored reset token state.
func (r *UserRepo) ClearResetToken(ctx context.Context, id string) error {
	return r.exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $2
		WHERE id = $1`, id, r.timeProvider.Now().UTC())
}

func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// ListByStatus returns accounts in the given approval state, oldest first.
func (r *UserRepo) ListByStatus(ctx context.Context, status auth.Status, limit, offset int) ([]model.User, error) {
	return r.list(ctx, `
		SELECT`+userColumns+` FROM users
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`, status, limit, offset)
}

// ListAll returns accounts regardless of state, newest first.
func (r *UserRepo) ListAll(ctx context.Context, limit, offset int) ([]model.User, error) {
	return r.list(ctx, `
		SELECT`+userColumns+` FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *UserRepo) list(ctx context.Context, query string, args ...any) ([]model.User, error) {
	var out []model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}
