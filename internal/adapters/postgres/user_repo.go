// Package postgres implements the persistence ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
)

const userColumns = `id, username, firstname, lastname, email, email_verified,
	pending_email, cat_username, cat_password, pass_hash, password, auth_method,
	last_login`

// UserRepo provides database operations for user accounts.
type UserRepo struct {
	pool *pgxpool.Pool
}

var _ ports.IdentityStore = (*UserRepo)(nil)

// NewUserRepo creates a UserRepo on the given pool.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*auth.Identity, error) {
	return r.findBy(ctx, "id = $1", id)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	return r.findBy(ctx, "username = $1", username)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	return r.findBy(ctx, "lower(email) = lower($1)", email)
}

func (r *UserRepo) FindByCatalogID(ctx context.Context, catUsername string) (*auth.Identity, error) {
	return r.findBy(ctx, "cat_username = $1", catUsername)
}

func (r *UserRepo) findBy(ctx context.Context, where string, arg any) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Create inserts the account and fills in its id. Unique constraint races on
// username or email surface as credential-level errors so the caller can ask
// the user to pick differently.
func (r *UserRepo) Create(ctx context.Context, user *auth.Identity) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (
			username, firstname, lastname, email, email_verified, pending_email,
			cat_username, cat_password, pass_hash, password, auth_method, last_login
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		user.Username, user.FirstName, user.LastName, user.Email,
		user.EmailVerified, user.PendingEmail, user.CatUsername,
		user.CatPassword, user.PasswordHash, user.RawPassword,
		user.AuthMethod, user.LastLogin,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return autherr.NewAuth(autherr.KindInvalid, "username or email is already in use")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Save writes the mutable fields of an existing account.
func (r *UserRepo) Save(ctx context.Context, user *auth.Identity) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			firstname = $2, lastname = $3, email = $4, email_verified = $5,
			pending_email = $6, cat_username = $7, cat_password = $8,
			pass_hash = $9, password = $10, auth_method = $11, last_login = $12
		WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.Email,
		user.EmailVerified, user.PendingEmail, user.CatUsername,
		user.CatPassword, user.PasswordHash, user.RawPassword,
		user.AuthMethod, user.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save user: id %d not found", user.ID)
	}
	return nil
}

// UpdateEmail applies an email change, staging it as pending when not yet
// verified. The in-memory record is updated to match.
func (r *UserRepo) UpdateEmail(ctx context.Context, user *auth.Identity, email string, verified bool) error {
	if verified {
		_, err := r.pool.Exec(ctx,
			`UPDATE users SET email = $2, email_verified = TRUE, pending_email = '' WHERE id = $1`,
			user.ID, email)
		if err != nil {
			return fmt.Errorf("update email: %w", err)
		}
		user.Email = email
		user.EmailVerified = true
		user.PendingEmail = ""
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET pending_email = $2 WHERE id = $1`,
		user.ID, email)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	user.PendingEmail = email
	return nil
}

func scanUser(row pgx.Row) (*auth.Identity, error) {
	var user auth.Identity
	err := row.Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email,
		&user.EmailVerified, &user.PendingEmail, &user.CatUsername,
		&user.CatPassword, &user.PasswordHash, &user.RawPassword,
		&user.AuthMethod, &user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
