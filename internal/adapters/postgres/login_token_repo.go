package postgres

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
)

const tokenColumns = `id, user_id, series, token, last_session_id, browser, platform, expires`

// LoginTokenRepo provides database operations for persistent-login tokens.
// Only a digest of the secret is stored; Match re-digests the presented
// secret and compares.
type LoginTokenRepo struct {
	pool *pgxpool.Pool
}

var _ ports.LoginTokenStore = (*LoginTokenRepo)(nil)

// NewLoginTokenRepo creates a LoginTokenRepo on the given pool.
func NewLoginTokenRepo(pool *pgxpool.Pool) *LoginTokenRepo {
	return &LoginTokenRepo{pool: pool}
}

// Match finds the token for (user, series) carrying the presented secret.
// Live rows for the series with no digest match mean the cookie holder has a
// stale or stolen secret, reported as a TokenError.
func (r *LoginTokenRepo) Match(ctx context.Context, userID int64, series, secret string) (*auth.LoginToken, error) {
	rows, err := r.query(ctx, "user_id = $1 AND series = $2", userID, series)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	digest := digestSecret(secret)
	for _, token := range rows {
		if subtle.ConstantTimeCompare([]byte(token.Token), []byte(digest)) == 1 {
			// Hand the caller the raw secret, not the stored digest.
			token.Token = secret
			return token, nil
		}
	}
	return nil, autherr.NewToken(userID, series, "presented secret does not match any live token")
}

// Create inserts the token, storing a digest of its secret.
func (r *LoginTokenRepo) Create(ctx context.Context, token *auth.LoginToken) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO login_tokens (
			user_id, series, token, last_session_id, browser, platform, expires
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		token.UserID, token.Series, digestSecret(token.Token),
		token.LastSessionID, token.Browser, token.Platform, token.Expires,
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("create login token: %w", err)
	}
	return nil
}

func (r *LoginTokenRepo) BySeries(ctx context.Context, series string) ([]*auth.LoginToken, error) {
	return r.query(ctx, "series = $1", series)
}

func (r *LoginTokenRepo) ByUser(ctx context.Context, userID int64) ([]*auth.LoginToken, error) {
	return r.query(ctx, "user_id = $1", userID)
}

// DeleteBySeries removes the series except the row identified by keepID;
// keepID 0 removes everything in the series.
func (r *LoginTokenRepo) DeleteBySeries(ctx context.Context, series string, keepID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM login_tokens WHERE series = $1 AND ($2 = 0 OR id <> $2)`,
		series, keepID)
	if err != nil {
		return fmt.Errorf("delete token series: %w", err)
	}
	return nil
}

func (r *LoginTokenRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}

func (r *LoginTokenRepo) query(ctx context.Context, where string, args ...any) ([]*auth.LoginToken, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tokenColumns+` FROM login_tokens WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query login tokens: %w", err)
	}
	defer rows.Close()

	var out []*auth.LoginToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan login token: %w", err)
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

func scanToken(row pgx.Row) (*auth.LoginToken, error) {
	var token auth.LoginToken
	err := row.Scan(
		&token.ID, &token.UserID, &token.Series, &token.Token,
		&token.LastSessionID, &token.Browser, &token.Platform, &token.Expires,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func digestSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
