package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/librarium/discovery-auth/config"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

const emailAuthNS = "EmailAuth"

// EmailAuth implements the email login-link flow: a short-lived signed token
// is mailed to the user, and presenting it back completes the login. The
// token is bound to the session that requested it through a nonce, so a
// forwarded link is useless in another browser.
type EmailAuth struct {
	cfg    *config.AppConfig
	mailer ports.Notifier
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.EmailLinkAuthenticator = (*EmailAuth)(nil)

// EmailAuthOptions groups dependencies for EmailAuth.
type EmailAuthOptions struct {
	Config *config.AppConfig // Required
	Mailer ports.Notifier    // Required
	Logger *slog.Logger      // Optional: structured logger
}

// NewEmailAuth constructs the email link authenticator with validation.
func NewEmailAuth(opts EmailAuthOptions) (*EmailAuth, error) {
	if opts.Config == nil {
		return nil, errors.New("Config is required")
	}
	if opts.Mailer == nil {
		return nil, errors.New("Notifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailAuth{
		cfg:    opts.Config,
		mailer: opts.Mailer,
		logger: logger.With("component", "auth.email_link"),
		now:    time.Now,
	}, nil
}

type emailLinkClaims struct {
	jwt.RegisteredClaims
	Nonce string            `json:"nonce"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendLoginLink mails a sign-in link carrying payload to the address.
func (e *EmailAuth) SendLoginLink(ctx context.Context, sess *session.Session, email string, payload map[string]string) error {
	key := e.cfg.Auth.EmailAuth.SigningKey
	if key == "" {
		return autherr.Config("email auth: signing key is required")
	}

	nonce, err := randomToken(16)
	if err != nil {
		return err
	}
	sess.Set(emailAuthNS, "nonce", nonce)

	now := e.now()
	claims := emailLinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.cfg.Auth.EmailAuth.LinkLifetime)),
		},
		Nonce: nonce,
		Data:  payload,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return fmt.Errorf("sign login link: %w", err)
	}

	link := e.cfg.SiteURL + "/auth/email?hash=" + token
	body := fmt.Sprintf(
		"Use the link below to sign in to %s. The link is valid for %s and only in the browser that requested it.\n\n%s\n",
		e.cfg.SiteTitle, e.cfg.Auth.EmailAuth.LinkLifetime, link,
	)
	if err := e.mailer.Send(ctx, email, e.cfg.Mail.DefaultFrom, e.cfg.Auth.EmailAuth.Subject, body); err != nil {
		return fmt.Errorf("send login link: %w", err)
	}
	e.logger.InfoContext(ctx, "login link sent", "email", email)
	return nil
}

// Authenticate consumes a login link token and returns its payload. The
// nonce is cleared on success, so each link completes at most one login.
func (e *EmailAuth) Authenticate(_ context.Context, sess *session.Session, token string) (map[string]string, error) {
	key := e.cfg.Auth.EmailAuth.SigningKey
	if key == "" {
		return nil, autherr.Config("email auth: signing key is required")
	}

	var claims emailLinkClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(key), nil
	}, jwt.WithTimeFunc(e.now))
	if err != nil || !parsed.Valid {
		return nil, autherr.NewAuth(autherr.KindInvalid, "sign-in link is invalid or expired")
	}

	nonce, ok := sess.Get(emailAuthNS, "nonce")
	if !ok || claims.Nonce == "" || claims.Nonce != nonce {
		return nil, autherr.NewAuth(autherr.KindInvalid, "sign-in link was issued for a different browser")
	}
	sess.Unset(emailAuthNS, "nonce")
	return claims.Data, nil
}
