package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// loginTokenCookie is the cookie carrying the persistent-login credential.
const loginTokenCookie = "loginToken"

// sessionPurgeWorkers bounds the concurrent session destroys during a theft
// response.
const sessionPurgeWorkers = 4

// LoginTokenManager runs the persistent-login ("remember me") lifecycle:
// issuing token cookies, logging users back in from them, rotating the
// secret after every use, and reacting to a presented-but-wrong secret as
// likely cookie theft by revoking everything the user has and warning them
// by mail.
//
// Rotation is deferred: a successful token login only records the intent,
// and RequestFinished performs the rotation once the request is done with
// the cookie jar. Theft warnings queue until NotifierReady reports the mail
// layer usable.
type LoginTokenManager struct {
	cfg        *config.AppConfig
	tokens     ports.LoginTokenStore
	users      ports.IdentityStore
	sessions   ports.SessionStore
	cookies    ports.CookieStore
	notifier   ports.Notifier
	clientInfo ports.ClientInfoResolver
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	pending  []pendingRotation
	ready    bool
	warnings []theftWarning
}

type pendingRotation struct {
	token     *auth.LoginToken
	sessionID string
}

type theftWarning struct {
	user  *auth.Identity
	token *auth.LoginToken
}

// LoginTokenManagerOptions groups dependencies for LoginTokenManager.
type LoginTokenManagerOptions struct {
	Config     *config.AppConfig        // Required
	Tokens     ports.LoginTokenStore    // Required
	Users      ports.IdentityStore      // Required
	Sessions   ports.SessionStore       // Required
	Cookies    ports.CookieStore        // Required
	Notifier   ports.Notifier           // Required when login warnings are on
	ClientInfo ports.ClientInfoResolver // Required
	Logger     *slog.Logger             // Optional: structured logger
	Now        func() time.Time         // Optional: clock override for tests
}

// NewLoginTokenManager constructs a LoginTokenManager with validation.
func NewLoginTokenManager(opts LoginTokenManagerOptions) (*LoginTokenManager, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("Config is required")
	case opts.Tokens == nil:
		return nil, errors.New("LoginTokenStore is required")
	case opts.Users == nil:
		return nil, errors.New("IdentityStore is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionStore is required")
	case opts.Cookies == nil:
		return nil, errors.New("CookieStore is required")
	case opts.ClientInfo == nil:
		return nil, errors.New("ClientInfoResolver is required")
	}
	if opts.Config.Auth.SendLoginWarnings && opts.Notifier == nil {
		return nil, errors.New("Notifier is required when login warnings are enabled")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LoginTokenManager{
		cfg:        opts.Config,
		tokens:     opts.Tokens,
		users:      opts.Users,
		sessions:   opts.Sessions,
		cookies:    opts.Cookies,
		notifier:   opts.Notifier,
		clientInfo: opts.ClientInfo,
		logger:     logger.With("component", "auth.login_token"),
		now:        now,
	}, nil
}

// TokenLogin attempts a login from the persistent-login cookie. A missing,
// malformed or expired cookie reads as anonymous; a wrong secret for a live
// series triggers the theft response and surfaces the TokenError.
func (m *LoginTokenManager) TokenLogin(ctx context.Context, sess *session.Session) (*auth.Identity, error) {
	raw := m.cookies.Get(loginTokenCookie)
	if raw == "" {
		return nil, nil
	}
	series, userID, secret, ok := parseTokenCookie(raw)
	if !ok {
		m.cookies.Clear(loginTokenCookie)
		return nil, nil
	}

	token, err := m.tokens.Match(ctx, userID, series, secret)
	if err != nil {
		if autherr.IsToken(err) {
			m.handleTheft(ctx, userID, series)
			m.cookies.Clear(loginTokenCookie)
		}
		return nil, err
	}
	if token == nil {
		m.cookies.Clear(loginTokenCookie)
		return nil, nil
	}
	if token.Expired(m.now()) {
		if err := m.tokens.DeleteBySeries(ctx, series, 0); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired token series", "series", series, "error", err)
		}
		m.cookies.Clear(loginTokenCookie)
		return nil, nil
	}

	user, err := m.users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if err := m.tokens.DeleteBySeries(ctx, series, 0); err != nil {
			m.logger.WarnContext(ctx, "failed to delete orphaned token series", "series", series, "error", err)
		}
		m.cookies.Clear(loginTokenCookie)
		return nil, nil
	}

	m.mu.Lock()
	m.pending = append(m.pending, pendingRotation{token: token, sessionID: sess.ID()})
	m.mu.Unlock()
	return user, nil
}

// RequestFinished performs the rotations recorded by TokenLogin. Call it
// once per request after the response cookies can still be written.
func (m *LoginTokenManager) RequestFinished(ctx context.Context) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, rot := range pending {
		if err := m.rotate(ctx, rot); err != nil {
			m.logger.ErrorContext(ctx, "token rotation failed", "series", rot.token.Series, "error", err)
		}
	}
}

// rotate replaces the used secret with a fresh one in the same series. With
// lenient rotation the used token row survives, so a parallel request that
// raced this one does not look like theft.
func (m *LoginTokenManager) rotate(ctx context.Context, rot pendingRotation) error {
	secret, err := randomToken(32)
	if err != nil {
		return err
	}
	next := &auth.LoginToken{
		UserID:        rot.token.UserID,
		Series:        rot.token.Series,
		Token:         secret,
		LastSessionID: rot.sessionID,
		Browser:       rot.token.Browser,
		Platform:      rot.token.Platform,
		Expires:       rot.token.Expires,
	}
	keepID := int64(0)
	if m.cfg.Auth.LenientTokenRotation {
		keepID = rot.token.ID
	}
	if err := m.tokens.DeleteBySeries(ctx, rot.token.Series, keepID); err != nil {
		return err
	}
	if err := m.tokens.Create(ctx, next); err != nil {
		return err
	}
	m.setTokenCookie(next)
	return nil
}

// CreateToken starts a new persistent-login series for the user. The client
// fingerprint is mandatory: if the resolver cannot classify the user agent,
// no token is issued.
func (m *LoginTokenManager) CreateToken(ctx context.Context, user *auth.Identity, sess *session.Session, userAgent string) error {
	info, err := m.clientInfo.Lookup(userAgent)
	if err != nil {
		return fmt.Errorf("resolve client info: %w", err)
	}
	series, err := randomToken(16)
	if err != nil {
		return err
	}
	secret, err := randomToken(32)
	if err != nil {
		return err
	}
	token := &auth.LoginToken{
		UserID:        user.ID,
		Series:        series,
		Token:         secret,
		LastSessionID: sess.ID(),
		Browser:       info.Browser,
		Platform:      info.Platform,
		Expires:       m.now().AddDate(0, 0, m.cfg.Auth.PersistentLoginLifetime),
	}
	if err := m.tokens.Create(ctx, token); err != nil {
		return fmt.Errorf("create login token: %w", err)
	}
	m.setTokenCookie(token)
	return nil
}

// DeleteActiveToken revokes the series behind the current cookie, if any.
func (m *LoginTokenManager) DeleteActiveToken(ctx context.Context) error {
	raw := m.cookies.Get(loginTokenCookie)
	if raw == "" {
		return nil
	}
	m.cookies.Clear(loginTokenCookie)
	series, _, _, ok := parseTokenCookie(raw)
	if !ok {
		return nil
	}
	return m.tokens.DeleteBySeries(ctx, series, 0)
}

// DeleteUserTokens revokes every persistent login the user has.
func (m *LoginTokenManager) DeleteUserTokens(ctx context.Context, userID int64) error {
	return m.tokens.DeleteByUser(ctx, userID)
}

// handleTheft is the response to a presented-but-wrong secret: revoke every
// token the user has, destroy the sessions those tokens last touched, and
// warn the user by mail.
func (m *LoginTokenManager) handleTheft(ctx context.Context, userID int64, series string) {
	existing, err := m.tokens.ByUser(ctx, userID)
	if err != nil {
		m.logger.ErrorContext(ctx, "theft response: listing tokens failed", "user_id", userID, "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sessionPurgeWorkers)
	for _, t := range existing {
		if t.LastSessionID == "" {
			continue
		}
		sessionID := t.LastSessionID
		g.Go(func() error {
			return m.sessions.Destroy(gctx, sessionID)
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.ErrorContext(ctx, "theft response: session purge failed", "user_id", userID, "error", err)
	}

	if err := m.tokens.DeleteByUser(ctx, userID); err != nil {
		m.logger.ErrorContext(ctx, "theft response: token purge failed", "user_id", userID, "error", err)
	}
	m.logger.WarnContext(ctx, "possible login token theft", "user_id", userID, "series", series)

	if !m.cfg.Auth.SendLoginWarnings {
		return
	}
	user, err := m.users.FindByID(ctx, userID)
	if err != nil || user == nil || user.Email == "" {
		return
	}
	var stolen *auth.LoginToken
	for _, t := range existing {
		if t.Series == series {
			stolen = t
			break
		}
	}
	m.queueWarning(ctx, theftWarning{user: user, token: stolen})
}

func (m *LoginTokenManager) queueWarning(ctx context.Context, w theftWarning) {
	m.mu.Lock()
	ready := m.ready
	if !ready {
		m.warnings = append(m.warnings, w)
	}
	m.mu.Unlock()
	if ready {
		m.sendWarning(ctx, w)
	}
}

// NotifierReady marks the mail layer usable and flushes queued warnings.
func (m *LoginTokenManager) NotifierReady() {
	m.mu.Lock()
	m.ready = true
	queued := m.warnings
	m.warnings = nil
	m.mu.Unlock()

	for _, w := range queued {
		m.sendWarning(context.Background(), w)
	}
}

func (m *LoginTokenManager) sendWarning(ctx context.Context, w theftWarning) {
	device := "an unrecognized device"
	if w.token != nil && (w.token.Browser != "" || w.token.Platform != "") {
		device = strings.TrimSpace(w.token.Browser + " on " + w.token.Platform)
	}
	body := fmt.Sprintf(
		"Someone presented an invalid persistent-login credential for your %s account, most recently used from %s. "+
			"As a precaution all remembered logins for your account have been signed out. "+
			"If this was not you, please change your password.\n",
		m.cfg.SiteTitle, device,
	)
	if err := m.notifier.Send(ctx, w.user.Email, m.cfg.Mail.DefaultFrom, m.cfg.Mail.LoginWarningSubject, body); err != nil {
		m.logger.ErrorContext(ctx, "sending theft warning failed", "user_id", w.user.ID, "error", err)
	}
}

func (m *LoginTokenManager) setTokenCookie(token *auth.LoginToken) {
	value := token.Series + ":" + strconv.FormatInt(token.UserID, 10) + ":" + token.Token
	m.cookies.Set(loginTokenCookie, value, token.Expires, true)
}

// parseTokenCookie splits a series:user:secret cookie value. The colon is a
// legal cookie-value byte, so the packing survives http.SetCookie intact.
// Anything that does not round-trip through this format is treated as no
// cookie at all.
func parseTokenCookie(raw string) (series string, userID int64, secret string, ok bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", 0, "", false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], id, parts[2], true
}
