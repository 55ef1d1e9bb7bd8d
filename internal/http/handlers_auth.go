// Package httpx exposes the authentication operations as a JSON HTTP API.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/librarium/discovery-auth/internal/adapters/web"
	"github.com/librarium/discovery-auth/internal/bootstrap"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/service"
	"github.com/librarium/discovery-auth/internal/session"
)

const sessionCookie = "sessionID"

// AuthHandlers provides the HTTP handlers for authentication operations.
type AuthHandlers struct {
	app    *bootstrap.Auth
	logger *slog.Logger
}

// NewAuthHandlers wires handlers over the assembled authentication core.
func NewAuthHandlers(app *bootstrap.Auth) *AuthHandlers {
	return &AuthHandlers{app: app, logger: app.Logger.With("component", "http")}
}

// requestScope bundles the per-request pieces an endpoint operates on.
type requestScope struct {
	mgr    *service.Manager
	tokens *service.LoginTokenManager
	req    *auth.Request
	sess   *session.Session
}

type authOp func(ctx context.Context, rs *requestScope) (int, any, error)

// withSession loads the session named by the sessionID cookie (minting a
// fresh one when absent), wires the per-request manager pair, runs the
// operation, then persists the session and flushes the token manager's
// deferred rotations and warnings.
func (h *AuthHandlers) withSession(op authOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", err)
			return
		}

		jar := web.NewCookieJar(w, r, !h.app.Config.IsDev)
		id := jar.Get(sessionCookie)
		if id == "" {
			id = session.NewID()
			jar.Set(sessionCookie, id, time.Time{}, true)
		}

		sess, err := h.app.Sessions.Load(ctx, id)
		if err != nil {
			h.logger.Error("session load failed", "error", err)
			writeError(w, http.StatusInternalServerError, "session_unavailable",
				errors.New("session store unavailable"))
			return
		}

		mgr, tokens, err := h.app.ForRequest(jar, nil)
		if err != nil {
			h.logger.Error("request wiring failed", "error", err)
			writeError(w, http.StatusInternalServerError, "auth_unavailable",
				errors.New("authentication unavailable"))
			return
		}
		tokens.NotifierReady()

		code, body, opErr := op(ctx, &requestScope{mgr: mgr, tokens: tokens, req: auth.FromHTTP(r), sess: sess})

		if err := h.app.Sessions.Save(ctx, sess); err != nil {
			h.logger.Warn("session save failed", "session_id", sess.ID(), "error", err)
		}
		tokens.RequestFinished(ctx)

		if opErr != nil {
			h.writeAuthError(w, opErr)
			return
		}
		writeJSON(w, code, body)
	}
}

func (h *AuthHandlers) login(ctx context.Context, rs *requestScope) (int, any, error) {
	user, err := rs.mgr.Login(ctx, rs.req, rs.sess)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, identityResponse(user), nil
}

func (h *AuthHandlers) logout(ctx context.Context, rs *requestScope) (int, any, error) {
	returnURL := rs.req.FormValue("return")
	if returnURL == "" {
		returnURL = "/"
	}
	redirect, err := rs.mgr.Logout(ctx, returnURL, rs.sess, true)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"redirect": redirect}, nil
}

func (h *AuthHandlers) create(ctx context.Context, rs *requestScope) (int, any, error) {
	user, err := rs.mgr.Create(ctx, rs.req, rs.sess)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, identityResponse(user), nil
}

func (h *AuthHandlers) updatePassword(ctx context.Context, rs *requestScope) (int, any, error) {
	user, err := rs.mgr.UpdatePassword(ctx, rs.req, rs.sess)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, identityResponse(user), nil
}

func (h *AuthHandlers) csrfToken(_ context.Context, rs *requestScope) (int, any, error) {
	token, err := rs.mgr.GetCsrfToken(rs.sess, rs.req.QueryValue("regenerate") == "true")
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"csrf": token}, nil
}

func (h *AuthHandlers) status(ctx context.Context, rs *requestScope) (int, any, error) {
	user, err := rs.mgr.CurrentIdentity(ctx, rs.sess)
	if err != nil {
		return 0, nil, err
	}
	body := map[string]any{
		"login_enabled": rs.mgr.LoginEnabled(),
		"logged_in":     user != nil,
		"method":        rs.mgr.ActiveMethod(rs.sess),
		"options":       rs.mgr.SelectableOptions(rs.sess),
	}
	if user != nil {
		body["user"] = identityResponse(user)
	}
	return http.StatusOK, body, nil
}

func (h *AuthHandlers) initiator(ctx context.Context, rs *requestScope) (int, any, error) {
	target := rs.req.QueryValue("target")
	url, err := rs.mgr.SessionInitiator(ctx, target, rs.sess)
	if err != nil {
		return 0, nil, err
	}
	// An empty URL means the local login form handles this method.
	return http.StatusOK, map[string]string{"url": url}, nil
}

func identityResponse(user *auth.Identity) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"username":  user.Username,
		"firstname": user.FirstName,
		"lastname":  user.LastName,
		"email":     user.Email,
	}
}

// writeAuthError maps domain errors onto HTTP statuses. Technical, admin and
// config failures are logged server-side and reported without detail.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case autherr.IsAuth(err):
		kind := autherr.AuthKindOf(err)
		code := statusForKind(kind)
		if code >= http.StatusInternalServerError {
			h.logger.Error("authentication failure", "kind", kind, "error", err)
		}
		writeJSON(w, code, map[string]string{"error": string(kind), "message": err.Error()})
	case autherr.IsPolicy(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "policy", "message": err.Error()})
	case autherr.IsUnsupported(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported", "message": err.Error()})
	case autherr.IsConfig(err):
		h.logger.Error("configuration error", "error", err)
		writeError(w, http.StatusInternalServerError, "configuration",
			errors.New("authentication is misconfigured"))
	default:
		h.logger.Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal",
			errors.New("an unexpected error occurred"))
	}
}

func statusForKind(kind autherr.AuthKind) int {
	switch kind {
	case autherr.KindBlank:
		return http.StatusBadRequest
	case autherr.KindInvalid:
		return http.StatusUnauthorized
	case autherr.KindDenied, autherr.KindEmailNotVerified:
		return http.StatusForbidden
	case autherr.KindInProgress:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
