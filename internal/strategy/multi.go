package strategy

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/session"
)

// MultiAuth chains form-based strategies: the submitted credentials are
// tried against each configured method in order until one accepts them.
// Optional input filters normalize the credentials before dispatch, e.g.
// uppercasing usernames for backends that require it.
type MultiAuth struct {
	base
	strategies Resolver
	logger     *slog.Logger
}

// MultiAuthOptions configures a MultiAuth strategy.
type MultiAuthOptions struct {
	Strategies Resolver
	Logger     *slog.Logger
}

// NewMultiAuth creates the chained-fallback composite strategy.
func NewMultiAuth(cfg *config.AuthConfig, opts MultiAuthOptions) *MultiAuth {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAuth{
		base:       newBase("MultiAuth", cfg),
		strategies: opts.Strategies,
		logger:     logger.With("component", "auth.multi"),
	}
}

func (m *MultiAuth) validate(cfg *config.AuthConfig) error {
	if len(cfg.Multi.Order) == 0 {
		return autherr.Config("MultiAuth: no methods configured")
	}
	for _, filter := range cfg.Multi.Filters {
		field, op, found := strings.Cut(filter, ":")
		if !found || field == "" {
			return autherr.Configf("MultiAuth: malformed filter %q", filter)
		}
		switch op {
		case "uppercase", "lowercase", "trim":
		default:
			return autherr.Configf("MultiAuth: unknown filter operation %q", op)
		}
	}
	return nil
}

// SelectableOptions lists the chained method names.
func (m *MultiAuth) SelectableOptions() []string {
	cfg := m.config()
	if cfg == nil {
		return nil
	}
	return cfg.Multi.Order
}

// SelectedOption always reports no selection; the chain has no user choice.
func (m *MultiAuth) SelectedOption(*session.Session) string { return "" }

func (m *MultiAuth) Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	cfg, err := m.checkedConfig(m.validate)
	if err != nil {
		return nil, err
	}

	filtered := applyFilters(req, cfg.Multi.Filters)
	if filtered.FormValue("username") == "" || filtered.FormValue("password") == "" {
		return nil, autherr.Blank()
	}

	var lastErr error
	for _, name := range cfg.Multi.Order {
		sub, err := m.strategies.Get(name)
		if err != nil {
			return nil, err
		}
		user, err := sub.Authenticate(ctx, filtered, sess)
		if err == nil {
			return user, nil
		}
		if !autherr.IsAuth(err) {
			return nil, err
		}
		m.logger.Debug("method rejected credentials", "method", name, "kind", autherr.AuthKindOf(err))
		lastErr = err
	}
	return nil, lastErr
}

// applyFilters returns a request copy with the filter operations applied to
// the named form fields. The original request is left untouched.
func applyFilters(req *auth.Request, filters []string) *auth.Request {
	if len(filters) == 0 {
		return req
	}
	out := *req
	out.Form = url.Values{}
	for k, v := range req.Form {
		out.Form[k] = append([]string(nil), v...)
	}
	for _, filter := range filters {
		field, op, _ := strings.Cut(filter, ":")
		value := out.Form.Get(field)
		if value == "" {
			continue
		}
		switch op {
		case "uppercase":
			value = strings.ToUpper(value)
		case "lowercase":
			value = strings.ToLower(value)
		case "trim":
			value = strings.TrimSpace(value)
		}
		out.Form.Set(field, value)
	}
	return &out
}
