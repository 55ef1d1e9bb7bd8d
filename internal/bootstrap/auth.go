package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/librarium/discovery-auth/config"
	casadapter "github.com/librarium/discovery-auth/internal/adapters/cas"
	ldapadapter "github.com/librarium/discovery-auth/internal/adapters/ldap"
	"github.com/librarium/discovery-auth/internal/adapters/postgres"
	redisadapter "github.com/librarium/discovery-auth/internal/adapters/redis"
	sip2adapter "github.com/librarium/discovery-auth/internal/adapters/sip2"
	smtpadapter "github.com/librarium/discovery-auth/internal/adapters/smtp"
	uaadapter "github.com/librarium/discovery-auth/internal/adapters/useragent"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/service"
	"github.com/librarium/discovery-auth/internal/strategy"
)

// Auth holds the long-lived authentication components. Per-request pieces
// (the cookie jar and the managers bound to it) are built via ForRequest.
type Auth struct {
	Config     *config.AppConfig
	Registry   *service.Registry
	Users      ports.IdentityStore
	Tokens     ports.LoginTokenStore
	Sessions   ports.SessionStore
	Notifier   ports.Notifier
	ClientInfo ports.ClientInfoResolver
	Csrf       *service.CsrfTokenList
	Logger     *slog.Logger

	userSession *service.UserSession
}

// AuthDeps carries the external connections BuildAuth wires against.
type AuthDeps struct {
	Pool   *pgxpool.Pool           // Required
	Redis  goredis.UniversalClient // Required
	Logger *slog.Logger            // Optional: structured logger
	// Catalog is the ILS driver; the ILS strategy is only registered when
	// one is supplied.
	Catalog ports.Catalog
}

// BuildAuth wires the full authentication component graph from config.
func BuildAuth(cfg *config.AppConfig, deps AuthDeps) (*Auth, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Pool == nil || deps.Redis == nil {
		return nil, errors.New("database pool and redis client are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users := postgres.NewUserRepo(deps.Pool)
	tokens := postgres.NewLoginTokenRepo(deps.Pool)
	sessions := redisadapter.NewSessionStore(deps.Redis, redisadapter.SessionStoreOptions{})
	notifier := smtpadapter.NewMailer(cfg.Mail, smtpadapter.MailerOptions{})

	userSession, err := service.NewUserSession(service.UserSessionOptions{
		Users:   users,
		Privacy: cfg.Auth.Privacy,
	})
	if err != nil {
		return nil, fmt.Errorf("build user session: %w", err)
	}

	emailAuth, err := service.NewEmailAuth(service.EmailAuthOptions{
		Config: cfg,
		Mailer: notifier,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build email auth: %w", err)
	}

	registry := service.NewRegistry()
	register := func(name string, s ports.Strategy) {
		if err == nil {
			err = registry.Register(name, s)
		}
	}

	authCfg := &cfg.Auth
	register("Database", strategy.NewDatabase(authCfg, strategy.DatabaseOptions{
		Users:  users,
		Logger: logger,
	}))
	register("LDAP", strategy.NewLDAP(authCfg, strategy.LDAPOptions{
		Directory: ldapadapter.NewDirectory(cfg.Auth.LDAP, ldapadapter.DirectoryOptions{Logger: logger}),
		Users:     users,
		Logger:    logger,
	}))
	register("CAS", strategy.NewCAS(authCfg, strategy.CASOptions{
		Tickets: casadapter.NewValidator(cfg.Auth.CAS, casadapter.ValidatorOptions{}),
		Users:   users,
		Logger:  logger,
	}))
	register("Shibboleth", strategy.NewShibboleth(authCfg, strategy.ShibbolethOptions{
		Users:  users,
		Logger: logger,
	}))
	register("OIDC", strategy.NewOIDC(authCfg, strategy.OIDCOptions{
		Users:  users,
		Logger: logger,
	}))
	register("SIP2", strategy.NewSIP2(authCfg, strategy.SIP2Options{
		Client: sip2adapter.NewClient(cfg.Auth.SIP2, sip2adapter.ClientOptions{Logger: logger}),
		Users:  users,
		Logger: logger,
	}))
	register("PasswordAccess", strategy.NewPasswordAccess(authCfg, users))
	if cfg.IsDev {
		register("SimulatedSSO", strategy.NewSimulatedSSO(authCfg, users))
	}
	if deps.Catalog != nil {
		register("ILS", strategy.NewILS(authCfg, strategy.ILSOptions{
			Catalog:   deps.Catalog,
			Users:     users,
			EmailAuth: emailAuth,
			Logger:    logger,
		}))
	}
	register("ChoiceAuth", strategy.NewChoiceAuth(authCfg, strategy.ChoiceAuthOptions{
		Strategies: registry,
		Logger:     logger,
	}))
	register("MultiAuth", strategy.NewMultiAuth(authCfg, strategy.MultiAuthOptions{
		Strategies: registry,
		Logger:     logger,
	}))
	if err != nil {
		return nil, fmt.Errorf("register strategies: %w", err)
	}

	if !registry.Has(cfg.Auth.Method) {
		return nil, fmt.Errorf("configured method %q is not available", cfg.Auth.Method)
	}

	return &Auth{
		Config:      cfg,
		Registry:    registry,
		Users:       users,
		Tokens:      tokens,
		Sessions:    sessions,
		Notifier:    notifier,
		ClientInfo:  uaadapter.NewResolver(),
		Csrf:        service.NewCsrfTokenList(),
		Logger:      logger,
		userSession: userSession,
	}, nil
}

// ForRequest builds the per-request managers around the request's cookie
// jar. The token manager's deferred work (rotation, queued warnings) is
// flushed by the request teardown via RequestFinished and NotifierReady.
func (a *Auth) ForRequest(cookies ports.CookieStore, now func() time.Time) (*service.Manager, *service.LoginTokenManager, error) {
	tokens, err := service.NewLoginTokenManager(service.LoginTokenManagerOptions{
		Config:     a.Config,
		Tokens:     a.Tokens,
		Users:      a.Users,
		Sessions:   a.Sessions,
		Cookies:    cookies,
		Notifier:   a.Notifier,
		ClientInfo: a.ClientInfo,
		Logger:     a.Logger,
		Now:        now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build login token manager: %w", err)
	}

	manager, err := service.NewManager(service.ManagerOptions{
		Config:      a.Config,
		Registry:    a.Registry,
		UserSession: a.userSession,
		Csrf:        a.Csrf,
		Tokens:      tokens,
		Cookies:     cookies,
		Sessions:    a.Sessions,
		Logger:      a.Logger,
		Now:         now,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build auth manager: %w", err)
	}
	return manager, tokens, nil
}
