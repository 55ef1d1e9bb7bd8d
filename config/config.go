package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication method and strategy configuration
//   - database.go: Database and session store configuration
//   - mail.go: Outbound mail configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed cookies).
	IsDev bool `env:"DEV" envDefault:"false"`

	// SiteTitle is used in user-facing notifications (e.g. login warnings).
	SiteTitle string `env:"SITE_TITLE" envDefault:"Library Catalog"`

	// SiteURL is the public base URL of the discovery interface.
	SiteURL string `env:"SITE_URL" envDefault:"http://localhost:8080"`

	// ListenAddr is the address the auth service binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Outbound mail configuration
	Mail MailConfig `envPrefix:"MAIL_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
}
