package config

// MailConfig contains outbound mail (SMTP) configuration.
type MailConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"25"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`

	// DefaultFrom is the sender address for system notifications.
	DefaultFrom string `env:"DEFAULT_FROM" envDefault:"noreply@localhost"`

	// LoginWarningSubject is the subject line of token-theft warnings.
	LoginWarningSubject string `env:"LOGIN_WARNING_SUBJECT" envDefault:"Suspicious login activity on your account"`
}
