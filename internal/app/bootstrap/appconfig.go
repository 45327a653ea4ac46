// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (STUDYHUB_*), configuration
// files, or command-line flags, loaded in LoadConfig. WAFFLE's CoreConfig
// covers the framework-level settings (ports, TLS, log level, CORS).
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: studyhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Email configuration. SendGridKey wins over SMTP; with neither set,
	// messages are written to the log.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string
	SendGridKey  string

	// Base URL for email links (password reset) and the Google callback.
	BaseURL  string
	SiteName string

	// Password reset
	ResetTokenKey       string        // signs reset tokens; derived from SessionKey when blank
	PasswordResetExpiry time.Duration // how long a reset link stays valid

	// Google OAuth (optional; both must be set to enable)
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging: "all", "db", "log" or "off" per category
	AuditLogAuth      string
	AuditLogCommunity string

	// Request timeouts (zero keeps the built-in default)
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Background cleanup of expired OAuth states and idle rate-limit buckets
	JanitorInterval time.Duration
}
