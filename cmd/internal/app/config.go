package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	authapi "github.com/zrdt80/beetrack/cmd/internal/auth/api"
	"github.com/zrdt80/beetrack/cmd/internal/auth/cookie"
	"github.com/zrdt80/beetrack/cmd/internal/auth/session"
	"github.com/zrdt80/beetrack/cmd/security/password"
)

// ErrConfig is wrapped by every configuration validation failure.
var ErrConfig = errors.New("config: invalid")

// Config contains all runtime configuration. It is read from an optional .env
// file and the environment; environment variables win.
type Config struct {
	HTTPAddr string `mapstructure:"BEETRACK_HTTP_ADDR"`
	LogLevel string `mapstructure:"BEETRACK_LOG_LEVEL"`

	ReadHeaderTimeout time.Duration `mapstructure:"BEETRACK_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"BEETRACK_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"BEETRACK_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"BEETRACK_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `mapstructure:"BEETRACK_HTTP_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"BEETRACK_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `mapstructure:"BEETRACK_HTTP_MAX_BODY_BYTES"`

	// DatabaseURL empty selects in-memory stores (development only).
	DatabaseURL string `mapstructure:"BEETRACK_DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"BEETRACK_DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"BEETRACK_DB_MIN_CONNS"`
	AutoMigrate bool   `mapstructure:"BEETRACK_AUTO_MIGRATE"`

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `mapstructure:"BEETRACK_READINESS_REQUIRE_DB"`

	// RedisAddr empty keeps rate-limit counters in process memory.
	RedisAddr     string `mapstructure:"BEETRACK_REDIS_ADDR"`
	RedisPassword string `mapstructure:"BEETRACK_REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"BEETRACK_REDIS_DB"`

	JWTSecret           string        `mapstructure:"BEETRACK_JWT_SECRET"`
	JWTIssuer           string        `mapstructure:"BEETRACK_JWT_ISSUER"`
	AccessTokenTTL      time.Duration `mapstructure:"BEETRACK_ACCESS_TOKEN_TTL"`
	RefreshTokenTTL     time.Duration `mapstructure:"BEETRACK_REFRESH_TOKEN_TTL"`
	RefreshTokenBytes   int           `mapstructure:"BEETRACK_REFRESH_TOKEN_BYTES"`
	RecentSessionsLimit int           `mapstructure:"BEETRACK_RECENT_SESSIONS_LIMIT"`

	CookieName   string `mapstructure:"BEETRACK_COOKIE_NAME"`
	CookieDomain string `mapstructure:"BEETRACK_COOKIE_DOMAIN"`
	CookieSecure bool   `mapstructure:"BEETRACK_COOKIE_SECURE"`

	// TrustProxy honors X-Forwarded-For / X-Real-IP when resolving client IPs.
	TrustProxy bool `mapstructure:"BEETRACK_TRUST_PROXY"`

	// TokenHMACKey keys refresh-token hashing. RequireTokenHMAC makes it mandatory (>= 32 bytes).
	TokenHMACKey     string `mapstructure:"BEETRACK_TOKEN_HMAC_KEY"`
	RequireTokenHMAC bool   `mapstructure:"BEETRACK_REQUIRE_TOKEN_HMAC"`

	RegisterPerMinute int `mapstructure:"BEETRACK_RATE_REGISTER_PER_MINUTE"`
	LoginPerMinute    int `mapstructure:"BEETRACK_RATE_LOGIN_PER_MINUTE"`

	PasswordMinLength int `mapstructure:"BEETRACK_PASSWORD_MIN_LENGTH"`
}

// LoadConfig reads .env (if present) and the environment, applies defaults and validates.
// A missing .env is ignored.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	sess := session.DefaultConfig()
	pw := password.DefaultConfig()
	auth := authapi.DefaultConfig()

	v.SetDefault("BEETRACK_HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("BEETRACK_LOG_LEVEL", "info")
	v.SetDefault("BEETRACK_HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	v.SetDefault("BEETRACK_HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("BEETRACK_HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("BEETRACK_HTTP_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("BEETRACK_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("BEETRACK_HTTP_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("BEETRACK_HTTP_MAX_BODY_BYTES", auth.MaxBodyBytes)

	v.SetDefault("BEETRACK_DATABASE_URL", "")
	v.SetDefault("BEETRACK_DB_MAX_CONNS", 10)
	v.SetDefault("BEETRACK_DB_MIN_CONNS", 0)
	v.SetDefault("BEETRACK_AUTO_MIGRATE", false)
	v.SetDefault("BEETRACK_READINESS_REQUIRE_DB", false)

	v.SetDefault("BEETRACK_REDIS_ADDR", "")
	v.SetDefault("BEETRACK_REDIS_PASSWORD", "")
	v.SetDefault("BEETRACK_REDIS_DB", 0)

	v.SetDefault("BEETRACK_JWT_SECRET", "")
	v.SetDefault("BEETRACK_JWT_ISSUER", sess.Issuer)
	v.SetDefault("BEETRACK_ACCESS_TOKEN_TTL", sess.AccessTokenTTL)
	v.SetDefault("BEETRACK_REFRESH_TOKEN_TTL", sess.RefreshTokenTTL)
	v.SetDefault("BEETRACK_REFRESH_TOKEN_BYTES", sess.RefreshTokenBytes)
	v.SetDefault("BEETRACK_RECENT_SESSIONS_LIMIT", sess.RecentSessionsLimit)

	v.SetDefault("BEETRACK_COOKIE_NAME", cookie.DefaultName)
	v.SetDefault("BEETRACK_COOKIE_DOMAIN", "")
	v.SetDefault("BEETRACK_COOKIE_SECURE", true)
	v.SetDefault("BEETRACK_TRUST_PROXY", false)

	v.SetDefault("BEETRACK_TOKEN_HMAC_KEY", "")
	v.SetDefault("BEETRACK_REQUIRE_TOKEN_HMAC", false)

	v.SetDefault("BEETRACK_RATE_REGISTER_PER_MINUTE", auth.RegisterPerMinute)
	v.SetDefault("BEETRACK_RATE_LOGIN_PER_MINUTE", auth.LoginPerMinute)

	v.SetDefault("BEETRACK_PASSWORD_MIN_LENGTH", pw.Policy.MinLength)
}

// Validate checks values that would otherwise fail later at first use.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.HTTPAddr) == "":
		return fmt.Errorf("%w: BEETRACK_HTTP_ADDR must be set", ErrConfig)
	case len(c.JWTSecret) < session.MinSigningKeyBytes:
		return fmt.Errorf("%w: BEETRACK_JWT_SECRET must be at least %d bytes", ErrConfig, session.MinSigningKeyBytes)
	case c.DBMinConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns):
		return fmt.Errorf("%w: BEETRACK_DB_MIN_CONNS out of range", ErrConfig)
	case c.RegisterPerMinute < 0 || c.LoginPerMinute < 0:
		return fmt.Errorf("%w: rate limits must not be negative", ErrConfig)
	}

	if err := c.SessionConfig().Validate(); err != nil {
		return fmt.Errorf("%w: session: %v", ErrConfig, err)
	}
	if err := c.PasswordConfig().Check(); err != nil {
		return fmt.Errorf("%w: password: %v", ErrConfig, err)
	}
	return nil
}

// SessionConfig returns the session subsystem configuration.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		Issuer:              c.JWTIssuer,
		AccessTokenTTL:      c.AccessTokenTTL,
		RefreshTokenTTL:     c.RefreshTokenTTL,
		RefreshTokenBytes:   c.RefreshTokenBytes,
		RecentSessionsLimit: c.RecentSessionsLimit,
		SigningKey:          []byte(c.JWTSecret),
	}
}

// PasswordConfig returns the hashing parameters with the configured minimum length.
func (c Config) PasswordConfig() password.Config {
	pw := password.DefaultConfig()
	if c.PasswordMinLength > 0 {
		pw.Policy.MinLength = c.PasswordMinLength
	}
	return pw
}

// CookieConfig returns the refresh cookie attributes. Max-Age follows the refresh TTL.
func (c Config) CookieConfig() cookie.Config {
	ck := cookie.DefaultConfig(c.RefreshTokenTTL)
	if n := strings.TrimSpace(c.CookieName); n != "" {
		ck.Name = n
	}
	ck.Domain = strings.TrimSpace(c.CookieDomain)
	ck.Secure = c.CookieSecure
	return ck
}

// APIConfig returns the /users handler configuration.
func (c Config) APIConfig() authapi.Config {
	cfg := authapi.DefaultConfig()
	cfg.TrustProxy = c.TrustProxy
	cfg.RegisterPerMinute = c.RegisterPerMinute
	cfg.LoginPerMinute = c.LoginPerMinute
	if c.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = c.MaxBodyBytes
	}
	return cfg
}
