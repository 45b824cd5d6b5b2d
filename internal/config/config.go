package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration required by the API process.
// Values come from the environment; ENV_FILE optionally points at a dotenv
// file loaded first (existing env vars win).
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// UpstreamConfig describes the voice-agent provider.
type UpstreamConfig struct {
	BaseURL string
	// DefaultAPIKey is used for tenants without their own provider key.
	DefaultAPIKey string
	Timeout       time.Duration

	RatePerSecond float64
	Burst         int

	PageSize int
	MaxPages int

	// TenantConcurrency caps in-flight provider calls per tenant. 0 disables the cap.
	TenantConcurrency int
}

type CacheConfig struct {
	AgentNameCapacity int
	AgentNameTTL      time.Duration
}

type SchedulerConfig struct {
	// RefreshSpec is an optional cron spec for proactive cache refresh. Empty disables it.
	RefreshSpec string
	// WeeklyReportSpec is the cron spec for weekly report generation. Empty disables it.
	WeeklyReportSpec string
	// AlertSpec is the cron spec for alert rule evaluation. Empty disables it.
	AlertSpec string
}

func Load() (Config, error) {
	if f := strings.TrimSpace(os.Getenv("ENV_FILE")); f != "" {
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = collect(parseErrs)(mustInt("APP_PORT"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = collect(parseErrs)(mustInt("DB_PORT"))
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = collect(parseErrs)(mustInt("REDIS_PORT"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optionalDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optionalDuration("JWT_REFRESH_TTL")

	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")), "/")
	c.Upstream.DefaultAPIKey = os.Getenv("UPSTREAM_API_KEY")
	c.Upstream.Timeout = optionalDuration("UPSTREAM_TIMEOUT")
	c.Upstream.RatePerSecond, parseErrs = collectFloat(parseErrs)(optionalFloat("UPSTREAM_RATE_PER_SEC"))
	c.Upstream.Burst, parseErrs = collect(parseErrs)(optionalInt("UPSTREAM_BURST"))
	c.Upstream.PageSize, parseErrs = collect(parseErrs)(optionalInt("UPSTREAM_PAGE_SIZE"))
	c.Upstream.MaxPages, parseErrs = collect(parseErrs)(optionalInt("UPSTREAM_MAX_PAGES"))
	c.Upstream.TenantConcurrency, parseErrs = collect(parseErrs)(optionalInt("UPSTREAM_TENANT_CONCURRENCY"))

	c.Cache.AgentNameCapacity, parseErrs = collect(parseErrs)(optionalInt("AGENT_NAME_CACHE_SIZE"))
	c.Cache.AgentNameTTL = optionalDuration("AGENT_NAME_CACHE_TTL")

	c.Scheduler.RefreshSpec = strings.TrimSpace(os.Getenv("CACHE_REFRESH_SCHEDULE"))
	c.Scheduler.WeeklyReportSpec = strings.TrimSpace(os.Getenv("WEEKLY_REPORT_SCHEDULE"))
	c.Scheduler.AlertSpec = strings.TrimSpace(os.Getenv("ALERT_EVALUATION_SCHEDULE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL is required"))
	} else if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("UPSTREAM_BASE_URL must be an absolute URL, got %q", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		c.Upstream.Timeout = 15 * time.Second
	}
	if c.Upstream.RatePerSecond <= 0 {
		c.Upstream.RatePerSecond = 10
	}
	if c.Upstream.Burst <= 0 {
		c.Upstream.Burst = 20
	}
	if c.Upstream.PageSize <= 0 {
		c.Upstream.PageSize = 100
	}
	if c.Upstream.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("UPSTREAM_PAGE_SIZE must be <= 1000, got %d", c.Upstream.PageSize))
	}
	if c.Upstream.MaxPages <= 0 {
		c.Upstream.MaxPages = 20
	}
	if c.Upstream.TenantConcurrency < 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_TENANT_CONCURRENCY must be >= 0, got %d", c.Upstream.TenantConcurrency))
	}

	if c.Cache.AgentNameCapacity <= 0 {
		c.Cache.AgentNameCapacity = 1024
	}
	if c.Cache.AgentNameTTL <= 0 {
		c.Cache.AgentNameTTL = 5 * time.Minute
	}

	for key, spec := range map[string]string{
		"CACHE_REFRESH_SCHEDULE":    c.Scheduler.RefreshSpec,
		"WEEKLY_REPORT_SCHEDULE":    c.Scheduler.WeeklyReportSpec,
		"ALERT_EVALUATION_SCHEDULE": c.Scheduler.AlertSpec,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s is not a valid cron spec: %w", key, err))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// MigrationURL is the pgx5:// URL golang-migrate expects. Contains secrets.
func (c Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": []string{c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalFloat(key string) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

// optionalDuration returns 0 for missing or malformed values; Validate applies defaults.
func optionalDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func collect(errs []error) func(int, error) (int, []error) {
	return func(n int, err error) (int, []error) {
		if err != nil {
			errs = append(errs, err)
		}
		return n, errs
	}
}

func collectFloat(errs []error) func(float64, error) (float64, []error) {
	return func(f float64, err error) (float64, []error) {
		if err != nil {
			errs = append(errs, err)
		}
		return f, errs
	}
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
