// Package config provides YAML-based configuration loading for Click, with
// environment variable overrides for secrets and deployment settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultDevJWTSecret is used outside production when no secret is set.
const DefaultDevJWTSecret = "click-dev-secret-change-me"

// Config is the top-level Click configuration, loaded from click.yaml.
type Config struct {
	Environment string          `yaml:"environment" env:"CLICK_ENV" validate:"oneof=development production test"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Redis       RedisConfig     `yaml:"redis"`
	Auth        AuthConfig      `yaml:"auth"`
	Projects    ProjectConfig   `yaml:"projects"`
	Uploads     UploadConfig    `yaml:"uploads"`
	Social      SocialConfig    `yaml:"social"`
	Alerts      AlertConfig     `yaml:"alerts"`
	Logging     LoggingConfig   `yaml:"logging"`
	ClientLog   ClientLogConfig `yaml:"client_log"`
	Audio       AudioConfig     `yaml:"audio"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host          string        `yaml:"host" env:"CLICK_HOST"`
	Port          int           `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	PublicURL     string        `yaml:"public_url" env:"CLICK_PUBLIC_URL"`
	CORSOrigins   []string      `yaml:"cors_origins" env:"CLICK_CORS_ORIGINS" envSeparator:","`
	AuthRateLimit int           `yaml:"auth_rate_limit" env:"CLICK_AUTH_RATE_LIMIT" validate:"min=1"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// DatabaseConfig selects the SQL backend. SQLite is used for development
// and tests, MySQL in production.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"CLICK_DB_DRIVER" validate:"oneof=sqlite mysql"`
	DSN      string `yaml:"dsn" env:"DATABASE_URL"`
	Path     string `yaml:"path" env:"CLICK_DB_PATH"`
	Host     string `yaml:"host" env:"CLICK_DB_HOST"`
	Port     int    `yaml:"port" env:"CLICK_DB_PORT"`
	Name     string `yaml:"name" env:"CLICK_DB_NAME"`
	User     string `yaml:"user" env:"CLICK_DB_USER"`
	Password string `yaml:"password" env:"CLICK_DB_PASSWORD"`
	Debug    bool   `yaml:"debug" env:"CLICK_DB_DEBUG"`
}

// RedisConfig enables the optional Redis mirror. An empty URL disables it.
type RedisConfig struct {
	URL    string `yaml:"url" env:"REDIS_URL"`
	Prefix string `yaml:"prefix"`
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" validate:"required,min=16"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"JWT_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"CLICK_BCRYPT_COST" validate:"min=4,max=31"`
}

// ProjectConfig bounds editor autosave payloads.
type ProjectConfig struct {
	MaxStateBytes int `yaml:"max_state_bytes" env:"CLICK_MAX_STATE_BYTES" validate:"min=1"`
}

// UploadConfig controls file storage for uploads.
type UploadConfig struct {
	Dir          string        `yaml:"dir" env:"CLICK_UPLOAD_DIR"`
	MaxBytes     int64         `yaml:"max_bytes" env:"CLICK_UPLOAD_MAX_BYTES" validate:"min=1"`
	AllowedTypes []string      `yaml:"allowed_types" envSeparator:","`
	ProgressTTL  time.Duration `yaml:"progress_ttl"`
}

// OAuthClientConfig holds the credentials for one social platform.
type OAuthClientConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
}

// SocialConfig holds OAuth clients and publishing settings.
type SocialConfig struct {
	RedirectBaseURL string            `yaml:"redirect_base_url" env:"OAUTH_REDIRECT_BASE_URL"`
	SchedulerSpec   string            `yaml:"scheduler_spec" env:"CLICK_SCHEDULER_SPEC"`
	MaxRetries      int               `yaml:"max_retries"`
	Twitter         OAuthClientConfig `yaml:"twitter" envPrefix:"TWITTER_"`
	LinkedIn        OAuthClientConfig `yaml:"linkedin" envPrefix:"LINKEDIN_"`
	Facebook        OAuthClientConfig `yaml:"facebook" envPrefix:"FACEBOOK_"`
	Instagram       OAuthClientConfig `yaml:"instagram" envPrefix:"INSTAGRAM_"`
	YouTube         OAuthClientConfig `yaml:"youtube" envPrefix:"YOUTUBE_"`
	TikTok          OAuthClientConfig `yaml:"tiktok" envPrefix:"TIKTOK_"`
	GitHub          OAuthClientConfig `yaml:"github" envPrefix:"GITHUB_"`
}

// Platforms returns the OAuth client config for every known platform keyed
// by platform name.
func (s SocialConfig) Platforms() map[string]OAuthClientConfig {
	return map[string]OAuthClientConfig{
		"twitter":   s.Twitter,
		"linkedin":  s.LinkedIn,
		"facebook":  s.Facebook,
		"instagram": s.Instagram,
		"youtube":   s.YouTube,
		"tiktok":    s.TikTok,
		"github":    s.GitHub,
	}
}

// AlertConfig controls operational alert delivery.
type AlertConfig struct {
	SlackBotToken     string        `yaml:"slack_bot_token" env:"SLACK_BOT_TOKEN"`
	SlackChannel      string        `yaml:"slack_channel" env:"SLACK_ALERT_CHANNEL"`
	DiscordWebhookURL string        `yaml:"discord_webhook_url" env:"DISCORD_WEBHOOK_URL"`
	Cooldown          time.Duration `yaml:"cooldown" env:"ALERT_COOLDOWN"`
	MaxPerHour        int           `yaml:"max_per_hour" env:"MAX_ALERTS_PER_HOUR"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json console"`
}

// ClientLogConfig selects where client debug logs are stored.
type ClientLogConfig struct {
	Sink          string `yaml:"sink" env:"CLICK_CLIENT_LOG_SINK" validate:"oneof=db mongo"`
	MongoURI      string `yaml:"mongo_uri" env:"MONGODB_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGODB_DATABASE"`
	MaxBatch      int    `yaml:"max_batch"`
	// Retention is how long entries are kept before pruning.
	Retention time.Duration `yaml:"retention" env:"CLICK_CLIENT_LOG_RETENTION"`
}

// AudioConfig locates the ffmpeg binary.
type AudioConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
}

// Load reads a YAML config file from path and returns a validated Config.
// An empty path skips the file and builds the config from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies environment overrides and defaults,
// and returns a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	if c.Server.AuthRateLimit == 0 {
		c.Server.AuthRateLimit = 20
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = 10 * time.Second
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "click.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "click"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "click:cache:"
	}

	if c.Auth.JWTSecret == "" && !c.IsProduction() {
		c.Auth.JWTSecret = DefaultDevJWTSecret
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}

	if c.Projects.MaxStateBytes == 0 {
		c.Projects.MaxStateBytes = 5 << 20
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = 500 << 20
	}
	if len(c.Uploads.AllowedTypes) == 0 {
		c.Uploads.AllowedTypes = []string{"video/", "audio/", "image/"}
	}
	if c.Uploads.ProgressTTL == 0 {
		c.Uploads.ProgressTTL = 24 * time.Hour
	}

	if c.Social.RedirectBaseURL == "" {
		c.Social.RedirectBaseURL = strings.TrimRight(c.Server.PublicURL, "/") + "/api/social"
	}
	if c.Social.SchedulerSpec == "" {
		c.Social.SchedulerSpec = "@every 1m"
	}
	if c.Social.MaxRetries == 0 {
		c.Social.MaxRetries = 3
	}

	if c.Alerts.SlackChannel == "" {
		c.Alerts.SlackChannel = "#alerts"
	}
	if c.Alerts.Cooldown == 0 {
		c.Alerts.Cooldown = 5 * time.Minute
	}
	if c.Alerts.MaxPerHour == 0 {
		c.Alerts.MaxPerHour = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		if c.Environment == "development" {
			c.Logging.Format = "console"
		} else {
			c.Logging.Format = "json"
		}
	}

	if c.ClientLog.Sink == "" {
		c.ClientLog.Sink = "db"
	}
	if c.ClientLog.MongoDatabase == "" {
		c.ClientLog.MongoDatabase = "click"
	}
	if c.ClientLog.MaxBatch == 0 {
		c.ClientLog.MaxBatch = 50
	}
	if c.ClientLog.Retention == 0 {
		c.ClientLog.Retention = 30 * 24 * time.Hour
	}

	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}
}

var validate = validator.New()

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed %q (value %v)", fieldPath(fe.Namespace()), fe.Tag(), redact(fe)))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if c.Database.Driver == "mysql" && c.Database.DSN == "" && c.Database.Name == "" {
		errs = append(errs, "database.name is required for mysql")
	}
	if c.ClientLog.Sink == "mongo" && c.ClientLog.MongoURI == "" {
		errs = append(errs, "client_log.mongo_uri is required when sink is mongo")
	}
	for name, p := range c.Social.Platforms() {
		if p.Enabled && p.ClientID == "" {
			errs = append(errs, fmt.Sprintf("social.%s.client_id is required when enabled", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// fieldPath turns "Config.Auth.JWTSecret" into "Auth.JWTSecret".
func fieldPath(ns string) string {
	return strings.TrimPrefix(ns, "Config.")
}

func redact(fe validator.FieldError) any {
	if strings.Contains(strings.ToLower(fe.Field()), "secret") {
		return "<redacted>"
	}
	return fe.Value()
}
