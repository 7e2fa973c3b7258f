// Package config loads autoblog configuration from autoblog.yaml and
// AUTOBLOG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"autoblog/internal/ai"
	"autoblog/internal/httpclient"
	"autoblog/internal/media"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. AUTOBLOG_SERVER_ADDR.
const EnvPrefix = "AUTOBLOG"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Options   OptionsConfig   `mapstructure:"options"`
	Posts     PostsConfig     `mapstructure:"posts"`
	Media     MediaConfig     `mapstructure:"media"`
	AI        AIConfig        `mapstructure:"ai"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cron      CronConfig      `mapstructure:"cron"`

	// Plugins lists the host plugins reported as active, e.g.
	// "wordpress-seo/wp-seo.php".
	Plugins []string `mapstructure:"plugins"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig configures bearer tokens for /api.
type AuthConfig struct {
	Disabled  bool          `mapstructure:"disabled"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

// LogConfig configures zap.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// DatabaseConfig configures PostgreSQL, used by every postgres backend.
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// RedisConfig configures the redis option store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

// OptionsConfig selects the option store.
type OptionsConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory file redis postgres"`
	Path    string `mapstructure:"path"`
}

// PostsConfig selects the post store.
type PostsConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory postgres"`
}

// MediaConfig selects the media library.
type MediaConfig struct {
	Backend string         `mapstructure:"backend" validate:"oneof=local s3"`
	Dir     string         `mapstructure:"dir"`
	BaseURL string         `mapstructure:"base_url"`
	S3      media.S3Config `mapstructure:"s3"`
}

// AIConfig selects the text generator.
type AIConfig struct {
	Provider   string           `mapstructure:"provider" validate:"oneof=bedrock static"`
	StaticText string           `mapstructure:"static_text"`
	Bedrock    ai.BedrockConfig `mapstructure:"bedrock"`
}

// KnowledgeConfig selects the knowledge base.
type KnowledgeConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory postgres"`
	Dir     string `mapstructure:"dir"`
}

// KafkaConfig configures the event relay.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// HTTPConfig configures the outbound client.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
}

// CronConfig configures the pseudo-cron.
type CronConfig struct {
	// OnRequest runs due events after each API request.
	OnRequest bool `mapstructure:"on_request"`
	// Interval runs due events from a ticker in serve; zero disables it.
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
}

// ClientConfig converts the outbound HTTP settings.
func (h HTTPConfig) ClientConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	if h.Timeout > 0 {
		cfg.Timeout = h.Timeout
	}
	if h.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = h.RequestsPerSecond
	}
	if h.Burst > 0 {
		cfg.Burst = h.Burst
	}
	cfg.MaxRetries = h.MaxRetries
	return cfg
}

// MediaBaseURL returns the public URL of local media.
func (c *Config) MediaBaseURL() string {
	if c.Media.BaseURL != "" {
		return c.Media.BaseURL
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/media"
}

// Load reads configuration. An empty path searches for autoblog.yaml in the
// working directory and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("autoblog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "autoblog")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("log.debug", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "autoblog:option:")

	v.SetDefault("options.backend", "file")
	v.SetDefault("options.path", "data/options.yaml")

	v.SetDefault("posts.backend", "memory")

	v.SetDefault("media.backend", "local")
	v.SetDefault("media.dir", "data/media")
	v.SetDefault("media.base_url", "")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.prefix", "")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.force_path_style", false)
	v.SetDefault("media.s3.public_url", "")

	bedrock := ai.DefaultBedrockConfig()
	v.SetDefault("ai.provider", "static")
	v.SetDefault("ai.static_text", "")
	v.SetDefault("ai.bedrock.region", bedrock.Region)
	v.SetDefault("ai.bedrock.model_id", bedrock.ModelID)
	v.SetDefault("ai.bedrock.max_tokens", bedrock.MaxTokens)
	v.SetDefault("ai.bedrock.max_retries", bedrock.MaxRetries)
	v.SetDefault("ai.bedrock.timeout", bedrock.Timeout)
	v.SetDefault("ai.bedrock.retry_interval", bedrock.RetryInterval)

	v.SetDefault("knowledge.backend", "memory")
	v.SetDefault("knowledge.dir", "")

	v.SetDefault("kafka.brokers", []string{})

	client := httpclient.DefaultConfig()
	v.SetDefault("http.timeout", client.Timeout)
	v.SetDefault("http.requests_per_second", client.RequestsPerSecond)
	v.SetDefault("http.burst", client.Burst)
	v.SetDefault("http.max_retries", client.MaxRetries)

	v.SetDefault("cron.on_request", true)
	v.SetDefault("cron.interval", "0s")

	v.SetDefault("plugins", []string{})
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if !c.Auth.Disabled && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters unless auth.disabled is set"))
	}
	if c.UsesPostgres() && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required by a postgres backend"))
	}
	if c.Options.Backend == "file" && c.Options.Path == "" {
		errs = append(errs, errors.New("options.path is required by the file option store"))
	}
	if c.Options.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the redis option store"))
	}
	if c.Media.Backend == "local" && c.Media.Dir == "" {
		errs = append(errs, errors.New("media.dir is required by the local media library"))
	}
	if c.Media.Backend == "s3" && c.Media.S3.Bucket == "" {
		errs = append(errs, errors.New("media.s3.bucket is required by the s3 media library"))
	}
	if c.AI.Provider == "bedrock" && c.AI.Bedrock.ModelID == "" {
		errs = append(errs, errors.New("ai.bedrock.model_id is required by the bedrock provider"))
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether any backend needs the database.
func (c *Config) UsesPostgres() bool {
	return c.Options.Backend == "postgres" ||
		c.Posts.Backend == "postgres" ||
		c.Knowledge.Backend == "postgres"
}
