// Package config loads service settings from an optional YAML file named by
// CONFIG_PATH and from the environment. Environment values win.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`
	HTTPServer  `yaml:"http_server"`
	Redis       `yaml:"redis"`
	Minio       `yaml:"minio"`
	Auth        `yaml:"auth"`
	Session     `yaml:"session"`
	Directory   `yaml:"directory"`
}

type HTTPServer struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Minio struct {
	Endpoint     string        `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey    string        `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey    string        `yaml:"secret_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	Region       string        `yaml:"region" env:"MINIO_REGION" env-default:"us-east-1"`
	UseSSL       bool          `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	ExportBucket string        `yaml:"export_bucket" env:"EXPORT_BUCKET" env-default:"swimdesk-exports"`
	URLExpiry    time.Duration `yaml:"url_expiry" env:"EXPORT_URL_EXPIRY" env-default:"15m"`
}

type Auth struct {
	// JWTSecret signs admin tokens with HS256. Ignored when JWKSURL is set.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWKSURL   string `yaml:"jwks_url" env:"JWKS_URL"`
	AdminRole string `yaml:"admin_role" env:"ADMIN_ROLE" env-default:"admin"`
}

type Session struct {
	TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"720h"`
	Capacity     int           `yaml:"capacity" env:"SESSION_CAPACITY" env-default:"10000"`
	TierLoadWait time.Duration `yaml:"tier_load_wait" env:"TIER_LOAD_WAIT" env-default:"150ms"`
	CookieSecure bool          `yaml:"cookie_secure" env:"SESSION_COOKIE_SECURE" env-default:"false"`
}

type Directory struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"DIRECTORY_CACHE_TTL" env-default:"5m"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"DIRECTORY_REFRESH_INTERVAL" env-default:"4m"`
	OwnerResetTTL   time.Duration `yaml:"owner_reset_ttl" env:"OWNER_RESET_TTL" env-default:"10m"`
	OwnerResetLimit int           `yaml:"owner_reset_limit" env:"OWNER_RESET_LIMIT" env-default:"5"`
}

// Load reads CONFIG_PATH when it is set and then the environment.
func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Usage describes every environment variable the service reads.
func Usage() string {
	var cfg Config
	desc, _ := cleanenv.GetDescription(&cfg, nil)
	return desc
}
