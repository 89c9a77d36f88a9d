package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	BaseURL     string
	CORSOrigins []string

	Scylla  ScyllaConfig
	Redis   RedisConfig
	MinIO   MinIOConfig
	Elastic ElasticConfig
	Auth    AuthConfig
	SMTP    SMTPConfig
}

type ScyllaKeyspace struct {
	Name     string
	Role     string
	Password string
}

type ScyllaConfig struct {
	Hosts      []string
	Products   ScyllaKeyspace
	Orders     ScyllaKeyspace
	Users      ScyllaKeyspace
	Timeout    time.Duration
	NumConns   int
	SSLEnabled bool
	CACertPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type ElasticConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

type AuthConfig struct {
	JWTSecret         string
	JWTTTL            time.Duration
	SessionSecret     string
	AdminUsername     string
	AdminPasswordHash string
}

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	ShopAddress string
}

// Enabled reports whether outgoing mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.ShopAddress != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")

	v.SetDefault("SCYLLA_HOSTS", "127.0.0.1")
	v.SetDefault("SCYLLA_KS_PRODUCTS_KEYSPACE", "souq_products")
	v.SetDefault("SCYLLA_KS_ORDERS_KEYSPACE", "souq_orders")
	v.SetDefault("SCYLLA_KS_USERS_KEYSPACE", "souq_users")
	v.SetDefault("SCYLLA_TIMEOUT", "5s")
	v.SetDefault("SCYLLA_NUM_CONNS", 20)

	v.SetDefault("REDIS_HOST", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_BUCKET", "product-media")

	v.SetDefault("ELASTIC_URL", "http://localhost:9200")
	v.SetDefault("ELASTIC_INDEX", "products")

	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("ADMIN_USERNAME", "admin")

	v.SetDefault("SMTP_PORT", 587)
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine, the system environment still applies.
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:      v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Port:        v.GetString("PORT"),
		BaseURL:     v.GetString("BASE_URL"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		Scylla: ScyllaConfig{
			Hosts: splitList(v.GetString("SCYLLA_HOSTS")),
			Products: ScyllaKeyspace{
				Name:     v.GetString("SCYLLA_KS_PRODUCTS_KEYSPACE"),
				Role:     v.GetString("SCYLLA_KS_PRODUCTS_ROLE"),
				Password: v.GetString("SCYLLA_KS_PRODUCTS_PASSWORD"),
			},
			Orders: ScyllaKeyspace{
				Name:     v.GetString("SCYLLA_KS_ORDERS_KEYSPACE"),
				Role:     v.GetString("SCYLLA_KS_ORDERS_ROLE"),
				Password: v.GetString("SCYLLA_KS_ORDERS_PASSWORD"),
			},
			Users: ScyllaKeyspace{
				Name:     v.GetString("SCYLLA_KS_USERS_KEYSPACE"),
				Role:     v.GetString("SCYLLA_KS_USERS_ROLE"),
				Password: v.GetString("SCYLLA_KS_USERS_PASSWORD"),
			},
			Timeout:    v.GetDuration("SCYLLA_TIMEOUT"),
			NumConns:   v.GetInt("SCYLLA_NUM_CONNS"),
			SSLEnabled: v.GetBool("SCYLLA_SSL_ENABLED"),
			CACertPath: v.GetString("SCYLLA_SSL_CA_PATH"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_HOST"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},
		Elastic: ElasticConfig{
			URL:      v.GetString("ELASTIC_URL"),
			Username: v.GetString("ELASTIC_USER"),
			Password: v.GetString("ELASTIC_PASSWORD"),
			Index:    v.GetString("ELASTIC_INDEX"),
		},
		Auth: AuthConfig{
			JWTSecret:         v.GetString("JWT_SECRET"),
			JWTTTL:            v.GetDuration("JWT_TTL"),
			SessionSecret:     v.GetString("SESSION_SECRET"),
			AdminUsername:     v.GetString("ADMIN_USERNAME"),
			AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		},
		SMTP: SMTPConfig{
			Host:        v.GetString("SMTP_HOST"),
			Port:        v.GetInt("SMTP_PORT"),
			Username:    v.GetString("SMTP_USERNAME"),
			Password:    v.GetString("SMTP_PASSWORD"),
			From:        v.GetString("SMTP_FROM"),
			ShopAddress: v.GetString("SHOP_NOTIFY_EMAIL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects a configuration the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.Auth.AdminUsername == "" || c.Auth.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required"))
	}
	if len(c.Scylla.Hosts) == 0 {
		errs = append(errs, errors.New("SCYLLA_HOSTS is empty"))
	}
	if c.Auth.JWTTTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL must be positive, got %s", c.Auth.JWTTTL))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with APP_ENV=prod.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
