// Package config загружает настройки сервера и клиента из YAML файла
// и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Server настройки сервера
type Server struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Feed      FeedConfig      `yaml:"feed"`
	Push      PushConfig      `yaml:"push"`
	Log       LogConfig       `yaml:"log"`
}

// HTTPConfig настройки HTTP сервера
type HTTPConfig struct {
	Addr            string        `yaml:"addr"             env:"TRIPSYNC_HTTP_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"TRIPSYNC_HTTP_READ_TIMEOUT"     env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"TRIPSYNC_HTTP_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"TRIPSYNC_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig настройки SQLite
type DatabaseConfig struct {
	Path string `yaml:"path" env:"TRIPSYNC_DB_PATH" env-default:"tripsync.db"`
	// ChangesRetention сколько хранить журнал изменений
	ChangesRetention time.Duration `yaml:"changes_retention" env:"TRIPSYNC_DB_CHANGES_RETENTION" env-default:"168h"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"  env:"TRIPSYNC_DB_CLEANUP_INTERVAL"  env-default:"1h"`
}

// AuthConfig настройки JWT
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"        env:"TRIPSYNC_JWT_SECRET"        env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"  env:"TRIPSYNC_ACCESS_TOKEN_TTL"  env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"TRIPSYNC_REFRESH_TOKEN_TTL" env-default:"720h"`
}

// RateLimitConfig лимиты запросов с одного IP
type RateLimitConfig struct {
	Requests     int           `yaml:"requests"      env:"TRIPSYNC_RATE_LIMIT_REQUESTS"      env-default:"600"`
	AuthRequests int           `yaml:"auth_requests" env:"TRIPSYNC_RATE_LIMIT_AUTH_REQUESTS" env-default:"20"`
	Window       time.Duration `yaml:"window"        env:"TRIPSYNC_RATE_LIMIT_WINDOW"        env-default:"1m"`
}

// FeedConfig настройки потока изменений
type FeedConfig struct {
	QueueSize int `yaml:"queue_size" env:"TRIPSYNC_FEED_QUEUE_SIZE" env-default:"64"`
}

// PushConfig настройки push уведомлений. Без WebhookURL уведомления
// только пишутся в лог.
type PushConfig struct {
	WebhookURL   string        `yaml:"webhook_url"   env:"TRIPSYNC_PUSH_WEBHOOK_URL"`
	WebhookToken string        `yaml:"webhook_token" env:"TRIPSYNC_PUSH_WEBHOOK_TOKEN"`
	Timeout      time.Duration `yaml:"timeout"       env:"TRIPSYNC_PUSH_TIMEOUT"       env-default:"5s"`
	QueueSize    int           `yaml:"queue_size"    env:"TRIPSYNC_PUSH_QUEUE_SIZE"    env-default:"256"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `yaml:"level"  env:"TRIPSYNC_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"TRIPSYNC_LOG_FORMAT" env-default:"text"`
}

// Client настройки CLI клиента
type Client struct {
	ServerURL string        `yaml:"server_url" env:"TRIPSYNC_SERVER_URL" env-default:"http://localhost:8080"`
	DBPath    string        `yaml:"db_path"    env:"TRIPSYNC_CLIENT_DB"  env-default:"tripsync-client.db"`
	Timeout   time.Duration `yaml:"timeout"    env:"TRIPSYNC_CLIENT_TIMEOUT" env-default:"30s"`
	Log       LogConfig     `yaml:"log"`
}

// minJWTSecretLen минимальная длина секрета HS256
const minJWTSecretLen = 32

// Validate проверяет значения, которые нельзя выразить тегами
func (c *Server) Validate() error {
	var errs []error

	if len(c.Auth.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLen))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("auth: refresh_token_ttl must be greater than access_token_ttl > 0"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.AuthRequests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit: requests, auth_requests and window must be positive"))
	}
	if c.Feed.QueueSize <= 0 {
		errs = append(errs, errors.New("feed.queue_size must be positive"))
	}
	if c.Push.QueueSize <= 0 {
		errs = append(errs, errors.New("push.queue_size must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Database.CleanupInterval <= 0 {
		errs = append(errs, errors.New("database.cleanup_interval must be positive"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate проверяет настройки клиента
func (c *Client) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate проверяет уровень и формат логов
func (c LogConfig) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Format)
	}
}
