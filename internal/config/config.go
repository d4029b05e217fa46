package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Режимы получения обновлений Telegram
const (
	BotModePolling = "polling"
	BotModeWebhook = "webhook"
)

// Config хранит все настройки приложения
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Game     GameConfig     `mapstructure:"game"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Report   ReportConfig   `mapstructure:"report"`
	Admin    AdminConfig    `mapstructure:"admin"`
	LogLevel string         `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// BotConfig содержит настройки Telegram-бота
type BotConfig struct {
	Token       string `mapstructure:"token"`
	Mode        string `mapstructure:"mode" validate:"oneof=polling webhook"`
	AdminUserID int64  `mapstructure:"admin_user_id"`
}

// WebhookConfig содержит настройки приема обновлений через webhook
type WebhookConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Path        string `mapstructure:"path" validate:"startswith=/"`
	SecretToken string `mapstructure:"secret_token"`
}

// URL возвращает полный адрес webhook
func (w WebhookConfig) URL() string {
	base := strings.TrimRight(w.BaseURL, "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base + w.Path
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  int    `mapstructure:"read_timeout" validate:"min=1"`
	WriteTimeout int    `mapstructure:"write_timeout" validate:"min=1"`
}

// Addr возвращает адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig содержит настройки подключения к базе
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode       string   `mapstructure:"mode" validate:"omitempty,oneof=single sentinel cluster"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
	KeyPrefix  string   `mapstructure:"key_prefix"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно)
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff и MaxRetryBackoff задаются в миллисекундах
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// Enabled сообщает, настроен ли Redis
func (r RedisConfig) Enabled() bool {
	return len(r.Addrs) > 0 || r.Addr != ""
}

// GameConfig содержит настройки игры
type GameConfig struct {
	NextDelaySec   int     `mapstructure:"next_delay_sec" validate:"min=0"`
	MinLikes       int     `mapstructure:"min_likes" validate:"min=0"`
	MinTakePercent float64 `mapstructure:"min_take_percent" validate:"min=0,max=100"`
}

// NextDelay возвращает паузу перед следующим вопросом
func (g GameConfig) NextDelay() time.Duration {
	return time.Duration(g.NextDelaySec) * time.Second
}

// ParserConfig содержит настройки краулера gotquestions.online
type ParserConfig struct {
	BaseURL           string `mapstructure:"base_url" validate:"required,url"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" validate:"min=1"`
	BatchSize         int    `mapstructure:"batch_size" validate:"min=1"`
	MaxBatches        int    `mapstructure:"max_batches" validate:"min=1"`
	TargetPerLevel    int    `mapstructure:"target_per_level" validate:"min=1"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"min=0"`
	RetryBackoffMs    int    `mapstructure:"retry_backoff_ms" validate:"min=0"`
	IntervalMin       int    `mapstructure:"interval_min" validate:"min=0"`
	CursorStart       int64  `mapstructure:"cursor_start" validate:"min=0"`
	UserAgent         string `mapstructure:"user_agent"`
}

// RequestTimeout возвращает таймаут HTTP запроса
func (p ParserConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSec) * time.Second
}

// RetryBackoff возвращает базовую паузу между повторами
func (p ParserConfig) RetryBackoff() time.Duration {
	return time.Duration(p.RetryBackoffMs) * time.Millisecond
}

// Interval возвращает период фонового пополнения (0 - выключено)
func (p ParserConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMin) * time.Minute
}

// ReportConfig содержит адресатов отчетов парсера
type ReportConfig struct {
	TelegramUserID int64  `mapstructure:"telegram_user_id"`
	ResendAPIKey   string `mapstructure:"resend_api_key"`
	EmailFrom      string `mapstructure:"email_from" validate:"omitempty,email"`
	EmailTo        string `mapstructure:"email_to" validate:"omitempty,email"`
}

// EmailEnabled сообщает, настроена ли отправка отчетов по почте
func (r ReportConfig) EmailEnabled() bool {
	return r.ResendAPIKey != "" && r.EmailFrom != "" && r.EmailTo != ""
}

// AdminConfig содержит настройки административного HTTP API
type AdminConfig struct {
	JWTSecret      string   `mapstructure:"jwt_secret"`
	PasswordHash   string   `mapstructure:"password_hash"`
	TokenTTLHours  int      `mapstructure:"token_ttl_hours" validate:"min=1"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Enabled сообщает, включен ли административный API
func (a AdminConfig) Enabled() bool {
	return a.JWTSecret != "" && a.PasswordHash != ""
}

// TokenTTL возвращает время жизни токена администратора
func (a AdminConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("bot.mode", BotModePolling)
	vip.SetDefault("webhook.path", "/telegram/webhook")
	vip.SetDefault("server.host", "0.0.0.0")
	vip.SetDefault("server.port", 8080)
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("database.url", "sqlite://./data/chgk_bot.db")
	vip.SetDefault("redis.key_prefix", "chgkbot:")
	vip.SetDefault("game.next_delay_sec", 2)
	vip.SetDefault("game.min_likes", 1)
	vip.SetDefault("game.min_take_percent", 20)
	vip.SetDefault("parser.base_url", "https://gotquestions.online")
	vip.SetDefault("parser.request_timeout_sec", 20)
	vip.SetDefault("parser.batch_size", 20)
	vip.SetDefault("parser.max_batches", 1)
	vip.SetDefault("parser.target_per_level", 50)
	vip.SetDefault("parser.max_retries", 3)
	vip.SetDefault("parser.retry_backoff_ms", 1000)
	vip.SetDefault("parser.interval_min", 60)
	vip.SetDefault("parser.cursor_start", 0)
	vip.SetDefault("parser.user_agent", "chgk-bot/1.0")
	vip.SetDefault("admin.token_ttl_hours", 12)
	vip.SetDefault("admin.allowed_origins", []string{"*"})
	vip.SetDefault("log_level", "info")
}

func bindEnv(vip *viper.Viper) {
	// Привязка для секции Bot
	_ = vip.BindEnv("bot.token", "BOT_TOKEN")
	_ = vip.BindEnv("bot.mode", "BOT_MODE")
	_ = vip.BindEnv("bot.admin_user_id", "ADMIN_USER_ID")

	// Привязка для Webhook (KOYEB_PUBLIC_DOMAIN - запасной вариант)
	_ = vip.BindEnv("webhook.base_url", "WEBHOOK_BASE_URL", "KOYEB_PUBLIC_DOMAIN")
	_ = vip.BindEnv("webhook.path", "WEBHOOK_PATH")
	_ = vip.BindEnv("webhook.secret_token", "WEBHOOK_SECRET_TOKEN")

	// Привязка для Server
	_ = vip.BindEnv("server.host", "WEB_SERVER_HOST")
	_ = vip.BindEnv("server.port", "WEB_SERVER_PORT", "PORT")
	_ = vip.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	_ = vip.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	_ = vip.BindEnv("database.url", "DATABASE_URL")

	// Привязка для секции Redis
	_ = vip.BindEnv("redis.mode", "REDIS_MODE")
	_ = vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	_ = vip.BindEnv("redis.addr", "REDIS_ADDR")
	_ = vip.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = vip.BindEnv("redis.db", "REDIS_DB")
	_ = vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	_ = vip.BindEnv("game.next_delay_sec", "NEXT_DELAY_SEC")
	_ = vip.BindEnv("game.min_likes", "MIN_LIKES")
	_ = vip.BindEnv("game.min_take_percent", "MIN_TAKE_PERCENT")

	// Привязка для Parser
	_ = vip.BindEnv("parser.base_url", "PARSER_BASE_URL")
	_ = vip.BindEnv("parser.request_timeout_sec", "REQUEST_TIMEOUT_SEC")
	_ = vip.BindEnv("parser.batch_size", "PARSER_BATCH_SIZE")
	_ = vip.BindEnv("parser.max_batches", "PARSER_MAX_BATCHES")
	_ = vip.BindEnv("parser.target_per_level", "REPLENISH_TARGET_PER_LEVEL")
	_ = vip.BindEnv("parser.max_retries", "PARSER_MAX_RETRIES")
	_ = vip.BindEnv("parser.retry_backoff_ms", "PARSER_RETRY_BACKOFF_MS")
	_ = vip.BindEnv("parser.interval_min", "PARSER_INTERVAL_MIN")
	_ = vip.BindEnv("parser.cursor_start", "PARSER_CURSOR_START")
	_ = vip.BindEnv("parser.user_agent", "PARSER_USER_AGENT")

	_ = vip.BindEnv("report.telegram_user_id", "PARSER_REPORT_USER_ID")
	_ = vip.BindEnv("report.resend_api_key", "RESEND_API_KEY")
	_ = vip.BindEnv("report.email_from", "REPORT_EMAIL_FROM")
	_ = vip.BindEnv("report.email_to", "REPORT_EMAIL_TO")

	// Привязка для Admin
	_ = vip.BindEnv("admin.jwt_secret", "ADMIN_JWT_SECRET")
	_ = vip.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	_ = vip.BindEnv("admin.token_ttl_hours", "ADMIN_TOKEN_TTL_HOURS")
	_ = vip.BindEnv("admin.allowed_origins", "ADMIN_ALLOWED_ORIGINS")

	_ = vip.BindEnv("log_level", "LOG_LEVEL")
}

// Load загружает конфигурацию: .env, переменные окружения, необязательный YAML файл
func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Предупреждение: не удалось прочитать .env: %v", err)
	}

	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния
	setDefaults(vip)
	bindEnv(vip)

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				return nil, fmt.Errorf("failed to read config file %q: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.LogLevel == "debug" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Bot Mode: %s", cfg.Bot.Mode)
		log.Printf("Webhook URL: %s", cfg.Webhook.URL())
		log.Printf("Database URL scheme: %s", strings.SplitN(cfg.Database.URL, "://", 2)[0])
		log.Printf("Redis Enabled: %t (mode: %s)", cfg.Redis.Enabled(), cfg.Redis.Mode)
		log.Printf("Parser: batch=%d max_batches=%d target=%d interval=%dm",
			cfg.Parser.BatchSize, cfg.Parser.MaxBatches, cfg.Parser.TargetPerLevel, cfg.Parser.IntervalMin)
		log.Printf("Admin API Enabled: %t", cfg.Admin.Enabled())
		log.Printf("-----------------------------------------")
	}

	return &cfg, nil
}

// normalize приводит значения из окружения к ожидаемому виду
func (c *Config) normalize() {
	c.Bot.Mode = strings.ToLower(strings.TrimSpace(c.Bot.Mode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Parser.BaseURL = strings.TrimRight(c.Parser.BaseURL, "/")
	if !strings.HasPrefix(c.Webhook.Path, "/") {
		c.Webhook.Path = "/" + c.Webhook.Path
	}
	// Списки из переменных окружения приходят одной строкой через запятую
	c.Redis.Addrs = splitList(c.Redis.Addrs)
	c.Admin.AllowedOrigins = splitList(c.Admin.AllowedOrigins)
	if c.Bot.AdminUserID == 0 {
		c.Bot.AdminUserID = c.Report.TelegramUserID
	}
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate проверяет теги validate и перекрестные условия
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Bot.Mode == BotModeWebhook && strings.TrimSpace(c.Webhook.BaseURL) == "" {
		return fmt.Errorf("invalid config: webhook mode requires WEBHOOK_BASE_URL or KOYEB_PUBLIC_DOMAIN")
	}
	if c.Redis.Mode == "sentinel" && c.Redis.MasterName == "" {
		return fmt.Errorf("invalid config: redis sentinel mode requires REDIS_MASTER_NAME")
	}
	return nil
}

// RequireBot проверяет настройки, без которых нельзя запустить бота
func (c *Config) RequireBot() error {
	if strings.TrimSpace(c.Bot.Token) == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	return nil
}
