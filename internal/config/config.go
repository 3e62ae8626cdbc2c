package config

import (
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "MEDIAMONITOR_CONFIG"

	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	logLevelEnv       = "LOG_LEVEL"
	logFileEnv        = "LOG_FILE"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	mlAPIKeyEnv       = "ML_API_KEY"
	newsAPIKeyEnv     = "NEWSAPI_KEY"
	socialTokenEnv    = "SOCIAL_API_TOKEN"
	redisAddrEnv      = "REDIS_ADDR"
	redisPasswordEnv  = "REDIS_PASSWORD"
	redisDBEnv        = "REDIS_DB"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Orchestrator  OrchestratorConfig `yaml:"orchestrator"`
	AI            AIConfig           `yaml:"ai"`
	Providers     ProvidersConfig    `yaml:"providers"`
	Redis         RedisConfig        `yaml:"redis"`
	Notifications NotificationConfig `yaml:"notifications"`
	Tenants       []TenantConfig     `yaml:"tenants"`
}

// LoggingConfig selects verbosity and an optional JSON log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DatabaseConfig describes the SQL backend; driver is postgres or sqlite.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines the timezone of cron expressions and how often
// job definitions are re-read from storage.
type SchedulerConfig struct {
	Timezone         string         `yaml:"timezone"`
	ReloadExpression string         `yaml:"reloadExpression"`
	location         *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// OrchestratorConfig bounds concurrency and timeouts of a single run.
type OrchestratorConfig struct {
	ProviderWorkers int           `yaml:"providerWorkers"`
	ProviderTimeout time.Duration `yaml:"providerTimeout"`
	ItemTimeout     time.Duration `yaml:"itemTimeout"`
	AIRatePerSecond float64       `yaml:"aiRatePerSecond"`
	AIBurst         int           `yaml:"aiBurst"`
}

// AIConfig selects and configures the enrichment backend (chatgpt or ml).
type AIConfig struct {
	Backend      string        `yaml:"backend"`
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ProvidersConfig holds capability flags and global credentials.
type ProvidersConfig struct {
	RSS     RSSConfig     `yaml:"rss"`
	Arxiv   ArxivConfig   `yaml:"arxiv"`
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
	Social  SocialConfig  `yaml:"social"`
}

// RSSConfig toggles feed reading.
type RSSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ArxivConfig toggles arXiv listings; lookback is counted in listing days.
type ArxivConfig struct {
	Enabled  bool `yaml:"enabled"`
	Lookback int  `yaml:"lookback"`
}

// NewsAPIConfig configures the news search provider.
type NewsAPIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Language string `yaml:"language"`
	PageSize int    `yaml:"pageSize"`
}

// SocialConfig configures the social posts provider.
type SocialConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Platform string `yaml:"platform"`
	Limit    int    `yaml:"limit"`
}

// RedisConfig enables publishing progress events; empty Addr disables it.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Channel   string        `yaml:"channel"`
	StatusTTL time.Duration `yaml:"statusTtl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Endpoint string `yaml:"endpoint"`
}

// TenantConfig lists a tenant's brands and per-provider settings.
type TenantConfig struct {
	ID        string                          `yaml:"id"`
	Brands    []string                        `yaml:"brands"`
	Providers map[string]TenantProviderConfig `yaml:"providers"`
}

// TenantProviderConfig overrides feeds, queries and credentials of one provider.
type TenantProviderConfig struct {
	Enabled     *bool             `yaml:"enabled"`
	Feeds       []string          `yaml:"feeds"`
	Queries     []string          `yaml:"queries"`
	Credentials map[string]string `yaml:"credentials"`
	Options     map[string]string `yaml:"options"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if parsed, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = parsed
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Parse decodes YAML over the defaults; absent keys keep their default values.
func Parse(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	cfg.bindTimezone()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFileEnv); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" && c.AI.Backend == AIBackendChatGPT {
		c.AI.APIKey = v
	}
	if v := os.Getenv(mlAPIKeyEnv); v != "" && c.AI.Backend == AIBackendML {
		c.AI.APIKey = v
	}
	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.AI.Model = v
	}

	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.Providers.NewsAPI.APIKey = v
	}
	if v := os.Getenv(socialTokenEnv); v != "" {
		c.Providers.Social.Token = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(redisPasswordEnv); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(redisDBEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// AI backends understood by the application wiring.
const (
	AIBackendChatGPT = "chatgpt"
	AIBackendML      = "ml"
)

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:mediamonitor.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		Scheduler: SchedulerConfig{
			Timezone:         defaultTimezone,
			ReloadExpression: "@every 1m",
			location:         tz,
		},
		Orchestrator: OrchestratorConfig{
			ProviderWorkers: 4,
			ProviderTimeout: 2 * time.Minute,
			ItemTimeout:     45 * time.Second,
			AIRatePerSecond: 2,
			AIBurst:         4,
		},
		AI: AIConfig{
			Backend:  AIBackendChatGPT,
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
		Providers: ProvidersConfig{
			RSS:     RSSConfig{Enabled: true},
			Arxiv:   ArxivConfig{Enabled: true, Lookback: 1},
			NewsAPI: NewsAPIConfig{Enabled: true, Endpoint: "https://newsapi.org/v2/everything", PageSize: 50},
			Social:  SocialConfig{Enabled: true, Platform: "social", Limit: 50},
		},
		Redis: RedisConfig{
			Channel:   "mediamonitor:progress",
			StatusTTL: 24 * time.Hour,
		},
	}
}
