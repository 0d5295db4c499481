// Package config provides YAML-based configuration loading for leadbot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported values for enumerated settings.
const (
	PlatformTelegram = "telegram"
	PlatformSlack    = "slack"
	PlatformDiscord  = "discord"
	PlatformWhatsApp = "whatsapp"

	StoreMemory   = "memory"
	StoreDatabase = "database"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderNone   = "none"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"

	ModePoll    = "poll"
	ModeWebhook = "webhook"
)

// Config is the top-level leadbot configuration, loaded from leadbot.yaml.
type Config struct {
	Platform  string          `yaml:"platform"`
	Bot       BotConfig       `yaml:"bot"`
	Company   CompanyConfig   `yaml:"company"`
	Hours     HoursConfig     `yaml:"hours"`
	Session   SessionConfig   `yaml:"session"`
	Leads     LeadsConfig     `yaml:"leads"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Slack     SlackConfig     `yaml:"slack"`
	Discord   DiscordConfig   `yaml:"discord"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
}

// BotConfig holds routing behaviour shared by every platform.
type BotConfig struct {
	Handle           string        `yaml:"handle"`
	ThreadSessions   *bool         `yaml:"thread_sessions"`
	ResponderTimeout time.Duration `yaml:"responder_timeout"`
	DeliveryTimeout  time.Duration `yaml:"delivery_timeout"`
	Concurrency      int           `yaml:"concurrency"`
}

// ThreadSessionsEnabled reports whether sessions are partitioned per
// sub-thread (default true).
func (b BotConfig) ThreadSessionsEnabled() bool {
	return b.ThreadSessions == nil || *b.ThreadSessions
}

// CompanyConfig is the company profile quoted in replies. Empty fields
// keep the built-in profile.
type CompanyConfig struct {
	Name      string  `yaml:"name"`
	City      string  `yaml:"city"`
	CityEn    string  `yaml:"city_en"`
	Address   string  `yaml:"address"`
	Phone     string  `yaml:"phone"`
	Email     string  `yaml:"email"`
	Website   string  `yaml:"website"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// HoursConfig is the weekly business schedule.
type HoursConfig struct {
	Days     []string `yaml:"days"`
	Open     string   `yaml:"open"`
	Close    string   `yaml:"close"`
	Timezone string   `yaml:"timezone"`
}

// SessionConfig selects the session store and optional expiry.
type SessionConfig struct {
	Store       string        `yaml:"store"`
	ExpireAfter time.Duration `yaml:"expire_after"` // 0 disables expiry
	SweepCron   string        `yaml:"sweep_cron"`
}

// LeadsConfig controls where completed leads go.
type LeadsConfig struct {
	ChannelID     string       `yaml:"channel_id"`
	TopicID       string       `yaml:"topic_id"`
	NotifyCommand string       `yaml:"notify_command"` // sh -c; lead values in $LEAD_* env vars
	Digest        DigestConfig `yaml:"digest"`
}

// DigestConfig schedules the daily lead digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// LLMConfig configures the free-form responder.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DatabaseConfig holds connection settings. DSN, when set, wins over the
// discrete fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite file
}

// DashboardConfig controls the HTTP server (health, stats, webhooks).
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token       string `yaml:"token"`
	Mode        string `yaml:"mode"`
	APIBase     string `yaml:"api_base"`
	WebhookURL  string `yaml:"webhook_url"`
	WebhookPath string `yaml:"webhook_path"`
	// WebhookSecret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string        `yaml:"webhook_secret"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
}

// SlackConfig holds Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// WhatsAppConfig holds Twilio credentials for the WhatsApp channel.
type WhatsAppConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	From        string `yaml:"from"`
	WebhookPath string `yaml:"webhook_path"`
	// WebhookURL is the public URL Twilio posts to; when set, request
	// signatures are verified against it.
	WebhookURL string `yaml:"webhook_url"`
}

// Load reads a YAML config file from path and returns a validated Config.
// Secrets in the environment override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config, applying
// environment overrides from the process environment.
func Parse(data []byte) (*Config, error) {
	return ParseEnv(data, os.Getenv)
}

// ParseEnv is Parse with an explicit environment lookup.
func ParseEnv(data []byte, getenv func(string) string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if getenv != nil {
		cfg.applyEnv(getenv)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv copies secrets from the environment over file values.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&c.Telegram.WebhookSecret, "TELEGRAM_WEBHOOK_SECRET")
	set(&c.Leads.ChannelID, "TELEGRAM_CHAT_ID", "LEADS_CHANNEL_ID")
	set(&c.Leads.TopicID, "TELEGRAM_TOPIC_ID", "LEADS_TOPIC_ID")
	set(&c.Slack.AppToken, "SLACK_APP_TOKEN")
	set(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&c.Discord.BotToken, "DISCORD_BOT_TOKEN")
	set(&c.WhatsApp.AccountSID, "TWILIO_ACCOUNT_SID")
	set(&c.WhatsApp.AuthToken, "TWILIO_AUTH_TOKEN")
	set(&c.WhatsApp.From, "TWILIO_WHATSAPP_FROM")
	set(&c.Database.DSN, "DATABASE_DSN")

	switch c.LLM.Provider {
	case ProviderOpenAI:
		set(&c.LLM.APIKey, "OPENAI_API_KEY")
	case ProviderGroq, "":
		set(&c.LLM.APIKey, "GROQ_API_KEY")
		if c.LLM.Provider == "" && c.LLM.APIKey != "" {
			c.LLM.Provider = ProviderGroq
		}
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = PlatformTelegram
	}
	c.Bot.Handle = strings.TrimPrefix(c.Bot.Handle, "@")
	if c.Bot.ResponderTimeout == 0 {
		c.Bot.ResponderTimeout = 20 * time.Second
	}
	if c.Bot.DeliveryTimeout == 0 {
		c.Bot.DeliveryTimeout = 15 * time.Second
	}
	if c.Bot.Concurrency == 0 {
		c.Bot.Concurrency = 8
	}

	if len(c.Hours.Days) == 0 {
		c.Hours.Days = []string{"mon", "tue", "wed", "thu", "fri", "sat"}
	}
	if c.Hours.Open == "" {
		c.Hours.Open = "09:00"
	}
	if c.Hours.Close == "" {
		c.Hours.Close = "18:00"
	}
	if c.Hours.Timezone == "" {
		c.Hours.Timezone = "Asia/Tashkent"
	}

	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
	if c.Session.SweepCron == "" {
		c.Session.SweepCron = "*/10 * * * *"
	}
	if c.Leads.Digest.Cron == "" {
		c.Leads.Digest.Cron = "0 9 * * *"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderNone
	}
	switch c.LLM.Provider {
	case ProviderGroq:
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = "https://api.groq.com/openai/v1/"
		}
		if c.LLM.Model == "" {
			c.LLM.Model = "llama-3.1-8b-instant"
		}
	case ProviderOpenAI:
		if c.LLM.Model == "" {
			c.LLM.Model = "gpt-4o-mini"
		}
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 400
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = "leadbot.db"
		}
	case DriverMySQL:
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	}
	if c.Database.Name == "" && c.Database.Driver != DriverSQLite {
		c.Database.Name = "leadbot"
	}

	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}

	if c.Telegram.Mode == "" {
		c.Telegram.Mode = ModePoll
	}
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.Telegram.WebhookPath == "" {
		c.Telegram.WebhookPath = "/webhook/telegram"
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 30 * time.Second
	}
	if c.WhatsApp.WebhookPath == "" {
		c.WhatsApp.WebhookPath = "/webhook/whatsapp"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Platform {
	case PlatformTelegram:
		if c.Telegram.Token == "" {
			errs = append(errs, "telegram.token is required (or TELEGRAM_BOT_TOKEN)")
		}
		switch c.Telegram.Mode {
		case ModePoll:
		case ModeWebhook:
			if c.Telegram.WebhookURL == "" {
				errs = append(errs, "telegram.webhook_url is required in webhook mode")
			}
			if !c.Dashboard.Enabled {
				errs = append(errs, "dashboard.enabled must be true in webhook mode")
			}
		default:
			errs = append(errs, fmt.Sprintf("telegram.mode %q must be poll or webhook", c.Telegram.Mode))
		}
	case PlatformSlack:
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required")
		}
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
	case PlatformDiscord:
		if c.Discord.BotToken == "" {
			errs = append(errs, "discord.bot_token is required")
		}
	case PlatformWhatsApp:
		if c.WhatsApp.AccountSID == "" {
			errs = append(errs, "whatsapp.account_sid is required")
		}
		if c.WhatsApp.AuthToken == "" {
			errs = append(errs, "whatsapp.auth_token is required")
		}
		if c.WhatsApp.From == "" {
			errs = append(errs, "whatsapp.from is required")
		}
		if !c.Dashboard.Enabled {
			errs = append(errs, "dashboard.enabled must be true for whatsapp")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform %q must be one of telegram, slack, discord, whatsapp", c.Platform))
	}

	if c.Bot.Concurrency < 1 {
		errs = append(errs, "bot.concurrency must be at least 1")
	}

	for i, d := range c.Hours.Days {
		if _, err := ParseWeekday(d); err != nil {
			errs = append(errs, fmt.Sprintf("hours.days[%d]: %v", i, err))
		}
	}
	open, errOpen := ParseClock(c.Hours.Open)
	if errOpen != nil {
		errs = append(errs, fmt.Sprintf("hours.open: %v", errOpen))
	}
	closing, errClose := ParseClock(c.Hours.Close)
	if errClose != nil {
		errs = append(errs, fmt.Sprintf("hours.close: %v", errClose))
	}
	if errOpen == nil && errClose == nil && closing <= open {
		errs = append(errs, "hours.close must be after hours.open")
	}
	if _, err := time.LoadLocation(c.Hours.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("hours.timezone %q is not a known zone", c.Hours.Timezone))
	}

	switch c.Session.Store {
	case StoreMemory, StoreDatabase:
	default:
		errs = append(errs, fmt.Sprintf("session.store %q must be memory or database", c.Session.Store))
	}
	if c.Session.ExpireAfter < 0 {
		errs = append(errs, "session.expire_after must not be negative")
	}
	if c.Session.ExpireAfter > 0 {
		if _, err := cron.ParseStandard(c.Session.SweepCron); err != nil {
			errs = append(errs, fmt.Sprintf("session.sweep_cron: %v", err))
		}
	}
	if c.Leads.Digest.Enabled {
		if _, err := cron.ParseStandard(c.Leads.Digest.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("leads.digest.cron: %v", err))
		}
		if c.Leads.ChannelID == "" {
			errs = append(errs, "leads.channel_id is required for the digest")
		}
	}

	switch c.LLM.Provider {
	case ProviderNone:
	case ProviderGroq, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Sprintf("llm.api_key is required for provider %s", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q must be none, groq or openai", c.LLM.Provider))
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql, postgres or sqlite", c.Database.Driver))
	}

	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if s == full || s == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
