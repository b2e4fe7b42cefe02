// Package config loads the application configuration from a YAML file and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pricewatch/internal/types"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "PRICEWATCH_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
	apiPortEnv        = "API_PORT"
)

// Config holds application-level settings
type Config struct {
	Engine        EngineConfig       `yaml:"engine"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	API           APIConfig          `yaml:"api"`
	Logging       LoggingConfig      `yaml:"logging"`
	Plans         []types.PlanConfig `yaml:"plans"`
}

// EngineConfig tunes page acquisition
type EngineConfig struct {
	Headless          *bool             `yaml:"headless"`
	UserAgent         string            `yaml:"userAgent"`
	Headers           map[string]string `yaml:"headers"`
	BlockedURLs       []string          `yaml:"blockedUrls"`
	MaxRetries        int               `yaml:"maxRetries"`
	RequestDelay      time.Duration     `yaml:"requestDelay"`
	NavigationTimeout time.Duration     `yaml:"navigationTimeout"`
	StageTimeout      time.Duration     `yaml:"stageTimeout"`
}

// SchedulerConfig controls the monitoring loop
type SchedulerConfig struct {
	SweepInterval  time.Duration `yaml:"sweepInterval"`
	CheckTimeout   time.Duration `yaml:"checkTimeout"`
	CooldownWindow time.Duration `yaml:"cooldownWindow"`
	Workers        int           `yaml:"workers"`
}

// DatabaseConfig selects the storage driver
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig holds the bot credentials and per-owner chat routing
type TelegramConfig struct {
	BotToken string           `yaml:"botToken"`
	ChatID   string           `yaml:"chatId"`
	Chats    map[string]int64 `yaml:"chats"`
}

// DefaultChatID parses ChatID. An empty ChatID yields 0.
func (t TelegramConfig) DefaultChatID() (int64, error) {
	if t.ChatID == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(t.ChatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", t.ChatID, err)
	}
	return id, nil
}

// APIConfig configures the preview HTTP server
type APIConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig configures logrus
type LoggingConfig struct {
	Level string `yaml:"level"`
}

func defaultConfig() Config {
	engine := types.DefaultConfig()
	headless := engine.UseHeadlessBrowser

	plans := types.DefaultPlans()
	return Config{
		Engine: EngineConfig{
			Headless:          &headless,
			UserAgent:         engine.UserAgent,
			Headers:           engine.Headers,
			BlockedURLs:       engine.BlockedURLs,
			MaxRetries:        engine.MaxRetries,
			RequestDelay:      engine.RequestDelay,
			NavigationTimeout: engine.Timeout,
			StageTimeout:      engine.StageTimeout,
		},
		Scheduler: SchedulerConfig{
			SweepInterval:  engine.SweepInterval,
			CheckTimeout:   engine.CheckTimeout,
			CooldownWindow: engine.CooldownWindow,
			Workers:        engine.MaxConcurrentRequests,
		},
		Database: DatabaseConfig{Driver: "memory"},
		API:      APIConfig{Port: "8080"},
		Logging:  LoggingConfig{Level: "info"},
		Plans: []types.PlanConfig{
			plans[types.TierFree],
			plans[types.TierPro],
			plans[types.TierUltra],
		},
	}
}

// Load reads the YAML file named by PRICEWATCH_CONFIG (if set), merges it over
// the defaults and applies environment overrides.
func Load(logger types.Logger) Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			logger.Warnf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.validate(logger)
	return cfg
}

func readFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(apiPortEnv); v != "" {
		c.API.Port = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Engine.Headless != nil {
		base.Engine.Headless = override.Engine.Headless
	}
	if override.Engine.UserAgent != "" {
		base.Engine.UserAgent = override.Engine.UserAgent
	}
	if len(override.Engine.Headers) > 0 {
		base.Engine.Headers = override.Engine.Headers
	}
	if len(override.Engine.BlockedURLs) > 0 {
		base.Engine.BlockedURLs = override.Engine.BlockedURLs
	}
	if override.Engine.MaxRetries != 0 {
		base.Engine.MaxRetries = override.Engine.MaxRetries
	}
	if override.Engine.RequestDelay != 0 {
		base.Engine.RequestDelay = override.Engine.RequestDelay
	}
	if override.Engine.NavigationTimeout != 0 {
		base.Engine.NavigationTimeout = override.Engine.NavigationTimeout
	}
	if override.Engine.StageTimeout != 0 {
		base.Engine.StageTimeout = override.Engine.StageTimeout
	}

	if override.Scheduler.SweepInterval != 0 {
		base.Scheduler.SweepInterval = override.Scheduler.SweepInterval
	}
	if override.Scheduler.CheckTimeout != 0 {
		base.Scheduler.CheckTimeout = override.Scheduler.CheckTimeout
	}
	if override.Scheduler.CooldownWindow != 0 {
		base.Scheduler.CooldownWindow = override.Scheduler.CooldownWindow
	}
	if override.Scheduler.Workers != 0 {
		base.Scheduler.Workers = override.Scheduler.Workers
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if len(override.Notifications.Telegram.Chats) > 0 {
		base.Notifications.Telegram.Chats = override.Notifications.Telegram.Chats
	}

	if override.API.Port != "" {
		base.API.Port = override.API.Port
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	// plans are merged per tier so a file can tune a single tier
	for _, plan := range override.Plans {
		replaced := false
		for i := range base.Plans {
			if base.Plans[i].Tier == plan.Tier {
				base.Plans[i] = plan
				replaced = true
				break
			}
		}
		if !replaced {
			base.Plans = append(base.Plans, plan)
		}
	}

	return base
}

// validate resets non-positive durations and sizes to their defaults
func (c *Config) validate(logger types.Logger) {
	def := defaultConfig()

	fixDuration := func(name string, v *time.Duration, fallback time.Duration) {
		if *v <= 0 {
			logger.Warnf("config: %s must be positive, using %v", name, fallback)
			*v = fallback
		}
	}
	fixDuration("engine.requestDelay", &c.Engine.RequestDelay, def.Engine.RequestDelay)
	fixDuration("engine.navigationTimeout", &c.Engine.NavigationTimeout, def.Engine.NavigationTimeout)
	fixDuration("engine.stageTimeout", &c.Engine.StageTimeout, def.Engine.StageTimeout)
	fixDuration("scheduler.sweepInterval", &c.Scheduler.SweepInterval, def.Scheduler.SweepInterval)
	fixDuration("scheduler.checkTimeout", &c.Scheduler.CheckTimeout, def.Scheduler.CheckTimeout)
	fixDuration("scheduler.cooldownWindow", &c.Scheduler.CooldownWindow, def.Scheduler.CooldownWindow)

	if c.Scheduler.Workers <= 0 {
		logger.Warnf("config: scheduler.workers must be positive, using %d", def.Scheduler.Workers)
		c.Scheduler.Workers = def.Scheduler.Workers
	}
	if c.Engine.MaxRetries < 0 {
		c.Engine.MaxRetries = 0
	}

	defaults := types.DefaultPlans()
	for i, plan := range c.Plans {
		if plan.CheckIntervalSeconds <= 0 {
			fallback := defaults.Lookup(plan.Tier).CheckIntervalSeconds
			logger.Warnf("config: plan %q has no check interval, using %ds", plan.Tier, fallback)
			c.Plans[i].CheckIntervalSeconds = fallback
		}
	}
}

// EngineConfig builds the engine configuration
func (c Config) EngineConfig() *types.Config {
	engine := types.DefaultConfig()
	if c.Engine.Headless != nil {
		engine.UseHeadlessBrowser = *c.Engine.Headless
	}
	if c.Engine.UserAgent != "" {
		engine.UserAgent = c.Engine.UserAgent
	}
	if c.Engine.Headers != nil {
		engine.Headers = c.Engine.Headers
	}
	if c.Engine.BlockedURLs != nil {
		engine.BlockedURLs = c.Engine.BlockedURLs
	}
	engine.MaxRetries = c.Engine.MaxRetries
	engine.RequestDelay = c.Engine.RequestDelay
	engine.Timeout = c.Engine.NavigationTimeout
	engine.StageTimeout = c.Engine.StageTimeout
	engine.SweepInterval = c.Scheduler.SweepInterval
	engine.CheckTimeout = c.Scheduler.CheckTimeout
	engine.CooldownWindow = c.Scheduler.CooldownWindow
	engine.MaxConcurrentRequests = c.Scheduler.Workers
	return engine
}

// PlanTable returns the plans keyed by tier. A missing Free tier is filled
// from the defaults since unknown tiers resolve to it.
func (c Config) PlanTable() types.PlanTable {
	table := make(types.PlanTable, len(c.Plans))
	for _, plan := range c.Plans {
		table[plan.Tier] = plan
	}
	if _, ok := table[types.TierFree]; !ok {
		table[types.TierFree] = types.DefaultPlans()[types.TierFree]
	}
	return table
}
