// Package config loads the bot configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/events"
)

// State backends.
const (
	BackendHistory = "history"
	BackendSQLite  = "sqlite"
	BackendPebble  = "pebble"
)

// Config holds the bot configuration.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Channels ChannelsConfig `yaml:"channels"`
	Events   EventsConfig   `yaml:"events"`
	Session  SessionConfig  `yaml:"session"`
	Scan     ScanConfig     `yaml:"scan"`
	State    StateConfig    `yaml:"state"`
	API      APIConfig      `yaml:"api"`
	Debug    bool           `yaml:"debug"`
	LogLevel string         `yaml:"log_level"`
}

type DiscordConfig struct {
	Token         string `yaml:"token"`
	EmojiGuildID  string `yaml:"emoji_guild_id"`
	CommandPrefix string `yaml:"command_prefix"`
}

// ChannelsConfig names the channels holding entities, by id or by a
// fragment of their name.
type ChannelsConfig struct {
	Roster string `yaml:"roster"`
	Events string `yaml:"events"`
}

type EventsConfig struct {
	DefaultHour   int           `yaml:"default_hour"`
	DefaultMinute int           `yaml:"default_minute"`
	CloseDelay    time.Duration `yaml:"close_delay"`
	Icons         []string      `yaml:"icons"`
	Timezone      string        `yaml:"timezone"`
	Setup         string        `yaml:"setup"`
	Recurring     []Recurring   `yaml:"recurring"`
}

// Recurring is an event planned on every tick of Cron.
type Recurring struct {
	Cron        string        `yaml:"cron"`
	Roster      string        `yaml:"roster"`
	Description string        `yaml:"description"`
	Icon        string        `yaml:"icon"`
	Lead        time.Duration `yaml:"lead"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	ExitCommand string        `yaml:"exit_command"`
	HelpCommand string        `yaml:"help_command"`
}

type ScanConfig struct {
	PageSize int `yaml:"page_size"`
}

type StateConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type APIConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr"`
	Auth           bool     `yaml:"auth"`
	MasterSecret   string   `yaml:"master_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Overrides optionally overrides values from the file and environment.
//
// A nil pointer means "use the file/environment/default value".
type Overrides struct {
	Token        *string
	Debug        *bool
	LogLevel     *string
	StateBackend *string
	StatePath    *string
	APIAddr      *string
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := events.DefaultOptions()
	return &Config{
		Discord:  DiscordConfig{CommandPrefix: "!"},
		Channels: ChannelsConfig{Roster: "roster", Events: "event"},
		Events: EventsConfig{
			DefaultHour:   opts.DefaultHour,
			DefaultMinute: opts.DefaultMinute,
			CloseDelay:    opts.CloseDelay,
			Timezone:      "Europe/Paris",
			Setup:         opts.Setup.String(),
		},
		Scan:     ScanConfig{PageSize: dynmsg.DefaultPageSize},
		State:    StateConfig{Backend: BackendHistory},
		API:      APIConfig{Addr: "127.0.0.1:3005", AllowedOrigins: []string{"*"}},
		LogLevel: "info",
	}
}

// Load reads path (optional) then .env, the environment and overrides, and
// validates the result.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Real environment variables win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.applyOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func env(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (c *Config) applyEnv() {
	if v, ok := env("WOWBOT_TOKEN", "BOT_TOKEN"); ok {
		c.Discord.Token = v
	}
	if v, ok := env("WOWBOT_EMOJI_GUILD_ID", "EMOJI_GUILD_ID"); ok {
		c.Discord.EmojiGuildID = v
	}
	if v, ok := env("WOWBOT_DEBUG", "DEBUG"); ok {
		c.Debug = v == "true" || v == "1"
	}
	if v, ok := env("WOWBOT_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := env("WOWBOT_STATE_BACKEND"); ok {
		c.State.Backend = v
	}
	if v, ok := env("WOWBOT_STATE_PATH"); ok {
		c.State.Path = v
	}
	if v, ok := env("WOWBOT_API_ADDR"); ok {
		c.API.Addr = v
	}
	if v, ok := env("WOWBOT_MASTER_SECRET"); ok {
		c.API.MasterSecret = v
	}
	if v, ok := env("WOWBOT_TIMEZONE"); ok {
		c.Events.Timezone = v
	}
	if v, ok := env("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.API.Addr = fmt.Sprintf(":%d", p)
		}
	}
}

func (c *Config) applyOverrides(o Overrides) {
	if o.Token != nil {
		c.Discord.Token = *o.Token
	}
	if o.Debug != nil {
		c.Debug = *o.Debug
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.StateBackend != nil {
		c.State.Backend = *o.StateBackend
	}
	if o.StatePath != nil {
		c.State.Path = *o.StatePath
	}
	if o.APIAddr != nil {
		c.API.Addr = *o.APIAddr
	}
}

var validCron = validation.By(func(v any) error {
	s, _ := v.(string)
	if !gronx.IsValid(s) {
		return fmt.Errorf("invalid cron expression %q", s)
	}
	return nil
})

var validTimezone = validation.By(func(v any) error {
	s, _ := v.(string)
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown timezone %q", s)
	}
	return nil
})

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Discord),
		validation.Field(&c.Events),
		validation.Field(&c.Session),
		validation.Field(&c.Scan),
		validation.Field(&c.State),
		validation.Field(&c.API),
	)
}

func (d DiscordConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Token, validation.Required),
		validation.Field(&d.CommandPrefix, validation.Required, validation.Length(1, 3)),
	)
}

func (e EventsConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.DefaultHour, validation.Min(0), validation.Max(23)),
		validation.Field(&e.DefaultMinute, validation.Min(0), validation.Max(59)),
		validation.Field(&e.CloseDelay, validation.Min(time.Duration(0))),
		validation.Field(&e.Timezone, validation.Required, validTimezone),
		validation.Field(&e.Recurring),
	)
}

func (r Recurring) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Cron, validation.Required, validCron),
		validation.Field(&r.Lead, validation.Min(time.Duration(0))),
	)
}

func (s SessionConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.IdleTimeout, validation.Min(time.Duration(0))),
	)
}

func (s ScanConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

func (s StateConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In(BackendHistory, BackendSQLite, BackendPebble)),
		validation.Field(&s.Path, validation.When(s.Backend != BackendHistory, validation.Required)),
	)
}

func (a APIConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Addr, validation.When(a.Enabled, validation.Required)),
		validation.Field(&a.MasterSecret, validation.When(a.Enabled && a.Auth, validation.Required, validation.Length(16, 0))),
	)
}

// Location returns the events timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Events.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EventOptions converts the events section.
func (c *Config) EventOptions() events.Options {
	opts := events.DefaultOptions()
	opts.CloseDelay = c.Events.CloseDelay
	opts.DefaultHour = c.Events.DefaultHour
	opts.DefaultMinute = c.Events.DefaultMinute
	if len(c.Events.Icons) > 0 {
		opts.Icons = c.Events.Icons
	}
	opts.Setup = events.ParseSetup(c.Events.Setup)
	opts.Location = c.Location()
	return opts
}

// Recurrences converts the recurring events.
func (c *Config) Recurrences() []events.Recurrence {
	out := make([]events.Recurrence, 0, len(c.Events.Recurring))
	for _, r := range c.Events.Recurring {
		out = append(out, events.Recurrence{
			Cron:        r.Cron,
			Roster:      r.Roster,
			Description: r.Description,
			Icon:        r.Icon,
			Lead:        r.Lead,
		})
	}
	return out
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	cp.Discord.Token = redact(cp.Discord.Token)
	cp.API.MasterSecret = redact(cp.API.MasterSecret)
	return cp
}

func redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8)
}
