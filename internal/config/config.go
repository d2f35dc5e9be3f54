package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"helphub/internal/domain/contact"
	"helphub/internal/domain/link"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Section source modes.
const (
	ModeToggle = "toggle" // viewer chooses; remembered in the session cookie
	ModeAuto   = "auto"   // always fetch remote
	ModeLocal  = "local"  // never fetch
)

// DefaultConfigPath is read when HELPHUB_CONFIG is unset. A missing default file is not an error.
const DefaultConfigPath = "helphub.yaml"

// Config represents the application configuration.
type Config struct {
	Env         string            `yaml:"env" validate:"oneof=development production test"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Remote      RemoteConfig      `yaml:"remote"`
	Notices     NoticesConfig     `yaml:"notices"`
	Links       LinksConfig       `yaml:"links"`
	Contact     ContactConfig     `yaml:"contact"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Security    SecurityConfig    `yaml:"security"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DatabaseConfig contains the diagnostics SQLite settings.
type DatabaseConfig struct {
	Path      string        `yaml:"path" validate:"required"`
	SlowQuery time.Duration `yaml:"slow_query" validate:"gte=0"`
}

// RemoteConfig describes the spreadsheet endpoint. An empty endpoint makes
// every remote attempt fail and fall back to the bundled data.
type RemoteConfig struct {
	Endpoint     string        `yaml:"endpoint" validate:"omitempty,url"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gt=0"`
}

// NoticesConfig controls the notices section.
type NoticesConfig struct {
	Mode  string `yaml:"mode" validate:"oneof=toggle auto local"`
	Sheet string `yaml:"sheet"`
}

// LinksConfig controls the link directory sections. Sheets maps a section
// key such as "official_portals" to its sheet name.
type LinksConfig struct {
	Mode   string            `yaml:"mode" validate:"oneof=toggle auto local"`
	Sheets map[string]string `yaml:"sheets"`
}

// ContactConfig overrides or adds messaging templates by name.
type ContactConfig struct {
	Templates map[string]contact.Template `yaml:"templates" validate:"dive"`
}

// AlertsConfig controls fallback alert email.
type AlertsConfig struct {
	ResendKey string        `yaml:"resend_key"`
	From      string        `yaml:"from"`
	To        []string      `yaml:"to" validate:"dive,email"`
	Cooldown  time.Duration `yaml:"cooldown" validate:"gt=0"`
}

// DiagnosticsConfig controls the retrieval log and its endpoints.
type DiagnosticsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Retention     time.Duration `yaml:"retention" validate:"gt=0"`
	PruneSchedule string        `yaml:"prune_schedule" validate:"required"`
}

// SecurityConfig holds secrets and request limits. Keys are hex-encoded 32 bytes.
type SecurityConfig struct {
	CookieKey string `yaml:"cookie_key" validate:"omitempty,hexadecimal,len=64"`
	CSRFKey   string `yaml:"csrf_key" validate:"omitempty,hexadecimal,len=64"`
	RateLimit int    `yaml:"rate_limit" validate:"gte=0"` // requests per second per client; 0 disables

	// TrustedOrigins are extra hosts allowed to post forms, e.g. behind a proxy.
	TrustedOrigins []string `yaml:"trusted_origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Env:      EnvDevelopment,
		Server:   ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:      LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Path: "helphub.db", SlowQuery: 50 * time.Millisecond},
		Remote:   RemoteConfig{Timeout: 15 * time.Second, MaxBodyBytes: 1 << 20},
		Notices:  NoticesConfig{Mode: ModeToggle, Sheet: "Notices"},
		Links:    LinksConfig{Mode: ModeToggle},
		Alerts:   AlertsConfig{From: "IGNOU Help Hub <alerts@ignouhelphub.com>", Cooldown: 30 * time.Minute},
		Diagnostics: DiagnosticsConfig{
			Enabled:       true,
			Retention:     14 * 24 * time.Hour,
			PruneSchedule: "0 30 3 * * *",
		},
		Security: SecurityConfig{RateLimit: 10},
	}
}

// Load builds the configuration: defaults, then the YAML file, then a .env
// file, then HELPHUB_* environment variables. The result is validated.
// PRE: none
// POST: Returns a valid config or an error describing every problem found
func Load() (Config, error) {
	// .env only fills variables the process does not already have
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	path, explicit := os.LookupEnv("HELPHUB_CONFIG")
	if !explicit {
		path = DefaultConfigPath
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.parseYAML(data)
}

func (c *Config) parseYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overrides values from HELPHUB_* variables. lookup is os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int64) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("HELPHUB_ENV", &c.Env)
	str("HELPHUB_ADDR", &c.Server.Addr)
	str("HELPHUB_LOG_LEVEL", &c.Log.Level)
	str("HELPHUB_LOG_FORMAT", &c.Log.Format)
	str("HELPHUB_DB_PATH", &c.Database.Path)
	dur("HELPHUB_SLOW_QUERY", &c.Database.SlowQuery)
	str("HELPHUB_REMOTE_ENDPOINT", &c.Remote.Endpoint)
	dur("HELPHUB_REMOTE_TIMEOUT", &c.Remote.Timeout)
	integer("HELPHUB_REMOTE_MAX_BODY_BYTES", &c.Remote.MaxBodyBytes)
	str("HELPHUB_NOTICES_MODE", &c.Notices.Mode)
	str("HELPHUB_NOTICES_SHEET", &c.Notices.Sheet)
	str("HELPHUB_LINKS_MODE", &c.Links.Mode)
	str("HELPHUB_RESEND_KEY", &c.Alerts.ResendKey)
	str("HELPHUB_ALERT_FROM", &c.Alerts.From)
	dur("HELPHUB_ALERT_COOLDOWN", &c.Alerts.Cooldown)
	if v, ok := lookup("HELPHUB_ALERT_TO"); ok && v != "" {
		c.Alerts.To = splitList(v)
	}
	if v, ok := lookup("HELPHUB_DIAGNOSTICS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HELPHUB_DIAGNOSTICS: %w", err))
		} else {
			c.Diagnostics.Enabled = b
		}
	}
	dur("HELPHUB_DIAGNOSTICS_RETENTION", &c.Diagnostics.Retention)
	str("HELPHUB_PRUNE_SCHEDULE", &c.Diagnostics.PruneSchedule)
	str("HELPHUB_COOKIE_KEY", &c.Security.CookieKey)
	str("HELPHUB_CSRF_KEY", &c.Security.CSRFKey)
	if v, ok := lookup("HELPHUB_TRUSTED_ORIGINS"); ok && v != "" {
		c.Security.TrustedOrigins = splitList(v)
	}
	rate := int64(c.Security.RateLimit)
	integer("HELPHUB_RATE_LIMIT", &rate)
	c.Security.RateLimit = int(rate)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	for key := range c.Links.Sheets {
		if !link.Section(key).Valid() {
			errs = append(errs, fmt.Errorf("links.sheets: unknown section %q", key))
		}
	}
	if c.IsProduction() {
		if c.Security.CookieKey == "" {
			errs = append(errs, errors.New("security.cookie_key is required in production"))
		}
		if c.Security.CSRFKey == "" {
			errs = append(errs, errors.New("security.csrf_key is required in production"))
		}
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SheetFor returns the sheet name for a link section, honouring overrides.
func (c Config) SheetFor(s link.Section) string {
	if name := c.Links.Sheets[string(s)]; name != "" {
		return name
	}
	return s.SheetName()
}

// ContactTemplates merges configured templates over the defaults.
// A configured template with the name of a default replaces it.
func (c Config) ContactTemplates() []contact.Template {
	out := contact.DefaultTemplates()
	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.Name] = i
	}
	names := make([]string, 0, len(c.Contact.Templates))
	for name := range c.Contact.Templates {
		names = append(names, name)
	}
	// map order is random; keep additions stable
	slices.Sort(names)
	for _, name := range names {
		t := c.Contact.Templates[name]
		t.Name = strings.ToLower(name)
		if i, ok := index[t.Name]; ok {
			out[i] = t
			continue
		}
		index[t.Name] = len(out)
		out = append(out, t)
	}
	return out
}

// CookieKey returns the viewer cookie hash key.
func (c Config) CookieKey() ([]byte, error) {
	return c.loadKey("security.cookie_key", c.Security.CookieKey)
}

// CSRFKey returns the CSRF token key.
func (c Config) CSRFKey() ([]byte, error) {
	return c.loadKey("security.csrf_key", c.Security.CSRFKey)
}

// loadKey decodes a hex key. Outside production a missing key is replaced by
// a random one, so sessions do not survive a restart.
func (c Config) loadKey(name, keyHex string) ([]byte, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("%s must be 64 hex characters (32 bytes)", name)
		}
		return key, nil
	}
	if c.IsProduction() {
		return nil, fmt.Errorf("%s is required in production", name)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	slog.Warn("config_event", "event", "random_key", "key", name)
	return key, nil
}
