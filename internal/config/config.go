// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the relay.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// Provider names accepted in the provider setting.
const (
	ProviderMailjet = "mailjet"
	ProviderSES     = "ses"
	ProviderStdout  = "stdout"
)

// Config holds the complete application configuration.
type Config struct {
	Provider string        `yaml:"provider" validate:"omitempty,oneof=mailjet ses stdout"`
	Mailjet  MailjetConfig `yaml:"mailjet"`
	SES      SESConfig     `yaml:"ses"`
	SMTP     SMTPConfig    `yaml:"smtp"`
	Relay    RelayConfig   `yaml:"relay"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Logging  LoggingConfig `yaml:"logging"`
}

// MailjetConfig holds Mailjet Send API settings.
type MailjetConfig struct {
	APIKey        string        `yaml:"api_key"`
	APISecret     string        `yaml:"api_secret"`
	Version       string        `yaml:"version" validate:"oneof=v3 v3.1 legacy structured"`
	URL           string        `yaml:"url"`
	Secured       *bool         `yaml:"secured"`
	Call          *bool         `yaml:"call"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	LegacyRouting string        `yaml:"legacy_routing" validate:"oneof=recipients headers"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender" validate:"omitempty,email"`
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Listen         string `yaml:"listen" validate:"required"`
	Hostname       string `yaml:"hostname" validate:"required"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxMessageSize int64  `yaml:"max_message_size" validate:"gt=0"`
}

// RelayConfig holds delivery policy.
type RelayConfig struct {
	AllowedDomains []string `yaml:"allowed_domains" validate:"dive,hostname_rfc1123"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Defaults returns the values used for every setting left unset.
func Defaults() Config {
	return Config{
		Mailjet: MailjetConfig{
			Version:       "v3",
			Secured:       boolPtr(true),
			Call:          boolPtr(true),
			Timeout:       30 * time.Second,
			LegacyRouting: "recipients",
		},
		SMTP: SMTPConfig{
			Listen:         ":2525",
			Hostname:       "localhost",
			MaxMessageSize: defaultMaxMessageSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyEnvVars()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish fills unset fields from Defaults and validates the result. Pointer
// fields are not dereferenced, so an explicit false is kept.
func (c *Config) finish() error {
	defaults := Defaults()
	if err := mergo.Merge(c, defaults, mergo.WithoutDereference); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	return c.Validate()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values and provider requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: invalid value %q (%s)", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Provider == ProviderSES && !c.SESConfigured() {
		return errors.New("invalid configuration: provider ses requires ses.region and ses.sender")
	}
	return nil
}

// MailjetConfigured returns true if both Mailjet API credentials are set.
func (c *Config) MailjetConfigured() bool {
	return c.Mailjet.APIKey != "" && c.Mailjet.APISecret != ""
}

// SESConfigured returns true if the SES region and sender are set.
// Credentials are optional and fall back to the AWS default chain.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// ResolveProvider returns the configured provider, or picks one from the
// configured credentials: mailjet, then ses, then stdout.
func (c *Config) ResolveProvider() string {
	switch {
	case c.Provider != "":
		return c.Provider
	case c.MailjetConfigured():
		return ProviderMailjet
	case c.SESConfigured():
		return ProviderSES
	default:
		return ProviderStdout
	}
}

// IsSecured reports whether the Mailjet API is called over https.
func (m MailjetConfig) IsSecured() bool {
	return m.Secured == nil || *m.Secured
}

// CallEnabled reports whether Mailjet API calls are actually made.
func (m MailjetConfig) CallEnabled() bool {
	return m.Call == nil || *m.Call
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("MJ_APIKEY_PUBLIC"); v != "" {
		c.Mailjet.APIKey = v
	}
	if v := os.Getenv("MJ_APIKEY_PRIVATE"); v != "" {
		c.Mailjet.APISecret = v
	}
	if v := os.Getenv("MAILJET_VERSION"); v != "" {
		c.Mailjet.Version = strings.ToLower(v)
	}
	if v := os.Getenv("MAILJET_URL"); v != "" {
		c.Mailjet.URL = v
	}
	if v := os.Getenv("MAILJET_SECURED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mailjet.Secured = boolPtr(b)
		}
	}
	if v := os.Getenv("MAILJET_CALL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mailjet.Call = boolPtr(b)
		}
	}
	if v := os.Getenv("MAILJET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Mailjet.Timeout = d
		}
	}
	if v := os.Getenv("MAILJET_LEGACY_ROUTING"); v != "" {
		c.Mailjet.LegacyRouting = strings.ToLower(v)
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("SMTP_LISTEN"); v != "" {
		c.SMTP.Listen = v
	}
	if v := os.Getenv("SMTP_HOSTNAME"); v != "" {
		c.SMTP.Hostname = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SMTP.MaxMessageSize = size
		}
	}

	if v := os.Getenv("RELAY_ALLOWED_DOMAINS"); v != "" {
		var domains []string
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				domains = append(domains, strings.ToLower(d))
			}
		}
		c.Relay.AllowedDomains = domains
	}

	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
}

func boolPtr(b bool) *bool { return &b }
