package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid is returned for missing or malformed settings.
var ErrInvalid = errors.New("invalid configuration")

// Error policies for the notification run
const (
	PolicyAbort    = "abort"
	PolicySkip     = "skip"
	PolicyContinue = "continue"
)

// Email providers
const (
	ProviderSMTP  = "smtp"
	ProviderGmail = "gmail"
	ProviderLog   = "log"
)

// Config holds all configuration for the application
type Config struct {
	Reminder ReminderConfig `mapstructure:"reminder"`
	Sheet    SheetConfig    `mapstructure:"sheet"`
	Email    EmailConfig    `mapstructure:"email"`
	Run      RunConfig      `mapstructure:"run"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ReminderConfig controls when notifications fire
type ReminderConfig struct {
	// DaysBefore is the exact number of days before the due date a reminder is sent.
	DaysBefore int `mapstructure:"days_before"`
	// Exclusive suppresses the reminder for a row that already fired a due notification.
	Exclusive bool `mapstructure:"exclusive"`
	// Timezone is the IANA name used to decide what "today" is. Empty means local time.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone.
func (c ReminderConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// SheetConfig describes where the events live in the workbook
type SheetConfig struct {
	Path        string `mapstructure:"path"`
	Name        string `mapstructure:"name"`
	HeaderRow   int    `mapstructure:"header_row"`
	FirstRow    int    `mapstructure:"first_row"`
	FirstColumn int    `mapstructure:"first_column"`
	// Headers are the expected titles in HeaderRow, checked only when HeaderRow > 0.
	Headers     []string `mapstructure:"headers"`
	DateLayouts []string `mapstructure:"date_layouts"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider is the transport to use: "smtp", "gmail" or "log".
	Provider      string           `mapstructure:"provider"`
	Sender        string           `mapstructure:"sender"`
	SenderName    string           `mapstructure:"sender_name"`
	Recipients    []string         `mapstructure:"recipients"`
	SubjectPrefix string           `mapstructure:"subject_prefix"`
	SMTP          SMTPConfig       `mapstructure:"smtp"`
	Gmail         GmailEmailConfig `mapstructure:"gmail"`
}

// SMTPConfig holds SMTP transport configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// TLS is "starttls" (mandatory STARTTLS) or "ssl" (implicit TLS).
	TLS     string        `mapstructure:"tls"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

// RunConfig holds the failure policies of a notification run
type RunConfig struct {
	// OnRowError is "abort" or "skip".
	OnRowError string `mapstructure:"on_row_error"`
	// OnSendError is "abort" or "continue".
	OnSendError string `mapstructure:"on_send_error"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
	Stdout bool   `mapstructure:"stdout"`
}

// RedisConfig holds the sent ledger's Redis configuration
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the audit store's PostgreSQL configuration
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the PostgreSQL URL form used by golang-migrate
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit YAML file. Empty searches the default paths.
	ConfigFile string
	// EnvFile is a dotenv file loaded before reading the environment.
	EnvFile string
	// SkipValidation loads whatever is set without checking it, for tools
	// that only need part of the configuration.
	SkipValidation bool
	// DryRun skips the transport checks; a dry run only logs messages.
	DryRun bool
}

// legacyEnv maps config keys to the environment names the job has always used.
var legacyEnv = map[string]string{
	"reminder.days_before": "SEND_REMINDER_DAYS_BEFORE",
	"email.recipients":     "NOTIFICATION_RECIPIENT_EMAILS",
	"email.sender":         "NOTIFICATION_SENDER_EMAIL",
	"email.smtp.host":      "SMTP_SERVER",
	"email.smtp.port":      "SMTP_PORT",
	"email.smtp.user":      "SMTP_USER",
	"email.smtp.password":  "SMTP_PASSWORD",
	"sheet.path":           "XL_FILE_PATH",
}

// Load reads configuration from a dotenv file, a config file and environment
// variables, then validates it.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already present in the environment
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load env file %s: %v", ErrInvalid, envFile, err)
	}

	v := viper.New()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/notiz")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || opts.ConfigFile != "" {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalid, err)
		}
	}

	v.SetEnvPrefix("NOTIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env, "NOTIZ_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("%w: failed to bind %s: %v", ErrInvalid, env, err)
		}
	}

	if v.IsSet("reminder.days_before") {
		days, err := parseLeadDays(v.GetString("reminder.days_before"))
		if err != nil {
			return nil, err
		}
		v.Set("reminder.days_before", days)
	} else if !opts.SkipValidation {
		return nil, fmt.Errorf("%w: SEND_REMINDER_DAYS_BEFORE is not set", ErrInvalid)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrInvalid, err)
	}
	cfg.Email.Recipients = SplitAddresses(cfg.Email.Recipients...)

	if opts.SkipValidation {
		return &cfg, nil
	}
	if err := cfg.validate(!opts.DryRun); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// parseLeadDays reads the reminder lead time as a base-10 integer, so a
// zero-padded "010" is ten days rather than an octal eight.
func parseLeadDays(value string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: SEND_REMINDER_DAYS_BEFORE must be an integer, got %q", ErrInvalid, value)
	}
	return days, nil
}

func setDefaults(v *viper.Viper) {
	// Reminder defaults
	v.SetDefault("reminder.exclusive", false)
	v.SetDefault("reminder.timezone", "")

	// Sheet defaults
	v.SetDefault("sheet.path", "")
	v.SetDefault("sheet.name", "")
	v.SetDefault("sheet.header_row", 0)
	v.SetDefault("sheet.first_row", 3)
	v.SetDefault("sheet.first_column", 3)
	v.SetDefault("sheet.headers", []string{"Label", "Visit Date", "Lower Limit", "Due Date", "Upper Limit", "Remark"})
	v.SetDefault("sheet.date_layouts", []string{"2006-01-02", "02.01.2006", "01/02/2006", "2006-01-02 15:04:05"})

	// Email defaults
	v.SetDefault("email.provider", ProviderSMTP)
	v.SetDefault("email.sender", "")
	v.SetDefault("email.sender_name", "")
	v.SetDefault("email.recipients", []string{})
	v.SetDefault("email.subject_prefix", "NOTIZ: ")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.user", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.tls", "starttls")
	v.SetDefault("email.smtp.timeout", "30s")
	v.SetDefault("email.gmail.credentials_json", "")
	v.SetDefault("email.gmail.client_id", "")
	v.SetDefault("email.gmail.client_secret", "")
	v.SetDefault("email.gmail.refresh_token", "")

	// Run defaults
	v.SetDefault("run.on_row_error", PolicyAbort)
	v.SetDefault("run.on_send_error", PolicyAbort)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "data/notiz.log")
	v.SetDefault("log.stdout", false)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "notiz:sent:")
	v.SetDefault("redis.ttl", "48h")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "notiz")
	v.SetDefault("database.user", "notiz")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 4)
}

// Validate checks that every setting needed for a run is present and well formed.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(transport bool) error {
	var problems []string

	if c.Sheet.Path == "" {
		problems = append(problems, "XL_FILE_PATH is not set")
	}
	if c.Sheet.FirstRow < 1 || c.Sheet.FirstColumn < 1 {
		problems = append(problems, "sheet.first_row and sheet.first_column must be >= 1")
	}
	if c.Sheet.HeaderRow < 0 || (c.Sheet.HeaderRow > 0 && c.Sheet.HeaderRow >= c.Sheet.FirstRow) {
		problems = append(problems, "sheet.header_row must be 0 or above sheet.first_row")
	}

	if c.Email.Sender == "" {
		problems = append(problems, "NOTIFICATION_SENDER_EMAIL is not set")
	} else if _, err := mail.ParseAddress(c.Email.Sender); err != nil {
		problems = append(problems, fmt.Sprintf("invalid sender address %q", c.Email.Sender))
	}
	if len(c.Email.Recipients) == 0 {
		problems = append(problems, "NOTIFICATION_RECIPIENT_EMAILS is not set")
	}
	for _, addr := range c.Email.Recipients {
		if _, err := mail.ParseAddress(addr); err != nil {
			problems = append(problems, fmt.Sprintf("invalid recipient address %q", addr))
		}
	}

	switch c.Email.Provider {
	case ProviderSMTP, ProviderGmail, ProviderLog:
	default:
		problems = append(problems, fmt.Sprintf("unknown email provider %q", c.Email.Provider))
	}

	switch {
	case !transport:
	case c.Email.Provider == ProviderSMTP:
		if c.Email.SMTP.Host == "" {
			problems = append(problems, "SMTP_SERVER is not set")
		}
		if c.Email.SMTP.User == "" || c.Email.SMTP.Password == "" {
			problems = append(problems, "SMTP_USER and SMTP_PASSWORD must be set")
		}
		if c.Email.SMTP.Port <= 0 {
			problems = append(problems, "SMTP_PORT must be positive")
		}
		if c.Email.SMTP.TLS != "starttls" && c.Email.SMTP.TLS != "ssl" {
			problems = append(problems, fmt.Sprintf("unknown email.smtp.tls %q", c.Email.SMTP.TLS))
		}
	case c.Email.Provider == ProviderGmail:
		if c.Email.Gmail.CredentialsJSON == "" && c.Email.Gmail.RefreshToken == "" {
			problems = append(problems, "gmail provider needs credentials_json or refresh_token")
		}
	}

	if c.Run.OnRowError != PolicyAbort && c.Run.OnRowError != PolicySkip {
		problems = append(problems, fmt.Sprintf("run.on_row_error must be %q or %q", PolicyAbort, PolicySkip))
	}
	if c.Run.OnSendError != PolicyAbort && c.Run.OnSendError != PolicyContinue {
		problems = append(problems, fmt.Sprintf("run.on_send_error must be %q or %q", PolicyAbort, PolicyContinue))
	}

	if _, err := c.Reminder.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("invalid reminder.timezone %q", c.Reminder.Timezone))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// SplitAddresses flattens comma or semicolon separated address lists into
// individual trimmed addresses. Spaces are kept so that display names such
// as "Jane Doe <jane@example.com>" survive.
func SplitAddresses(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
