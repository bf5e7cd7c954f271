package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/tkanos/gonfig"

	"github.com/swanchain/deposit-watch/pkg/blockwallets"
	"github.com/swanchain/deposit-watch/pkg/watcher"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether deposits should be persisted.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type EmailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Recipients []string
}

func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && len(c.Recipients) > 0
}

type Configuration struct {
	APIKey          string
	BaseURL         string
	BlockCategoryID int
	Currency        blockwallets.Currency

	PollSchedule   string
	MaxAttempts    int
	PollTimeout    time.Duration
	RequestTimeout time.Duration

	TeamsWebhookURL string
	TronRPCURL      string
	Database        DatabaseConfig
	Email           EmailConfig

	LogLevel  string
	LogFormat string
}

// jsonConfiguration is the on-disk shape read by gonfig. The env tags name
// the variables that override each field.
type jsonConfiguration struct {
	APIKey          string   `env:"BLOCKWALLETS_API_KEY"`
	BaseURL         string   `env:"BLOCKWALLETS_BASE_URL"`
	BlockCategoryID int      `env:"BLOCKWALLETS_CATEGORY_ID"`
	Currency        string   `env:"DEPOSIT_CURRENCY"`
	PollSchedule    string   `env:"POLL_SCHEDULE"`
	MaxAttempts     int      `env:"POLL_MAX_ATTEMPTS"`
	PollTimeout     Duration `env:"-"`
	RequestTimeout  Duration `env:"-"`
	TeamsWebhookURL string   `env:"TEAMS_WEBHOOK_URL"`
	TronRPCURL      string   `env:"TRON_RPC_URL"`
	DBHost          string   `env:"INFO_DB_HOST"`
	DBPort          string   `env:"INFO_DB_PORT"`
	DBUser          string   `env:"INFO_DB_USERNAME"`
	DBPassword      string   `env:"INFO_DB_PASSWORD"`
	DBName          string   `env:"INFO_DB_NAME"`
	DBSSLMode       string   `env:"INFO_DB_SSLMODE"`
	SMTPHost        string   `env:"SMTP_HOST"`
	SMTPPort        int      `env:"SMTP_PORT"`
	EmailUser       string   `env:"ADMIN_EMAIL"`
	EmailPassword   string   `env:"ADMIN_PW"`
	EmailRecipients string   `env:"NOTIFY_EMAILS"`
	LogLevel        string   `env:"LOG_LEVEL"`
	LogFormat       string   `env:"LOG_FORMAT"`
}

func DefaultCfg() *Configuration {
	return &Configuration{
		BaseURL:         blockwallets.BaseURL,
		BlockCategoryID: blockwallets.DefaultBlockCategoryID,
		Currency:        blockwallets.CurrencyTRX,
		PollSchedule:    "@every 20s",
		RequestTimeout:  30 * time.Second,
		Database: DatabaseConfig{
			Port:    "5432",
			SSLMode: "disable",
		},
		Email: EmailConfig{
			Host: "smtp.office365.com",
			Port: 587,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from, in increasing precedence: defaults,
// the JSON file named by -config, environment variables and command-line
// flags. args excludes the program name.
func Load(args []string, getenv func(string) string) (*Configuration, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := DefaultCfg()

	fs := flag.NewFlagSet("deposit-watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON configuration file")
	apiKey := fs.String("api-key", "", "BlockWallets API key")
	baseURL := fs.String("base-url", "", "BlockWallets API base URL")
	category := fs.Int("category", 0, "block category of the created wallet")
	currency := fs.String("currency", "", "currency to wait for: TRX or USDT")
	schedule := fs.String("schedule", "", `poll schedule, e.g. "@every 20s" or "*/30 * * * * *"`)
	maxAttempts := fs.Int("max-attempts", 0, "maximum number of polls, 0 for unbounded")
	pollTimeout := fs.Duration("timeout", 0, "give up polling after this long, 0 for never")
	logLevel := fs.String("log-level", "", "log level")
	logFormat := fs.String("log-format", "", "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		raw := jsonConfiguration{}
		if err := gonfig.GetConf(*configPath, &raw); err != nil {
			return nil, errors.Errorf("reading config file %s: %w", *configPath, err)
		}
		cfg.merge(raw)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	var currencyErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-key":
			cfg.APIKey = *apiKey
		case "base-url":
			cfg.BaseURL = *baseURL
		case "category":
			cfg.BlockCategoryID = *category
		case "currency":
			cfg.Currency, currencyErr = blockwallets.ParseCurrency(*currency)
		case "schedule":
			cfg.PollSchedule = *schedule
		case "max-attempts":
			cfg.MaxAttempts = *maxAttempts
		case "timeout":
			cfg.PollTimeout = *pollTimeout
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	if currencyErr != nil {
		return nil, errors.Wrap(currencyErr, 0)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Configuration) merge(raw jsonConfiguration) {
	setString(&cfg.APIKey, raw.APIKey)
	setString(&cfg.BaseURL, raw.BaseURL)
	if raw.BlockCategoryID != 0 {
		cfg.BlockCategoryID = raw.BlockCategoryID
	}
	if raw.Currency != "" {
		cfg.Currency = blockwallets.Currency(strings.ToUpper(raw.Currency))
	}
	setString(&cfg.PollSchedule, raw.PollSchedule)
	if raw.MaxAttempts != 0 {
		cfg.MaxAttempts = raw.MaxAttempts
	}
	if raw.PollTimeout.Duration != 0 {
		cfg.PollTimeout = raw.PollTimeout.Duration
	}
	if raw.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = raw.RequestTimeout.Duration
	}
	setString(&cfg.TeamsWebhookURL, raw.TeamsWebhookURL)
	setString(&cfg.TronRPCURL, raw.TronRPCURL)
	setString(&cfg.Database.Host, raw.DBHost)
	setString(&cfg.Database.Port, raw.DBPort)
	setString(&cfg.Database.User, raw.DBUser)
	setString(&cfg.Database.Password, raw.DBPassword)
	setString(&cfg.Database.Name, raw.DBName)
	setString(&cfg.Database.SSLMode, raw.DBSSLMode)
	setString(&cfg.Email.Host, raw.SMTPHost)
	if raw.SMTPPort != 0 {
		cfg.Email.Port = raw.SMTPPort
	}
	setString(&cfg.Email.User, raw.EmailUser)
	setString(&cfg.Email.Password, raw.EmailPassword)
	if raw.EmailRecipients != "" {
		cfg.Email.Recipients = splitList(raw.EmailRecipients)
	}
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.LogFormat, raw.LogFormat)
}

func (cfg *Configuration) applyEnv(getenv func(string) string) error {
	setString(&cfg.APIKey, getenv("BLOCKWALLETS_API_KEY"))
	setString(&cfg.BaseURL, getenv("BLOCKWALLETS_BASE_URL"))
	if err := setInt(&cfg.BlockCategoryID, "BLOCKWALLETS_CATEGORY_ID", getenv); err != nil {
		return err
	}
	if v := getenv("DEPOSIT_CURRENCY"); v != "" {
		cfg.Currency = blockwallets.Currency(strings.ToUpper(v))
	}
	setString(&cfg.PollSchedule, getenv("POLL_SCHEDULE"))
	if err := setInt(&cfg.MaxAttempts, "POLL_MAX_ATTEMPTS", getenv); err != nil {
		return err
	}
	if err := setDuration(&cfg.PollTimeout, "POLL_TIMEOUT", getenv); err != nil {
		return err
	}
	if err := setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT", getenv); err != nil {
		return err
	}
	setString(&cfg.TeamsWebhookURL, getenv("TEAMS_WEBHOOK_URL"))
	setString(&cfg.TronRPCURL, getenv("TRON_RPC_URL"))
	setString(&cfg.Database.Host, getenv("INFO_DB_HOST"))
	setString(&cfg.Database.Port, getenv("INFO_DB_PORT"))
	setString(&cfg.Database.User, getenv("INFO_DB_USERNAME"))
	setString(&cfg.Database.Password, getenv("INFO_DB_PASSWORD"))
	setString(&cfg.Database.Name, getenv("INFO_DB_NAME"))
	setString(&cfg.Database.SSLMode, getenv("INFO_DB_SSLMODE"))
	setString(&cfg.Email.Host, getenv("SMTP_HOST"))
	if err := setInt(&cfg.Email.Port, "SMTP_PORT", getenv); err != nil {
		return err
	}
	setString(&cfg.Email.User, getenv("ADMIN_EMAIL"))
	setString(&cfg.Email.Password, getenv("ADMIN_PW"))
	if v := getenv("NOTIFY_EMAILS"); v != "" {
		cfg.Email.Recipients = splitList(v)
	}
	setString(&cfg.LogLevel, getenv("LOG_LEVEL"))
	setString(&cfg.LogFormat, getenv("LOG_FORMAT"))
	return nil
}

// Validate checks that the configuration can drive a run.
func (cfg *Configuration) Validate() error {
	if cfg.APIKey == "" {
		return errors.New("no API key: set BLOCKWALLETS_API_KEY or pass -api-key")
	}
	if _, err := cfg.Currency.TokenType(); err != nil {
		return errors.Wrap(err, 0)
	}
	if _, err := watcher.ParseSchedule(cfg.PollSchedule); err != nil {
		return errors.Wrap(err, 0)
	}
	if cfg.MaxAttempts < 0 {
		return errors.Errorf("max attempts must not be negative, got %d", cfg.MaxAttempts)
	}
	if cfg.PollTimeout < 0 || cfg.RequestTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string, getenv func(string) string) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name string, getenv func(string) string) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return errors.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
