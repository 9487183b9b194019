package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrNoAccounts indicates no mailbox accounts are configured
	ErrNoAccounts = errors.New("no mailbox accounts configured")
	// ErrInvalidAccount indicates an account entry is missing required fields
	ErrInvalidAccount = errors.New("invalid account configuration")
)

// AccountConfig describes one remote mailbox the pipeline pulls from.
// Address doubles as the account identity on stored documents.
type AccountConfig struct {
	Address  string `mapstructure:"address"`
	IMAPHost string `mapstructure:"imap_host"`
	IMAPPort int    `mapstructure:"imap_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseSSL   bool   `mapstructure:"use_ssl"`
	Folder   string `mapstructure:"folder"`
}

// OracleConfig holds settings for the classification/generation oracle.
type OracleConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
}

// NotifyConfig holds the outbound alert sink endpoints. Empty URLs disable
// the corresponding sink.
type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	WebhookURL      string `mapstructure:"webhook_url"`
}

// Config is the top-level application configuration.
type Config struct {
	DatabasePath string          `mapstructure:"database_path"`
	APIPort      string          `mapstructure:"api_port"`
	LogLevel     string          `mapstructure:"log_level"`
	CORSOrigins  string          `mapstructure:"cors_origins"`
	SyncDays     int             `mapstructure:"sync_days"`
	Accounts     []AccountConfig `mapstructure:"accounts"`
	AI           OracleConfig    `mapstructure:"ai"`
	Notify       NotifyConfig    `mapstructure:"notify"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/onebox.db"
	DefaultAPIPort      = "3000"
	DefaultLogLevel     = "INFO"
	DefaultCORSOrigins  = "*"
	DefaultSyncDays     = 30
	DefaultIMAPPort     = 993
	DefaultFolder       = "INBOX"
)

// Load reads configuration from config.yaml (working directory) and
// ONEBOX_* environment variables. Environment variables win over the file.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile reads configuration from the given YAML file path. A missing
// file is not an error; defaults plus environment variables apply.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("api_port", DefaultAPIPort)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("cors_origins", DefaultCORSOrigins)
	v.SetDefault("sync_days", DefaultSyncDays)

	v.SetEnvPrefix("ONEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if _, isPathErr := err.(*os.PathError); !isPathErr && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Single-account env fallback, kept from the original deployment style:
	// ONEBOX_IMAP_USER / ONEBOX_IMAP_PASSWORD / ONEBOX_IMAP_HOST configure
	// one mailbox without a config file.
	if len(cfg.Accounts) == 0 && v.GetString("imap_user") != "" {
		cfg.Accounts = append(cfg.Accounts, AccountConfig{
			Address:  v.GetString("imap_user"),
			Username: v.GetString("imap_user"),
			Password: v.GetString("imap_password"),
			IMAPHost: v.GetString("imap_host"),
			IMAPPort: v.GetInt("imap_port"),
			UseSSL:   true,
		})
	}

	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.IMAPPort == 0 {
			acc.IMAPPort = DefaultIMAPPort
		}
		if acc.Folder == "" {
			acc.Folder = DefaultFolder
		}
		if acc.Username == "" {
			acc.Username = acc.Address
		}
	}

	return cfg, nil
}

// Validate checks that the configuration can run the ingestion pipeline.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return ErrNoAccounts
	}
	for _, acc := range c.Accounts {
		if acc.Address == "" || acc.IMAPHost == "" {
			return fmt.Errorf("%w: address and imap_host are required", ErrInvalidAccount)
		}
	}
	return nil
}

// CORSOriginList splits the configured origins into a slice for the router.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
