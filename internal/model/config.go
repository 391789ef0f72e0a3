package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP/WebSocket listen settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8766".
	Addr string `mapstructure:"addr" yaml:"addr"`

	// Env selects logging output: "development" or "production".
	Env string `mapstructure:"env" yaml:"env"`
}

// GoogleConfig holds the OAuth client used by Gmail adapters.
// Tokens themselves live in the credential store, not here.
type GoogleConfig struct {
	ClientID     string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" yaml:"client_secret"`
	Accounts     []string `mapstructure:"accounts" yaml:"accounts"`
}

// OutlookConfig holds the Microsoft Graph application settings.
type OutlookConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	TenantID     string `mapstructure:"tenant_id" yaml:"tenant_id"`
	Account      string `mapstructure:"account" yaml:"account"`
}

// SlackWorkspaceConfig identifies one Slack workspace to watch.
// The bot token is looked up in the credential store under
// "slack:<name>".
type SlackWorkspaceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
}

// AsanaConfig holds the Asana workspace and default project.
type AsanaConfig struct {
	WorkspaceGID      string `mapstructure:"workspace_gid" yaml:"workspace_gid"`
	DefaultProjectGID string `mapstructure:"default_project_gid" yaml:"default_project_gid"`
}

// PlaneConfig holds the Plane API location and default project.
type PlaneConfig struct {
	APIURL           string `mapstructure:"api_url" yaml:"api_url"`
	WorkspaceSlug    string `mapstructure:"workspace_slug" yaml:"workspace_slug"`
	DefaultProjectID string `mapstructure:"default_project_id" yaml:"default_project_id"`
}

// MailboxConfig describes one generic IMAP/SMTP account.
// The password is looked up in the credential store under
// "mailbox:<username>".
type MailboxConfig struct {
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	UseTLS   bool   `mapstructure:"use_tls" yaml:"use_tls"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// DBPath is the SQLite database file location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// PollIntervalSec is how often (in seconds) adapters poll their
	// source for changes.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	Google    GoogleConfig           `mapstructure:"google" yaml:"google"`
	Outlook   OutlookConfig          `mapstructure:"outlook" yaml:"outlook"`
	Slack     []SlackWorkspaceConfig `mapstructure:"slack" yaml:"slack"`
	Asana     AsanaConfig            `mapstructure:"asana" yaml:"asana"`
	Plane     PlaneConfig            `mapstructure:"plane" yaml:"plane"`
	Mailboxes []MailboxConfig        `mapstructure:"mailboxes" yaml:"mailboxes"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/commandcenter/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "commandcenter", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr: "127.0.0.1:8766",
			Env:  "development",
		},
		DBPath:          "command_center.db",
		PollIntervalSec: 30,
		Plane: PlaneConfig{
			APIURL: "https://app.plane.so/api/v1",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.addr", "127.0.0.1:8766")
	v.SetDefault("server.env", "development")
	v.SetDefault("db_path", "command_center.db")
	v.SetDefault("poll_interval_sec", 30)
	v.SetDefault("plane.api_url", "https://app.plane.so/api/v1")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 30
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("db_path", cfg.DBPath)
	v.Set("poll_interval_sec", cfg.PollIntervalSec)
	v.Set("google", cfg.Google)
	v.Set("outlook", cfg.Outlook)
	v.Set("slack", cfg.Slack)
	v.Set("asana", cfg.Asana)
	v.Set("plane", cfg.Plane)
	v.Set("mailboxes", cfg.Mailboxes)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
