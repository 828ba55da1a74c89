package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Storage       StorageConfig      `yaml:"storage"`
	Remote        RemoteConfig       `yaml:"remote"`
	Workbook      WorkbookConfig     `yaml:"workbook"`
	Session       SessionConfig      `yaml:"session"`
	Auth          AuthConfig         `yaml:"auth"`
	Prefs         PrefsConfig        `yaml:"prefs"`
	Notifications NotificationConfig `yaml:"notifications"`
	Push          PushConfig         `yaml:"push"`
	WorkerPool    WorkerPoolConfig   `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	TokenSecret     string  `yaml:"token_secret"`
	TokenTTLHours   int     `yaml:"token_ttl_hours"`
}

// StorageConfig selects where the JSON documents (users, sessions, registry...) live.
type StorageConfig struct {
	Backend                string `yaml:"backend"` // file, sqlite or postgres
	Dir                    string `yaml:"dir"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RemoteConfig describes the repository that holds the authoritative workbook.
type RemoteConfig struct {
	Kind           string `yaml:"kind"` // github or git
	Repository     string `yaml:"repository"`
	Branch         string `yaml:"branch"`
	Path           string `yaml:"path"`
	Token          string `yaml:"token"`
	APIBaseURL     string `yaml:"api_base_url"`
	RawBaseURL     string `yaml:"raw_base_url"`
	GitURL         string `yaml:"git_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WorkbookConfig holds the local copy settings.
type WorkbookConfig struct {
	LocalPath              string        `yaml:"local_path"`
	RefreshIntervalSeconds int           `yaml:"refresh_interval_seconds"`
	RefreshInterval        time.Duration `yaml:"-"`
}

// SessionConfig holds the session capacity policy.
type SessionConfig struct {
	MaxActive            int           `yaml:"max_active"`
	DurationMinutes      int           `yaml:"duration_minutes"`
	Duration             time.Duration `yaml:"-"`
	AdminUser            string        `yaml:"admin_user"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"`
}

// AuthConfig holds the bootstrap credentials.
type AuthConfig struct {
	DefaultAdminPassword string `yaml:"default_admin_password"`
}

// PrefsConfig caps the per-user preference stores.
type PrefsConfig struct {
	HistorySize      int `yaml:"history_size"`
	FavoritesPerUser int `yaml:"favorites_per_user"`
}

// NotificationConfig caps the notification log.
type NotificationConfig struct {
	MaxKept int `yaml:"max_kept"`
}

// Load reads the configuration from the given path and overlays CMMS_* environment variables.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	ApplyEnv(&cfg, viper.New())
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyEnv overrides secret and deployment values from the environment.
func ApplyEnv(cfg *Config, v *viper.Viper) {
	v.SetEnvPrefix("CMMS")
	v.AutomaticEnv()

	overrides := map[string]*string{
		"remote_token":      &cfg.Remote.Token,
		"remote_repository": &cfg.Remote.Repository,
		"remote_branch":     &cfg.Remote.Branch,
		"remote_path":       &cfg.Remote.Path,
		"remote_git_url":    &cfg.Remote.GitURL,
		"token_secret":      &cfg.Server.TokenSecret,
		"storage_dsn":       &cfg.Storage.DSN,
	}
	for key, dst := range overrides {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
}

// ApplyDefaults fills every unset value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.TokenTTLHours <= 0 {
		cfg.Server.TokenTTLHours = 24
	}
	if cfg.Server.TokenSecret == "" {
		log.Printf("server.token_secret is not set; using an insecure development secret")
		cfg.Server.TokenSecret = "cmms-dev-secret"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "./data"
	}

	if cfg.Remote.Kind == "" {
		cfg.Remote.Kind = "github"
	}
	if cfg.Remote.Branch == "" {
		cfg.Remote.Branch = "main"
	}
	if cfg.Remote.Path == "" {
		cfg.Remote.Path = "machines.xlsx"
	}
	if cfg.Remote.APIBaseURL == "" {
		cfg.Remote.APIBaseURL = "https://api.github.com"
	}
	if cfg.Remote.RawBaseURL == "" {
		cfg.Remote.RawBaseURL = "https://raw.githubusercontent.com"
	}
	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 30
	}

	if cfg.Workbook.LocalPath == "" {
		cfg.Workbook.LocalPath = "./data/machines.xlsx"
	}
	if cfg.Workbook.RefreshIntervalSeconds <= 0 {
		cfg.Workbook.RefreshIntervalSeconds = 300
	}
	cfg.Workbook.RefreshInterval = time.Duration(cfg.Workbook.RefreshIntervalSeconds) * time.Second

	if cfg.Session.MaxActive <= 0 {
		log.Printf("session.max_active is not set or invalid; defaulting to 5")
		cfg.Session.MaxActive = 5
	}
	if cfg.Session.DurationMinutes <= 0 {
		cfg.Session.DurationMinutes = 60
	}
	cfg.Session.Duration = time.Duration(cfg.Session.DurationMinutes) * time.Minute
	if cfg.Session.AdminUser == "" {
		cfg.Session.AdminUser = "admin"
	}
	if cfg.Session.SweepIntervalSeconds <= 0 {
		cfg.Session.SweepIntervalSeconds = 60
	}
	cfg.Session.SweepInterval = time.Duration(cfg.Session.SweepIntervalSeconds) * time.Second

	if cfg.Auth.DefaultAdminPassword == "" {
		cfg.Auth.DefaultAdminPassword = "admin123"
	}

	if cfg.Prefs.HistorySize <= 0 {
		cfg.Prefs.HistorySize = 20
	}
	if cfg.Prefs.FavoritesPerUser <= 0 {
		cfg.Prefs.FavoritesPerUser = 50
	}
	if cfg.Notifications.MaxKept <= 0 {
		cfg.Notifications.MaxKept = 500
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
