package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/openmined/syftvault/internal/utils"
	"github.com/spf13/viper"
)

const (
	EnvPrefix        = "SYFTVAULT"
	configName       = "config"
	configFileName   = configName + ".json"
	storeFileName    = "vault.db"
	lockFileName     = "vault.lock"
	logFileName      = "vault.log"
	DefaultLogLevel  = "info"
	DefaultServerURL = "http://127.0.0.1:8080"
)

var (
	home, _             = os.UserHomeDir()
	DefaultDataDir      = filepath.Join(home, ".syftvault")
	DefaultConfigPath   = filepath.Join(DefaultDataDir, configFileName)
	DefaultRetryLimit   = 10
	DefaultSyncInterval = 30 * time.Second
)

var (
	ErrInvalidUsername  = errors.New("invalid username")
	ErrInvalidServerURL = errors.New("invalid server url")
	ErrInvalidLogLevel  = errors.New("invalid log level")
)

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

type Config struct {
	DataDir   string     `json:"data_dir" mapstructure:"data_dir"`
	ServerURL string     `json:"server_url" mapstructure:"server_url"`
	Username  string     `json:"username" mapstructure:"username"`
	Sync      SyncConfig `json:"sync" mapstructure:"sync"`
	Log       LogConfig  `json:"log" mapstructure:"log"`
	Path      string     `json:"-" mapstructure:"-"`
}

type SyncConfig struct {
	RetryLimit int           `json:"retry_limit" mapstructure:"retry_limit"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
}

// MarshalJSON writes the interval as a duration string so the file stays editable
func (c SyncConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RetryLimit int    `json:"retry_limit"`
		Interval   string `json:"interval"`
	}{c.RetryLimit, c.Interval.String()})
}

type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// Validate normalizes paths and fills defaults for empty optional values
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dataDir

	if c.Path == "" {
		c.Path = filepath.Join(c.DataDir, configFileName)
	}
	if c.Path, err = utils.ResolvePath(c.Path); err != nil {
		return fmt.Errorf("config path: %w", err)
	}

	c.Username = strings.ToLower(strings.TrimSpace(c.Username))
	if !usernameRe.MatchString(c.Username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, c.Username)
	}

	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	if c.Sync.RetryLimit <= 0 {
		c.Sync.RetryLimit = DefaultRetryLimit
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = DefaultSyncInterval
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return nil
}

func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, storeFileName)
}

func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, lockFileName)
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", logFileName)
}

func (c *Config) Save() error {
	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.Path, data, 0o600)
}

// Load reads the config file at path (or the default location when empty),
// then environment variables with the SYFTVAULT_ prefix, then any flags
// already bound to v. The result is validated.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("username", "")
	v.SetDefault("sync.retry_limit", DefaultRetryLimit)
	v.SetDefault("sync.interval", DefaultSyncInterval)
	v.SetDefault("log.level", DefaultLogLevel)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDataDir)
		v.SetConfigName(configName)
	}
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	cfg.Path = v.ConfigFileUsed()
	if cfg.Path == "" {
		cfg.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
