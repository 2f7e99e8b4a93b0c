// Package config loads service settings from configs/config.yml, environment
// variables prefixed IRRIGATION_ (dots become underscores) and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "IRRIGATION"

type Config struct {
	Port      string          `mapstructure:"port"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Poll      PollConfig      `mapstructure:"poll"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Location  LocationConfig  `mapstructure:"location"`
	Zones     ZonesConfig     `mapstructure:"zones"`
	Auth      AuthConfig      `mapstructure:"auth"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// BackendConfig points at the irrigation controller API.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ReconcileConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScheduleConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timezone        string        `mapstructure:"timezone"`
}

// LocationConfig is the GPS position used to resolve solar time codes.
type LocationConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lon float64 `mapstructure:"lon"`
}

// ZonesConfig.Count > 0 makes zones 1..Count always reconciled.
type ZonesConfig struct {
	Count int `mapstructure:"count"`
}

type AuthConfig struct {
	SigningKey string `mapstructure:"signing_key"`
}

// MQTTConfig enables publishing zone states when Server is set.
type MQTTConfig struct {
	Server      string `mapstructure:"server"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QOS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

var (
	errMissingBackend = errors.New("backend.base_url is required")
	errBadInterval    = errors.New("poll.interval and reconcile.timeout must be positive")
	errZoneCount      = errors.New("zones.count must not be negative")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("poll.interval", 5*time.Second)
	v.SetDefault("reconcile.timeout", 30*time.Second)
	v.SetDefault("schedule.refresh_interval", 10*time.Minute)
	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("mqtt.topic_prefix", "irrigation")
}

// Load reads configName (without extension) from the given search paths.
// A missing file is not an error; defaults and environment still apply.
func Load(configName string, paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errMissingBackend
	}
	if c.Poll.Interval <= 0 || c.Reconcile.Timeout <= 0 {
		return errBadInterval
	}
	if c.Zones.Count < 0 {
		return errZoneCount
	}
	return nil
}

// TimeLocation resolves schedule.timezone, falling back to the host zone.
func (c Config) TimeLocation() *time.Location {
	if c.Schedule.Timezone == "" || strings.EqualFold(c.Schedule.Timezone, "Local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
