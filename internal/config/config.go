package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	App struct {
		BundleID string `mapstructure:"bundle_id"`
	} `mapstructure:"app"`

	Storage struct {
		Driver string `mapstructure:"driver"` // "sqlite" | "postgres" | "memory"
		Path   string `mapstructure:"path"`   // sqlite file

		Postgres struct {
			Host         string `mapstructure:"host"`
			Port         int    `mapstructure:"port"`
			User         string `mapstructure:"user"`
			Password     string `mapstructure:"password"`
			DBName       string `mapstructure:"db_name"`
			SSLMode      string `mapstructure:"ssl_mode"`
			MaxOpenConns int    `mapstructure:"max_open_conns"`
			MaxIdleConns int    `mapstructure:"max_idle_conns"`
		} `mapstructure:"postgres"`
	} `mapstructure:"storage"`

	Remote struct {
		Endpoint             string `mapstructure:"endpoint"`
		MinFetchIntervalSecs int    `mapstructure:"min_fetch_interval_seconds"`
	} `mapstructure:"remote"`

	Attribution struct {
		WatchdogSeconds int `mapstructure:"watchdog_seconds"`
	} `mapstructure:"attribution"`

	Device struct {
		AdID         string `mapstructure:"ad_id"`
		OneSignalID  string `mapstructure:"onesignal_id"`
		Notification string `mapstructure:"notification"` // "granted" | "denied"
		Tracking     string `mapstructure:"tracking"`     // "granted" | "denied"
	} `mapstructure:"device"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.App.BundleID == "" {
		c.App.BundleID = "com.batterycare.app"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/batterycare.db"
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = 5432
	}
	if c.Storage.Postgres.SSLMode == "" {
		c.Storage.Postgres.SSLMode = "disable"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Postgres.MaxIdleConns == 0 {
		c.Storage.Postgres.MaxIdleConns = 10
	}
	if c.Remote.MinFetchIntervalSecs <= 0 {
		c.Remote.MinFetchIntervalSecs = 500
	}
	if c.Attribution.WatchdogSeconds <= 0 {
		c.Attribution.WatchdogSeconds = 15
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Storage.Postgres.User,
		c.Storage.Postgres.Password,
		c.Storage.Postgres.Host,
		c.Storage.Postgres.Port,
		c.Storage.Postgres.DBName,
		c.Storage.Postgres.SSLMode,
	)
}

func (c Config) MinFetchInterval() time.Duration {
	return time.Duration(c.Remote.MinFetchIntervalSecs) * time.Second
}

func (c Config) Watchdog() time.Duration {
	return time.Duration(c.Attribution.WatchdogSeconds) * time.Second
}
