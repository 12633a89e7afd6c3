// Package config loads authd settings from YAML, .env files and the
// environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/obs"
	"github.com/MrEthical07/authcore/internal/pgdb"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	// RateLimit is the per-IP request rate on the auth routes.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Accounts struct {
	// DSN is a postgres:// URL or a SQLite file path.
	DSN string `mapstructure:"dsn"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Sentry struct {
	DSN string `mapstructure:"dsn"`
}

type Auth struct {
	// JWTSecret is the base64 HS256 key.
	JWTSecret        string        `mapstructure:"jwt_secret"`
	Issuer           string        `mapstructure:"issuer"`
	Audience         string        `mapstructure:"audience"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutWindow    time.Duration `mapstructure:"lockout_window"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
	ResetTTL         time.Duration `mapstructure:"reset_ttl"`
	ResetLimit       int           `mapstructure:"reset_limit"`
	ResetWindow      time.Duration `mapstructure:"reset_window"`
	ResetLinkBase    string        `mapstructure:"reset_link_base"`
	NodeID           int64         `mapstructure:"node_id"`
	PruneInterval    time.Duration `mapstructure:"prune_interval"`
}

type Config struct {
	App      App         `mapstructure:"app"`
	Server   Server      `mapstructure:"server"`
	DB       pgdb.Config `mapstructure:"db"`
	Redis    Redis       `mapstructure:"redis"`
	Kafka    Kafka       `mapstructure:"kafka"`
	Accounts Accounts    `mapstructure:"accounts"`
	OTEL     OTEL        `mapstructure:"otel"`
	Log      Log         `mapstructure:"log"`
	Sentry   Sentry      `mapstructure:"sentry"`
	Auth     Auth        `mapstructure:"auth"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

// Engine maps the Auth section onto an authcore.Config.
func (c *Config) Engine() (authcore.Config, error) {
	key, err := base64.StdEncoding.DecodeString(c.Auth.JWTSecret)
	if err != nil {
		return authcore.Config{}, fmt.Errorf("auth.jwt_secret: %w", err)
	}
	if len(key) < 32 {
		return authcore.Config{}, errors.New("auth.jwt_secret must decode to at least 32 bytes")
	}

	out := authcore.DefaultConfig()
	out.JWT.PrivateKey = key
	out.JWT.Issuer = c.Auth.Issuer
	out.JWT.Audience = c.Auth.Audience
	out.JWT.AccessTTL = c.Auth.AccessTTL
	out.Refresh.TTL = c.Auth.RefreshTTL
	out.Lockout.Threshold = c.Auth.LockoutThreshold
	out.Lockout.Window = c.Auth.LockoutWindow
	out.Lockout.Duration = c.Auth.LockoutDuration
	out.PasswordReset.TTL = c.Auth.ResetTTL
	out.PasswordReset.Limit = c.Auth.ResetLimit
	out.PasswordReset.Window = c.Auth.ResetWindow
	out.PasswordReset.LinkBase = c.Auth.ResetLinkBase
	if err := out.Validate(); err != nil {
		return authcore.Config{}, err
	}
	return out, nil
}
