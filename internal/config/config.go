// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the service configuration from built-in defaults, an
// optional YAML file, a .env file, TASKTRACK_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load. Sections are
// separated by a double underscore: TASKTRACK_AUTH__SESSION_SECRET.
const EnvPrefix = "TASKTRACK_"

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Notify   NotifyConfig   `koanf:"notify"`
	Avatar   AvatarConfig   `koanf:"avatar"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// AuthConfig configures sessions and password resets.
type AuthConfig struct {
	SessionSecret string        `koanf:"session_secret"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	ResetTTL      time.Duration `koanf:"reset_ttl"`
	// ResetBaseURL is the web frontend origin. Emailed links open its
	// /reset-password/<token> page, which submits the new password to
	// POST /api/v1/auth/reset-password/{token}.
	ResetBaseURL  string        `koanf:"reset_base_url"`
	DevResetLinks bool          `koanf:"dev_reset_links"`
}

// NotifyConfig selects and configures the notifier.
type NotifyConfig struct {
	Kind string     `koanf:"kind"`
	From string     `koanf:"from"`
	SMTP SMTPConfig `koanf:"smtp"`
	AMQP AMQPConfig `koanf:"amqp"`
}

// SMTPConfig configures the SMTP notifier.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// AMQPConfig configures the queue notifier.
type AMQPConfig struct {
	URL   string `koanf:"url"`
	Queue string `koanf:"queue"`
}

// AvatarConfig selects and configures profile image storage.
type AvatarConfig struct {
	Kind     string   `koanf:"kind"`
	Dir      string   `koanf:"dir"`
	MaxBytes int64    `koanf:"max_bytes"`
	S3       S3Config `koanf:"s3"`
}

// S3Config configures the S3 avatar store.
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

var defaults = map[string]any{
	"http.addr":                ":8080",
	"http.read_timeout":        "15s",
	"http.write_timeout":       "15s",
	"metrics.addr":             "127.0.0.1:9100",
	"log.format":               "json",
	"log.level":                "info",
	"database.url":             "",
	"database.connect_timeout": "30s",
	"auth.session_secret":      "",
	"auth.session_ttl":         "1h",
	"auth.reset_ttl":           "30m",
	"auth.reset_base_url":      "http://localhost:3000",
	"auth.dev_reset_links":     false,
	"notify.kind":              "log",
	"notify.from":              "",
	"notify.smtp.host":         "",
	"notify.smtp.port":         587,
	"notify.smtp.username":     "",
	"notify.smtp.password":     "",
	"notify.amqp.url":          "",
	"notify.amqp.queue":        "tasktrack.email",
	"avatar.kind":              "none",
	"avatar.dir":               "uploads",
	"avatar.max_bytes":         2 << 20,
	"avatar.s3.bucket":         "",
	"avatar.s3.region":         "us-east-1",
	"avatar.s3.endpoint":       "",
	"avatar.s3.access_key":     "",
	"avatar.s3.secret_key":     "",
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"database-url": "database.url",
}

// RegisterFlags adds the configuration flags to fs. Unset flags do not
// override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", "", "API listen address")
	fs.String("metrics-addr", "", "metrics/health listen address (empty = disabled)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("database-url", "", "PostgreSQL connection URL")
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. A missing file is an error.
	ConfigFile string
	// EnvFile is an optional dotenv file. A missing file is ignored.
	EnvFile string
	// Flags holds parsed flags registered with RegisterFlags.
	Flags *pflag.FlagSet
	// Environ overrides os.Environ, for tests.
	Environ func() []string
}

// Load assembles the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.ConfigFile).Wrap(err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env_file", opts.EnvFile).Wrap(err)
		}
	}

	envOpt := env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Empty variables do not unset lower layers.
			if value == "" {
				return "", nil
			}
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
		},
		EnvironFunc: opts.Environ,
	}
	if err := k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	return &cfg, nil
}
