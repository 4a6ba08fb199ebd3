// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/avatar"
	"github.com/holomush/tasktrack/internal/logging"
	"github.com/holomush/tasktrack/internal/notify"
)

// apiPathPrefix is where the HTTP API is mounted.
const apiPathPrefix = "/api/"

func invalid(key, reason string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", reason)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "listen address is required")
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatText {
		return invalid("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	return c.validateAvatar()
}

// ValidateDatabase checks only the settings needed to reach PostgreSQL.
func (c *Config) ValidateDatabase() error {
	return c.validateDatabase()
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database URL is required")
	}
	if c.Database.ConnectTimeout <= 0 {
		return invalid("database.connect_timeout", "must be positive")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if len(c.Auth.SessionSecret) < auth.MinSessionSecretLength {
		return invalid("auth.session_secret", "session secret is too short")
	}
	if c.Auth.SessionTTL <= 0 {
		return invalid("auth.session_ttl", "must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		return invalid("auth.reset_ttl", "must be positive")
	}
	u, err := url.Parse(c.Auth.ResetBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("auth.reset_base_url", "must be an absolute URL")
	}
	if strings.HasPrefix(u.Path, apiPathPrefix) {
		return invalid("auth.reset_base_url", "must point at the web frontend, not the API")
	}
	return nil
}

func (c *Config) validateNotify() error {
	switch c.Notify.Kind {
	case notify.KindLog:
	case notify.KindSMTP:
		if c.Notify.SMTP.Host == "" {
			return invalid("notify.smtp.host", "required for smtp notifier")
		}
		if c.Notify.From == "" {
			return invalid("notify.from", "required for smtp notifier")
		}
	case notify.KindAMQP:
		if c.Notify.AMQP.URL == "" {
			return invalid("notify.amqp.url", "required for amqp notifier")
		}
	default:
		return invalid("notify.kind", "must be log, smtp or amqp")
	}
	return nil
}

func (c *Config) validateAvatar() error {
	switch c.Avatar.Kind {
	case avatar.KindNone:
	case avatar.KindDisk:
		if c.Avatar.Dir == "" {
			return invalid("avatar.dir", "required for disk storage")
		}
	case avatar.KindS3:
		if c.Avatar.S3.Bucket == "" {
			return invalid("avatar.s3.bucket", "required for s3 storage")
		}
	default:
		return invalid("avatar.kind", "must be none, disk or s3")
	}
	if c.Avatar.MaxBytes <= 0 {
		return invalid("avatar.max_bytes", "must be positive")
	}
	return nil
}
