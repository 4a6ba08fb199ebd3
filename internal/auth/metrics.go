// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for auth metrics.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Reset stages for the password reset counter.
const (
	StageRequest = "request"
	StageConsume = "consume"
)

// Registrations counts registration attempts by status.
var Registrations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasktrack_auth_registrations_total",
		Help: "Total number of registration attempts",
	},
	[]string{"status"},
)

// Logins counts login attempts by status.
var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasktrack_auth_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"status"},
)

// PasswordResets counts forgot-password requests and reset attempts.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasktrack_auth_password_resets_total",
		Help: "Total number of password reset requests and completions",
	},
	[]string{"stage", "status"},
)

// NotifyFailures counts reset notifications that could not be delivered.
var NotifyFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tasktrack_auth_notify_failures_total",
		Help: "Total number of password reset notifications that failed to send",
	},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Registrations)
	reg.MustRegister(Logins)
	reg.MustRegister(PasswordResets)
	reg.MustRegister(NotifyFailures)
}

func statusFor(err error) string {
	if err == nil {
		return StatusSuccess
	}
	switch KindOf(err) {
	case KindValidation, KindConflict, KindAuthentication:
		return StatusRejected
	default:
		return StatusError
	}
}
