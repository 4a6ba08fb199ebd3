// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/holomush/tasktrack/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes produced by this package and its repositories.
const (
	CodeInvalidUsername    = "AUTH_INVALID_USERNAME"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
	CodeInvalidAvatar      = "AVATAR_INVALID"
	CodeUsernameTaken      = "AUTH_USERNAME_TAKEN"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeTokenMissing       = "SESSION_TOKEN_MISSING"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeNotifyFailed       = "NOTIFY_SEND_FAILED"
	CodeAvatarStoreFailed  = "AVATAR_STORE_FAILED"

	// Internal failures wrapping a sealed dependency error.
	CodeRegisterFailed        = "AUTH_REGISTER_FAILED"
	CodeLoginFailed           = "AUTH_LOGIN_FAILED"
	CodeResetRequestFailed    = "RESET_REQUEST_FAILED"
	CodeResetPasswordFailed   = "RESET_PASSWORD_FAILED"
	CodeSessionValidateFailed = "SESSION_VALIDATE_FAILED"
)

// Kind groups error codes by how a caller should react to them.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindNotFound
	KindDependency
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

var kindsByCode = map[string]Kind{}

// RegisterKind associates an error code with a kind so KindOf can classify
// it. Packages that define their own codes register them in init.
func RegisterKind(code string, kind Kind) {
	kindsByCode[code] = kind
}

func init() {
	for _, code := range []string{CodeInvalidUsername, CodeInvalidEmail, CodeInvalidPassword, CodeEmptyPassword, CodeInvalidAvatar} {
		RegisterKind(code, KindValidation)
	}
	RegisterKind(CodeUsernameTaken, KindConflict)
	RegisterKind(CodeEmailTaken, KindConflict)
	for _, code := range []string{CodeInvalidCredentials, CodeTokenMissing, CodeSessionInvalid, CodeSessionExpired, CodeResetTokenInvalid} {
		RegisterKind(code, KindAuthentication)
	}
	RegisterKind(CodeUserNotFound, KindNotFound)
	RegisterKind(CodeNotifyFailed, KindDependency)
	RegisterKind(CodeAvatarStoreFailed, KindDependency)
	for _, code := range []string{CodeRegisterFailed, CodeLoginFailed, CodeResetRequestFailed, CodeResetPasswordFailed, CodeSessionValidateFailed} {
		RegisterKind(code, KindInternal)
	}
}

// KindOf classifies err by its oops code. Errors without a registered code
// are KindInternal, except a bare ErrNotFound which is KindNotFound. Service
// failures seal their cause (errutil.Seal) so the outer code classifies.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if kind, ok := kindsByCode[errutil.Code(err)]; ok {
		return kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}
