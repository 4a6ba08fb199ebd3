// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/logging"
	"github.com/holomush/tasktrack/pkg/errutil"
)

// Codes produced by the transport itself.
const (
	CodeBadRequest   = "REQUEST_INVALID"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL"
)

func init() {
	auth.RegisterKind(CodeBadRequest, auth.KindValidation)
	auth.RegisterKind(CodeNotFound, auth.KindNotFound)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func badRequest(reason string) error {
	return oops.Code(CodeBadRequest).With("reason", reason).Errorf("malformed request: %s", reason)
}

// describe maps err to a status code and the detail the client may see.
// Authentication failures share generic messages so they reveal nothing
// about which check failed.
func describe(err error) (int, ErrorDetail) {
	code := errutil.Code(err)
	switch auth.KindOf(err) {
	case auth.KindValidation:
		return http.StatusBadRequest, ErrorDetail{Code: code, Message: err.Error(), Field: field(err)}
	case auth.KindConflict:
		return http.StatusConflict, ErrorDetail{Code: code, Message: err.Error(), Field: field(err)}
	case auth.KindAuthentication:
		switch code {
		case auth.CodeResetTokenInvalid:
			return http.StatusBadRequest, ErrorDetail{Code: code, Message: "invalid or expired token"}
		case auth.CodeInvalidCredentials:
			return http.StatusUnauthorized, ErrorDetail{Code: code, Message: "invalid username or password"}
		default:
			return http.StatusUnauthorized, ErrorDetail{Code: CodeUnauthorized, Message: "invalid or expired session token"}
		}
	case auth.KindNotFound:
		if code == "" || code == auth.CodeUserNotFound {
			code = CodeNotFound
		}
		return http.StatusNotFound, ErrorDetail{Code: code, Message: "not found"}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal server error"}
	}
}

func field(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	name, _ := oopsErr.Context()["field"].(string)
	return name
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	status, detail := describe(err)

	if status >= http.StatusInternalServerError {
		errutil.LogError(logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "status", status, "code", errutil.Code(err))
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="tasktrack"`)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: detail})
}
