// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/logging"
)

// ResetSuccessMessage acknowledges a completed password reset.
const ResetSuccessMessage = "Password reset successful. You can login now."

// AuthService is the credential lifecycle used by the auth routes.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	ForgotPassword(ctx context.Context, email string) (auth.ForgotResult, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *registerRequest) bindForm(v url.Values) {
	req.Username = v.Get("username")
	req.Email = v.Get("email")
	req.Password = v.Get("password")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req *loginRequest) bindForm(v url.Values) {
	req.Username = v.Get("username")
	req.Password = v.Get("password")
}

type forgotRequest struct {
	Email string `json:"email"`
}

func (req *forgotRequest) bindForm(v url.Values) {
	req.Email = v.Get("email")
}

type resetRequest struct {
	Password string `json:"password"`
}

func (req *resetRequest) bindForm(v url.Values) {
	req.Password = v.Get("password")
}

// MessageResponse is a plain acknowledgment.
type MessageResponse struct {
	Message string `json:"message"`
}

type authHandlers struct {
	service   AuthService
	bodyLimit int64
}

func (h *authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, r, err)
		return
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logging.FromContext(r.Context()).WarnContext(r.Context(), "multipart cleanup failed", "error", err)
			}
		}()
	}

	in := auth.RegisterInput{Username: req.Username, Email: req.Email, Password: req.Password}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			writeError(w, r, badRequest("unreadable image part"))
			return
		default:
			defer func() { _ = file.Close() }()
			in.Avatar = &auth.AvatarUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Content:     file,
			}
		}
	}

	session, err := h.service.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, session)
}

func (h *authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, session)
}

func (h *authHandlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := decode(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (h *authHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(w, r, &req, h.bodyLimit); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: ResetSuccessMessage})
}

func me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, oops.Errorf("authenticated route without user"))
		return
	}
	render.JSON(w, r, user.Public())
}
