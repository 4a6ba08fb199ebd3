// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/tasktrack/pkg/errutil"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ForgotPasswordMessage is the acknowledgment returned for every
// well-formed forgot-password request.
const ForgotPasswordMessage = "If the email exists, a reset link will be sent."

// AvatarUpload is a profile image supplied at registration.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// AvatarStore persists profile images.
type AvatarStore interface {
	// Validate rejects uploads the store will not accept.
	Validate(upload AvatarUpload) error
	// Save stores the upload and returns the generated file name.
	Save(ctx context.Context, upload AvatarUpload) (string, error)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Avatar   *AvatarUpload
}

// Session is the result of a successful registration or login.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      PublicProfile `json:"user"`
}

// ForgotResult is returned by ForgotPassword. DevResetLink is only set when
// dev reset links are enabled and the notifier failed.
type ForgotResult struct {
	Message      string `json:"message"`
	DevResetLink string `json:"dev_reset_link,omitempty"`
}

// ServiceConfig holds the tunables of Service.
type ServiceConfig struct {
	SessionTTL time.Duration
	ResetTTL   time.Duration
	// ResetBaseURL is the frontend origin that reset links are built on.
	ResetBaseURL string
	// DevResetLinks exposes the raw reset link when the notifier fails.
	// Never enable outside development.
	DevResetLinks bool
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = DefaultResetTokenTTL
	}
	return c
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithAvatarStore enables profile image uploads at registration.
func WithAvatarStore(store AvatarStore) ServiceOption {
	return func(s *Service) {
		s.avatars = store
	}
}

// WithServiceClock overrides the time source used for reset token expiry.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates registration, login and the password reset flow.
type Service struct {
	users    UserDirectory
	hasher   PasswordHasher
	tokens   *TokenCodec
	notifier Notifier
	avatars  AvatarStore
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service that logs to slog.Default().
func NewService(users UserDirectory, hasher PasswordHasher, tokens *TokenCodec, notifier Notifier, cfg ServiceConfig, opts ...ServiceOption) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, notifier, cfg, slog.Default(), opts...)
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(
	users UserDirectory,
	hasher PasswordHasher,
	tokens *TokenCodec,
	notifier Notifier,
	cfg ServiceConfig,
	logger *slog.Logger,
	opts ...ServiceOption,
) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Errorf("user directory is required")
	case hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case tokens == nil:
		return nil, oops.Errorf("token codec is required")
	case notifier == nil:
		return nil, oops.Errorf("notifier is required")
	case logger == nil:
		return nil, oops.Errorf("logger is required")
	}

	s := &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates the input, creates the user and returns a session for it.
// Uniqueness is checked up front for a precise error; the directory's
// constraint decides concurrent races.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	session, err := s.register(ctx, in)
	Registrations.WithLabelValues(statusFor(err)).Inc()
	return session, err
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Avatar != nil {
		if s.avatars == nil {
			return nil, oops.Code(CodeInvalidAvatar).
				With("field", "image").
				Errorf("profile image uploads are disabled")
		}
		if err := s.avatars.Validate(*in.Avatar); err != nil {
			return nil, err
		}
	}

	if err := s.ensureAvailable(ctx, in.Username, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code(CodeRegisterFailed).With("operation", "hash password").Wrap(errutil.Seal(err))
	}

	user, err := NewUser(in.Username, email, hash)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent registration may still win the race
		return nil, err
	}

	if in.Avatar != nil {
		s.attachAvatar(ctx, user, *in.Avatar)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return s.issueSession(user)
}

func (s *Service) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return oops.Code(CodeUsernameTaken).
			With("field", "username").
			Errorf("username already exists")
	} else if !errors.Is(err, ErrNotFound) {
		return oops.Code(CodeRegisterFailed).With("operation", "get user by username").Wrap(errutil.Seal(err))
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return oops.Code(CodeEmailTaken).
			With("field", "email").
			Errorf("email already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return oops.Code(CodeRegisterFailed).With("operation", "get user by email").Wrap(errutil.Seal(err))
	}
	return nil
}

// attachAvatar stores the profile image of a freshly created user. A failure
// leaves the account without an image rather than failing registration.
func (s *Service) attachAvatar(ctx context.Context, user *User, upload AvatarUpload) {
	name, err := s.avatars.Save(ctx, upload)
	if err != nil {
		errutil.LogWarn(ctx, s.logger, "profile image not stored", err,
			"user_id", user.ID.String(), "operation", "save_avatar")
		return
	}
	if err := s.users.SetProfileImage(ctx, user.ID, name); err != nil {
		errutil.LogWarn(ctx, s.logger, "profile image not recorded", err,
			"user_id", user.ID.String(), "operation", "set_profile_image")
		return
	}
	user.ProfileImage = &name
}

// Login verifies credentials and returns a new session. Unknown usernames and
// wrong passwords fail identically with CodeInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	session, err := s.login(ctx, username, password)
	Logins.WithLabelValues(statusFor(err)).Inc()
	return session, err
}

func (s *Service) login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" {
		return nil, oops.Code(CodeInvalidUsername).With("field", "username").Errorf("username is required")
	}
	if password == "" {
		return nil, oops.Code(CodeInvalidPassword).With("field", "password").Errorf("password is required")
	}

	user, lookupErr := s.users.GetByUsername(ctx, username)
	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		user = nil
	default:
		return nil, oops.Code(CodeLoginFailed).
			With("operation", "get user by username").
			Wrap(errutil.Seal(lookupErr))
	}

	// Always verify, even for unknown users, so both paths cost the same.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		errutil.LogWarn(ctx, s.logger, "password verification error", verifyErr, "operation", "verify_password")
		valid = false
	}
	if user == nil || !valid {
		return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return s.issueSession(user)
}

// upgradeHash re-hashes a verified password with current parameters.
// Best-effort: login succeeds even if the upgrade cannot be stored.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, newHash)
	}
	if err != nil {
		errutil.LogWarn(ctx, s.logger, "best-effort password hash upgrade failed", err,
			"user_id", user.ID.String(), "operation", "upgrade_hash")
		return
	}
	user.PasswordHash = newHash
}

func (s *Service) issueSession(user *User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

// ForgotPassword issues a reset token for the account registered under email
// and notifies its owner. The result is the same whether or not the email is
// registered, and a notifier failure does not fail the request.
func (s *Service) ForgotPassword(ctx context.Context, email string) (ForgotResult, error) {
	result, err := s.forgotPassword(ctx, email)
	PasswordResets.WithLabelValues(StageRequest, statusFor(err)).Inc()
	return result, err
}

func (s *Service) forgotPassword(ctx context.Context, email string) (ForgotResult, error) {
	result := ForgotResult{Message: ForgotPasswordMessage}

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return ForgotResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return result, nil
		}
		return ForgotResult{}, oops.Code(CodeResetRequestFailed).
			With("operation", "get user by email").
			Wrap(errutil.Seal(err))
	}

	token, err := GenerateResetToken()
	if err != nil {
		return ForgotResult{}, err
	}
	expiresAt := s.now().UTC().Add(s.cfg.ResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, HashResetToken(token), expiresAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			// deleted since the lookup: same answer as an unknown email
			return result, nil
		}
		return ForgotResult{}, oops.Code(CodeResetRequestFailed).
			With("operation", "set reset token").
			Wrap(errutil.Seal(err))
	}

	link := ResetLink(s.cfg.ResetBaseURL, token)
	if err := s.notifier.Send(ctx, NewResetMessage(user, link, s.cfg.ResetTTL)); err != nil {
		NotifyFailures.Inc()
		errutil.LogWarn(ctx, s.logger, "reset notification failed", err,
			"user_id", user.ID.String(), "operation", "send_reset_notification")
		if s.cfg.DevResetLinks {
			s.logger.WarnContext(ctx, "dev reset link", "user_id", user.ID.String(), "link", link)
			result.DevResetLink = link
		}
	}
	return result, nil
}

// ResetPassword sets a new password for the holder of a live reset token and
// consumes the token. Unknown, expired and already used tokens all fail with
// CodeResetTokenInvalid.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := s.resetPassword(ctx, token, newPassword)
	PasswordResets.WithLabelValues(StageConsume, statusFor(err)).Inc()
	return err
}

func (s *Service) resetPassword(ctx context.Context, token, newPassword string) error {
	invalid := oops.Code(CodeResetTokenInvalid).Errorf("invalid or expired token")
	if token == "" {
		return invalid
	}

	digest := HashResetToken(token)
	user, err := s.users.GetByResetToken(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid
		}
		return oops.Code(CodeResetPasswordFailed).
			With("operation", "get user by reset token").
			Wrap(errutil.Seal(err))
	}

	now := s.now().UTC()
	if !user.ResetTokenLive(token, now) {
		// Dead token: drop it so later lookups miss. Best-effort.
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			errutil.LogWarn(ctx, s.logger, "best-effort expired reset token cleanup failed", clearErr,
				"user_id", user.ID.String(), "operation", "clear_reset_token")
		}
		return invalid
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeResetPasswordFailed).With("operation", "hash password").Wrap(errutil.Seal(err))
	}

	if err := s.users.ConsumeResetToken(ctx, user.ID, digest, hash, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			// consumed or replaced concurrently
			return invalid
		}
		return oops.Code(CodeResetPasswordFailed).
			With("operation", "consume reset token").
			Wrap(errutil.Seal(err))
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID.String())
	return nil
}
