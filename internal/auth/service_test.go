// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/tasktrack/internal/auth"
	"github.com/holomush/tasktrack/internal/auth/authtest"
	"github.com/holomush/tasktrack/pkg/errutil"
)

const legacySecret1Digest = "$pbkdf2-sha256$29000$AAECAwQFBgcICQoLDA0ODw$nH4z7E1EQNQnVWohkyKb2ZnO2XILmy2bsdrWPUqnGoM"

type harness struct {
	svc      *auth.Service
	users    *authtest.Directory
	notifier *authtest.Notifier
	codec    *auth.TokenCodec
	clock    *fakeClock
}

func newHarness(t *testing.T, cfg auth.ServiceConfig, opts ...auth.ServiceOption) *harness {
	t.Helper()
	clock := newClock()
	codec, err := auth.NewTokenCodec(testSecret, auth.WithClock(clock.Now))
	require.NoError(t, err)

	h := &harness{
		users:    authtest.NewDirectory(),
		notifier: &authtest.Notifier{},
		codec:    codec,
		clock:    clock,
	}
	if cfg.ResetBaseURL == "" {
		cfg.ResetBaseURL = "http://localhost:8080"
	}
	opts = append([]auth.ServiceOption{auth.WithServiceClock(clock.Now)}, opts...)
	h.svc, err = auth.NewService(h.users, auth.NewArgon2idHasher(), codec, h.notifier, cfg, opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) register(t *testing.T, username, email, password string) *auth.Session {
	t.Helper()
	session, err := h.svc.Register(context.Background(), auth.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return session
}

// lastResetToken extracts the raw token from the most recent reset message.
func (h *harness) lastResetToken(t *testing.T) string {
	t.Helper()
	msg, ok := h.notifier.Last()
	require.True(t, ok, "expected a reset message")
	_, rest, found := strings.Cut(msg.Body, auth.ResetPathPrefix)
	require.True(t, found, "message must carry a reset link")
	token, _, _ := strings.Cut(rest, "\n")
	return token
}

func TestNewService_RequiresDependencies(t *testing.T) {
	codec, err := auth.NewTokenCodec(testSecret)
	require.NoError(t, err)
	users := authtest.NewDirectory()
	hasher := auth.NewArgon2idHasher()
	notifier := &authtest.Notifier{}

	tests := []struct {
		name    string
		build   func() (*auth.Service, error)
		message string
	}{
		{
			name:    "users",
			build:   func() (*auth.Service, error) { return auth.NewService(nil, hasher, codec, notifier, auth.ServiceConfig{}) },
			message: "user directory is required",
		},
		{
			name:    "hasher",
			build:   func() (*auth.Service, error) { return auth.NewService(users, nil, codec, notifier, auth.ServiceConfig{}) },
			message: "password hasher is required",
		},
		{
			name:    "codec",
			build:   func() (*auth.Service, error) { return auth.NewService(users, hasher, nil, notifier, auth.ServiceConfig{}) },
			message: "token codec is required",
		},
		{
			name:    "notifier",
			build:   func() (*auth.Service, error) { return auth.NewService(users, hasher, codec, nil, auth.ServiceConfig{}) },
			message: "notifier is required",
		},
		{
			name: "logger",
			build: func() (*auth.Service, error) {
				return auth.NewServiceWithLogger(users, hasher, codec, notifier, auth.ServiceConfig{}, nil)
			},
			message: "logger is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build()
			assert.Nil(t, svc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestService_AliceLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, auth.ServiceConfig{})

	registered := h.register(t, "alice", "alice@x.com", "secret1")
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.User.Username)
	assert.Equal(t, h.clock.now.Add(time.Hour), registered.ExpiresAt)

	session, err := h.svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	userID, err := h.codec.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, userID.String())

	result, err := h.svc.ForgotPassword(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.ForgotPasswordMessage, result.Message)
	assert.Empty(t, result.DevResetLink)
	token := h.lastResetToken(t)

	h.clock.Advance(10 * time.Minute)
	require.NoError(t, h.svc.ResetPassword(ctx, token, "newpass1"))

	_, err = h.svc.Login(ctx, "alice", "secret1")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

	_, err = h.svc.Login(ctx, "alice", "newpass1")
	require.NoError(t, err)

	err = h.svc.ResetPassword(ctx, token, "another1")
	errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)

	stored, err := h.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, stored.ResetToken)
	assert.Nil(t, stored.TokenExpiry)
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes email and hashes password", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		session := h.register(t, "alice", " Alice@X.com ", "secret1")
		assert.Equal(t, "alice@x.com", session.User.Email)

		stored, err := h.users.GetByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
		assert.NotContains(t, stored.PasswordHash, "secret1")
	})

	t.Run("validation failures", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		tests := []struct {
			name  string
			input auth.RegisterInput
			code  string
			field string
		}{
			{name: "short username", input: auth.RegisterInput{Username: "al", Email: "a@x.com", Password: "secret1"}, code: auth.CodeInvalidUsername, field: "username"},
			{name: "bad email", input: auth.RegisterInput{Username: "alice", Email: "nope", Password: "secret1"}, code: auth.CodeInvalidEmail, field: "email"},
			{name: "short password", input: auth.RegisterInput{Username: "alice", Email: "a@x.com", Password: "five5"}, code: auth.CodeInvalidPassword, field: "password"},
			{
				name:  "avatar without store",
				input: auth.RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1", Avatar: &auth.AvatarUpload{Filename: "me.png"}},
				code:  auth.CodeInvalidAvatar,
				field: "image",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				session, err := h.svc.Register(ctx, tt.input)
				assert.Nil(t, session)
				errutil.AssertErrorCode(t, err, tt.code)
				errutil.AssertErrorContext(t, err, "field", tt.field)
				assert.Equal(t, auth.KindValidation, auth.KindOf(err))
			})
		}
		assert.Equal(t, 0, h.users.Len())
	})

	t.Run("duplicate username", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		h.register(t, "alice", "alice@x.com", "secret1")

		_, err := h.svc.Register(ctx, auth.RegisterInput{Username: "alice", Email: "other@x.com", Password: "secret1"})
		errutil.AssertErrorCode(t, err, auth.CodeUsernameTaken)
		errutil.AssertErrorContext(t, err, "field", "username")
		assert.Equal(t, auth.KindConflict, auth.KindOf(err))
	})

	t.Run("duplicate email differs only in case", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		h.register(t, "alice", "alice@x.com", "secret1")

		_, err := h.svc.Register(ctx, auth.RegisterInput{Username: "alice2", Email: "ALICE@x.com", Password: "secret1"})
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
		errutil.AssertErrorContext(t, err, "field", "email")
		assert.Equal(t, 1, h.users.Len())
	})

	t.Run("storage failure on lookup", func(t *testing.T) {
		users := authtest.NewMockUserDirectory(t)
		users.On("GetByUsername", mock.Anything, "alice").Return(nil, errors.New("db down"))
		codec, err := auth.NewTokenCodec(testSecret)
		require.NoError(t, err)
		svc, err := auth.NewService(users, auth.NewArgon2idHasher(), codec, &authtest.Notifier{}, auth.ServiceConfig{})
		require.NoError(t, err)

		_, err = svc.Register(ctx, auth.RegisterInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}

func TestService_Register_ConcurrentDuplicates(t *testing.T) {
	h := newHarness(t, auth.ServiceConfig{})

	const attempts = 2
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Register(context.Background(), auth.RegisterInput{
				Username: "alice",
				Email:    "alice@x.com",
				Password: "secret1",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case auth.KindOf(err) == auth.KindConflict:
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 1, h.users.Len())
}

type stubAvatarStore struct {
	validateErr error
	saveErr     error
	saved       []string
}

func (s *stubAvatarStore) Validate(upload auth.AvatarUpload) error {
	if s.validateErr != nil {
		return s.validateErr
	}
	if !strings.HasSuffix(upload.Filename, ".png") {
		return oops.Code(auth.CodeInvalidAvatar).With("field", "image").Errorf("unsupported image type")
	}
	return nil
}

func (s *stubAvatarStore) Save(_ context.Context, _ auth.AvatarUpload) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	name := "pr_abcd1234.png"
	s.saved = append(s.saved, name)
	return name, nil
}

func TestService_Register_Avatar(t *testing.T) {
	ctx := context.Background()
	upload := func(name string) *auth.AvatarUpload {
		return &auth.AvatarUpload{Filename: name, Size: 4, Content: bytes.NewReader([]byte("\x89PNG"))}
	}

	t.Run("stores avatar and records name", func(t *testing.T) {
		store := &stubAvatarStore{}
		h := newHarness(t, auth.ServiceConfig{}, auth.WithAvatarStore(store))

		session, err := h.svc.Register(ctx, auth.RegisterInput{
			Username: "alice", Email: "alice@x.com", Password: "secret1", Avatar: upload("me.png"),
		})
		require.NoError(t, err)
		require.NotNil(t, session.User.ProfileImage)
		assert.Equal(t, "pr_abcd1234.png", *session.User.ProfileImage)

		stored, err := h.users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, stored.ProfileImage)
		assert.Equal(t, "pr_abcd1234.png", *stored.ProfileImage)
	})

	t.Run("rejected avatar creates no user", func(t *testing.T) {
		store := &stubAvatarStore{}
		h := newHarness(t, auth.ServiceConfig{}, auth.WithAvatarStore(store))

		_, err := h.svc.Register(ctx, auth.RegisterInput{
			Username: "alice", Email: "alice@x.com", Password: "secret1", Avatar: upload("me.exe"),
		})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidAvatar)
		assert.Equal(t, 0, h.users.Len())
		assert.Empty(t, store.saved)
	})

	t.Run("save failure keeps registration", func(t *testing.T) {
		store := &stubAvatarStore{saveErr: errors.New("disk full")}
		h := newHarness(t, auth.ServiceConfig{}, auth.WithAvatarStore(store))

		session, err := h.svc.Register(ctx, auth.RegisterInput{
			Username: "alice", Email: "alice@x.com", Password: "secret1", Avatar: upload("me.png"),
		})
		require.NoError(t, err)
		assert.Nil(t, session.User.ProfileImage)
		assert.Equal(t, 1, h.users.Len())
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, auth.ServiceConfig{})
	h.register(t, "alice", "alice@x.com", "secret1")

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		_, unknownErr := h.svc.Login(ctx, "mallory", "secret1")
		_, wrongErr := h.svc.Login(ctx, "alice", "wrong-password")

		errutil.AssertErrorCode(t, unknownErr, auth.CodeInvalidCredentials)
		errutil.AssertErrorCode(t, wrongErr, auth.CodeInvalidCredentials)

		var unknownOops, wrongOops oops.OopsError
		require.True(t, errors.As(unknownErr, &unknownOops))
		require.True(t, errors.As(wrongErr, &wrongOops))
		assert.Equal(t, unknownOops.Error(), wrongOops.Error())
		assert.Empty(t, unknownOops.Context())
		assert.Empty(t, wrongOops.Context())
		errutil.AssertNoSecret(t, wrongErr, "wrong-password", "alice")
	})

	t.Run("missing fields are validation errors", func(t *testing.T) {
		_, err := h.svc.Login(ctx, "", "secret1")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidUsername)
		_, err = h.svc.Login(ctx, "alice", "")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidPassword)
	})

	t.Run("username is case sensitive", func(t *testing.T) {
		_, err := h.svc.Login(ctx, "Alice", "secret1")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("each login issues a verifiable token", func(t *testing.T) {
		session, err := h.svc.Login(ctx, "alice", "secret1")
		require.NoError(t, err)
		_, err = h.codec.Verify(session.Token)
		assert.NoError(t, err)
	})
}

func TestService_Login_UpgradesLegacyHash(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, auth.ServiceConfig{})

	user, err := auth.NewUser("legacy", "legacy@x.com", legacySecret1Digest)
	require.NoError(t, err)
	require.NoError(t, h.users.Create(ctx, user))

	_, err = h.svc.Login(ctx, "legacy", "secret1")
	require.NoError(t, err)

	stored, err := h.users.GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	// the upgraded hash still verifies
	_, err = h.svc.Login(ctx, "legacy", "secret1")
	require.NoError(t, err)
}

func TestService_ForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("registered and unregistered emails look the same", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		h.register(t, "alice", "alice@x.com", "secret1")

		known, err := h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		unknown, err := h.svc.ForgotPassword(ctx, "nobody@x.com")
		require.NoError(t, err)

		assert.Equal(t, known, unknown)
		assert.Len(t, h.notifier.Messages(), 1)
	})

	t.Run("stores digest with expiry", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{ResetTTL: 15 * time.Minute})
		h.register(t, "alice", "alice@x.com", "secret1")

		_, err := h.svc.ForgotPassword(ctx, "ALICE@x.com")
		require.NoError(t, err)
		token := h.lastResetToken(t)

		stored, err := h.users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, stored.ResetToken)
		require.NotNil(t, stored.TokenExpiry)
		assert.Equal(t, auth.HashResetToken(token), *stored.ResetToken)
		assert.NotEqual(t, token, *stored.ResetToken)
		assert.Equal(t, h.clock.now.Add(15*time.Minute), *stored.TokenExpiry)

		msg, _ := h.notifier.Last()
		assert.Equal(t, "alice@x.com", msg.To)
		assert.Contains(t, msg.Body, "http://localhost:8080/reset-password/"+token)
		assert.Contains(t, msg.Body, "valid for 15 minutes")
	})

	t.Run("malformed email is rejected", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		_, err := h.svc.ForgotPassword(ctx, "not-an-email")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)
	})

	t.Run("new request replaces previous token", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		h.register(t, "alice", "alice@x.com", "secret1")

		_, err := h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		first := h.lastResetToken(t)
		_, err = h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		second := h.lastResetToken(t)
		require.NotEqual(t, first, second)

		errutil.AssertErrorCode(t, h.svc.ResetPassword(ctx, first, "newpass1"), auth.CodeResetTokenInvalid)
		assert.NoError(t, h.svc.ResetPassword(ctx, second, "newpass1"))
	})

	t.Run("notifier failure is swallowed", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		h.register(t, "alice", "alice@x.com", "secret1")
		h.notifier.Err = errors.New("smtp unreachable")
		before := testutil.ToFloat64(auth.NotifyFailures)

		result, err := h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, auth.ForgotPasswordMessage, result.Message)
		assert.Empty(t, result.DevResetLink)
		assert.Equal(t, before+1, testutil.ToFloat64(auth.NotifyFailures))

		stored, err := h.users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.NotNil(t, stored.ResetToken, "token is still issued")
	})

	t.Run("dev reset link exposed on notifier failure", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{DevResetLinks: true})
		h.register(t, "alice", "alice@x.com", "secret1")
		h.notifier.Err = errors.New("smtp unreachable")

		result, err := h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(result.DevResetLink, "http://localhost:8080/reset-password/"))

		token := strings.TrimPrefix(result.DevResetLink, "http://localhost:8080/reset-password/")
		assert.NoError(t, h.svc.ResetPassword(ctx, token, "newpass1"))
	})

	t.Run("dev reset link hidden when delivery works", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{DevResetLinks: true})
		h.register(t, "alice", "alice@x.com", "secret1")

		result, err := h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Empty(t, result.DevResetLink)
	})

	t.Run("storage failure", func(t *testing.T) {
		users := authtest.NewMockUserDirectory(t)
		users.On("GetByEmail", mock.Anything, "alice@x.com").Return(nil, errors.New("db down"))
		codec, err := auth.NewTokenCodec(testSecret)
		require.NoError(t, err)
		svc, err := auth.NewService(users, auth.NewArgon2idHasher(), codec, &authtest.Notifier{}, auth.ServiceConfig{})
		require.NoError(t, err)

		_, err = svc.ForgotPassword(ctx, "alice@x.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
	})

	t.Run("user deleted before the token is stored", func(t *testing.T) {
		user, err := auth.NewUser("alice", "alice@x.com", "hash")
		require.NoError(t, err)
		users := authtest.NewMockUserDirectory(t)
		users.On("GetByEmail", mock.Anything, "alice@x.com").Return(user, nil)
		users.On("SetResetToken", mock.Anything, user.ID, mock.Anything, mock.Anything).
			Return(oops.Code(auth.CodeUserNotFound).Wrap(auth.ErrNotFound))
		notifier := &authtest.Notifier{}
		codec, err := auth.NewTokenCodec(testSecret)
		require.NoError(t, err)
		svc, err := auth.NewService(users, auth.NewArgon2idHasher(), codec, notifier, auth.ServiceConfig{})
		require.NoError(t, err)

		result, err := svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, auth.ForgotPasswordMessage, result.Message)
		assert.Empty(t, notifier.Messages())
	})

	t.Run("coded storage failure stays internal", func(t *testing.T) {
		users := authtest.NewMockUserDirectory(t)
		users.On("GetByEmail", mock.Anything, "alice@x.com").
			Return(nil, oops.Code(auth.CodeUserNotFound).Errorf("replica lagging"))
		codec, err := auth.NewTokenCodec(testSecret)
		require.NoError(t, err)
		svc, err := auth.NewService(users, auth.NewArgon2idHasher(), codec, &authtest.Notifier{}, auth.ServiceConfig{})
		require.NoError(t, err)

		_, err = svc.ForgotPassword(ctx, "alice@x.com")
		errutil.AssertErrorCode(t, err, auth.CodeResetRequestFailed)
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, h *harness) string {
		t.Helper()
		h.register(t, "alice", "alice@x.com", "secret1")
		_, err := h.svc.ForgotPassword(ctx, "alice@x.com")
		require.NoError(t, err)
		return h.lastResetToken(t)
	}

	t.Run("unknown token", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		issue(t, h)
		errutil.AssertErrorCode(t, h.svc.ResetPassword(ctx, "made-up", "newpass1"), auth.CodeResetTokenInvalid)
		errutil.AssertErrorCode(t, h.svc.ResetPassword(ctx, "", "newpass1"), auth.CodeResetTokenInvalid)
	})

	t.Run("expired token is rejected and cleared", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		token := issue(t, h)
		h.clock.Advance(auth.DefaultResetTokenTTL + time.Second)

		err := h.svc.ResetPassword(ctx, token, "newpass1")
		errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)

		stored, err := h.users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, stored.ResetToken)
		assert.Nil(t, stored.TokenExpiry)

		_, err = h.svc.Login(ctx, "alice", "secret1")
		assert.NoError(t, err, "old password still works")
	})

	t.Run("token live just before expiry", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		token := issue(t, h)
		h.clock.Advance(auth.DefaultResetTokenTTL - time.Second)
		assert.NoError(t, h.svc.ResetPassword(ctx, token, "newpass1"))
	})

	t.Run("weak password keeps token usable", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		token := issue(t, h)

		err := h.svc.ResetPassword(ctx, token, "short")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidPassword)

		assert.NoError(t, h.svc.ResetPassword(ctx, token, "newpass1"))
	})

	t.Run("concurrent consumers succeed once", func(t *testing.T) {
		h := newHarness(t, auth.ServiceConfig{})
		token := issue(t, h)

		const attempts = 4
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := range attempts {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = h.svc.ResetPassword(ctx, token, "newpass1")
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("storage failure on consume", func(t *testing.T) {
		users := authtest.NewMockUserDirectory(t)
		user, err := auth.NewUser("alice", "alice@x.com", "$argon2id$old")
		require.NoError(t, err)
		digest := auth.HashResetToken("tok")
		expiry := time.Now().Add(time.Hour)
		user.ResetToken = &digest
		user.TokenExpiry = &expiry

		users.On("GetByResetToken", mock.Anything, digest).Return(user, nil)
		users.On("ConsumeResetToken", mock.Anything, user.ID, digest, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
			Return(errors.New("db down"))

		codec, err := auth.NewTokenCodec(testSecret)
		require.NoError(t, err)
		svc, err := auth.NewService(users, auth.NewArgon2idHasher(), codec, &authtest.Notifier{}, auth.ServiceConfig{})
		require.NoError(t, err)

		err = svc.ResetPassword(ctx, "tok", "newpass1")
		errutil.AssertErrorCode(t, err, "RESET_PASSWORD_FAILED")
	})
}

func TestService_Metrics(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, auth.ServiceConfig{})
	h.register(t, "alice", "alice@x.com", "secret1")

	success := testutil.ToFloat64(auth.Logins.WithLabelValues(auth.StatusSuccess))
	rejected := testutil.ToFloat64(auth.Logins.WithLabelValues(auth.StatusRejected))

	_, err := h.svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, err = h.svc.Login(ctx, "alice", "nope-nope")
	require.Error(t, err)

	assert.Equal(t, success+1, testutil.ToFloat64(auth.Logins.WithLabelValues(auth.StatusSuccess)))
	assert.Equal(t, rejected+1, testutil.ToFloat64(auth.Logins.WithLabelValues(auth.StatusRejected)))
}
