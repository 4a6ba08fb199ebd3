// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package avatar stores profile images uploaded at registration.
package avatar

import (
	"context"
	"crypto/rand"
	"io"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/tasktrack/internal/auth"
)

// Store kinds accepted in configuration.
const (
	KindNone = "none"
	KindDisk = "disk"
	KindS3   = "s3"
)

// DefaultMaxBytes bounds an upload when no limit is configured.
const DefaultMaxBytes int64 = 2 << 20

const (
	namePrefix    = "pr_"
	nameRandomLen = 8
	nameAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var allowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Backend writes named objects.
type Backend interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) error
}

// Store applies the naming and size policy and writes uploads to a Backend.
type Store struct {
	backend  Backend
	maxBytes int64
}

var _ auth.AvatarStore = (*Store)(nil)

// NewStore creates a Store. maxBytes <= 0 uses DefaultMaxBytes.
func NewStore(backend Backend, maxBytes int64) (*Store, error) {
	if backend == nil {
		return nil, oops.Errorf("avatar backend is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{backend: backend, maxBytes: maxBytes}, nil
}

// Validate rejects uploads with an unsupported extension or a declared size
// outside (0, maxBytes].
func (s *Store) Validate(upload auth.AvatarUpload) error {
	if _, ok := allowedExtensions[extension(upload.Filename)]; !ok {
		return invalid().With("filename", upload.Filename).Errorf("unsupported image type")
	}
	if upload.Size <= 0 {
		return invalid().Errorf("image is empty")
	}
	if upload.Size > s.maxBytes {
		return invalid().
			With("max_bytes", s.maxBytes).
			With("size", upload.Size).
			Errorf("image exceeds %d bytes", s.maxBytes)
	}
	return nil
}

// Save stores the upload under a generated name and returns that name.
// Content beyond maxBytes is an error even if the declared size was smaller.
func (s *Store) Save(ctx context.Context, upload auth.AvatarUpload) (string, error) {
	if err := s.Validate(upload); err != nil {
		return "", err
	}
	if upload.Content == nil {
		return "", invalid().Errorf("image content is missing")
	}

	ext := extension(upload.Filename)
	name, err := GenerateName(ext)
	if err != nil {
		return "", err
	}

	body := &limitedReader{r: upload.Content, remaining: s.maxBytes}
	if err := s.backend.Put(ctx, name, allowedExtensions[ext], body); err != nil {
		return "", oops.Code(auth.CodeAvatarStoreFailed).With("name", name).Wrap(err)
	}
	return name, nil
}

// GenerateName returns "pr_" followed by eight random alphanumerics and ext.
func GenerateName(ext string) (string, error) {
	b := make([]byte, nameRandomLen)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code(auth.CodeAvatarStoreFailed).Wrap(err)
	}
	for i := range b {
		b[i] = nameAlphabet[int(b[i])%len(nameAlphabet)]
	}
	return namePrefix + string(b) + strings.ToLower(ext), nil
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func invalid() oops.OopsErrorBuilder {
	return oops.Code(auth.CodeInvalidAvatar).With("field", "image")
}

var errTooLarge = oops.Code(auth.CodeInvalidAvatar).With("field", "image").Errorf("image exceeds size limit")

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
