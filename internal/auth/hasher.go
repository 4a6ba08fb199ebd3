// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// Legacy digests written by the previous deployment look like
// $pbkdf2-sha256$<rounds>$<salt>$<checksum> with "." standing in for "+".
const (
	legacyPBKDF2Prefix    = "$pbkdf2-sha256$"
	legacyPBKDF2KeyLen    = 32
	legacyPBKDF2MaxRounds = 10_000_000
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way digest of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. A malformed or
	// unsupported digest is a mismatch, not an error.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade reports whether digest should be replaced by a fresh Hash.
	NeedsUpgrade(digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. It can also verify
// legacy PBKDF2-SHA256 digests so imported accounts keep working until their
// next successful login upgrades them.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(password, digest), nil
	case strings.HasPrefix(digest, legacyPBKDF2Prefix):
		return verifyLegacyPBKDF2(password, digest), nil
	default:
		return false, nil
	}
}

// NeedsUpgrade returns true unless digest is argon2id with the current parameters.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	params, ok := parseArgon2id(digest)
	if !ok {
		return true
	}
	return params.memory != argon2Memory ||
		params.time != argon2Time ||
		params.threads != argon2Threads ||
		len(params.key) != argon2KeyLen
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(digest string) (argon2Params, bool) {
	var p argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, false
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return p, false
	}
	// threads must fit in uint8 and every cost parameter must be non-zero
	if threads == 0 || threads > 255 || p.memory == 0 || p.time == 0 {
		return p, false
	}
	p.threads = uint8(threads)

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, false
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, false
	}
	if len(p.key) == 0 || len(p.key) > 1<<10 {
		return p, false
	}
	return p, true
}

func verifyArgon2id(password, digest string) bool {
	p, ok := parseArgon2id(digest)
	if !ok {
		return false
	}
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

func verifyLegacyPBKDF2(password, digest string) bool {
	parts := strings.Split(strings.TrimPrefix(digest, legacyPBKDF2Prefix), "$")
	if len(parts) != 3 {
		return false
	}

	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds <= 0 || rounds > legacyPBKDF2MaxRounds {
		return false
	}
	salt, err := decodeAdaptedBase64(parts[1])
	if err != nil {
		return false
	}
	expected, err := decodeAdaptedBase64(parts[2])
	if err != nil || len(expected) != legacyPBKDF2KeyLen {
		return false
	}

	computed := pbkdf2.Key([]byte(password), salt, rounds, legacyPBKDF2KeyLen, sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// decodeAdaptedBase64 decodes unpadded base64 that uses "." in place of "+".
func decodeAdaptedBase64(s string) ([]byte, error) {
	b, err := base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	return b, nil
}
