// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the account and credential lifecycle of tasktrack.
//
// # Primitives
//
//   - PasswordHasher / Argon2idHasher - salted argon2id digests, legacy PBKDF2 verification
//   - TokenCodec - signed, stateless session tokens (HS256)
//   - GenerateResetToken / HashResetToken - opaque single-use reset tokens
//
// # Domain Types
//
// User should be created with NewUser, which validates the username and
// email and assigns an ID. UserDirectory implementations enforce username
// and email uniqueness in storage and receive pre-validated users.
//
// # Services
//
//   - Service - registration, login, forgot-password and reset-password
//   - Guard - resolves the bearer token of a protected request to a User
//
// Constructors validate their dependencies and return an error when one is nil.
//
// # Errors
//
// Every error returned to callers carries an oops code. KindOf groups the
// codes into validation, conflict, authentication, not found and dependency
// failures so transports can render them without inspecting messages.
package auth
