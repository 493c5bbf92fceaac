// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

const argon2Prefix = "$argon2id$"

// legacyHashLen is the length of a hex-encoded SHA-256 digest.
const legacyHashLen = sha256.Size * 2

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored hash. Malformed or
	// unrecognized hashes never match.
	Verify(password, hash string) bool

	// NeedsUpgrade returns true if the hash should be replaced with argon2id.
	NeedsUpgrade(hash string) bool
}

// Hasher implements PasswordHasher with argon2id and verifies the legacy
// formats accounts may still carry: salted SHA-256 hex digests and bcrypt.
type Hasher struct {
	legacySecret string
}

// NewHasher creates a Hasher. legacySecret is the process-wide salt used by
// the SHA-256 scheme; when empty, legacy SHA-256 hashes never verify.
func NewHasher(legacySecret string) *Hasher {
	return &Hasher{legacySecret: legacySecret}
}

// Hash produces an argon2id hash of the password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against any supported hash format.
func (h *Hasher) Verify(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return verifyArgon2id(password, encodedHash)
	case isBcryptHash(encodedHash):
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	case isLegacyHash(encodedHash):
		return h.verifyLegacy(password, encodedHash)
	default:
		return false
	}
}

// NeedsUpgrade returns true for every hash that is not argon2id.
func (h *Hasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, argon2Prefix)
}

// LegacyHash computes the deprecated hex(sha256(password + secret)) digest.
// It exists so that imported accounts and tests can produce legacy hashes.
func (h *Hasher) LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password + h.legacySecret))
	return hex.EncodeToString(sum[:])
}

func (h *Hasher) verifyLegacy(password, encodedHash string) bool {
	if h.legacySecret == "" {
		return false
	}
	computed := h.LegacyHash(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(encodedHash))) == 1
}

func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	// Upper bounds on cost parameters read from storage.
	if threads == 0 || threads > 255 || time == 0 || time > 16 || memory == 0 || memory > 1<<20 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1024 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func isLegacyHash(hash string) bool {
	if len(hash) != legacyHashLen {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// Compile-time interface check.
var _ PasswordHasher = (*Hasher)(nil)
