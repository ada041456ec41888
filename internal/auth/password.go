// Package auth provides password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness is a security feature: it makes brute-force attacks expensive.
//
// bcrypt automatically:
//   - Generates a random salt (so two users with the same password get different hashes)
//   - Embeds the salt in the output hash (no separate salt column needed)
//   - Controls the work factor via "cost" (higher = slower = harder to crack)
//
// THE LEGACY SCHEME:
// Accounts migrated from the previous deployment were stored as
// base64(SHA-256(password)) with no salt. LegacySHA256Hasher can still verify
// (and, if configured, produce) those hashes. It is weak: identical passwords
// produce identical hashes and a GPU cracks SHA-256 quickly. Select it only
// with PASSWORD_SCHEME=sha256, and expect a warning at startup.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Supported values for PASSWORD_SCHEME.
const (
	SchemeBcrypt = "bcrypt"
	SchemeSHA256 = "sha256"
)

// defaultCost is the bcrypt work factor.
//
// Cost 12 takes roughly ~250ms on a modern server.
// Set cost so that hashing takes ~200–300ms on your production hardware.
const defaultCost = 12

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordHasher hashes new passwords and checks candidates against stored hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// NewPasswordHasher returns the hasher for scheme. A cost of 0 means the
// default bcrypt cost; it is ignored by the sha256 scheme.
func NewPasswordHasher(scheme string, cost int) (PasswordHasher, error) {
	switch scheme {
	case SchemeBcrypt, "":
		if cost == 0 {
			cost = defaultCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		return NewBcryptHasher(cost), nil
	case SchemeSHA256:
		return LegacySHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("auth: unknown password scheme %q", scheme)
	}
}

// BcryptHasher provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests, using a lower cost (e.g. 4) makes tests run much faster
// without compromising the logic being tested.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the given cost.
// Tests in other packages pass bcrypt.MinCost (4); production uses 12.
func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// Returns an error if the plaintext is too long (>72 bytes, a bcrypt limit).
func (p *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates passwords longer than 72 bytes.
		// We reject them explicitly so callers aren't surprised.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// bcrypt.CompareHashAndPassword uses a constant-time comparison internally.
func (p *BcryptHasher) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// LegacySHA256Hasher reproduces the unsalted base64(SHA-256) format of the
// previous deployment. See the package comment before choosing it.
type LegacySHA256Hasher struct{}

func (LegacySHA256Hasher) Hash(plaintext string) (string, error) {
	sum := sha256.Sum256([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func (h LegacySHA256Hasher) Verify(hash, plaintext string) error {
	candidate, _ := h.Hash(plaintext)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
