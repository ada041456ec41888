package model

import "time"

// User represents a registered account.
//
// WHY NO JSON TAGS?
// A User is never written to a response. PasswordHash in particular must not
// be serialized by accident, so the struct has no json tags at all.
//
// PasswordHash is whatever the configured hasher produced: a bcrypt string
// for new accounts, or a base64 SHA-256 digest for accounts imported from the
// legacy store. Accounts created through GitHub login get UnusablePassword.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UnusablePassword is stored for accounts that can only sign in through an
// external provider. No hasher produces it, so Verify always fails.
const UnusablePassword = "!"
