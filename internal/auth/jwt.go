// Package auth provides identity tokens, password hashing and the bearer
// middleware for the task-list API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client registers with POST /auth/register (email + password)
// 2. Client logs in with POST /auth/login and receives a signed token
// 3. Client sends "Authorization: Bearer <token>" on every /api call
// 4. RequireAuth validates the token and puts the Subject in the request
//    context; handlers pass Subject.UserID to the service as the caller
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"42","email":"ada@example.com","iss":...,"aud":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// Tokens are not persisted and cannot be revoked. They simply expire
// TokenLifetime after they were issued.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/tasklist/internal/apperror"
)

// TokenLifetime is how long an issued token stays valid.
const TokenLifetime = 2 * time.Hour

// invalidTokenMessage is the only message clients ever see for a bad token.
// Expired, tampered and wrong-audience tokens all look the same from outside.
const invalidTokenMessage = "valid authentication required"

// Subject is the identity carried by a validated token.
type Subject struct {
	UserID int64
	Email  string
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens, plus the
// issuer and audience every token must carry.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now. Tests use it to move past the expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService with the given secret, issuer and audience.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret, issuer, audience string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("auth: JWT issuer and audience are required")
	}

	s := &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// standard fields like Issuer, Subject, Audience, ExpiresAt, IssuedAt.
//
// "sub" holds the numeric user ID in decimal form. Email rides along as a
// private claim so clients can show who is signed in without another call.
type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate creates and signs a token for the given user.
// It returns the signed string and the moment it stops being valid.
func (s *TokenService) Generate(userID int64, email string) (string, time.Time, error) {
	return s.generate(userID, email, TokenLifetime)
}

func (s *TokenService) generate(userID int64, email string, ttl time.Duration) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, fmt.Errorf("auth: invalid user id %d", userID)
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        xid.New().String(),
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate parses and verifies a JWT string and returns its Subject.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS confusion)
//   - Token is not expired, and carries an expiry at all
//   - Issuer and audience match this service
//
// Then we check the subject ourselves: it must be a positive integer.
//
// Every failure comes back as apperror.Unauthenticated with the same message.
// The underlying reason is kept in the chain for logging only.
func (s *TokenService) Validate(tokenStr string) (Subject, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Subject{}, invalidToken(err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Subject{}, invalidToken(errors.New("invalid token claims"))
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Subject{}, invalidToken(fmt.Errorf("bad subject %q", c.Subject))
	}

	return Subject{UserID: userID, Email: c.Email}, nil
}

// invalidToken wraps cause in the uniform Unauthenticated error.
// Note: AppError.Err is the sentinel, so we join the cause alongside it.
func invalidToken(cause error) error {
	return &apperror.AppError{
		Err:     errors.Join(apperror.ErrUnauthenticated, cause),
		Message: invalidTokenMessage,
	}
}
