package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "subject", s), ANY package that knows the string
// can read or shadow your value. A package-private type prevents collisions.
type contextKey string

const subjectKey contextKey = "subject"

// TokenValidator turns a bearer token into a Subject.
// Both *TokenService and the service-layer Authenticator satisfy it.
type TokenValidator interface {
	ValidateToken(token string) (Subject, error)
}

// ValidateToken makes *TokenService a TokenValidator.
func (s *TokenService) ValidateToken(token string) (Subject, error) {
	return s.Validate(token)
}

// unauthorizedBody is written for every rejected request. Missing header,
// wrong scheme, expired token and bad signature are indistinguishable.
const unauthorizedBody = `{"error":"unauthenticated","message":"valid authentication required"}`

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <token>", validates the token, and stores
// the Subject in the request context. If anything is wrong it answers
// 401 Unauthorized and stops the request chain.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
func RequireAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w)
				return
			}

			subject, err := tokens.ValidateToken(raw)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// WithSubject returns a copy of ctx carrying s.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFromContext retrieves the authenticated subject from the request context.
//
// On a RequireAuth-protected route this always returns (subject, true).
// A false here means the route was wired without the middleware.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(subjectKey).(Subject)
	return s, ok && s.UserID > 0
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively as RFC 6750 allows.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tasklist"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}
