package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/service"
)

// Authenticator is the part of service.AuthService the auth routes use.
type Authenticator interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*service.LoginResult, error)
}

// OAuthProvider is implemented by *auth.GitHubProvider.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves registration, password login and the GitHub login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account
//   - HandleLogin          → exchange credentials for a token
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, link the account, return a token
//
// The GitHub routes are only registered when github is non-nil.
type AuthHandler struct {
	auth   Authenticator
	github OAuthProvider
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(authn Authenticator, github OAuthProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authn,
		github: github,
		logger: logger,
	}
}

// GitHubEnabled reports whether the GitHub routes should be mounted.
func (h *AuthHandler) GitHubEnabled() bool { return h.github != nil }

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// loginRequest has no validate tags: a malformed email is just a wrong
// credential and gets the same 401. So does a body that is not JSON at all.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "ada@example.com", "password": "secret1"}
// RESPONSE: 200 "User created", or 400 when the body is invalid or the
// email is already registered.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.Register(r.Context(), req.Email, req.Password); err != nil {
		h.logFailure("register failed", err)
		writeError(w, err)
		return
	}

	writeText(w, http.StatusOK, "User created")
}

// HandleLogin checks credentials and returns a token as plain text.
//
// HTTP: POST /auth/login
// RESPONSE: 200 <token>, or 401 for any credential problem.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.logFailure("login failed", err)
		writeError(w, apperror.Unauthenticated("invalid credentials"))
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logFailure("login failed", err)
		writeError(w, err)
		return
	}

	writeText(w, http.StatusOK, res.Token)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// HandleGitHubCallback verifies GitHub echoed back the same value.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Link or create the account by email and issue a token
//  4. Return the token as plain text, exactly like /auth/login
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthenticated("GitHub authorization was denied"))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	res, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		h.logFailure("auth callback: login failed", err)
		writeError(w, err)
		return
	}

	writeText(w, http.StatusOK, res.Token)
}

// logFailure logs client errors at info and everything else at error.
func (h *AuthHandler) logFailure(msg string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		h.logger.Info(msg, slog.String("reason", appErr.Message))
		return
	}
	h.logger.Error(msg, slog.String("error", err.Error()))
}
