package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserAPI = "https://api.github.com/user"

// GitHubUser is the portion of the GitHub /user API response we care about.
// Accounts are linked by email, so a profile with a hidden email can't sign in.
type GitHubUser struct {
	ID    int64  `json:"id"`    // GitHub's numeric user ID
	Login string `json:"login"` // GitHub username
	Email string `json:"email"` // Primary public email (empty if hidden)
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. We redirect the user to GitHub's authorization endpoint.
// 2. GitHub redirects back to the callback URL with a short-lived "code".
// 3. We exchange the code for an access token (server-to-server call).
// 4. We call the GitHub API with that token for the user's profile.
// 5. The service links the profile to an account by email and issues our own token.
type GitHubProvider struct {
	config  *oauth2.Config
	userAPI string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must match the "Authorization callback URL" configured on GitHub.
// Example: "http://localhost:8080/auth/github/callback"
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userAPI: githubUserAPI,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is echoed back by GitHub and checked against a cookie on callback.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a GitHub user profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that automatically adds
	// the "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userAPI, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}
	ghUser.Email = strings.TrimSpace(ghUser.Email)

	return &ghUser, nil
}
