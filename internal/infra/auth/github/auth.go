// Package github verifies GitHub OAuth access tokens and normalizes the
// asserted identity for the credential layer.
package github

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"
	"gatekeeper/internal/domain/service"

	"github.com/pkg/errors"
)

const defaultAPIBase = "https://api.github.com"

// userProfile is the subset of the GitHub /user response we care about.
type userProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// userEmail is one entry of the GitHub /user/emails response.
type userEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// AuthServiceImpl implements service.OAuthAuthService for GitHub OAuth.
// The client exchanges the authorization code itself; this service takes the
// resulting access token, loads the profile, and picks the primary email.
type AuthServiceImpl struct {
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

// NewAuthService creates a new GitHub AuthService
func NewAuthService(cfg *config.Config, logger *slog.Logger) service.OAuthAuthService {
	apiBase := defaultAPIBase
	if cfg.GitHubOAuth != nil && cfg.GitHubOAuth.APIBase != "" {
		apiBase = cfg.GitHubOAuth.APIBase
	}

	return &AuthServiceImpl{
		apiBase: apiBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// VerifyIDToken implements service.OAuthAuthService. For GitHub the
// credential is an OAuth access token rather than an ID token.
func (s *AuthServiceImpl) VerifyIDToken(ctx context.Context, accessToken string) (*service.OAuthUser, error) {
	if accessToken == "" {
		return nil, errors.New("empty access token")
	}

	profile, err := s.fetchProfile(ctx, accessToken)
	if err != nil {
		s.logger.Error("Failed to load GitHub profile", "error", err)

		return nil, errors.Wrap(err, "token verification failed")
	}

	email, verified, err := s.fetchPrimaryEmail(ctx, accessToken)
	if err != nil {
		s.logger.Error("Failed to load GitHub emails", "error", err)

		return nil, errors.Wrap(err, "token verification failed")
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	oauthUser := &service.OAuthUser{
		ID:            strconv.FormatInt(profile.ID, 10),
		Email:         email,
		Name:          name,
		Provider:      entity.ProviderGitHub,
		AvatarURL:     profile.AvatarURL,
		EmailVerified: verified,
	}

	s.logger.Info("GitHub access token verified successfully",
		slog.String("userID", oauthUser.ID))

	return oauthUser, nil
}

// GetProvider returns the OAuth provider type
func (s *AuthServiceImpl) GetProvider() entity.ProviderType {
	return entity.ProviderGitHub
}

// fetchProfile loads the authenticated user's profile.
func (s *AuthServiceImpl) fetchProfile(ctx context.Context, accessToken string) (*userProfile, error) {
	body, err := s.get(ctx, "/user", accessToken)
	if err != nil {
		return nil, err
	}

	var profile userProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, errors.Wrap(err, "parse profile response")
	}
	if profile.ID == 0 {
		return nil, errors.New("profile response carries no user id")
	}

	return &profile, nil
}

// fetchPrimaryEmail returns the primary email on the account and whether
// GitHub has verified it. Accounts with no primary address fail here.
func (s *AuthServiceImpl) fetchPrimaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	body, err := s.get(ctx, "/user/emails", accessToken)
	if err != nil {
		return "", false, err
	}

	var emails []userEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", false, errors.Wrap(err, "parse emails response")
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}

	return "", false, errors.New("no primary email on account")
}

func (s *AuthServiceImpl) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("github api %s returned %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	return body, nil
}
