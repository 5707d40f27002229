package github

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(apiBase string) *AuthServiceImpl {
	cfg := &config.Config{
		GitHubOAuth: &config.GitHubOAuthConfig{APIBase: apiBase},
	}

	return NewAuthService(cfg, slog.Default()).(*AuthServiceImpl)
}

func newGitHubStub(t *testing.T, emailsBody string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
		_, _ = w.Write([]byte(`{"id":42,"login":"octocat","name":"Octo Cat","avatar_url":"https://example.com/a.png"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
		_, _ = w.Write([]byte(emailsBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestAuthService_VerifyIDToken(t *testing.T) {
	server := newGitHubStub(t, `[{"email":"octo@example.com","primary":true,"verified":true},{"email":"alt@example.com","primary":false,"verified":false}]`)
	authService := newTestAuthService(server.URL)

	oauthUser, err := authService.VerifyIDToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "42", oauthUser.ID)
	assert.Equal(t, "octo@example.com", oauthUser.Email)
	assert.Equal(t, "Octo Cat", oauthUser.Name)
	assert.Equal(t, entity.ProviderGitHub, oauthUser.Provider)
	assert.True(t, oauthUser.EmailVerified)
}

func TestAuthService_UnverifiedPrimaryEmail(t *testing.T) {
	server := newGitHubStub(t, `[{"email":"octo@example.com","primary":true,"verified":false}]`)
	authService := newTestAuthService(server.URL)

	oauthUser, err := authService.VerifyIDToken(context.Background(), "good-token")
	require.NoError(t, err)
	// The provider assertion is carried through; the credential layer decides
	// whether an unverified email may merge into an existing account.
	assert.False(t, oauthUser.EmailVerified)
}

func TestAuthService_NoPrimaryEmail(t *testing.T) {
	server := newGitHubStub(t, `[{"email":"alt@example.com","primary":false,"verified":true}]`)
	authService := newTestAuthService(server.URL)

	oauthUser, err := authService.VerifyIDToken(context.Background(), "good-token")
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
}

func TestAuthService_BadToken(t *testing.T) {
	server := newGitHubStub(t, `[]`)
	authService := newTestAuthService(server.URL)

	oauthUser, err := authService.VerifyIDToken(context.Background(), "bad-token")
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
	assert.Contains(t, err.Error(), "token verification failed")
}

func TestAuthService_EmptyToken(t *testing.T) {
	authService := newTestAuthService("http://unused.invalid")

	oauthUser, err := authService.VerifyIDToken(context.Background(), "")
	assert.Error(t, err)
	assert.Nil(t, oauthUser)
}

func TestAuthService_GetProvider(t *testing.T) {
	authService := newTestAuthService("http://unused.invalid")

	assert.Equal(t, entity.ProviderGitHub, authService.GetProvider())
}
