package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/config"
	"github.com/clickstudio/click/internal/db/dbtest"
	"github.com/clickstudio/click/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

func statusOf(err error) int {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager("test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	return tm
}

func seedUser(t *testing.T, gdb *gorm.DB, id, ws string) {
	t.Helper()
	require.NoError(t, gdb.Create(&models.User{
		ID: id, Email: id + "@example.com", PasswordHash: "x", WorkspaceID: ws,
	}).Error)
}

// tokenServer is a fake OAuth token endpoint recording the forms it receives.
type tokenServer struct {
	*httptest.Server
	mu    sync.Mutex
	forms []url.Values
	fail  bool
}

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		fail := ts.fail
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-" + r.PostForm.Get("code"),
			"refresh_token": "rt-1",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.forms[len(ts.forms)-1]
}

func newTestOAuth(t *testing.T, gdb *gorm.DB, ts *tokenServer) *OAuth {
	t.Helper()
	o := NewOAuth(gdb, newTokens(t), config.SocialConfig{
		RedirectBaseURL: "https://api.click.example/api/social/",
		GitHub:          config.OAuthClientConfig{Enabled: true, ClientID: "gh-id", ClientSecret: "gh-secret"},
		Twitter:         config.OAuthClientConfig{Enabled: true, ClientID: "tw-id", ClientSecret: "tw-secret"},
	})
	for _, cfg := range o.configs {
		cfg.Endpoint = oauth2.Endpoint{
			AuthURL:  ts.URL + "/authorize",
			TokenURL: ts.URL + "/token",
		}
	}
	o.identify = func(_ context.Context, platform string, tok *oauth2.Token) (Identity, error) {
		return Identity{ID: "42", Username: "ada-" + platform}, nil
	}
	return o
}

func TestNewOAuth_OnlyEnabledPlatforms(t *testing.T) {
	o := newTestOAuth(t, dbtest.Open(t), newTokenServer(t))
	assert.True(t, o.Enabled("github"))
	assert.True(t, o.Enabled("twitter"))
	assert.False(t, o.Enabled("linkedin"))
	assert.Equal(t, "https://api.click.example/api/social/github/callback", o.configs["github"].RedirectURL)
}

func TestAuthURL(t *testing.T) {
	o := newTestOAuth(t, dbtest.Open(t), newTokenServer(t))

	req, err := o.AuthURL("u1", "github")
	require.NoError(t, err)
	assert.Empty(t, req.Verifier)
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, req.State, u.Query().Get("state"))
	assert.Equal(t, "gist read:user", u.Query().Get("scope"))

	req, err = o.AuthURL("u1", "twitter")
	require.NoError(t, err)
	assert.NotEmpty(t, req.Verifier)
	u, _ = url.Parse(req.URL)
	assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))

	_, err = o.AuthURL("u1", "linkedin")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(err))
	_, err = o.AuthURL("u1", "myspace")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestExchange_UpsertsConnection(t *testing.T) {
	gdb := dbtest.Open(t)
	seedUser(t, gdb, "u1", "ws1")
	ts := newTokenServer(t)
	o := newTestOAuth(t, gdb, ts)
	ctx := context.Background()

	req, err := o.AuthURL("u1", "github")
	require.NoError(t, err)
	conn, err := o.Exchange(ctx, "github", "code-1", req.State, "")
	require.NoError(t, err)
	assert.Equal(t, "at-code-1", conn.AccessToken)
	assert.Equal(t, "rt-1", conn.RefreshToken)
	assert.Equal(t, "ws1", conn.WorkspaceID)
	assert.Equal(t, "ada-github", conn.PlatformUsername)
	assert.True(t, conn.Active)
	require.NotNil(t, conn.TokenExpiry)

	require.NoError(t, o.Disconnect(ctx, "u1", "github"))

	req, _ = o.AuthURL("u1", "github")
	again, err := o.Exchange(ctx, "github", "code-2", req.State, "")
	require.NoError(t, err)
	assert.Equal(t, conn.ID, again.ID, "reconnect updates the existing row")
	assert.Equal(t, "at-code-2", again.AccessToken)
	assert.True(t, again.Active)

	var n int64
	gdb.Model(&models.SocialConnection{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestExchange_PKCE(t *testing.T) {
	gdb := dbtest.Open(t)
	seedUser(t, gdb, "u1", "ws1")
	ts := newTokenServer(t)
	o := newTestOAuth(t, gdb, ts)
	ctx := context.Background()

	req, err := o.AuthURL("u1", "twitter")
	require.NoError(t, err)

	_, err = o.Exchange(ctx, "twitter", "code", req.State, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = o.Exchange(ctx, "twitter", "code", req.State, req.Verifier)
	require.NoError(t, err)
	assert.Equal(t, req.Verifier, ts.lastForm().Get("code_verifier"))
}

func TestExchange_Errors(t *testing.T) {
	gdb := dbtest.Open(t)
	seedUser(t, gdb, "u1", "ws1")
	ts := newTokenServer(t)
	o := newTestOAuth(t, gdb, ts)
	ctx := context.Background()

	_, err := o.Exchange(ctx, "github", "code", "forged", "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	twitterState, _ := o.AuthURL("u1", "twitter")
	_, err = o.Exchange(ctx, "github", "code", twitterState.State, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err), "state is bound to its platform")

	req, _ := o.AuthURL("u1", "github")
	_, err = o.Exchange(ctx, "github", "", req.State, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	ghost, _ := o.AuthURL("ghost", "github")
	_, err = o.Exchange(ctx, "github", "code", ghost.State, "")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	ts.mu.Lock()
	ts.fail = true
	ts.mu.Unlock()
	_, err = o.Exchange(ctx, "github", "code", req.State, "")
	assert.Equal(t, http.StatusBadGateway, statusOf(err))
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "PUBLISHING_AUTH_ERROR", ae.Code)
}

func TestConnections(t *testing.T) {
	gdb := dbtest.Open(t)
	o := newTestOAuth(t, gdb, newTokenServer(t))
	ctx := context.Background()

	for _, c := range []models.SocialConnection{
		{UserID: "u1", Platform: "twitter", Active: true},
		{UserID: "u1", Platform: "github", Active: true},
		{UserID: "u2", Platform: "github", Active: true},
	} {
		require.NoError(t, gdb.Create(&c).Error)
	}

	conns, err := o.Connections(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "github", conns[0].Platform)

	require.NoError(t, o.Disconnect(ctx, "u1", "twitter"))
	assert.Equal(t, http.StatusNotFound, statusOf(o.Disconnect(ctx, "u1", "twitter")))

	conns, _ = o.Connections(ctx, "u1")
	assert.Len(t, conns, 1)

	_, err = o.Connection(ctx, "u1", "twitter")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestPlatformRegistry(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"facebook", "github", "instagram", "linkedin", "tiktok", "twitter", "youtube"}, names)

	p, ok := Lookup("twitter")
	require.True(t, ok)
	assert.Equal(t, 280, p.MaxTextLen)
	assert.Equal(t, "https://twitter.com/i/web/status/123", p.PostURL("123"))

	_, ok = Lookup("myspace")
	assert.False(t, ok)
}
