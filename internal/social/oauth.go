package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/config"
	"github.com/clickstudio/click/internal/models"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is the account a token belongs to on the remote platform.
type Identity struct {
	ID       string
	Username string
}

// IdentityFunc resolves the remote account behind a freshly exchanged token.
type IdentityFunc func(ctx context.Context, platform string, tok *oauth2.Token) (Identity, error)

// AuthRequest is the start of a connect flow. Verifier is non-empty for PKCE
// platforms and must be presented again on Exchange.
type AuthRequest struct {
	URL      string `json:"url"`
	State    string `json:"state"`
	Verifier string `json:"-"`
}

// OAuth runs the authorization-code flow for each enabled platform and
// stores the resulting connections.
type OAuth struct {
	db       *gorm.DB
	tokens   *auth.TokenManager
	configs  map[string]*oauth2.Config
	identify IdentityFunc
	now      func() time.Time
}

// NewOAuth builds OAuth clients for every platform enabled in cfg.
func NewOAuth(gdb *gorm.DB, tokens *auth.TokenManager, cfg config.SocialConfig) *OAuth {
	base := strings.TrimRight(cfg.RedirectBaseURL, "/")
	configs := make(map[string]*oauth2.Config)
	for name, client := range cfg.Platforms() {
		p, ok := Lookup(name)
		if !ok || !client.Enabled {
			continue
		}
		configs[name] = &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			Endpoint:     p.Endpoint,
			RedirectURL:  base + "/" + name + "/callback",
			Scopes:       p.Scopes,
		}
	}
	return &OAuth{
		db:       gdb,
		tokens:   tokens,
		configs:  configs,
		identify: DefaultIdentity,
		now:      time.Now,
	}
}

// Enabled reports whether platform has OAuth credentials configured.
func (o *OAuth) Enabled(platform string) bool {
	_, ok := o.configs[platform]
	return ok
}

func (o *OAuth) config(platform string) (*oauth2.Config, Platform, error) {
	p, ok := Lookup(platform)
	if !ok {
		return nil, Platform{}, apierr.NotFound("platform " + platform)
	}
	cfg, ok := o.configs[platform]
	if !ok {
		return nil, Platform{}, apierr.New(http.StatusServiceUnavailable, "PLATFORM_DISABLED",
			p.DisplayName+" is not configured on this server")
	}
	return cfg, p, nil
}

// AuthURL starts a connect flow for userID on platform.
func (o *OAuth) AuthURL(userID, platform string) (*AuthRequest, error) {
	cfg, p, err := o.config(platform)
	if err != nil {
		return nil, err
	}
	state, err := o.tokens.IssueState(userID, platform)
	if err != nil {
		return nil, fmt.Errorf("social: auth url: %w", err)
	}
	req := &AuthRequest{State: state}
	var opts []oauth2.AuthCodeOption
	if p.PKCE {
		req.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(req.Verifier))
	}
	req.URL = cfg.AuthCodeURL(state, opts...)
	return req, nil
}

// Exchange completes a connect flow: it validates state, trades code for a
// token and upserts the user's connection for platform.
func (o *OAuth) Exchange(ctx context.Context, platform, code, state, verifier string) (*models.SocialConnection, error) {
	cfg, p, err := o.config(platform)
	if err != nil {
		return nil, err
	}
	userID, err := o.tokens.ParseState(state, platform)
	if err != nil {
		return nil, apierr.Wrap(err, http.StatusBadRequest, "INVALID_STATE", "invalid or expired oauth state")
	}
	if code == "" {
		return nil, apierr.BadRequest("authorization code is required")
	}

	var user models.User
	if err := o.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("user")
		}
		return nil, fmt.Errorf("social: exchange: load user: %w", err)
	}

	var opts []oauth2.AuthCodeOption
	if p.PKCE {
		if verifier == "" {
			return nil, apierr.BadRequest("missing pkce verifier")
		}
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, apierr.Wrap(err, http.StatusBadGateway, "PUBLISHING_AUTH_ERROR",
			"could not complete "+p.DisplayName+" authorization")
	}

	ident, err := o.identify(ctx, platform, tok)
	if err != nil {
		return nil, apierr.Wrap(err, http.StatusBadGateway, "PUBLISHING_AUTH_ERROR",
			"could not read "+p.DisplayName+" account")
	}

	now := o.now()
	conn := models.SocialConnection{
		UserID:           user.ID,
		WorkspaceID:      user.WorkspaceID,
		Platform:         platform,
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		PlatformUserID:   ident.ID,
		PlatformUsername: ident.Username,
		Active:           true,
		LastUsedAt:       &now,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		conn.TokenExpiry = &exp
	}
	err = o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"workspace_id", "access_token", "refresh_token", "token_expiry",
			"platform_user_id", "platform_username", "active", "last_used_at", "updated_at",
		}),
	}).Create(&conn).Error
	if err != nil {
		return nil, fmt.Errorf("social: exchange: save connection: %w", err)
	}
	if err := o.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", user.ID, platform).
		First(&conn).Error; err != nil {
		return nil, fmt.Errorf("social: exchange: reload connection: %w", err)
	}
	return &conn, nil
}

// TokenSource returns a token source for conn that refreshes expired
// tokens with the platform's OAuth client.
func (o *OAuth) TokenSource(ctx context.Context, conn *models.SocialConnection) oauth2.TokenSource {
	tok := &oauth2.Token{AccessToken: conn.AccessToken, RefreshToken: conn.RefreshToken}
	if conn.TokenExpiry != nil {
		tok.Expiry = *conn.TokenExpiry
	}
	cfg, ok := o.configs[conn.Platform]
	if !ok {
		return oauth2.StaticTokenSource(tok)
	}
	return cfg.TokenSource(ctx, tok)
}

// DefaultIdentity reads the GitHub login for github tokens. Other platforms
// are stored without a remote identity until their publishers need one.
func DefaultIdentity(ctx context.Context, platform string, tok *oauth2.Token) (Identity, error) {
	if platform != "github" {
		return Identity{}, nil
	}
	gh := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)))
	u, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return Identity{}, fmt.Errorf("social: github identity: %w", err)
	}
	return Identity{ID: fmt.Sprint(u.GetID()), Username: u.GetLogin()}, nil
}
