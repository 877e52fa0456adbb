package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GistPublisher publishes a post as a GitHub gist owned by the connected
// account.
type GistPublisher struct {
	// Public controls gist visibility. Secret gists are still reachable by URL.
	Public bool
	// baseURL overrides the API root; tests point it at an httptest server.
	baseURL *url.URL
}

func (g *GistPublisher) client(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(token)})
	c := github.NewClient(oauth2.NewClient(ctx, ts))
	if g.baseURL != nil {
		c.BaseURL = g.baseURL
	}
	return c
}

// Publish creates a gist with the post text as post.md.
func (g *GistPublisher) Publish(ctx context.Context, req PostRequest) (*Result, error) {
	if req.AccessToken == "" {
		return nil, Permanent(errors.New("github: no access token"))
	}
	desc := req.Title
	if desc == "" {
		desc = firstLine(req.Text, 80)
	}
	gist, _, err := g.client(ctx, req.AccessToken).Gists.Create(ctx, &github.Gist{
		Description: github.Ptr(desc),
		Public:      github.Ptr(g.Public),
		Files: map[github.GistFilename]github.GistFile{
			"post.md": {Content: github.Ptr(req.Text)},
		},
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			switch ghErr.Response.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
				return nil, Permanent(fmt.Errorf("github: create gist: %w", err))
			}
		}
		return nil, fmt.Errorf("github: create gist: %w", err)
	}
	return &Result{PostID: gist.GetID(), URL: gist.GetHTMLURL()}, nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return s
}
