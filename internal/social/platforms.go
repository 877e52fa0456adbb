// Package social connects workspaces to social platforms, schedules posts and
// publishes them.
package social

import (
	"fmt"
	"sort"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Platform describes one supported social network.
type Platform struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Endpoint    oauth2.Endpoint `json:"-"`
	Scopes      []string        `json:"scopes"`
	MaxTextLen  int             `json:"max_text_length"`
	// PKCE marks platforms that require a code verifier on exchange.
	PKCE bool `json:"-"`
	// postURL formats a public URL from a platform post ID.
	postURL string
}

// PostURL returns the public URL for a post ID.
func (p Platform) PostURL(id string) string {
	return fmt.Sprintf(p.postURL, id)
}

var registry = map[string]Platform{
	"twitter": {
		Name:        "twitter",
		DisplayName: "Twitter / X",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://twitter.com/i/oauth2/authorize",
			TokenURL: "https://api.twitter.com/2/oauth2/token",
		},
		Scopes:     []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		MaxTextLen: 280,
		PKCE:       true,
		postURL:    "https://twitter.com/i/web/status/%s",
	},
	"linkedin": {
		Name:        "linkedin",
		DisplayName: "LinkedIn",
		Endpoint:    endpoints.LinkedIn,
		Scopes:      []string{"openid", "profile", "email", "w_member_social"},
		MaxTextLen:  3000,
		postURL:     "https://www.linkedin.com/feed/update/%s",
	},
	"facebook": {
		Name:        "facebook",
		DisplayName: "Facebook",
		Endpoint:    endpoints.Facebook,
		Scopes:      []string{"pages_manage_posts", "pages_read_engagement", "business_management"},
		MaxTextLen:  63206,
		postURL:     "https://www.facebook.com/%s",
	},
	"instagram": {
		Name:        "instagram",
		DisplayName: "Instagram",
		// Instagram business publishing authorizes through Facebook Login.
		Endpoint:   endpoints.Facebook,
		Scopes:     []string{"instagram_basic", "instagram_content_publish", "pages_read_engagement"},
		MaxTextLen: 2200,
		postURL:    "https://www.instagram.com/p/%s",
	},
	"youtube": {
		Name:        "youtube",
		DisplayName: "YouTube",
		Endpoint:    endpoints.Google,
		Scopes: []string{
			"https://www.googleapis.com/auth/youtube.upload",
			"https://www.googleapis.com/auth/youtube.readonly",
		},
		MaxTextLen: 5000,
		postURL:    "https://www.youtube.com/watch?v=%s",
	},
	"tiktok": {
		Name:        "tiktok",
		DisplayName: "TikTok",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL: "https://open.tiktokapis.com/v2/oauth/token/",
		},
		Scopes:     []string{"user.info.basic", "video.publish"},
		MaxTextLen: 2200,
		PKCE:       true,
		postURL:    "https://www.tiktok.com/video/%s",
	},
	"github": {
		Name:        "github",
		DisplayName: "GitHub Gists",
		Endpoint:    endpoints.GitHub,
		Scopes:      []string{"gist", "read:user"},
		MaxTextLen:  1 << 20,
		postURL:     "https://gist.github.com/%s",
	},
}

// Lookup returns the platform registered under name.
func Lookup(name string) (Platform, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names returns every registered platform name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
