package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubScope   = "user:email"
	githubAPIBase = "https://api.github.com"
)

// GitHubOptions permite apuntar a GitHub Enterprise (o a un servidor de pruebas).
type GitHubOptions struct {
	Endpoint oauth2.Endpoint
	APIBase  string
}

// NewGitHub: GitHub es OAuth2 sin id_token; el perfil sale de /user y /user/emails.
func NewGitHub(creds Credentials, redirectURL, extraScope string, client *http.Client, opts *GitHubOptions) Provider {
	endpoint, apiBase := github.Endpoint, githubAPIBase
	if opts != nil {
		if opts.Endpoint.AuthURL != "" {
			endpoint = opts.Endpoint
		}
		if opts.APIBase != "" {
			apiBase = opts.APIBase
		}
	}
	gh := &githubAPI{base: apiBase}
	p := &baseProvider{
		id:    "github",
		scope: MergeScopes(githubScope, extraScope),
		cfg: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
		},
		client: clientOrDefault(client),
		now:    time.Now,
	}
	p.userInfo = func(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
		return gh.userInfo(ctx, p.cfg.Client(ctx, tok))
	}
	return p
}

type githubAPI struct {
	base string
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *githubAPI) get(ctx context.Context, c *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *githubAPI) userInfo(ctx context.Context, c *http.Client) (*UserInfo, error) {
	var u githubUser
	if err := g.get(ctx, c, "/user", &u); err != nil {
		return nil, err
	}
	info := &UserInfo{
		AccountID:       strconv.FormatInt(u.ID, 10),
		DisplayName:     u.Name,
		ProfileImageURL: u.AvatarURL,
	}
	if info.DisplayName == "" {
		info.DisplayName = u.Login
	}

	// /user solo trae el email público y sin el flag de verificado
	var emails []githubEmail
	if err := g.get(ctx, c, "/user/emails", &emails); err != nil {
		return nil, err
	}
	if e := pickGitHubEmail(emails); e != nil {
		info.Email, info.EmailVerified = e.Email, e.Verified
	} else {
		info.Email = u.Email
	}
	return info, nil
}

// primario verificado, después cualquier verificado, después el primero.
func pickGitHubEmail(emails []githubEmail) *githubEmail {
	for i := range emails {
		if emails[i].Primary && emails[i].Verified {
			return &emails[i]
		}
	}
	for i := range emails {
		if emails[i].Verified {
			return &emails[i]
		}
	}
	if len(emails) > 0 {
		return &emails[0]
	}
	return nil
}
