package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// GenericConfig describe un proveedor OAuth2 sin discovery con endpoint de userinfo.
type GenericConfig struct {
	ID          string
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	Scope       string
}

// userInfoClaims son los nombres de claims OIDC estándar; la mayoría de los proveedores
// OAuth2 los respetan en su userinfo.
type userInfoClaims struct {
	Sub           string `json:"sub"`
	ID            any    `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (c userInfoClaims) toUserInfo() *UserInfo {
	id := c.Sub
	if id == "" && c.ID != nil {
		id = fmt.Sprint(c.ID)
	}
	return &UserInfo{
		AccountID:       id,
		DisplayName:     c.Name,
		Email:           c.Email,
		EmailVerified:   c.EmailVerified,
		ProfileImageURL: c.Picture,
	}
}

// NewGeneric arma un proveedor OAuth2 genérico.
func NewGeneric(gc GenericConfig, creds Credentials, redirectURL string, client *http.Client) Provider {
	p := &baseProvider{
		id:    gc.ID,
		scope: gc.Scope,
		cfg: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   gc.AuthURL,
				TokenURL:  gc.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: clientOrDefault(client),
		now:    time.Now,
	}
	p.userInfo = func(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gc.UserInfoURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := p.cfg.Client(ctx, tok).Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("userinfo: status %d", resp.StatusCode)
		}
		var c userInfoClaims
		if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
			return nil, fmt.Errorf("userinfo: decode: %w", err)
		}
		return c.toUserInfo(), nil
	}
	return p
}
