package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	googleIssuer = "https://accounts.google.com"
	oidcScope    = "openid email profile"
)

// NewOIDC hace discovery contra issuer y valida el id_token del canje con go-oidc.
// Sin id_token (algunos proveedores en refresh o con scopes mínimos) cae al endpoint de
// userinfo.
func NewOIDC(ctx context.Context, id, issuer string, creds Credentials, redirectURL, extraScope string, client *http.Client) (Provider, error) {
	client = clientOrDefault(client)
	ctx = oidc.ClientContext(ctx, client)
	op, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", issuer, err)
	}
	ep := op.Endpoint()
	ep.AuthStyle = oauth2.AuthStyleInParams
	verifier := op.Verifier(&oidc.Config{ClientID: creds.ClientID})

	p := &baseProvider{
		id:    id,
		scope: MergeScopes(oidcScope, extraScope),
		cfg: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     ep,
		},
		client: client,
		now:    time.Now,
	}
	p.userInfo = func(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
		var c userInfoClaims
		if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
			idt, err := verifier.Verify(ctx, raw)
			if err != nil {
				return nil, fmt.Errorf("verify id_token: %w", err)
			}
			if err := idt.Claims(&c); err != nil {
				return nil, err
			}
			return c.toUserInfo(), nil
		}
		ui, err := op.UserInfo(ctx, oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, err
		}
		if err := ui.Claims(&c); err != nil {
			return nil, err
		}
		if c.Sub == "" {
			return nil, errors.New("userinfo without sub")
		}
		return c.toUserInfo(), nil
	}
	return p, nil
}

// NewGoogle es OIDC contra accounts.google.com. prompt=consent asegura refresh token en
// cada autorización.
func NewGoogle(ctx context.Context, creds Credentials, redirectURL, extraScope string, client *http.Client) (Provider, error) {
	p, err := NewOIDC(ctx, "google", googleIssuer, creds, redirectURL, extraScope, client)
	if err != nil {
		return nil, err
	}
	bp := p.(*baseProvider)
	bp.authParams = append(bp.authParams, oauth2.SetAuthURLParam("prompt", "consent"))
	return bp, nil
}
