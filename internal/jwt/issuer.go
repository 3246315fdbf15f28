// Package jwt emite y valida los access tokens HS256 por tenant.
package jwt

import (
	"errors"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTTL es la vida de un access token si no se configura otra.
const DefaultAccessTTL = time.Hour

// AccessClaims son las claims de un access token.
type AccessClaims struct {
	TenantID string `json:"tenant_id"`
	jwtv5.RegisteredClaims
}

// UserID devuelve el sub.
func (c *AccessClaims) UserID() string { return c.Subject }

// Issuer firma y decodifica access tokens.
type Issuer struct {
	Iss       string
	Keys      *TenantKeys
	AccessTTL time.Duration
	Now       func() time.Time
}

func NewIssuer(iss string, keys *TenantKeys, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Issuer{Iss: iss, Keys: keys, AccessTTL: ttl, Now: time.Now}
}

// Sign emite un access token para (tenant, sub).
func (i *Issuer) Sign(tenantID, subject string) (string, time.Time, error) {
	now := i.Now().UTC()
	exp := now.Add(i.AccessTTL)
	claims := AccessClaims{
		TenantID: tenantID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.Keys.Key(tenantID))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode valida firma, issuer y exp. La clave se elige por el tenant_id del propio
// token; el llamador compara el tenant contra el proyecto de la request.
//
// Errores: ErrAccessTokenExpired, ErrUnparsableAccessToken, ErrInvalidAccessToken.
func (i *Issuer) Decode(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	keyfunc := func(t *jwtv5.Token) (any, error) {
		c, ok := t.Claims.(*AccessClaims)
		if !ok || c.TenantID == "" {
			return nil, errors.New("tenant_id missing")
		}
		return i.Keys.verifyKey(c.TenantID), nil
	}
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.Now),
	}
	if i.Iss != "" {
		opts = append(opts, jwtv5.WithIssuer(i.Iss))
	}
	_, err := jwtv5.ParseWithClaims(token, claims, keyfunc, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return nil, autherr.ErrAccessTokenExpired
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return nil, autherr.ErrUnparsableAccessToken.WithCause(err)
	default:
		return nil, autherr.ErrInvalidAccessToken.WithCause(err)
	}
	if claims.Subject == "" {
		return nil, autherr.ErrInvalidAccessToken
	}
	return claims, nil
}
