// Package redirect decide si una URL de redirección pertenece a los dominios de confianza
// de un proyecto.
package redirect

import (
	"net"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// IsAllowed devuelve true si raw es http(s) absoluta y su origen coincide con alguno de
// los dominios registrados (y su path queda bajo el path del dominio, si tiene).
// localhost solo se acepta con allowLocalhost.
func IsAllowed(raw string, domains []repository.Domain, allowLocalhost bool) bool {
	u, ok := parseAbsolute(raw)
	if !ok {
		return false
	}
	if allowLocalhost && IsLocalhost(u.Hostname()) {
		return true
	}
	for _, d := range domains {
		du, ok := parseAbsolute(d.Domain)
		if !ok {
			continue
		}
		if !sameOrigin(u, du) {
			continue
		}
		if underPath(u.Path, du.Path) {
			return true
		}
	}
	return false
}

// IsLocalhost reconoce localhost, subdominios .localhost y loopback IPs.
func IsLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func parseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || u.User != nil {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u, true
	default:
		return nil, false
	}
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if strings.EqualFold(u.Scheme, "https") {
		return "443"
	}
	return "80"
}

func underPath(p, base string) bool {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return true
	}
	return p == base || strings.HasPrefix(p, base+"/")
}

// OriginAllowed valida el origin de un ceremony WebAuthn: localhost solo con
// allowLocalhost, cualquier otro tiene que ser el origin de un dominio registrado.
// Devuelve el RP ID (el hostname) a verificar.
func OriginAllowed(origin string, domains []repository.Domain, allowLocalhost bool) (string, bool) {
	u, ok := parseAbsolute(origin)
	if !ok {
		return "", false
	}
	if IsLocalhost(u.Hostname()) {
		return u.Hostname(), allowLocalhost
	}
	for _, d := range domains {
		du, ok := parseAbsolute(d.Domain)
		if ok && sameOrigin(u, du) {
			return u.Hostname(), true
		}
	}
	return "", false
}
