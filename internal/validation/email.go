package validation

import (
	"net/mail"
	"strings"
)

// NormalizeEmail recorta espacios y pasa a minúsculas. Es la forma que se guarda y se busca.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail acepta una dirección simple (sin display name) de hasta 254 caracteres con un
// dominio que tenga al menos un punto.
func ValidEmail(s string) bool {
	if s == "" || len(s) > 254 || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// ValidScopeList valida una lista de scopes separada por espacios (la forma de OAuth).
// Vacía es válida.
func ValidScopeList(s string) bool {
	for _, part := range strings.Fields(s) {
		if !ValidScopeName(part) {
			return false
		}
	}
	return true
}

// MaskEmail deja una dirección apta para logs: "ana@example.com" -> "a…@e….com".
func MaskEmail(s string) string {
	s = NormalizeEmail(s)
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		if len(s) <= 3 {
			return strings.Repeat("*", len(s))
		}
		return s[:1] + "…" + s[len(s)-1:]
	}
	local, domain := s[:at], s[at+1:]
	if len(local) > 1 {
		local = local[:1] + "…"
	}
	labels := strings.Split(domain, ".")
	if len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return local + "@" + strings.Join(labels, ".")
}
