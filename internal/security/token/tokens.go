// Package tokens genera secretos aleatorios y los hashes que se persisten.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"strings"
)

// secureStringBytes da 225 bits de entropía (45 caracteres base32).
const secureStringBytes = 28

var lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateSecureRandomString genera un secreto en base32 minúscula. Es el formato de los
// verification codes: sus primeros 6 caracteres en mayúscula sirven como OTP tipeable.
func GenerateSecureRandomString() (string, error) {
	b := make([]byte, secureStringBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return lowerBase32.EncodeToString(b), nil
}

// NormalizeCode pasa a minúscula y recorta espacios (el OTP se muestra en mayúscula).
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
