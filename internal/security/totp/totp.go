// Package totp implementa TOTP (RFC 6238, HMAC-SHA1, 6 dígitos, período de 30s).
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	period = 30
	digits = 6
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret retorna 20 bytes aleatorios y su forma base32 sin padding.
func GenerateSecret() (raw []byte, b32Secret string, err error) {
	raw = make([]byte, 20)
	if _, err = rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, b32.EncodeToString(raw), nil
}

// DecodeSecret acepta base32 con o sin padding, en cualquier caso.
func DecodeSecret(b32Secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(b32Secret), "="))
	raw, err := b32.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("totp: decode secret: %w", err)
	}
	return raw, nil
}

// OTPAuthURL construye otpauth:// para QR.
func OTPAuthURL(issuer, accountName, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, accountName))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", "6")
	q.Set("period", "30")
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// Code genera el código vigente en t.
func Code(secretRaw []byte, t time.Time) string {
	return hotp(secretRaw, t.Unix()/period)
}

// Verify valida code en una ventana de +/- windowSteps pasos. Si lastCounterUsed no es nil,
// rechaza contadores <= al último usado (anti-replay).
func Verify(secretRaw []byte, code string, t time.Time, windowSteps int, lastCounterUsed *int64) (ok bool, counter int64) {
	code = strings.TrimSpace(code)
	if len(code) != digits {
		return false, 0
	}
	now := t.Unix() / period
	for c := now - int64(windowSteps); c <= now+int64(windowSteps); c++ {
		if lastCounterUsed != nil && c <= *lastCounterUsed {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(secretRaw, c)), []byte(code)) == 1 {
			return true, c
		}
	}
	return false, 0
}

// hotp: HOTP(K, C) con HMAC-SHA1 (RFC 4226).
func hotp(secretRaw []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))
	m := hmac.New(sha1.New, secretRaw)
	_, _ = m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%06d", bin%1000000)
}
