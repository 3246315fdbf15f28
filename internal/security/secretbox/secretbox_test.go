package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := New(base64.StdEncoding.EncodeToString(testKey()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := "JBSWY3DPEHPK3PXP"
	ct, err := box.Seal(msg)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(ct, msg) {
		t.Fatal("ciphertext leaks plaintext")
	}
	pt, err := box.Open(ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pt != msg {
		t.Fatalf("got %q want %q", pt, msg)
	}
}

func TestOpen_DetectsTamper(t *testing.T) {
	box, err := New(hex.EncodeToString(testKey()))
	if err != nil {
		t.Fatalf("New(hex): %v", err)
	}
	ct, err := box.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	nonce, body, _ := strings.Cut(ct, "|")
	raw, _ := base64.StdEncoding.DecodeString(body)
	raw[0] ^= 0xff
	if _, err := box.Open(nonce + "|" + base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Fatal("expected tamper to be detected")
	}
	if _, err := box.Open("not-a-box"); err == nil {
		t.Fatal("expected format error")
	}
}

func TestNew_RejectsBadKeys(t *testing.T) {
	for _, k := range []string{"", "short", base64.StdEncoding.EncodeToString([]byte("16-bytes-key!!!!"))} {
		if _, err := New(k); err == nil {
			t.Fatalf("expected error for key %q", k)
		}
	}
}
