package tokens

import (
	"strings"
	"testing"
)

func TestGenerateSecureRandomString(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, err := GenerateSecureRandomString()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(s) != 45 {
			t.Fatalf("expected 45 chars, got %d (%q)", len(s), s)
		}
		if s != strings.ToLower(s) {
			t.Fatalf("expected lowercase, got %q", s)
		}
		if seen[s] {
			t.Fatalf("duplicate secret %q", s)
		}
		seen[s] = true
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ABC12xyz "); got != "abc12xyz" {
		t.Fatalf("got %q", got)
	}
}

func TestSHA256Base64URL_Stable(t *testing.T) {
	a := SHA256Base64URL("code")
	if a != SHA256Base64URL("code") {
		t.Fatal("hash not deterministic")
	}
	if a == SHA256Base64URL("code2") {
		t.Fatal("different inputs produced same hash")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("expected base64url without padding, got %q", a)
	}
}
