package redirect

import (
	"testing"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/stretchr/testify/assert"
)

func TestIsAllowed(t *testing.T) {
	domains := []repository.Domain{
		{Domain: "https://app.example.com", HandlerPath: "/handler"},
		{Domain: "https://example.org/tenant", HandlerPath: "/auth"},
	}

	cases := []struct {
		name      string
		url       string
		localhost bool
		want      bool
	}{
		{"same origin", "https://app.example.com/after?x=1", false, true},
		{"explicit default port", "https://app.example.com:443/", false, true},
		{"other scheme", "http://app.example.com/", false, false},
		{"other port", "https://app.example.com:8443/", false, false},
		{"suffix attack", "https://app.example.com.evil.io/", false, false},
		{"userinfo", "https://app.example.com@evil.io/", false, false},
		{"path under domain", "https://example.org/tenant/cb", false, true},
		{"path outside domain", "https://example.org/other", false, false},
		{"path prefix trick", "https://example.org/tenant-evil", false, false},
		{"relative", "/relative", false, false},
		{"javascript", "javascript:alert(1)", false, false},
		{"localhost denied", "http://localhost:3000/cb", false, false},
		{"localhost allowed", "http://localhost:3000/cb", true, true},
		{"loopback allowed", "http://127.0.0.1:8080/", true, true},
		{"empty", "", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsAllowed(tc.url, domains, tc.localhost))
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	domains := []repository.Domain{{Domain: "https://app.example.com"}}

	rp, ok := OriginAllowed("https://app.example.com", domains, false)
	assert.True(t, ok)
	assert.Equal(t, "app.example.com", rp)

	_, ok = OriginAllowed("https://evil.example.com", domains, false)
	assert.False(t, ok)

	_, ok = OriginAllowed("http://localhost:3000", domains, false)
	assert.False(t, ok)

	rp, ok = OriginAllowed("http://localhost:3000", domains, true)
	assert.True(t, ok)
	assert.Equal(t, "localhost", rp)

	_, ok = OriginAllowed("not a url", domains, true)
	assert.False(t, ok)
}
