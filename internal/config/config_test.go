package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsAndYAML(t *testing.T) {
	p := writeYAML(t, `
server:
  addr: ":9000"
auth:
  server_secret: "s3cr3t"
rate:
  enabled: true
  window: 30s
security:
  password_blacklist_path: common.txt
providers:
  shared:
    github:
      client_id: gh
      client_secret: ghs
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, time.Hour, c.AccessTTL())
	assert.Equal(t, 30*time.Second, c.Rate.Window)
	assert.Equal(t, 20, c.Rate.MaxRequests)
	assert.Equal(t, "gh", c.Providers.Shared["github"].ClientID)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "common.txt"), c.Security.PasswordBlacklistPath)
	assert.Equal(t, "auto", c.SMTP.TLSMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SERVER_SECRET", "from-env")
	t.Setenv("SERVER_ADDR", ":7000")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("RATE_MAX_REQUESTS", "5")
	t.Setenv("OAUTH_SHARED_GOOGLE_CLIENT_ID", "goog")
	t.Setenv("AUTH_PASSKEY_USER_VERIFICATION", "true")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Auth.ServerSecret)
	assert.Equal(t, ":7000", c.Server.Addr)
	assert.Equal(t, 15*time.Minute, c.AccessTTL())
	assert.Equal(t, 5, c.Rate.MaxRequests)
	assert.Equal(t, "goog", c.Providers.Shared["google"].ClientID)
	assert.True(t, c.Auth.PasskeyUserVerification)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AUTH_SERVER_SECRET", "x")
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"no secret", map[string]string{}},
		{"postgres without dsn", map[string]string{"AUTH_SERVER_SECRET": "x", "STORAGE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"AUTH_SERVER_SECRET": "x", "STORAGE_DRIVER": "mongo"}},
		{"bad ttl", map[string]string{"AUTH_SERVER_SECRET": "x", "JWT_ACCESS_TTL": "soon"}},
		{"prod memory", map[string]string{"AUTH_SERVER_SECRET": "0123456789abcdef0123456789abcdef", "APP_ENV": "prod"}},
		{"prod short secret", map[string]string{"AUTH_SERVER_SECRET": "short", "APP_ENV": "prod", "STORAGE_DRIVER": "postgres", "STORAGE_DSN": "postgres://x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("AUTH_SERVER_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
