package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/authcore/internal/email"
)

// SharedProvider son las credenciales del servidor para proveedores type=shared.
type SharedProvider struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicURL es la base externa de la API (callbacks upstream, iss de los JWT).
		PublicURL       string        `yaml:"public_url"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SecureCookies   bool          `yaml:"secure_cookies"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns int32 `yaml:"max_conns"`
			MinConns int32 `yaml:"min_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// Redis es opcional: outer states OAuth y rate limiting compartido entre réplicas.
	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Cache struct {
		ProjectTTL time.Duration `yaml:"project_ttl"`
	} `yaml:"cache"`

	JWT struct {
		Issuer    string `yaml:"issuer"`
		AccessTTL string `yaml:"access_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		// ServerSecret deriva las claves de firma por proyecto.
		ServerSecret string `yaml:"server_secret"`
		TOTPIssuer   string `yaml:"totp_issuer"`
		// PasskeyUserVerification exige el flag UV en las ceremonias WebAuthn.
		PasskeyUserVerification bool `yaml:"passkey_user_verification"`
	} `yaml:"auth"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		Window      time.Duration `yaml:"window"`
		MaxRequests int           `yaml:"max_requests"`
	} `yaml:"rate"`

	GC struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Grace    time.Duration `yaml:"grace"`
	} `yaml:"gc"`

	SMTP email.SMTPConfig `yaml:"smtp"`

	Security struct {
		SecretBoxMasterKey string `yaml:"secretbox_master_key"` // base64(32 bytes)
		PasswordPolicy     struct {
			MinLength     int  `yaml:"min_length"`
			MaxLength     int  `yaml:"max_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	Providers struct {
		Shared map[string]SharedProvider `yaml:"shared"`
	} `yaml:"providers"`
}

// Load lee el YAML (path vacío o inexistente = solo defaults), aplica overrides de entorno
// y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Normalizar ruta de blacklist (si relativa) respecto al directorio del YAML
	if p := strings.TrimSpace(c.Security.PasswordBlacklistPath); p != "" && path != "" {
		if !filepath.IsAbs(p) {
			c.Security.PasswordBlacklistPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
		}
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "authcore:"
	}
	if c.Cache.ProjectTTL == 0 {
		c.Cache.ProjectTTL = 30 * time.Second
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.Auth.TOTPIssuer == "" {
		c.Auth.TOTPIssuer = "authcore"
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 20
	}
	if c.GC.Interval == 0 {
		c.GC.Interval = time.Hour
	}
	if c.GC.Grace == 0 {
		c.GC.Grace = 24 * time.Hour
	}
	if c.Security.PasswordPolicy.MinLength == 0 {
		c.Security.PasswordPolicy.MinLength = 8
	}
	if c.Security.PasswordPolicy.MaxLength == 0 {
		c.Security.PasswordPolicy.MaxLength = 70
	}
	if c.SMTP.TLSMode == "" {
		c.SMTP.TLSMode = "auto"
	}
	if c.Providers.Shared == nil {
		c.Providers.Shared = map[string]SharedProvider{}
	}
}

// AccessTTL ya validado por Validate.
func (c *Config) AccessTTL() time.Duration {
	d, _ := time.ParseDuration(c.JWT.AccessTTL)
	return d
}

// IsProd indica APP_ENV=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}
	if v, ok := getEnvBool("SERVER_SECURE_COOKIES"); ok {
		c.Server.SecureCookies = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = int32(v)
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// JWT / AUTH
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("AUTH_SERVER_SECRET"); ok {
		c.Auth.ServerSecret = v
	}
	if v, ok := getEnvBool("AUTH_PASSKEY_USER_VERIFICATION"); ok {
		c.Auth.PasskeyUserVerification = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// GC
	if v, ok := getEnvBool("GC_ENABLED"); ok {
		c.GC.Enabled = v
	}
	if v, ok := getEnvDur("GC_INTERVAL"); ok {
		c.GC.Interval = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.FromEmail = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLSMode = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvStr("SECURITY_PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = v
	}

	// Credenciales shared: OAUTH_SHARED_<ID>_CLIENT_ID / _CLIENT_SECRET
	for _, id := range []string{"github", "google", "microsoft", "gitlab"} {
		up := strings.ToUpper(id)
		sp := c.Providers.Shared[id]
		if v, ok := getEnvStr("OAUTH_SHARED_" + up + "_CLIENT_ID"); ok {
			sp.ClientID = v
		}
		if v, ok := getEnvStr("OAUTH_SHARED_" + up + "_CLIENT_SECRET"); ok {
			sp.ClientSecret = v
		}
		if sp.ClientID != "" {
			c.Providers.Shared[id] = sp
		}
	}
}

// Validate chequea lo mínimo para arrancar; en prod además exige secretos explícitos.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported (memory|postgres)", c.Storage.Driver))
	}
	if d, err := time.ParseDuration(c.JWT.AccessTTL); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("jwt.access_ttl %q is not a valid duration", c.JWT.AccessTTL))
	}
	if strings.TrimSpace(c.Auth.ServerSecret) == "" {
		errs = append(errs, errors.New("auth.server_secret (AUTH_SERVER_SECRET) is required"))
	} else if c.IsProd() && len(c.Auth.ServerSecret) < 32 {
		errs = append(errs, errors.New("auth.server_secret must have at least 32 characters in prod"))
	}
	if c.IsProd() && strings.TrimSpace(c.Security.SecretBoxMasterKey) == "" {
		errs = append(errs, errors.New("security.secretbox_master_key (SECRETBOX_MASTER_KEY) is required in prod"))
	}
	if c.IsProd() && c.Storage.Driver == "memory" {
		errs = append(errs, errors.New("storage.driver=memory is not allowed in prod"))
	}
	if c.Rate.MaxRequests < 0 || c.Rate.Window < 0 {
		errs = append(errs, errors.New("rate.window and rate.max_requests must be positive"))
	}
	if c.Security.PasswordPolicy.MaxLength < c.Security.PasswordPolicy.MinLength {
		errs = append(errs, errors.New("security.password_policy.max_length must be >= min_length"))
	}
	return errors.Join(errs...)
}
