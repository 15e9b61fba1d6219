package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración raíz del servicio. Se carga desde YAML y puede
// ser pisada por variables de entorno (ver applyEnv).
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory (memory solo para desarrollo/tests)
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Redis struct {
		// Si Addr está vacío no se usa redis: revocation y rate quedan in-process.
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Seed ed25519 en base64. Si está vacío se genera una clave efímera
		// (solo aceptable en dev: los tokens mueren con el proceso).
		KeySeed    string `yaml:"key_seed"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		// Rol de operador de plataforma, único que cruza tenants.
		PrivilegedRole string `yaml:"privileged_role"`
		// Rutas exentas del gate. Lista explícita, nunca inferida por convención.
		ExemptPaths []string `yaml:"exempt_paths"`
		Cookie      struct {
			Name     string `yaml:"name"`
			Domain   string `yaml:"domain"`
			Secure   bool   `yaml:"secure"`
			SameSite string `yaml:"samesite"`
		} `yaml:"cookie"`
	} `yaml:"auth"`

	Audit struct {
		// fail_closed: si un write warning+ falla, el request se rechaza con 503.
		// Default false (fail-open): el request continúa y la falla se escala
		// por la vía de alerta, para no crear un DoS vía caída del audit-storage.
		FailClosed   bool   `yaml:"fail_closed"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"audit"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
		Refresh struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"refresh"`
	} `yaml:"rate"`
}

// Load lee el YAML (si existe), aplica overrides de entorno y defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv pisa valores con variables de entorno (toman precedencia sobre YAML).
func (c *Config) applyEnv() {
	setStr(&c.App.Env, "APP_ENV")
	setStr(&c.Log.Level, "LOG_LEVEL")
	setStr(&c.Server.Addr, "SERVER_ADDR")
	setStr(&c.Storage.Driver, "STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "DATABASE_URL")
	setStr(&c.Redis.Addr, "REDIS_ADDR")
	setStr(&c.Redis.Password, "REDIS_PASSWORD")
	setStr(&c.JWT.Issuer, "JWT_ISSUER")
	setStr(&c.JWT.KeySeed, "JWT_KEY_SEED")
	setStr(&c.JWT.AccessTTL, "JWT_ACCESS_TTL")
	setStr(&c.JWT.RefreshTTL, "JWT_REFRESH_TTL")
	if v := os.Getenv("AUDIT_FAIL_CLOSED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Audit.FailClosed = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "https://auth.aulalink.dev"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "3h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30 días
	}
	if c.Auth.PrivilegedRole == "" {
		c.Auth.PrivilegedRole = "platform_operator"
	}
	if len(c.Auth.ExemptPaths) == 0 {
		c.Auth.ExemptPaths = []string{
			"/v1/auth/login",
			"/v1/auth/refresh",
			"/v1/auth/password-reset/request",
			"/v1/auth/password-reset/confirm",
			"/healthz",
			"/metrics",
		}
	}
	if c.Auth.Cookie.Name == "" {
		c.Auth.Cookie.Name = "__Host-aulalink_refresh"
	}
	if c.Auth.Cookie.SameSite == "" {
		c.Auth.Cookie.SameSite = "strict"
	}
	if c.Audit.WriteTimeout == "" {
		c.Audit.WriteTimeout = "5s"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.Refresh.Limit == 0 {
		c.Rate.Refresh.Limit = 30
	}
	if c.Rate.Refresh.Window == "" {
		c.Rate.Refresh.Window = "1m"
	}
}

func (c *Config) validate() error {
	if c.Storage.Driver != "postgres" && c.Storage.Driver != "memory" {
		return fmt.Errorf("config: storage.driver inválido: %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn requerido para driver postgres")
	}
	if c.AccessTTL() <= 0 || c.RefreshTTL() <= 0 {
		return fmt.Errorf("config: jwt ttls inválidos")
	}
	return nil
}

// ─── Accessors de duraciones ───
// Los TTLs son constantes de configuración, nunca parámetros por request.

func (c *Config) AccessTTL() time.Duration       { return parseDur(c.JWT.AccessTTL, 3*time.Hour) }
func (c *Config) RefreshTTL() time.Duration      { return parseDur(c.JWT.RefreshTTL, 720*time.Hour) }
func (c *Config) AuditWriteTimeout() time.Duration {
	return parseDur(c.Audit.WriteTimeout, 5*time.Second)
}
func (c *Config) ReadTimeout() time.Duration  { return parseDur(c.Server.ReadTimeout, 10*time.Second) }
func (c *Config) WriteTimeout() time.Duration { return parseDur(c.Server.WriteTimeout, 30*time.Second) }
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDur(c.Server.ShutdownTimeout, 15*time.Second)
}
func (c *Config) PostgresConnMaxLifetime() time.Duration {
	return parseDur(c.Storage.Postgres.ConnMaxLifetime, 30*time.Minute)
}
func (c *Config) LoginRateWindow() time.Duration   { return parseDur(c.Rate.Login.Window, time.Minute) }
func (c *Config) RefreshRateWindow() time.Duration { return parseDur(c.Rate.Refresh.Window, time.Minute) }

func parseDur(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
