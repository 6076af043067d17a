package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("OTPGUARD_JWT_KEY", "k")
	t.Setenv("OTPGUARD_DSN", "postgres://u:p@localhost/otp")
	t.Setenv("OTPGUARD_CLEANUP_DELAY", "5s")
	t.Setenv("OTPGUARD_STRICT_TEMPLATE", "true")
	t.Chdir(t.TempDir())

	c, err := Load("", "")
	require.NoError(t, err)
	require.Equal(t, "k", c.JWTKey)
	require.Equal(t, ":3001", c.Addr)
	require.Equal(t, 5*time.Second, c.CleanupDelay)
	require.True(t, c.StrictTemplate)
	require.Equal(t, 24*time.Hour, c.AccessTTL)
	require.Equal(t, "local", c.StorageBackend)
	require.Equal(t, 5, c.LoginMaxFails)
	require.False(t, c.TrustProxy)
	require.False(t, c.Development())
}

func TestLoad_FileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
addr: ":9000"
dsn: "postgres://file"
storage_backend: s3
s3_bucket: scripts
env: development
trust_proxy: true
`), 0o600))
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("OTPGUARD_JWT_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("OTPGUARD_JWT_KEY") })

	c, err := Load(cfgPath, envPath)
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Addr)
	require.Equal(t, "from-dotenv", c.JWTKey)
	require.Equal(t, "s3", c.StorageBackend)
	require.Equal(t, "scripts", c.S3Bucket)
	require.True(t, c.TrustProxy)
	require.True(t, c.Development())
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	t.Setenv("OTPGUARD_JWT_KEY", "k")
	t.Setenv("OTPGUARD_DSN", "dsn")
	t.Chdir(t.TempDir())

	_, err := Load("", "does-not-exist.env")
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() Config {
		return Config{
			JWTKey: "k", DSN: "d", AccessTTL: time.Hour, CleanupDelay: time.Minute,
			StorageBackend: "local", StorageRoot: "uploads",
		}
	}
	require.NoError(t, func() error { c := base(); return c.Validate() }())

	cases := map[string]func(*Config){
		"no jwt":        func(c *Config) { c.JWTKey = "" },
		"no dsn":        func(c *Config) { c.DSN = "" },
		"bad backend":   func(c *Config) { c.StorageBackend = "ftp" },
		"s3 no bucket":  func(c *Config) { c.StorageBackend = "s3" },
		"half admin":    func(c *Config) { c.AdminEmail = "a@x.io" },
		"zero cleanup":  func(c *Config) { c.CleanupDelay = 0 },
		"no local root": func(c *Config) { c.StorageRoot = "" },
	}
	for name, mut := range cases {
		c := base()
		mut(&c)
		require.Error(t, c.Validate(), name)
	}
}
