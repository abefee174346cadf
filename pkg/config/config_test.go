package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port      int      `env:"TEST_CFG_PORT" envDefault:"4242"`
	Domain    string   `env:"TEST_CFG_DOMAIN"`
	Countries []string `env:"TEST_CFG_COUNTRIES" envDefault:"US,CA" envSeparator:","`
	Debug     bool     `env:"TEST_CFG_DEBUG" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Port)
	assert.Empty(t, cfg.Domain)
	assert.Equal(t, []string{"US", "CA"}, cfg.Countries)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_DOMAIN", "https://shop.example.com")
	t.Setenv("TEST_CFG_COUNTRIES", "CA")
	t.Setenv("TEST_CFG_DEBUG", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://shop.example.com", cfg.Domain)
	assert.Equal(t, []string{"CA"}, cfg.Countries)
	assert.True(t, cfg.Debug)
}

type requiredConfig struct {
	APIKey string `env:"TEST_CFG_API_KEY,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_DOTENV_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_CFG_DOTENV_KEY") })

	var cfg struct {
		Key string `env:"TEST_CFG_DOTENV_KEY"`
	}
	err := Load(&cfg, path)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Key)
}

func TestLoad_DotenvDoesNotOverrideProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_PORT=1111\n"), 0o600))
	t.Setenv("TEST_CFG_PORT", "2222")

	var cfg testConfig
	err := Load(&cfg, path)

	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Port)
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, filepath.Join(t.TempDir(), "absent.env"))

	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.Port)
}
