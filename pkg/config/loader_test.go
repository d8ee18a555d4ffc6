package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/config"
)

type testConfig struct {
	Name    string   `env:"TEST_LOADER_NAME" envDefault:"fallback"`
	Port    int      `env:"TEST_LOADER_PORT" envDefault:"8080"`
	Tags    []string `env:"TEST_LOADER_TAGS" envSeparator:","`
	Secret  string   `env:"TEST_LOADER_SECRET"`
	Require string   `env:"TEST_LOADER_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_LOADER_NAME", "subgate")
	t.Setenv("TEST_LOADER_PORT", "9090")
	t.Setenv("TEST_LOADER_TAGS", "a,b,c")
	t.Setenv("TEST_LOADER_REQUIRED", "present")

	cfg, err := config.Load[testConfig]()
	require.NoError(t, err)

	assert.Equal(t, "subgate", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tags)
	assert.Empty(t, cfg.Secret)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEST_LOADER_REQUIRED", "present")
	os.Unsetenv("TEST_LOADER_NAME")
	os.Unsetenv("TEST_LOADER_PORT")

	cfg, err := config.Load[testConfig]()
	require.NoError(t, err)

	assert.Equal(t, "fallback", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("TEST_LOADER_REQUIRED")

	_, err := config.Load[testConfig]()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestMustLoad_PanicsOnMissingRequired(t *testing.T) {
	os.Unsetenv("TEST_LOADER_REQUIRED")

	assert.Panics(t, func() {
		config.MustLoad[testConfig]()
	})
}

func TestLoadEnv_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("TEST_LOADER_FROM_FILE=file_value\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TEST_LOADER_FROM_FILE") })

	require.NoError(t, config.LoadEnv(path))
	assert.Equal(t, "file_value", os.Getenv("TEST_LOADER_FROM_FILE"))
}

func TestLoadEnv_MissingExplicitFile(t *testing.T) {
	err := config.LoadEnv("testdata/does_not_exist.env")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrEnvFileNotLoaded)
}

func TestAppConfig_IsProduction(t *testing.T) {
	t.Parallel()

	assert.True(t, config.AppConfig{Env: "production"}.IsProduction())
	assert.False(t, config.AppConfig{Env: "development"}.IsProduction())
	assert.False(t, config.AppConfig{Env: "staging"}.IsProduction())
}
