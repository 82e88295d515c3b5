package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvAPIURL, "")
	return home
}

func TestLoad_MissingFile(t *testing.T) {
	setupHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIURL)
}

func TestSetAPIURL_WritesYAML(t *testing.T) {
	home := setupHome(t)

	require.NoError(t, SetAPIURL("https://api.example.com/"))

	data, err := os.ReadFile(filepath.Join(home, ".config", "roleportal", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "api_url: https://api.example.com\n", string(data))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
}

func TestSetAPIURL_Invalid(t *testing.T) {
	setupHome(t)

	assert.Error(t, SetAPIURL("ftp://example.com"))
	assert.Error(t, SetAPIURL("not a url"))
}

func TestLoad_CorruptFile(t *testing.T) {
	home := setupHome(t)
	dir := filepath.Join(home, ".config", "roleportal")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api_url: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestResolveAPIURL_Precedence(t *testing.T) {
	setupHome(t)

	got, err := ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, got)

	require.NoError(t, SetAPIURL("https://file.example.com"))
	got, err = ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", got)

	t.Setenv(EnvAPIURL, "https://env.example.com")
	got, err = ResolveAPIURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", got)

	got, err = ResolveAPIURL("http://flag.example.com:9000/")
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example.com:9000", got)
}

func TestHost(t *testing.T) {
	assert.Equal(t, "api.example.com", Host("https://api.example.com"))
	assert.Equal(t, "localhost:8080", Host("http://localhost:8080"))
}
