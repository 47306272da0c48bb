package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadMissingConfig(t *testing.T) {
	testHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Server)
	assert.Equal(t, "", cfg.Profile)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	home := testHome(t)

	cfg := &Config{
		Server:           "http://localhost:8001",
		LastConversation: "c1",
	}
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(filepath.Join(home, ".council", "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://localhost:8001")

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg.Server, loaded.Server)
	assert.Equal(t, "c1", loaded.LastConversation)
}

func TestProfileConfigIsSeparate(t *testing.T) {
	home := testHome(t)

	def := &Config{Server: "http://default:8001"}
	require.NoError(t, def.Save())

	work := &Config{Server: "http://work:8001", Profile: "work"}
	require.NoError(t, work.Save())

	assert.FileExists(t, filepath.Join(home, ".council", "config.json"))
	assert.FileExists(t, filepath.Join(home, ".council", "config-work.json"))

	loaded, err := Load("work")
	require.NoError(t, err)
	assert.Equal(t, "http://work:8001", loaded.Server)
	assert.Equal(t, "work", loaded.Profile)
}

func TestLoadCorruptConfig(t *testing.T) {
	home := testHome(t)
	dir := filepath.Join(home, ".council")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{broken"), 0600))

	_, err := Load("")
	assert.Error(t, err)
}

func TestListProfiles(t *testing.T) {
	home := testHome(t)
	dir := filepath.Join(home, ".council")
	require.NoError(t, os.MkdirAll(dir, 0700))
	for _, name := range []string{"config.json", "config-work.json", "council.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0600))
	}

	profiles, err := ListProfiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"default", "work"}, profiles)
}

func TestValidate(t *testing.T) {
	testHome(t)
	t.Setenv(tokenEnvVar, "")

	noServer := &Config{}
	assert.ErrorContains(t, noServer.Validate(), "not logged in")

	noToken := &Config{Server: "http://localhost:8001"}
	assert.ErrorContains(t, noToken.Validate(), "not authenticated")

	profiled := &Config{Profile: "work"}
	assert.ErrorContains(t, profiled.Validate(), "--profile work")

	t.Setenv(tokenEnvVar, "env-tok")
	ok := &Config{Server: "http://localhost:8001"}
	assert.NoError(t, ok.Validate())
}

func TestProfileName(t *testing.T) {
	assert.Equal(t, "default", ProfileName(""))
	assert.Equal(t, "work", ProfileName("work"))
}

func TestLogPath(t *testing.T) {
	home := testHome(t)
	path, err := LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".council", "council.log"), path)
}
