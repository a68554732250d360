package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 4001, cfg.Port)
	assert.Equal(t, BusyQueue, cfg.OnBusy)
	assert.Equal(t, 100*time.Millisecond, cfg.Debounce.Std())
	assert.True(t, cfg.WatchEnabled())
	assert.Zero(t, cfg.IdleTimeout.Std())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("EDITOR", "")

	content := `{
		// comments are allowed
		"editor": "nano",
		"port": 4045,
		"multi": true,
		"debounce": "250ms",
		"idleTimeout": "90s",
		"watch": false
	}`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ghostedit"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "ghostedit", "config.jsonc"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nano", cfg.Editor)
	assert.Equal(t, 4045, cfg.Port)
	assert.True(t, cfg.Multi)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce.Std())
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout.Std())
	assert.False(t, cfg.WatchEnabled())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ghostedit"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "ghostedit", "config.json"),
		[]byte(`{"editor": "nano", "port": 5000}`), 0o644))

	t.Setenv("GHOSTEDIT_EDITOR", "vim")
	t.Setenv("GHOSTEDIT_PORT", "6000")
	t.Setenv("GHOSTEDIT_ON_BUSY", "reject")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vim", cfg.Editor)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, BusyReject, cfg.OnBusy)
}

func TestEditorFallsBackToEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GHOSTEDIT_EDITOR", "")
	t.Setenv("EDITOR", "vi")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "vi", cfg.Editor)
}

func TestMalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ghostedit"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "ghostedit", "config.json"), []byte("{nope"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Editor = "vim"
	assert.NoError(t, cfg.Validate())

	cfg.Editor = ""
	assert.Error(t, cfg.Validate())

	cfg.Editor = "vim"
	cfg.OnBusy = "panic"
	assert.Error(t, cfg.Validate())

	cfg.OnBusy = BusyReject
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1.5s"`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`200`), &d))
	assert.Equal(t, 200*time.Millisecond, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
