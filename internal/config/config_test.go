package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "localhost:6379", c.Redis.Addr())
	assert.Equal(t, "https://api.yookassa.ru/v3", c.YooKassa.APIURL)
	assert.Equal(t, 30*time.Second, c.Poll.Interval)
	assert.Equal(t, 10*time.Second, c.Poll.ItemTimeout)
	assert.Equal(t, 4, c.Poll.Workers)
	assert.Equal(t, 3, c.Trial.Days)
	assert.Empty(t, c.Warnings)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingBotToken)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("POLL_WORKERS", "-2")
	t.Setenv("POLL_ITEM_TIMEOUT", "15")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, c.Poll.Interval)
	assert.Equal(t, 4, c.Poll.Workers)
	assert.Equal(t, 15*time.Second, c.Poll.ItemTimeout)
	assert.Len(t, c.Warnings, 2)
}

func TestLoadEnvFiles_ExistingEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_TOKEN=from_file\nTRIAL_DAYS=7\n"), 0o600))

	t.Setenv("BOT_TOKEN", "from_env")
	t.Setenv("TRIAL_DAYS", "")
	require.NoError(t, os.Unsetenv("TRIAL_DAYS"))

	require.NoError(t, LoadEnvFiles(path, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("TRIAL_DAYS") })

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_env", c.BotToken)
	assert.Equal(t, 7, c.Trial.Days)
}
