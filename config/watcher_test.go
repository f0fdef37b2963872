package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWatchedConfig(t *testing.T, path string, dailyUSD string) {
	t.Helper()
	content := "[budget]\ndaily_usd = " + dailyUSD + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestWatcher(t *testing.T, path string) (*Watcher, chan *Config) {
	t.Helper()
	w, err := NewWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })
	w.debouncePeriod = 20 * time.Millisecond

	reloaded := make(chan *Config, 4)
	w.OnReload(func(c *Config) error {
		reloaded <- c
		return nil
	})
	w.Start()
	return w, reloaded
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeWatchedConfig(t, path, "1.5")

	_, reloaded := newTestWatcher(t, path)

	writeWatchedConfig(t, path, "2.5")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 2.5, cfg.Budget.DailyUSD)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherOwnWriteSuppressionIsOneShot(t *testing.T) {
	w := &Watcher{}
	assert.False(t, w.checkOwnWrite())

	w.MarkOwnWrite()
	assert.True(t, w.checkOwnWrite())
	assert.False(t, w.checkOwnWrite())
}

func TestWatcherSkipsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeWatchedConfig(t, path, "1.5")

	_, reloaded := newTestWatcher(t, path)

	// Out-of-range concurrency fails validation; callbacks must not see it.
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nmax_concurrency = 99\n"), 0644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("reload fired with invalid config: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/home/x/.promptpulse/config.toml.back1"))
	assert.True(t, isBackupFile("config.toml.back3"))
	assert.False(t, isBackupFile("/home/x/.promptpulse/config.toml"))
}
