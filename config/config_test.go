package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressfeed/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pressfeed.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[feed]
half_life_days = 3
fanout_limit = 64
max_page_size = 50
retention_days = 30

[[interests]]
name = "food"
description = "Cooking and restaurants"
weight = 2.0

[[interests]]
name = "tech"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Feed.FanoutLimit)
	assert.Equal(t, 50, cfg.Feed.MaxPageSize)
	assert.Equal(t, 3*24*time.Hour, cfg.HalfLife())
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())

	require.Len(t, cfg.Interests, 2)
	assert.Equal(t, "food", cfg.Interests[0].Name)
	assert.Equal(t, 2.0, cfg.Interests[0].Weight)
	// Missing weights default to 1.0
	assert.Equal(t, 1.0, cfg.Interests[1].Weight)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 7*24*time.Hour, cfg.HalfLife())
	assert.Equal(t, 90*24*time.Hour, cfg.Retention())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := writeConfig(t, "not valid toml [")
	_, err = config.LoadConfig(path)
	assert.Error(t, err)
}
