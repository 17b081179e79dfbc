package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func load(t *testing.T, path string) (*Root, error) {
	t.Helper()
	v := viper.New()
	v.Set("config", path)
	return Load(v)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
video:
  frame_stride: 15
services:
  asr:
    url: "http://asr:9000"
paths:
  storage: /srv/sessions
`)
	c, err := load(t, path)
	require.NoError(t, err)

	assert.Equal(t, 15, c.Video.FrameStride)
	assert.Equal(t, "http://asr:9000", c.Services.ASR.URL)
	assert.Equal(t, "/srv/sessions", c.Paths.Storage)
	// untouched defaults survive
	assert.Equal(t, "libx264", c.Video.Codec)
	assert.Equal(t, 300, c.Services.ASR.Timeout)
	assert.Equal(t, 0.3, c.LLM.Temperature)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	c, err := load(t, writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-123")
	t.Setenv("SI_VIDEO_WORKERS", "4")
	t.Setenv("SI_STATUS_BACKEND", "redis")
	t.Setenv("SI_STATUS_REDIS_ADDR", "redis:6379")

	c, err := load(t, writeConfig(t, "pipeline:\n  log_level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-or-123", c.LLM.APIKey)
	assert.Equal(t, 4, c.Video.Workers)
	assert.Equal(t, "redis", c.Status.Backend)
	assert.Equal(t, "redis:6379", c.Status.RedisAddr)
	assert.Equal(t, "warn", c.Pipeline.LogLvl)
}

func TestLoad_FlagOverride(t *testing.T) {
	v := viper.New()
	v.Set("config", writeConfig(t, ""))
	v.Set("paths.storage", "/tmp/elsewhere")
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", c.Paths.Storage)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"redis without address": "status:\n  backend: redis\n",
		"unknown backend":       "status:\n  backend: etcd\n",
		"zero stride":           "video:\n  frame_stride: 0\n",
		"bad log level":         "pipeline:\n  log_level: loud\n",
		"bad url":               "services:\n  asr:\n    url: not a url\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, writeConfig(t, body))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(t, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "open config")
}

func TestLoad_Malformed(t *testing.T) {
	_, err := load(t, writeConfig(t, "video: [1, 2"))
	assert.ErrorContains(t, err, "decode config")
}

func TestDurSeconds(t *testing.T) {
	assert.Equal(t, "30s", DurSeconds(30).String())
}
