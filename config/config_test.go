package config_test

import (
	"MultiView/config"
	"MultiView/keys"
	"MultiView/movement"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assets(t *testing.T) fstest.MapFS {
	t.Helper()
	data, err := os.ReadFile("../assets/macros.yaml")
	require.NoError(t, err)
	return fstest.MapFS{config.File: {Data: data}}
}

func TestShippedFileMatchesBuiltins(t *testing.T) {
	cfg, err := config.Load(assets(t))
	require.NoError(t, err)

	assert.Equal(t, keys.QWERTY, cfg.Layout)
	assert.Equal(t, movement.Synchronized(), cfg.Policy)
	assert.Equal(t, movement.Simple(), cfg.Policies[movement.PolicySimple])
	assert.Equal(t, "v", string(cfg.AFK.TapKey))
	assert.Equal(t, 60*time.Second, cfg.AFK.Watchdog)
	assert.Equal(t, 2, cfg.DemoViews)
	assert.Equal(t, "127.0.0.1:8765", cfg.Listen)
}

func TestParseOverridesOnlyGivenFields(t *testing.T) {
	cfg, err := config.Parse([]byte(`
layout: azerty
policy: simple
policies:
  simple:
    substitution: 0.3
    holdMax: 2s
afk:
  watchdog: 30s
`))
	require.NoError(t, err)
	assert.Equal(t, movement.PolicySimple, cfg.Policy.Name)
	assert.Equal(t, 0.3, cfg.Policy.Substitution)
	assert.Equal(t, 2*time.Second, cfg.Policy.HoldMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Policy.HoldMin)
	assert.Equal(t, keys.AZERTY, cfg.Policy.Layout)
	assert.Equal(t, keys.AZERTY, cfg.Policies[movement.PolicySynchronized].Layout)
	assert.Equal(t, 30*time.Second, cfg.AFK.Watchdog)
	assert.Equal(t, 600*time.Millisecond, cfg.AFK.PlayerHold)
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"layout":   "layout: dvorak",
		"policy":   "policy: frantic",
		"unknown":  "policies:\n  frantic:\n    substitution: 1",
		"duration": "afk:\n  watchdog: soon",
		"syntax":   "policies: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(config.EnvLayout, "azerty")
	t.Setenv(config.EnvPolicy, "simple")
	t.Setenv(config.EnvListen, "")
	t.Setenv(config.EnvDemoViews, "4")
	t.Setenv(config.EnvDebug, "1")
	t.Setenv(config.EnvMute, "true")
	t.Setenv(config.EnvLang, "pt")

	cfg, err := config.Load(assets(t))
	require.NoError(t, err)
	assert.Equal(t, keys.AZERTY, cfg.Layout)
	assert.Equal(t, movement.PolicySimple, cfg.Policy.Name)
	assert.Equal(t, keys.AZERTY, cfg.Policy.Layout)
	assert.Empty(t, cfg.Listen)
	assert.Equal(t, 4, cfg.DemoViews)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Mute)
	assert.Equal(t, "pt", cfg.Lang)
}

func TestEnvironmentErrors(t *testing.T) {
	for env, v := range map[string]string{
		config.EnvLayout:    "dvorak",
		config.EnvPolicy:    "frantic",
		config.EnvDemoViews: "many",
		config.EnvDebug:     "maybe",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, v)
			_, err := config.Load(assets(t))
			assert.ErrorContains(t, err, env)
		})
	}
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cfg, err := config.Parse([]byte(`
policies:
  synchronized:
    holdMin: 2s
    holdMax: 1s
  simple:
    jumps: 0
afk:
  playerHistory: 0
`))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "hold range")
	assert.ErrorContains(t, err, "jumps 0")
	assert.ErrorContains(t, err, "playerHistory")
}

func TestMissingFile(t *testing.T) {
	_, err := config.Load(fstest.MapFS{})
	assert.ErrorContains(t, err, config.File)
}
