package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	for _, key := range []string{"ARMGUARD_DB", "ARMGUARD_LOG_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "armguard.db", e.DBPath)
	assert.Equal(t, "info", e.LogLevel)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("ARMGUARD_DB", "/var/lib/armguard/params.db")
	t.Setenv("ARMGUARD_PROFILE", "quad.cue")
	t.Setenv("ARMGUARD_LOG_LEVEL", "debug")
	t.Setenv("ARMGUARD_SESSION", "bench-1")

	e, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, Env{
		DBPath:   "/var/lib/armguard/params.db",
		Profile:  "quad.cue",
		LogLevel: "debug",
		Session:  "bench-1",
	}, e)
}

type portEnv struct {
	Port int `env:"ARMGUARD_TEST_PORT"`
}

func TestParseEnv_WrapsErrors(t *testing.T) {
	t.Setenv("ARMGUARD_TEST_PORT", "not-a-number")

	var cfg portEnv
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"))
}
