package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadParsesEnv(t *testing.T) {
	env := map[string]string{
		"SBOX_SESSION_DIR":      "/S",
		"SBOX_SESSION_MODE":     "tools",
		"SBOX_REDIRECT_IGNORE":  "/a:/b",
		"SBOX_DISABLE_MAPPING":  "1",
		"SBOX_ALLOW_STATIC_BINARY": "/opt/app",
	}
	cfg := Load(func(k string) string { return env[k] })

	assert.Equal(t, "/S", cfg.SessionDir)
	assert.Equal(t, "tools", cfg.Mode)
	assert.True(t, cfg.DisableMapping)
	assert.Equal(t, []string{"/a", "/b"}, cfg.RedirectIgnore)
	assert.True(t, cfg.HasRedirectIgnore("/a"))
	assert.False(t, cfg.HasRedirectIgnore("/c"))
	assert.Equal(t, "/opt/app", cfg.AllowStaticAbs)
}

func TestLoadDisableMappingNonBooleanValueCounts(t *testing.T) {
	env := map[string]string{"SBOX_DISABLE_MAPPING": "yes"}
	cfg := Load(func(k string) string { return env[k] })
	assert.True(t, cfg.DisableMapping)
}

func TestLoadEmptyEnv(t *testing.T) {
	cfg := Load(func(string) string { return "" })
	assert.False(t, cfg.DisableMapping)
	assert.Nil(t, cfg.RedirectIgnore)
}
