// Package session implements the per-process configuration and
// reentrancy state described in §3 "Session context" and §9 "Global
// mutable state": a SessionConfig parsed once from the environment
// (§6) and never mutated except by the exec pipeline re-exporting it,
// a per-thread reentrancy guard that disables interception while the
// mapper itself is calling back into intercepted code, and a one-slot
// CWD memo.
package session

import (
	"strconv"
	"strings"
)

// Config is the immutable per-process SessionConfig (§9): read once on
// entry from the environment variables spec.md §6 lists as "consumed
// on entry", and treated as read-only thereafter except by the exec
// pipeline, which re-exports the relevant fields into the child's
// envp.
type Config struct {
	SessionDir     string // SBOX_SESSION_DIR, required
	Mode           string // SBOX_SESSION_MODE
	MappingMethod  string // SBOX_MAPPING_METHOD, optional sub-key
	NetworkMode    string // SBOX_NETWORK_MODE
	VpermIDs       string // SBOX_VPERM_IDS, format per §4.9
	ChrootPath     string // SBOX_CHROOT_PATH, virtual chroot in effect at spawn
	DisableMapping bool   // SBOX_DISABLE_MAPPING
	RedirectIgnore []string
	RedirectForce  []string
	Sigtrap        string // SBOX_SIGTRAP, preserved across exec
	AllowStaticAbs string // SBOX_ALLOW_STATIC_BINARY
}

// Getenv is the subset of process environment access SessionConfig
// parsing needs; satisfied by os.Getenv in production and a map in
// tests.
type Getenv func(name string) string

// Load parses a Config from the environment via getenv, the way the
// core's entry point does exactly once per process. An empty
// SBOX_SESSION_DIR is not itself an error here — the spec marks the
// daemon's reaction to a missing session as a separate fatal-runtime
// concern (§7), left to callers that actually need the rule tree.
func Load(getenv Getenv) Config {
	return Config{
		SessionDir:     getenv("SBOX_SESSION_DIR"),
		Mode:           getenv("SBOX_SESSION_MODE"),
		MappingMethod:  getenv("SBOX_MAPPING_METHOD"),
		NetworkMode:    getenv("SBOX_NETWORK_MODE"),
		VpermIDs:       getenv("SBOX_VPERM_IDS"),
		ChrootPath:     getenv("SBOX_CHROOT_PATH"),
		DisableMapping: parseBool(getenv("SBOX_DISABLE_MAPPING")),
		RedirectIgnore: splitColonList(getenv("SBOX_REDIRECT_IGNORE")),
		RedirectForce:  splitColonList(getenv("SBOX_REDIRECT_FORCE")),
		Sigtrap:        getenv("SBOX_SIGTRAP"),
		AllowStaticAbs: getenv("SBOX_ALLOW_STATIC_BINARY"),
	}
}

func parseBool(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true // any non-empty, non-boolean value counts as "set"
	}
	return b
}

func splitColonList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ":")
}

// HasRedirectIgnore reports whether path is a colon-separated element
// of SBOX_REDIRECT_IGNORE, consulted by IF_REDIRECT_IGNORE_IS_ACTIVE.
func (c Config) HasRedirectIgnore(path string) bool { return contains(c.RedirectIgnore, path) }

// HasRedirectForce reports whether path is a colon-separated element
// of SBOX_REDIRECT_FORCE, consulted by IF_REDIRECT_FORCE_IS_ACTIVE.
func (c Config) HasRedirectForce(path string) bool { return contains(c.RedirectForce, path) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
