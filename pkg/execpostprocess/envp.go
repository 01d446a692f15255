package execpostprocess

import "strings"

// Envp is the mutable environment-variable set postprocessing builds,
// keyed by name for easy strip/set; order has no exec(2) semantics.
type Envp map[string]string

// stripVars removes names from e; used before appending the freshly
// computed LD_* / locale set so no stale value survives a chained
// exec.
func (e Envp) stripVars(names ...string) {
	for _, n := range names {
		delete(e, n)
	}
}

// stripSB2Vars removes every __SB2_* name, the way a fresh round of
// postprocessing clears whatever the previous exec stage injected
// before computing its own values.
func (e Envp) stripSB2Vars() {
	for k := range e {
		if strings.HasPrefix(k, "__SB2_") {
			delete(e, k)
		}
	}
}

// preservedLdValue returns the value a chained exec should treat as
// "the user's value" for varName (LD_LIBRARY_PATH or LD_PRELOAD): the
// __SB2_-prefixed preserved copy from a previous postprocessing pass
// if present, else whatever the caller itself set on the live var
// (the first exec in a session, before any sandboxing has touched it).
func preservedLdValue(e Envp, varName string) string {
	if v, ok := e["__SB2_"+varName]; ok {
		return v
	}
	return e[varName]
}

// joinParts joins non-empty parts with ':', the way §4.7 combines a
// policy prefix, the user's preserved value, and a policy suffix:
// "omitting empty parts and the separator between two empties".
func joinParts(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ":")
}

// computeLd computes the new LD_LIBRARY_PATH or LD_PRELOAD value per
// §4.7's three-tier rule: an absolute policy value wins outright;
// otherwise prefix:preserved:suffix; otherwise the rule tree's host
// default.
func computeLd(policyAbsolute, prefix, preserved, suffix, hostDefault string) string {
	if policyAbsolute != "" {
		return policyAbsolute
	}
	if prefix != "" || suffix != "" || preserved != "" {
		return joinParts(prefix, preserved, suffix)
	}
	return hostDefault
}

// commonStripSet is stripped from inherited envp before every
// postprocessing variant appends its own LD_*/locale values.
var commonStripSet = []string{
	"LD_LIBRARY_PATH", "LD_PRELOAD", "LOCPATH", "NLSPATH", "GCONV_PATH",
}
