package rules

// ReverseEngine wraps an Engine built over a rev_rules list (the
// catalog's sibling to fs_rules, symmetric in structure per §4.4) and
// tolerates reversal failure by returning the host path unchanged —
// callers of Reverse must accept that this never errors.
type ReverseEngine struct {
	engine *Engine
}

// NewReverseEngine builds a ReverseEngine over the given rev_rules
// engine.
func NewReverseEngine(e *Engine) *ReverseEngine {
	return &ReverseEngine{engine: e}
}

// Reverse produces the virtual path matching an absolute host path,
// for getcwd/readlink/realpath/accept-peer-name callers. On any
// failure (no engine configured, no rule matched, or a rule error) the
// original host path is returned unchanged, per §4.4.
func (re *ReverseEngine) Reverse(hostPath string, ctx CallCtx) string {
	if re == nil || re.engine == nil {
		return hostPath
	}
	res, err := re.engine.Map(hostPath, ctx)
	if err != nil || res.NoMatch {
		return hostPath
	}
	return res.HostPath
}
