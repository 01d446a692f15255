// Package execpreprocess applies the argv-modifying rules keyed by a
// program's basename (§4.6), run before path mapping of the exec
// target so a toolchain front-end's command line can be rewritten
// ahead of the decision about which binary actually runs.
package execpreprocess

import (
	"path/filepath"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// Request is the pre-mapping argv the caller wants rewritten.
type Request struct {
	File string
	Argv []string
}

// Result is the preprocessor's output: possibly a new file name, and
// argv rewritten by removals and head/options/tail insertions.
type Result struct {
	File string
	Argv []string
}

// RuleLookup resolves a basename to its ExecPreprocessingRule, the
// way the engine addresses {"exec_preprocess", mode, "gcc"|"misc",
// basename} in the catalog.
type RuleLookup interface {
	Lookup(basename string) (ruletree.ExecPreprocessingRule, bool)
}

// Apply rewrites req per the rule named for its basename, if any. If
// no rule exists or the matched rule disables mapping, argv passes
// through unchanged.
func Apply(lookup RuleLookup, req Request) Result {
	base := filepath.Base(req.File)
	rule, ok := lookup.Lookup(base)
	if !ok || rule.DisableMapping {
		return Result{File: req.File, Argv: req.Argv}
	}

	file := req.File
	if rule.NewFilename != "" {
		file = rule.NewFilename
	}

	argv := req.Argv
	if len(rule.Remove) > 0 {
		argv = removeFlags(argv, rule.Remove)
	}

	out := make([]string, 0, len(argv)+len(rule.AddHead)+len(rule.AddOptions)+len(rule.AddTail))
	out = append(out, argv[0])
	out = append(out, rule.AddHead...)
	if len(argv) > 1 {
		out = append(out, rule.AddOptions...)
		out = append(out, argv[1:]...)
	} else {
		out = append(out, rule.AddOptions...)
	}
	out = append(out, rule.AddTail...)

	return Result{File: file, Argv: out}
}

func removeFlags(argv []string, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make([]string, 0, len(argv))
	for _, a := range argv {
		if drop[a] {
			continue
		}
		out = append(out, a)
	}
	return out
}
