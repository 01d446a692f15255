// Package scripthandler implements §4.8's "#!" script handling: parse
// the interpreter line, build the re-exec argv, map the interpreter
// through its own policy-scoped rule list, and hand back everything
// the pipeline needs to recurse through the whole mapping pipeline
// with the interpreter as the new exec target.
package scripthandler

import (
	"errors"
	"path"
	"strings"

	"github.com/sb2root/sbcore/pkg/execpostprocess"
	"github.com/sb2root/sbcore/pkg/rules"
)

// Hashbang is the parsed remainder of a "#!" line: the interpreter
// path and its single optional argument. The exec inspector has
// already trimmed the line at the first newline or NUL byte.
type Hashbang struct {
	Interpreter string
	Arg         string
}

// ErrMalformed is returned by Parse when the "#!" line carries no
// interpreter at all.
var ErrMalformed = errors.New("scripthandler: malformed #! line")

// ErrDenied is returned by Handle when the exec policy's
// script_deny_exec field rejects this script outright.
var ErrDenied = errors.New("scripthandler: script_deny_exec")

// Parse splits rest the way prepare_hashbang's raw byte scan does: skip
// leading spaces/tabs, take the first space/tab-delimited run as the
// interpreter, skip any further spaces/tabs, then take the next
// space/tab-delimited run as the one and only allowed argument. There
// is no shell-quote or escape interpretation at any point — a quote or
// backslash byte is just another ordinary character — and anything
// past the second token is discarded rather than folded into argv, the
// same way the original silently drops the remainder of an
// "#!interp arg1 arg2" line.
func Parse(rest string) (Hashbang, error) {
	interp, afterInterp, ok := nextToken(rest)
	if !ok {
		return Hashbang{}, ErrMalformed
	}
	hb := Hashbang{Interpreter: interp}
	if arg, _, ok := nextToken(afterInterp); ok {
		hb.Arg = arg
	}
	return hb, nil
}

// nextToken returns the next space/tab-delimited run in s (after
// skipping any leading spaces/tabs) and the remainder of s starting
// right after it. ok is false when s holds nothing but spaces/tabs.
func nextToken(s string) (token, rest string, ok bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	start := i
	for i < len(s) && s[i] != ' ' && s[i] != '\t' {
		i++
	}
	if i == start {
		return "", s, false
	}
	return s[start:i], s[i:], true
}

// Request is what the pipeline hands the script handler once the exec
// inspector has classified a target as HASHBANG.
type Request struct {
	HashbangRest string // execinspect.Info.HashbangRest
	OrigFile     string // original, unmapped virtual path of the script itself
	OrigArgv     []string
	Envp         execpostprocess.Envp
}

// Result carries the recursive exec target: the interpreter is not
// yet postprocessed, it still must run through the whole pipeline
// (inspect/preprocess/postprocess) as if it had been exec'd directly.
type Result struct {
	Interpreter string // virtual path, unmapped
	MappedFile  string // host path chosen for the interpreter
	Argv        []string
	Envp        execpostprocess.Envp
}

// Mapper is the "abstract-path mapper" §4.8 calls for: plain rule
// selection against the script-interpreter rule list, with no
// component-walk symlink resolution.
type Mapper interface {
	Map(path string, ctx rules.CallCtx) (rules.Result, error)
}

// FullMapper is the default full mapping pipeline (path resolution
// plus rule engine), used when the interpreter name is not already a
// clean absolute virtual path.
type FullMapper interface {
	MapPath(virtualPath string) (hostPath string, err error)
}

// Handler implements §4.8 against one exec policy's script-interpreter
// rule list.
type Handler struct {
	Mapper     Mapper
	FullMapper FullMapper
	DenyExec   bool
}

// Handle parses req's hashbang line, builds the recursive argv, maps
// the interpreter, and returns the result the pipeline should recurse
// with as the new exec target.
func (h *Handler) Handle(req Request) (Result, error) {
	if h.DenyExec {
		return Result{}, ErrDenied
	}

	hb, err := Parse(req.HashbangRest)
	if err != nil {
		return Result{}, err
	}

	argv := make([]string, 0, len(req.OrigArgv)+2)
	argv = append(argv, hb.Interpreter)
	if hb.Arg != "" {
		argv = append(argv, hb.Arg)
	}
	argv = append(argv, req.OrigFile)
	if len(req.OrigArgv) > 1 {
		argv = append(argv, req.OrigArgv[1:]...)
	}

	mappedFile, err := h.mapInterpreter(hb.Interpreter)
	if err != nil {
		return Result{}, err
	}

	envp := req.Envp
	if envp == nil {
		envp = execpostprocess.Envp{}
	}
	envp["__SB2_ORIG_BINARYNAME"] = hb.Interpreter
	envp["__SB2_BINARYNAME"] = path.Base(mappedFile)

	return Result{
		Interpreter: hb.Interpreter,
		MappedFile:  mappedFile,
		Argv:        argv,
		Envp:        envp,
	}, nil
}

// mapInterpreter implements the "path resolution is not applied here"
// clause: a clean absolute interpreter path goes straight to the
// policy's rule list via the abstract-path mapper, anything else falls
// back to the default full mapping pipeline.
func (h *Handler) mapInterpreter(interp string) (string, error) {
	if isCleanAbsolute(interp) && h.Mapper != nil {
		res, err := h.Mapper.Map(interp, rules.CallCtx{FuncClassMask: rules.FuncClassExec})
		if err != nil {
			return "", err
		}
		return res.HostPath, nil
	}
	if h.FullMapper != nil {
		return h.FullMapper.MapPath(interp)
	}
	return interp, nil
}

func isCleanAbsolute(p string) bool {
	return strings.HasPrefix(p, "/") && path.Clean(p) == p
}
