package pipeline

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/sb2root/sbcore/pkg/execinspect"
	"github.com/sb2root/sbcore/pkg/execpostprocess"
	"github.com/sb2root/sbcore/pkg/execpreprocess"
	"github.com/sb2root/sbcore/pkg/rules"
	"github.com/sb2root/sbcore/pkg/ruletree"
	"github.com/sb2root/sbcore/pkg/scripthandler"
	"github.com/sb2root/sbcore/pkg/vperm"
)

// ErrNoExec is returned when the exec inspector classifies the target
// INVALID or NONE: nothing in §4.5's classification lets exec proceed.
var ErrNoExec = errors.New("pipeline: target cannot be executed (ENOEXEC)")

// maxHashbangDepth bounds the "#!" recursion (§4.8), the execve
// equivalent of resolver's symlink depth limit: a script whose
// interpreter is itself a script pointing back at the first one must
// not spin forever.
const maxHashbangDepth = 16

// ExecRequest is what a traced execve(2) call hands the pipeline.
type ExecRequest struct {
	File    string // virtual path of the binary, as the caller named it
	Argv    []string
	Environ []string // "NAME=VALUE" pairs, as the caller's process saw them

	// TargetArch is the foreign-CPU configuration execinspect checks
	// TARGET binaries against; zero value means no CPU transparency is
	// configured for this session.
	TargetArch execinspect.TargetArch

	// DefaultPolicy names the exec policy used when neither a matched
	// fs-rule nor an exec-policy-selection rule names one.
	DefaultPolicy string
}

// ExecResult is the real execve(2) the pipeline decided to perform.
type ExecResult struct {
	File    string
	Argv    []string
	Environ []string
	Warning string
}

// Exec implements §2's "Control flow for exec" diagram end to end:
// preprocess argv by basename, map the target, inspect its binary
// type, branch into the matching postprocessing variant (recursing
// through a hashbang interpreter as many times as maxHashbangDepth
// allows), apply the Always block, and refuse the exec outright if the
// result carries neither LD_LIBRARY_PATH nor LD_PRELOAD.
func (s *Session) Exec(req ExecRequest) (ExecResult, error) {
	res, err := s.execDepth(req, 0)
	if err != nil {
		return ExecResult{}, err
	}
	return res, nil
}

func (s *Session) execDepth(req ExecRequest, depth int) (ExecResult, error) {
	if depth > maxHashbangDepth {
		return ExecResult{}, errors.New("pipeline: hashbang recursion exceeded maximum depth")
	}

	envp := envpFromEnviron(req.Environ)

	pre := execpreprocess.Apply(s.preprocessLookup(), execpreprocess.Request{
		File: req.File,
		Argv: req.Argv,
	})

	mapped, err := s.MapPath(pre.File, rules.CallCtx{FuncClassMask: rules.FuncClassExec})
	if err != nil {
		return ExecResult{}, err
	}

	policyName := mapped.ExecPolicyName
	if policyName == "" {
		if selOff, selErr := s.Tree.CatalogLookup(s.Root, "exec_policy_selection", s.Config.Mode); selErr == nil {
			if name, ok, _ := SelectExecPolicy(s.Tree, selOff, mapped.HostPath); ok {
				policyName = name
			}
		}
	}
	if policyName == "" {
		policyName = req.DefaultPolicy
	}

	policy, err := LoadExecPolicy(s.Tree, s.Root, s.Config.Mode, policyName)
	if err != nil {
		return ExecResult{}, err
	}
	s.activePolicy = policy.Name

	info, err := execinspect.Inspect(mapped.HostPath, req.TargetArch, s.Getenv)
	if err != nil {
		return ExecResult{}, err
	}

	origArgv0 := pre.Argv[0]
	var origRest []string
	if len(pre.Argv) > 1 {
		origRest = pre.Argv[1:]
	}

	execBinaryName := path.Base(pre.File)

	switch info.Type {
	case execinspect.TypeHashbang:
		mapper := s.scriptMapper(policy.ScriptInterpreterRules)
		h := &scripthandler.Handler{
			Mapper:     mapper,
			FullMapper: fullMapperAdapter{s},
			DenyExec:   policy.ScriptDenyExec,
		}
		sres, herr := h.Handle(scripthandler.Request{
			HashbangRest: info.HashbangRest,
			OrigFile:     pre.File,
			OrigArgv:     pre.Argv,
			Envp:         envp,
		})
		if herr != nil {
			return ExecResult{}, herr
		}
		return s.execDepth(ExecRequest{
			File:          sres.Interpreter,
			Argv:          sres.Argv,
			Environ:       envpEnviron(sres.Envp),
			TargetArch:    req.TargetArch,
			DefaultPolicy: req.DefaultPolicy,
		}, depth+1)

	case execinspect.TypeHostDynamic, execinspect.TypeHostStatic, execinspect.TypeTarget:
		pp := execpostprocess.Request{
			OrigArgv0:          origArgv0,
			OrigArgvRest:       origRest,
			MappedFile:         mapped.HostPath,
			VirtualFile:        mapped.VirtualPath,
			Interpreter:        info.Interpreter,
			Policy:             policy,
			Envp:               envp,
			AllowStaticAbsPath: s.Config.AllowStaticAbs,
		}

		var (
			out   execpostprocess.Result
			ppErr error
		)
		switch info.Type {
		case execinspect.TypeHostDynamic:
			out = execpostprocess.NativeDynamic(pp)
		case execinspect.TypeHostStatic:
			out = execpostprocess.NativeStatic(pp)
		case execinspect.TypeTarget:
			out, ppErr = execpostprocess.Emulated(pp)
		}
		if ppErr != nil {
			return ExecResult{}, ppErr
		}

		vids := s.currentVirtualIDs()
		execpostprocess.ApplyAlways(out.Envp, execpostprocess.AlwaysParams{
			VpermIDsSerialized: vids.Serialize(),
			MappedBinaryName:   path.Base(mapped.HostPath),
			Basename:           path.Base(req.File),
			OrigBinaryName:     req.File,
			ExecBinaryName:     execBinaryName,
			ChrootPath:         s.Chroot.Path(),
			SessionDir:         s.Config.SessionDir,
			MappingMethod:      s.Config.MappingMethod,
			SigtrapPreserved:   s.Config.Sigtrap,
		})

		if err := execpostprocess.Validate(out.Envp); err != nil {
			return ExecResult{}, err
		}

		return ExecResult{
			File:    out.File,
			Argv:    out.Argv,
			Environ: envpEnviron(out.Envp),
			Warning: out.Warning,
		}, nil

	default:
		return ExecResult{}, ErrNoExec
	}
}

// currentVirtualIDs parses SBOX_VPERM_IDS once per exec call; a
// session that never set one (no vperm simulation active) gets the
// zero VirtualIDs, which serializes back to "u0:0:0:0,g0:0:0:0,p".
func (s *Session) currentVirtualIDs() vperm.VirtualIDs {
	ids, err := vperm.Parse(s.Config.VpermIDs)
	if err != nil {
		return vperm.VirtualIDs{}
	}
	return ids
}

// preprocessLookup resolves {"exec_preprocess", mode, "gcc"|"misc"}
// for the current session, trying the gcc toolchain list before the
// generic misc list the way the front-end classifier does.
func (s *Session) preprocessLookup() execpreprocess.RuleLookup {
	return multiListLookup{tree: s.Tree, root: s.Root, mode: s.Config.Mode}
}

type multiListLookup struct {
	tree *ruletree.Reader
	root ruletree.Offset
	mode string
}

func (m multiListLookup) Lookup(basename string) (ruletree.ExecPreprocessingRule, bool) {
	for _, list := range []string{"gcc", "misc"} {
		listOff, err := m.tree.CatalogLookup(m.root, "exec_preprocess", m.mode, list)
		if err != nil {
			continue
		}
		cl := execpreprocess.CatalogLookup{R: m.tree, ListOff: listOff}
		if rule, ok := cl.Lookup(basename); ok {
			return rule, true
		}
	}
	return ruletree.ExecPreprocessingRule{}, false
}

// scriptMapper builds the abstract-path mapper scripthandler.Handler
// uses for a "#!" interpreter when the policy names a dedicated
// script-interpreter rule list (§4.8); zero offset means no such list
// is configured and Handle falls back to the default full mapper.
func (s *Session) scriptMapper(listOff ruletree.Offset) scripthandler.Mapper {
	if listOff == ruletree.NoOffset {
		return nil
	}
	return rules.NewEngine(s.Tree, listOff, s)
}

// fullMapperAdapter gives scripthandler.Handler a FullMapper without
// colliding with Session's own MapPath method, whose richer
// (string, rules.CallCtx) (Result, error) signature is not the
// (string) (string, error) shape that interface requires.
type fullMapperAdapter struct{ s *Session }

func (f fullMapperAdapter) MapPath(virtualPath string) (string, error) {
	return f.s.MapPathSimple(virtualPath)
}

func envpFromEnviron(environ []string) execpostprocess.Envp {
	e := make(execpostprocess.Envp, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			e[kv[:i]] = kv[i+1:]
		}
	}
	return e
}

// Environ renders e back into "NAME=VALUE" form, sorted for
// deterministic output (exec(2) itself does not care about order).
func envpEnviron(e execpostprocess.Envp) []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
