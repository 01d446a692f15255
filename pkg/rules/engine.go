package rules

import (
	"strings"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// ProcfsHandler synthesizes a replacement path for PROCFS actions
// (§4.10). A nil replacement means "use the virtual path unchanged".
type ProcfsHandler interface {
	Handle(virtualPath string) (replacement string, ok bool)
}

// UnionDirBuilder materializes the synthesized union directory for
// UNION_DIR actions (the glossary's "Union dir").
type UnionDirBuilder interface {
	Materialize(sources []string) (hostPath string, err error)
}

// Engine walks one fs-rule (or rev-rule) list out of a RuleTree arena
// and computes mapping results from it.
type Engine struct {
	r        *ruletree.Reader
	ruleList ruletree.Offset // ObjectList of FsRule offsets
	env      Environment
	procfs   ProcfsHandler
	uniondir UnionDirBuilder
}

// NewEngine builds an Engine over the named rule list (an ObjectList
// of FsRule offsets), as addressed via the catalog key vector
// {"fs_rules", mode} or {"rev_rules", mode}.
func NewEngine(r *ruletree.Reader, ruleList ruletree.Offset, env Environment) *Engine {
	return &Engine{r: r, ruleList: ruleList, env: env}
}

// WithProcfs attaches the procfs handler PROCFS actions delegate to.
func (e *Engine) WithProcfs(h ProcfsHandler) *Engine { e.procfs = h; return e }

// WithUnionDir attaches the builder UNION_DIR actions delegate to.
func (e *Engine) WithUnionDir(b UnionDirBuilder) *Engine { e.uniondir = b; return e }

// Probe answers the resolver's "mapping requirements" question
// (§4.2 step 2) without performing the mapping: the minimum prefix
// length below which rule selection cannot yet succeed, and whether
// the winning rule demands CALL_TRANSLATE_FOR_ALL.
func (e *Engine) Probe(path string, ctx CallCtx) (Requirements, error) {
	rule, matchedLen, _, err := e.selectFrom(e.ruleList, path, ctx)
	if err != nil {
		return Requirements{}, err
	}
	if rule == nil {
		return Requirements{MinPrefixLen: 0}, nil
	}
	return Requirements{
		MinPrefixLen:        matchedLen,
		CallTranslateForAll: rule.Flags&ruletree.FlagCallTranslateForAll != 0,
	}, nil
}

// Map selects a rule for path and executes its action, producing a
// Result. A nil selected rule (no match) yields NoMatch with the
// virtual path unchanged, the "pass:" case.
func (e *Engine) Map(path string, ctx CallCtx) (Result, error) {
	rule, _, _, err := e.selectFrom(e.ruleList, path, ctx)
	if err != nil {
		return Result{}, err
	}
	if rule == nil {
		return Result{HostPath: path, NoMatch: true}, nil
	}
	return e.execute(*rule, path, ctx)
}

// selectFrom walks one ObjectList of FsRule offsets, implementing
// "rule selection" (§4.3): skipping conditioned rules and rules whose
// selector doesn't match, intersecting func_class_mask and
// binary_name, and recursing into SUBTREE nested lists.
func (e *Engine) selectFrom(listOff ruletree.Offset, path string, ctx CallCtx) (*ruletree.FsRule, int, ruletree.Offset, error) {
	offs, err := e.r.GetObjectList(listOff)
	if err != nil {
		return nil, 0, 0, err
	}

	for _, off := range offs {
		rule, err := e.r.GetFsRule(off)
		if err != nil {
			return nil, 0, 0, err
		}

		if rule.ConditionType != ruletree.ConditionNone {
			continue
		}
		if rule.SelectorType == ruletree.SelectorNone {
			continue
		}

		ok, matched := matchSelector(rule.SelectorType, rule.Selector, path)
		if !ok {
			continue
		}

		if rule.FuncClassMask != 0 && FuncClass(rule.FuncClassMask)&ctx.FuncClassMask == 0 {
			continue
		}
		if rule.BinaryName != "" && rule.BinaryName != ctx.BinaryName {
			continue
		}

		if rule.ActionType == ruletree.ActionSubtree {
			nested, nestedLen, nestedOff, err := e.selectFrom(rule.RuleListLink, path, ctx)
			if err != nil {
				return nil, 0, 0, err
			}
			if nested != nil {
				return nested, nestedLen, nestedOff, nil
			}
			continue
		}

		return &rule, matched, off, nil
	}
	return nil, 0, 0, nil
}

// execute implements "action execution" (§4.3) for a selected rule.
func (e *Engine) execute(rule ruletree.FsRule, path string, ctx CallCtx) (Result, error) {
	res := Result{}
	res.Readonly = rule.Flags&(ruletree.FlagReadonly|ruletree.FlagReadonlyFSAlways) != 0
	res.ForceOrigPath = rule.Flags&(ruletree.FlagForceOrigPath|ruletree.FlagForceOrigPathUnlessChroot) != 0
	if rule.ExecPolicyName != "" {
		res.ExecPolicyName = rule.ExecPolicyName
	}

	// MAP_TO actions put their prefix in place of the part of path the
	// selector matched; a selector ending in '/' keeps that '/'.
	rest := path
	if ok, n := matchSelector(rule.SelectorType, rule.Selector, path); ok {
		if strings.HasSuffix(rule.Selector, "/") {
			n--
		}
		rest = path[n:]
	}

	switch rule.ActionType {
	case ruletree.ActionUseOrigPath:
		res.HostPath = path

	case ruletree.ActionForceOrigPath, ruletree.ActionForceOrigPathUnlessChroot:
		res.HostPath = path
		res.ForceOrigPath = true

	case ruletree.ActionMapTo:
		res.HostPath = joinPrefix(rule.Action, rest)

	case ruletree.ActionMapToEnvVar:
		res.HostPath = joinPrefix(e.env.Getenv(rule.Action), rest)

	case ruletree.ActionReplaceBy:
		res.HostPath = replaceSelector(rule.SelectorType, rule.Selector, rule.Action, path)

	case ruletree.ActionReplaceByEnvVar:
		res.HostPath = replaceSelector(rule.SelectorType, rule.Selector, e.env.Getenv(rule.Action), path)

	case ruletree.ActionSetPath:
		res.HostPath = rule.Action

	case ruletree.ActionProcfs:
		if e.procfs != nil {
			if repl, ok := e.procfs.Handle(path); ok {
				res.HostPath = repl
				break
			}
		}
		res.HostPath = path

	case ruletree.ActionUnionDir:
		sources, err := e.r.GetStringList(rule.RuleListLink)
		if err != nil {
			return Result{}, err
		}
		if e.uniondir == nil {
			res.HostPath = path
			break
		}
		hostPath, err := e.uniondir.Materialize(sources)
		if err != nil {
			return Result{}, err
		}
		res.HostPath = hostPath

	case ruletree.ActionIfExistsThenMapTo:
		candidate := joinPrefix(rule.Action, rest)
		if e.env.Exists(candidate) {
			res.HostPath = candidate
		} else {
			res.NoMatch = true
			res.HostPath = path
		}

	case ruletree.ActionIfExistsThenReplaceBy:
		candidate := replaceSelector(rule.SelectorType, rule.Selector, rule.Action, path)
		if e.env.Exists(candidate) {
			res.HostPath = candidate
		} else {
			res.NoMatch = true
			res.HostPath = path
		}

	case ruletree.ActionConditionalActions:
		return e.executeConditional(rule, path, ctx)

	case ruletree.ActionFallbackToOldMappingEngine:
		return Result{}, ErrFallbackUnsupported

	default:
		return Result{}, ErrConfigBadAction
	}

	return res, nil
}

// executeConditional implements CONDITIONAL_ACTIONS: walk the
// candidate list in order, evaluate each guard, and execute the first
// one whose condition holds and whose action doesn't itself report
// NoMatch (the IF_EXISTS_* actions use NoMatch to signal "try the next
// candidate").
func (e *Engine) executeConditional(rule ruletree.FsRule, path string, ctx CallCtx) (Result, error) {
	candidates, err := e.r.GetObjectList(rule.RuleListLink)
	if err != nil {
		return Result{}, err
	}
	for _, off := range candidates {
		cand, err := e.r.GetFsRule(off)
		if err != nil {
			return Result{}, err
		}
		ok, err := e.evaluateCondition(cand, path)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		res, err := e.execute(cand, path, ctx)
		if err != nil {
			return Result{}, err
		}
		if res.NoMatch {
			continue
		}
		return res, nil
	}
	return Result{}, ErrConfigExhaustedConditionals
}

func joinPrefix(prefix, path string) string {
	if prefix == "" {
		return path
	}
	if strings.HasSuffix(prefix, "/") {
		prefix = strings.TrimSuffix(prefix, "/")
	}
	return prefix + path
}

func replaceSelector(selType ruletree.SelectorType, selector, replacement, path string) string {
	switch selType {
	case ruletree.SelectorPath:
		return replacement
	default: // PREFIX, DIR: substring replacement of the matched prefix
		if len(path) >= len(selector) && path[:len(selector)] == selector {
			return replacement + path[len(selector):]
		}
		return replacement
	}
}
