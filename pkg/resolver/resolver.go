// Package resolver implements the path resolver (§4.2): it walks a
// cleaned absolute virtual path one component at a time, consulting
// the rule engine for each prefix, readlink()-ing the real target of
// each component, and recursing whenever a component turns out to be
// a symlink.
package resolver

import (
	"errors"
	"path"
	"strings"

	"github.com/sb2root/sbcore/pkg/pathutil"
	"github.com/sb2root/sbcore/pkg/rules"
)

// ErrTooManyLevels is ELOOP: the recursion bound (16 levels) was
// exceeded.
var ErrTooManyLevels = errors.New("resolver: too many levels of symbolic links")

const maxRecursionDepth = 16

// MappingEngine is the subset of rules.Engine the resolver needs: a
// requirements probe and the actual prefix-to-host mapping call.
type MappingEngine interface {
	Probe(path string, ctx rules.CallCtx) (rules.Requirements, error)
	Map(path string, ctx rules.CallCtx) (rules.Result, error)
}

// Readlinker resolves the real target of a host path the way
// readlink(2) does: ok is false when the path is not a symlink at
// all (as opposed to an error reading it).
type Readlinker interface {
	Readlink(hostPath string) (target string, ok bool, err error)
}

// Resolver ties a mapping engine and a readlink source together to
// implement the component walk.
type Resolver struct {
	engine MappingEngine
	links  Readlinker
}

// New builds a Resolver.
func New(engine MappingEngine, links Readlinker) *Resolver {
	return &Resolver{engine: engine, links: links}
}

// Resolve walks l (a cleaned absolute virtual path) and returns the
// resolved virtual path: an absolute path whose non-final components
// are guaranteed not to be symlinks, along with the mapping result for
// the final prefix walked.
func (r *Resolver) Resolve(l *pathutil.List, ctx rules.CallCtx) (*pathutil.List, rules.Result, error) {
	return r.resolveDepth(l, ctx, 0)
}

func (r *Resolver) resolveDepth(l *pathutil.List, ctx rules.CallCtx, depth int) (*pathutil.List, rules.Result, error) {
	if depth >= maxRecursionDepth {
		return nil, rules.Result{}, ErrTooManyLevels
	}

	l = l.Clone()
	fullPath := l.String()

	req, err := r.engine.Probe(fullPath, ctx)
	if err != nil {
		return nil, rules.Result{}, err
	}

	var lastResult rules.Result
	lastResult.HostPath = ""
	haveResult := false

	startIdx := 0
	for i := range l.Components {
		prefixLen := len(joinUpTo(l, i+1))
		if prefixLen > req.MinPrefixLen {
			startIdx = i
			break
		}
		startIdx = i + 1
	}

	for i := startIdx; i < len(l.Components); i++ {
		prefix := joinUpTo(l, i+1)

		var res rules.Result
		if req.CallTranslateForAll || !haveResult {
			res, err = r.engine.Map(prefix, ctx)
			if err != nil {
				return nil, rules.Result{}, err
			}
		} else {
			res = rules.Result{HostPath: lastResult.HostPath + "/" + l.Components[i].Name}
		}
		lastResult = res
		haveResult = true

		if res.ForceOrigPath {
			break
		}

		isFinal := i == len(l.Components)-1
		if isFinal && ctx.DontResolveFinalSymlink && !l.HasTrailingSlash {
			break
		}

		comp := &l.Components[i]
		if !comp.IsSymlink && !comp.NotSymlink {
			target, ok, err := r.links.Readlink(res.HostPath)
			if err != nil {
				return nil, rules.Result{}, err
			}
			if ok {
				comp.IsSymlink = true
				comp.LinkTarget = target
			} else {
				comp.NotSymlink = true
			}
		}

		if comp.IsSymlink {
			newList := r.spliceSymlink(l, i, comp.LinkTarget)
			cleaned, err := pathutil.Clean(identityPrefixResolver{}, newList.String())
			if err != nil {
				return nil, rules.Result{}, err
			}
			cleaned.Absolute = newList.Absolute
			return r.resolveDepth(cleaned, ctx, depth+1)
		}
	}

	if !haveResult {
		lastResult = rules.Result{HostPath: fullPath, NoMatch: true}
	}
	return l, lastResult, nil
}

// spliceSymlink builds the new absolute virtual path after discovering
// that component idx of l is a symlink to target: an absolute target
// resets the whole list, a relative one is prefixed with the virtual
// directory of the original link (not the host directory). Any
// remaining suffix after idx is appended. The new list carries l's own
// trailing-slash flag whether or not a suffix follows; a trailing slash
// on target itself is dropped.
func (r *Resolver) spliceSymlink(l *pathutil.List, idx int, target string) *pathutil.List {
	suffix := l.Components[idx+1:]

	var newList *pathutil.List
	if strings.HasPrefix(target, "/") {
		newList = pathutil.Split(target)
	} else {
		dir := "/" + strings.Join(namesOf(l.Components[:idx]), "/")
		newList = pathutil.Split(path.Join(dir, target))
	}
	newList.Absolute = true

	if len(suffix) > 0 {
		newList.Components = append(newList.Components, suffix...)
		newList.HasTrailingSlash = l.HasTrailingSlash
	} else {
		newList.HasTrailingSlash = l.HasTrailingSlash
	}
	return newList
}

// joinUpTo returns the virtual path string for the first n components
// of l, preserving its Absolute flag.
func joinUpTo(l *pathutil.List, n int) string {
	prefix := "/" + strings.Join(namesOf(l.Components[:n]), "/")
	if !l.Absolute {
		prefix = strings.TrimPrefix(prefix, "/")
	}
	return prefix
}

func namesOf(cs []pathutil.Component) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// identityPrefixResolver is used when re-cleaning a spliced-in path:
// the splice already performed the symlink substitution, so no further
// prefix resolution is needed at this step.
type identityPrefixResolver struct{}

func (identityPrefixResolver) ResolvePrefix(prefix string) (string, error) { return prefix, nil }
