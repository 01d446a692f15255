package pipeline

import (
	"github.com/sb2root/sbcore/pkg/pathutil"
	"github.com/sb2root/sbcore/pkg/rules"
)

// Result is the mapping result handed back to a gate, the concrete
// form of the data model's "Mapping result": a host path, the virtual
// path it resolved from (following every symlink along the way), the
// exec-policy name a matched fs-rule named (if any), and the readonly
// flag a caller must honor.
type Result struct {
	HostPath       string
	VirtualPath    string
	ExecPolicyName string
	Readonly       bool
	// NoMatch mirrors rules.Result.NoMatch: true when no rule matched
	// and HostPath is simply the cleaned virtual path unchanged.
	NoMatch bool
}

// MapPath implements the data-flow diagram of §2 end to end: make the
// path absolute against the cached virtual CWD, apply any active
// chroot, clean it (resolving ".." under the virtual view), walk it
// through the resolver (which itself consults the rule engine and
// chases symlinks), and clean the resulting host path a second time in
// case the winning rule introduced its own "..".
func (s *Session) MapPath(virtualPath string, ctx rules.CallCtx) (Result, error) {
	guard := s.Ctx.Guard()
	defer guard()

	if s.Ctx.MappingDisabled() || s.Config.DisableMapping {
		s.Log.Disabled(ctx.FuncName, virtualPath)
		return Result{HostPath: virtualPath, VirtualPath: virtualPath, NoMatch: true}, nil
	}

	_, cwd, _ := s.Ctx.CWD.Get()
	absolute := makeAbsolute(virtualPath, cwd)
	applied := s.Chroot.Apply(absolute)

	cleaned, err := pathutil.Clean(virtualPrefixResolver{s, ctx}, applied)
	if err != nil {
		return Result{}, err
	}

	resolved, mapRes, err := s.Resolver.Resolve(cleaned, ctx)
	if err != nil {
		return Result{}, err
	}

	hostCleaned, err := pathutil.Clean(pathutil.IdentityResolver{}, mapRes.HostPath)
	if err != nil {
		return Result{}, err
	}
	hostCleaned.HasTrailingSlash = cleaned.HasTrailingSlash
	hostPath := hostCleaned.String()

	virtualResolved := resolved.String()

	if mapRes.NoMatch {
		s.Log.Pass(ctx.FuncName, virtualPath)
	} else {
		s.Log.Mapped(ctx.FuncName, virtualPath, hostPath)
	}

	return Result{
		HostPath:       hostPath,
		VirtualPath:    virtualResolved,
		ExecPolicyName: mapRes.ExecPolicyName,
		Readonly:       mapRes.Readonly,
		NoMatch:        mapRes.NoMatch,
	}, nil
}

// MapPathSimple implements scripthandler.FullMapper: the default full
// mapping pipeline used when a "#!" interpreter name is not already a
// clean absolute virtual path.
func (s *Session) MapPathSimple(virtualPath string) (string, error) {
	res, err := s.MapPath(virtualPath, rules.CallCtx{FuncClassMask: rules.FuncClassExec})
	if err != nil {
		return "", err
	}
	return res.HostPath, nil
}

// Map implements scripthandler.Mapper (and rules.MappingEngine's Map
// half): plain rule selection against s.Forward, with no component
// walk. Used for the "abstract-path mapper" §4.8 calls for.
func (s *Session) Map(virtualPath string, ctx rules.CallCtx) (rules.Result, error) {
	return s.Forward.Map(virtualPath, ctx)
}

// ReversePath implements the reverse mapper of §4.4: getcwd/readlink/
// realpath/accept-peer-name callers present a host path and get back
// the virtual path a program should see.
func (s *Session) ReversePath(hostPath string, ctx rules.CallCtx) string {
	return s.Reverse.Reverse(hostPath, ctx)
}

// virtualPrefixResolver implements pathutil.PrefixResolver for virtual
// paths: resolving a ".." prefix means finding out what the prefix
// *actually* refers to once symlinks are followed, which is exactly
// what the resolver's component walk computes — so dotdot cleanup
// recurses into the same resolver the full mapping call uses, per
// §4.1 pass 3's "recursively calling the mapper for virtual paths".
type virtualPrefixResolver struct {
	s   *Session
	ctx rules.CallCtx
}

func (v virtualPrefixResolver) ResolvePrefix(prefix string) (string, error) {
	if prefix == "" {
		prefix = "/"
	}
	list := pathutil.Split(prefix)
	list.Absolute = true
	resolved, _, err := v.s.Resolver.Resolve(list, v.ctx)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}
