// Package pipeline wires pkg/pathutil, pkg/resolver, pkg/rules,
// pkg/chroot, pkg/session, pkg/execinspect, pkg/execpreprocess,
// pkg/execpostprocess, pkg/scripthandler, and pkg/vperm together into
// the two control-flow loops §2 describes: the per-operation path
// mapping data flow and the execve control flow. Every other package
// in this module is independently testable against fakes; this is the
// one place that assembles them into something close to what a
// sandboxed process actually calls on every intercepted path or exec.
package pipeline

import (
	"errors"
	"os"
	"path"
	"strings"
	"syscall"

	"github.com/sb2root/sbcore/internal/logging"
	"github.com/sb2root/sbcore/pkg/chroot"
	"github.com/sb2root/sbcore/pkg/hostfs"
	"github.com/sb2root/sbcore/pkg/resolver"
	"github.com/sb2root/sbcore/pkg/rules"
	"github.com/sb2root/sbcore/pkg/ruletree"
	"github.com/sb2root/sbcore/pkg/session"
)

// Session bundles everything one sandboxed process needs to map paths
// and exec: the mmap'd RuleTree, the forward/reverse rule engines built
// over this session's mode, the host filesystem the resolver walks,
// and the per-process state (config, chroot, reentrancy context).
type Session struct {
	Tree   *ruletree.Reader
	Root   ruletree.Offset // root catalog offset
	Config session.Config

	Host hostfs.Provider

	Forward  *rules.Engine
	Reverse  *rules.ReverseEngine
	Resolver *resolver.Resolver

	Chroot *chroot.Simulator
	Ctx    *session.Context
	Log    *logging.Emitter

	// GetenvFunc backs the Getenv method (rules.Environment); nil means
	// fall back to os.Getenv.
	GetenvFunc func(string) string

	// activePolicy is mutated by Exec once a policy is chosen, and read
	// back by rules.Environment.ActiveExecPolicy for
	// IF_ACTIVE_EXEC_POLICY_IS conditions evaluated by later calls in
	// the same process.
	activePolicy string
}

// NewSession builds the forward/reverse engines for mode out of tree
// and wires them to host, the way a traced process's entry point
// constructs its mapping state exactly once from SBOX_SESSION_MODE.
func NewSession(tree *ruletree.Reader, cfg session.Config, host hostfs.Provider, getenv func(string) string, log *logging.Emitter) (*Session, error) {
	s := &Session{
		Tree:       tree,
		Root:       tree.Root(),
		Config:     cfg,
		Host:       host,
		Ctx:        &session.Context{},
		Log:        log,
		GetenvFunc: getenv,
	}

	fwdList, err := tree.CatalogLookup(s.Root, "fs_rules", cfg.Mode)
	if err != nil {
		return nil, err
	}
	s.Forward = rules.NewEngine(tree, fwdList, s)

	if revList, err := tree.CatalogLookup(s.Root, "rev_rules", cfg.Mode); err == nil {
		s.Reverse = rules.NewReverseEngine(rules.NewEngine(tree, revList, s))
	}

	s.Resolver = resolver.New(s.Forward, hostReadlinker{host})
	s.Chroot = chroot.New(s.statThroughMapper, cfg.ChrootPath)

	return s, nil
}

// WithProcfs/WithUnionDir attach the handlers rules.Engine's PROCFS and
// UNION_DIR actions delegate to; both are optional, matching
// rules.Engine's own zero-value defaults.
func (s *Session) WithProcfs(h rules.ProcfsHandler) *Session   { s.Forward.WithProcfs(h); return s }
func (s *Session) WithUnionDir(b rules.UnionDirBuilder) *Session { s.Forward.WithUnionDir(b); return s }

// Getenv/ActiveExecPolicy/Exists implement rules.Environment, so a
// Session can be handed directly to rules.NewEngine.
func (s *Session) Exists(p string) bool {
	_, err := s.Host.Stat(p)
	return err == nil
}

func (s *Session) ActiveExecPolicy() string { return s.activePolicy }

// Getenv satisfies rules.Environment by delegating to the Getenv func
// field, falling back to os.Getenv when the caller left it nil (tests
// usually set it explicitly to a fake).
func (s *Session) Getenv(name string) string {
	if s.GetenvFunc != nil {
		return s.GetenvFunc(name)
	}
	return os.Getenv(name)
}

// statThroughMapper is chroot.StatFunc: it maps virtualPath the normal
// way and stats the resulting host path, the "standard
// stat-through-the-mapper" §4.12 calls for.
func (s *Session) statThroughMapper(virtualPath string) (ok, isDir bool, err error) {
	res, mapErr := s.MapPath(virtualPath, rules.CallCtx{FuncClassMask: rules.FuncClassStat})
	if mapErr != nil {
		return false, false, mapErr
	}
	fi, statErr := s.Host.Stat(res.HostPath)
	if statErr != nil {
		return false, false, nil
	}
	return true, fi.IsDir(), nil
}

// hostReadlinker adapts hostfs.Provider to resolver.Readlinker: a
// readlink failure that simply means "not a symlink" (EINVAL, ENOENT,
// ENOTDIR) is reported as ok=false rather than propagated, the way §4.2
// step 3 treats "a negative result" as non-fatal; any other failure,
// such as EIO, is returned as an error.
type hostReadlinker struct{ host hostfs.Provider }

func (h hostReadlinker) Readlink(hostPath string) (string, bool, error) {
	target, err := h.host.Readlink(hostPath)
	if err != nil {
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ENOTDIR) {
			return "", false, nil
		}
		return "", false, err
	}
	return target, true, nil
}

// makeAbsolute prepends the cached virtual CWD to a relative virtual
// path, the way §2's data flow starts every mapping call.
func makeAbsolute(p, cwd string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	if cwd == "" {
		cwd = "/"
	}
	return path.Join(cwd, p)
}
