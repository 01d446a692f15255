package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb2root/sbcore/internal/logging"
	"github.com/sb2root/sbcore/pkg/hostfs"
	"github.com/sb2root/sbcore/pkg/rules"
	"github.com/sb2root/sbcore/pkg/ruletree"
	"github.com/sb2root/sbcore/pkg/session"
)

// buildTree wires a minimal root catalog with one {"fs_rules", mode}
// list, the same shape NewSession expects to find on any RuleTree.
func buildTree(t *testing.T, mode string, fsRules []ruletree.FsRule) *ruletree.Reader {
	t.Helper()
	b := ruletree.NewBuilder()
	offs := make([]ruletree.Offset, len(fsRules))
	for i, r := range fsRules {
		offs[i] = b.PutFsRule(r)
	}
	list := b.PutObjectList(offs)
	modeCat := b.PutCatalog([]ruletree.CatalogEntry{
		b.CatalogEntryString(mode, list),
	})
	rootCat := b.PutCatalog([]ruletree.CatalogEntry{
		b.CatalogEntryString("fs_rules", modeCat),
	})
	b.SetRoot(rootCat)
	r, err := ruletree.NewReader(b.Bytes())
	require.NoError(t, err)
	return r
}

func newTestSession(t *testing.T, tree *ruletree.Reader, mode string) *Session {
	t.Helper()
	s, err := NewSession(tree, session.Config{Mode: mode}, hostfs.NewMemoryProvider(), nil, logging.NewEmitter(logging.LevelDebug, logging.NullSink{}))
	require.NoError(t, err)
	return s
}

func TestSession_MapPath_MapToRule(t *testing.T) {
	tree := buildTree(t, "tools", []ruletree.FsRule{
		{
			SelectorType: ruletree.SelectorDir,
			Selector:     "/bin",
			ActionType:   ruletree.ActionMapTo,
			Action:       "/tools/bin",
		},
	})
	s := newTestSession(t, tree, "tools")

	res, err := s.MapPath("/bin/ls", rules.CallCtx{FuncClassMask: rules.FuncClassAll})
	require.NoError(t, err)
	assert.Equal(t, "/tools/bin/ls", res.HostPath)
	assert.False(t, res.NoMatch)
}

func TestSession_MapPath_NoMatchPassesThrough(t *testing.T) {
	tree := buildTree(t, "tools", nil)
	s := newTestSession(t, tree, "tools")

	res, err := s.MapPath("/etc/passwd", rules.CallCtx{FuncClassMask: rules.FuncClassAll})
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", res.HostPath)
	assert.True(t, res.NoMatch)
}

func TestSession_MapPath_RelativePathUsesCachedCWD(t *testing.T) {
	tree := buildTree(t, "tools", []ruletree.FsRule{
		{
			SelectorType: ruletree.SelectorDir,
			Selector:     "/work",
			ActionType:   ruletree.ActionMapTo,
			Action:       "/host/work",
		},
	})
	s := newTestSession(t, tree, "tools")
	s.Ctx.CWD.Set("/host/work", "/work")

	res, err := s.MapPath("file.txt", rules.CallCtx{FuncClassMask: rules.FuncClassAll})
	require.NoError(t, err)
	assert.Equal(t, "/host/work/file.txt", res.HostPath)
}

func TestSession_MapPath_DisableMappingPassesThrough(t *testing.T) {
	tree := buildTree(t, "tools", []ruletree.FsRule{
		{
			SelectorType: ruletree.SelectorDir,
			Selector:     "/bin",
			ActionType:   ruletree.ActionMapTo,
			Action:       "/tools/bin",
		},
	})
	s, err := NewSession(tree, session.Config{Mode: "tools", DisableMapping: true}, hostfs.NewMemoryProvider(), nil, logging.NewEmitter(logging.LevelDebug, logging.NullSink{}))
	require.NoError(t, err)

	res, err := s.MapPath("/bin/ls", rules.CallCtx{FuncClassMask: rules.FuncClassAll})
	require.NoError(t, err)
	assert.Equal(t, "/bin/ls", res.HostPath)
	assert.True(t, res.NoMatch)
}

func TestSession_Getenv_DelegatesToFunc(t *testing.T) {
	tree := buildTree(t, "tools", nil)
	s, err := NewSession(tree, session.Config{Mode: "tools"}, hostfs.NewMemoryProvider(),
		func(name string) string {
			if name == "FOO" {
				return "bar"
			}
			return ""
		},
		logging.NewEmitter(logging.LevelDebug, logging.NullSink{}),
	)
	require.NoError(t, err)
	assert.Equal(t, "bar", s.Getenv("FOO"))
	assert.Equal(t, "", s.Getenv("MISSING"))
}
