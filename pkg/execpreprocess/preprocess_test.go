package execpreprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

func buildGccRule(t *testing.T) CatalogLookup {
	t.Helper()
	b := ruletree.NewBuilder()
	ruleOff := b.PutExecPreprocessingRule(ruletree.ExecPreprocessingRule{
		BinaryName: "gcc",
		AddHead:    []string{"-nostdinc"},
		AddTail:    []string{"-L/tools/lib"},
		Remove:     []string{"-Werror"},
	})
	cat := b.PutCatalog([]ruletree.CatalogEntry{
		b.CatalogEntryString("gcc", ruleOff),
	})
	r, err := ruletree.NewReader(b.Bytes())
	require.NoError(t, err)
	return CatalogLookup{R: r, ListOff: cat}
}

func TestApply_RewritesArgv(t *testing.T) {
	lookup := buildGccRule(t)
	res := Apply(lookup, Request{File: "/usr/bin/gcc", Argv: []string{"gcc", "-Werror", "-c", "main.c"}})

	assert.Equal(t, "/usr/bin/gcc", res.File)
	assert.Equal(t, []string{"gcc", "-nostdinc", "-c", "main.c", "-L/tools/lib"}, res.Argv)
}

func TestApply_NoRuleIsPassthrough(t *testing.T) {
	lookup := buildGccRule(t)
	res := Apply(lookup, Request{File: "/usr/bin/clang", Argv: []string{"clang", "-c", "main.c"}})
	assert.Equal(t, []string{"clang", "-c", "main.c"}, res.Argv)
}
