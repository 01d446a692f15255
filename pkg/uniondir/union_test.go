package uniondir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTree(t *testing.T, files map[string]string, dirs []string) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func TestResolveWinnerFirstSourceWins(t *testing.T) {
	a := mkTree(t, map[string]string{"x": "from-a"}, nil)
	b := mkTree(t, map[string]string{"x": "from-b"}, nil)

	host, _, ok := resolveWinner([]string{a, b}, "x")
	require.True(t, ok)
	data, err := os.ReadFile(host)
	require.NoError(t, err)
	assert.Equal(t, "from-a", string(data))
}

func TestResolveWinnerFallsThroughWhenAbsent(t *testing.T) {
	a := mkTree(t, nil, nil)
	b := mkTree(t, map[string]string{"y": "from-b"}, nil)

	host, _, ok := resolveWinner([]string{a, b}, "y")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(b, "y"), host)
}

func TestResolveWinnerMissingEverywhere(t *testing.T) {
	a := mkTree(t, nil, nil)
	_, _, ok := resolveWinner([]string{a}, "nope")
	assert.False(t, ok)
}

func TestDirSourcesOnlyDirectories(t *testing.T) {
	a := mkTree(t, map[string]string{"sub": "not-a-dir"}, nil)
	b := mkTree(t, nil, []string{"sub"})

	got := dirSources([]string{a, b}, "sub")
	assert.Equal(t, []string{filepath.Join(b, "sub")}, got)
}

func TestMergeNamesDeduplicatesAcrossSources(t *testing.T) {
	a := mkTree(t, map[string]string{"one": "a"}, []string{"shared"})
	b := mkTree(t, map[string]string{"two": "b"}, []string{"shared"})

	names, err := mergeNames([]string{a, b})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "shared", "two"}, names)
}

func TestMergeNamesToleratesMissingSource(t *testing.T) {
	a := mkTree(t, map[string]string{"one": "a"}, nil)
	missing := filepath.Join(a, "does-not-exist")

	names, err := mergeNames([]string{a, missing})
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, names)
}
