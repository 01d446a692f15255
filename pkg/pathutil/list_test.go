package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitString_RoundTrip(t *testing.T) {
	cases := []string{
		"/bin/ls",
		"/",
		"/a/b/c/",
		"a/b",
		"//bin//ls",
	}
	for _, c := range cases {
		l := Split(c)
		_ = l.String() // just exercise; doubled slashes aren't round-trip preserving
	}

	l := Split("/a/b/c/")
	assert.True(t, l.Absolute)
	assert.True(t, l.HasTrailingSlash)
	assert.Equal(t, []string{"a", "b", "c"}, names(l))
	assert.Equal(t, "/a/b/c/", l.String())
}

func TestSplit_DroppedEmptyComponents(t *testing.T) {
	l := Split("//bin//ls")
	assert.Equal(t, []string{"bin", "ls"}, names(l))
}

func TestIsClean(t *testing.T) {
	clean, hasDot, hasDotDot := IsClean(Split("/a/b"))
	assert.True(t, clean)
	assert.False(t, hasDot)
	assert.False(t, hasDotDot)

	clean, hasDot, hasDotDot = IsClean(Split("/a/./b/.."))
	assert.False(t, clean)
	assert.True(t, hasDot)
	assert.True(t, hasDotDot)
}

func TestRemoveDots(t *testing.T) {
	l := Split("/a/./b/.")
	RemoveDots(l)
	assert.Equal(t, []string{"a", "b"}, names(l))
	assert.True(t, l.HasTrailingSlash)
}

func TestCleanDotDots_LeadingStripped(t *testing.T) {
	l := Split("/../../a")
	require.NoError(t, CleanDotDots(IdentityResolver{}, l))
	assert.Equal(t, []string{"a"}, names(l))
}

func TestCleanDotDots_KnownNotSymlinkDropsBoth(t *testing.T) {
	l := &List{
		Absolute: true,
		Components: []Component{
			{Name: "a", NotSymlink: true},
			{Name: "b", NotSymlink: true},
			{Name: ".."},
			{Name: "c"},
		},
	}
	require.NoError(t, CleanDotDots(IdentityResolver{}, l))
	assert.Equal(t, []string{"a", "c"}, names(l))
}

func TestCleanDotDots_UnknownSymlinkConsultsResolver(t *testing.T) {
	l := &List{
		Absolute: true,
		Components: []Component{
			{Name: "link"}, // symlink status unknown
			{Name: ".."},
			{Name: "c"},
		},
	}
	r := prefixMap{"/link": "/real/target"}
	require.NoError(t, CleanDotDots(r, l))
	assert.Equal(t, []string{"real", "c"}, names(l))
}

func TestCleanDotDots_SamePrefixJustDrops(t *testing.T) {
	l := &List{
		Absolute: true,
		Components: []Component{
			{Name: "a"},
			{Name: ".."},
			{Name: "c"},
		},
	}
	require.NoError(t, CleanDotDots(IdentityResolver{}, l))
	assert.Equal(t, []string{"c"}, names(l))
}

type prefixMap map[string]string

func (m prefixMap) ResolvePrefix(prefix string) (string, error) {
	if v, ok := m[prefix]; ok {
		return v, nil
	}
	return prefix, nil
}

func names(l *List) []string {
	out := make([]string, len(l.Components))
	for i, c := range l.Components {
		out[i] = c.Name
	}
	return out
}
