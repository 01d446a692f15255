package ruletree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	b := NewBuilder()
	off := b.PutString("hello world")
	empty := b.PutString("")
	assert.Equal(t, NoOffset, empty)

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	s, err := r.GetString(off)
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)

	s, err = r.GetString(empty)
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestObjectListRoundTrip(t *testing.T) {
	b := NewBuilder()
	a := b.PutString("a")
	c := b.PutString("c")
	listOff := b.PutObjectList([]Offset{a, c})

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	items, err := r.GetObjectList(listOff)
	require.NoError(t, err)
	require.Len(t, items, 2)

	s0, _ := r.GetString(items[0])
	s1, _ := r.GetString(items[1])
	assert.Equal(t, "a", s0)
	assert.Equal(t, "c", s1)
}

func TestCatalogNestedLookup(t *testing.T) {
	b := NewBuilder()

	policyOff := b.PutString("/opt/cross/bin/gcc")
	innerCat := b.PutCatalog([]CatalogEntry{
		b.CatalogEntryString("gcc-target", policyOff),
	})
	modeCat := b.PutCatalog([]CatalogEntry{
		b.CatalogEntryString("tools", innerCat),
	})
	rootCat := b.PutCatalog([]CatalogEntry{
		b.CatalogEntryString("exec_policy", modeCat),
	})
	b.SetRoot(rootCat)

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	valOff, err := r.CatalogLookup(r.Root(), "exec_policy", "tools", "gcc-target")
	require.NoError(t, err)
	val, err := r.GetString(valOff)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cross/bin/gcc", val)

	_, err = r.CatalogLookup(r.Root(), "exec_policy", "missing")
	assert.ErrorIs(t, err, ErrNoSuchEntry)
}

func TestFsRuleRoundTrip(t *testing.T) {
	b := NewBuilder()
	rule := FsRule{
		Name:           "map-tmp",
		SelectorType:   SelectorPrefix,
		Selector:       "/tmp",
		ActionType:     ActionMapTo,
		Action:         "/home/user/.sb2/tmp",
		ConditionType:  ConditionEnvVarIsNotEmpty,
		Condition:      "SBOX_REDIRECT_FORCE",
		Flags:          FlagReadonly | FlagCallTranslateForAll,
		BinaryName:     "gcc",
		FuncClassMask:  0xff,
		ExecPolicyName: "Default",
	}
	off := b.PutFsRule(rule)

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	got, err := r.GetFsRule(off)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.SelectorType, got.SelectorType)
	assert.Equal(t, rule.Selector, got.Selector)
	assert.Equal(t, rule.ActionType, got.ActionType)
	assert.Equal(t, rule.Action, got.Action)
	assert.Equal(t, rule.ConditionType, got.ConditionType)
	assert.Equal(t, rule.Condition, got.Condition)
	assert.Equal(t, rule.Flags, got.Flags)
	assert.Equal(t, rule.BinaryName, got.BinaryName)
	assert.Equal(t, rule.FuncClassMask, got.FuncClassMask)
	assert.Equal(t, rule.ExecPolicyName, got.ExecPolicyName)
}

func TestNetRuleRoundTrip(t *testing.T) {
	b := NewBuilder()
	nr := NetRule{
		Type:       NetRuleDeny,
		FuncName:   "connect",
		BinaryName: "curl",
		Address:    "10.0.0.0/8",
		Port:       443,
		Errno:      13,
		LogLevel:   2,
		LogMsg:     "blocked outbound connect",
	}
	off := b.PutNetRule(nr)

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	got, err := r.GetNetRule(off)
	require.NoError(t, err)
	assert.Equal(t, nr.Type, got.Type)
	assert.Equal(t, nr.FuncName, got.FuncName)
	assert.Equal(t, nr.BinaryName, got.BinaryName)
	assert.Equal(t, nr.Address, got.Address)
	assert.Equal(t, nr.Port, got.Port)
	assert.Equal(t, nr.Errno, got.Errno)
	assert.Equal(t, nr.LogLevel, got.LogLevel)
}

func TestExecPreprocessingRuleRoundTrip(t *testing.T) {
	b := NewBuilder()
	rule := ExecPreprocessingRule{
		BinaryName:   "gcc",
		PathPrefixes: []string{"/usr/bin", "/usr/local/bin"},
		AddHead:      []string{"-nostdinc"},
		DisableMapping: true,
	}
	off := b.PutExecPreprocessingRule(rule)

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	got, err := r.GetExecPreprocessingRule(off)
	require.NoError(t, err)
	assert.Equal(t, rule.BinaryName, got.BinaryName)
	assert.Equal(t, rule.PathPrefixes, got.PathPrefixes)
	assert.Equal(t, rule.AddHead, got.AddHead)
	assert.Empty(t, got.AddOptions)
	assert.True(t, got.DisableMapping)
}

func TestInodeStatRoundTrip(t *testing.T) {
	b := NewBuilder()
	s := InodeStat{
		Dev:    0x1122334455667788,
		Ino:    42,
		Active: FieldUID | FieldGID | FieldMode,
		UID:    0,
		GID:    0,
		Mode:   0o755,
	}
	off := b.PutInodeStat(s)

	r, err := NewReader(b.Bytes())
	require.NoError(t, err)

	got, err := r.GetInodeStat(off)
	require.NoError(t, err)
	assert.Equal(t, s.Dev, got.Dev)
	assert.Equal(t, s.Ino, got.Ino)
	assert.Equal(t, s.Active, got.Active)
	assert.Equal(t, s.Mode, got.Mode)
}

func TestReaderRejectsBadMagic(t *testing.T) {
	_, err := NewReader(make([]byte, headerSize))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestReaderRejectsTruncated(t *testing.T) {
	_, err := NewReader(make([]byte, 4))
	assert.ErrorIs(t, err, ErrTruncated)
}
