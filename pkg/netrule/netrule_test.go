package netrule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

type fakeReader struct {
	lists map[ruletree.Offset][]ruletree.Offset
	rules map[ruletree.Offset]ruletree.NetRule
}

func (f *fakeReader) GetObjectList(off ruletree.Offset) ([]ruletree.Offset, error) {
	return f.lists[off], nil
}
func (f *fakeReader) GetNetRule(off ruletree.Offset) (ruletree.NetRule, error) {
	return f.rules[off], nil
}

func TestEvaluateAllowMatch(t *testing.T) {
	r := &fakeReader{
		lists: map[ruletree.Offset][]ruletree.Offset{1: {10}},
		rules: map[ruletree.Offset]ruletree.NetRule{
			10: {Type: ruletree.NetRuleAllow, Address: "10.0.0.0/8"},
		},
	}
	e := NewEngine(r, 1)
	v, err := e.Evaluate(CallCtx{Address: "10.1.2.3"})
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.False(t, v.NoMatch)
}

func TestEvaluateDenyMatchSetsErrno(t *testing.T) {
	r := &fakeReader{
		lists: map[ruletree.Offset][]ruletree.Offset{1: {10}},
		rules: map[ruletree.Offset]ruletree.NetRule{
			10: {Type: ruletree.NetRuleDeny, Address: "192.168.1.1", Errno: 13, LogMsg: "denied"},
		},
	}
	e := NewEngine(r, 1)
	v, err := e.Evaluate(CallCtx{Address: "192.168.1.1"})
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.EqualValues(t, 13, v.Errno)
	assert.Equal(t, "denied", v.LogMsg)
}

func TestEvaluateNoMatchDefaultsAllow(t *testing.T) {
	r := &fakeReader{
		lists: map[ruletree.Offset][]ruletree.Offset{1: {10}},
		rules: map[ruletree.Offset]ruletree.NetRule{
			10: {Type: ruletree.NetRuleDeny, Address: "1.2.3.4"},
		},
	}
	e := NewEngine(r, 1)
	v, err := e.Evaluate(CallCtx{Address: "8.8.8.8"})
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.True(t, v.NoMatch)
}

func TestEvaluateRecursesIntoRulesSublist(t *testing.T) {
	r := &fakeReader{
		lists: map[ruletree.Offset][]ruletree.Offset{
			1: {10},
			2: {20},
		},
		rules: map[ruletree.Offset]ruletree.NetRule{
			10: {Type: ruletree.NetRuleRules, BinaryName: "curl", Rules: 2},
			20: {Type: ruletree.NetRuleDeny, Address: "*"},
		},
	}
	e := NewEngine(r, 1)
	v, err := e.Evaluate(CallCtx{BinaryName: "curl", Address: "1.1.1.1"})
	require.NoError(t, err)
	assert.False(t, v.Allowed)
}

func TestEvaluatePortMustMatchWhenSet(t *testing.T) {
	r := &fakeReader{
		lists: map[ruletree.Offset][]ruletree.Offset{1: {10}},
		rules: map[ruletree.Offset]ruletree.NetRule{
			10: {Type: ruletree.NetRuleDeny, Port: 443},
		},
	}
	e := NewEngine(r, 1)
	v, err := e.Evaluate(CallCtx{Port: 80})
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.True(t, v.NoMatch)
}

func TestMatchAddressWildcardPrefix(t *testing.T) {
	assert.True(t, matchAddress("10.0.*", "10.0.5.1"))
	assert.False(t, matchAddress("10.0.*", "10.1.5.1"))
	assert.True(t, matchAddress("", "anything"))
}
