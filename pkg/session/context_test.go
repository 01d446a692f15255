package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGuardNesting(t *testing.T) {
	var ctx Context
	assert.False(t, ctx.MappingDisabled())

	done1 := ctx.Guard()
	assert.True(t, ctx.MappingDisabled())
	done2 := ctx.Guard()
	assert.True(t, ctx.MappingDisabled())

	done2()
	assert.True(t, ctx.MappingDisabled(), "still held by the outer guard")
	done1()
	assert.False(t, ctx.MappingDisabled())
}

func TestContextEnableWithoutDisableClampsAtZero(t *testing.T) {
	var ctx Context
	ctx.Enable()
	ctx.Enable()
	assert.False(t, ctx.MappingDisabled())
}

func TestCWDMemo(t *testing.T) {
	var m CWDMemo
	_, _, ok := m.Get()
	assert.False(t, ok)

	m.Set("/host/a", "/virt/a")
	host, virt, ok := m.Get()
	assert.True(t, ok)
	assert.Equal(t, "/host/a", host)
	assert.Equal(t, "/virt/a", virt)

	m.Invalidate()
	_, _, ok = m.Get()
	assert.False(t, ok)
}
