package scripthandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb2root/sbcore/pkg/execpostprocess"
	"github.com/sb2root/sbcore/pkg/rules"
)

func TestParseInterpreterAndArg(t *testing.T) {
	hb, err := Parse(" /usr/bin/python  -E ")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python", hb.Interpreter)
	assert.Equal(t, "-E", hb.Arg)
}

func TestParseInterpreterOnly(t *testing.T) {
	hb, err := Parse("/bin/sh")
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", hb.Interpreter)
	assert.Empty(t, hb.Arg)
}

func TestParseEmptyIsMalformed(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseThirdTokenOnwardIsDiscarded(t *testing.T) {
	hb, err := Parse("/usr/bin/awk -f script.awk")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/awk", hb.Interpreter)
	assert.Equal(t, "-f", hb.Arg)
}

func TestParseTabsDelimitLikeSpaces(t *testing.T) {
	hb, err := Parse("/bin/sh\t-e")
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", hb.Interpreter)
	assert.Equal(t, "-e", hb.Arg)
}

func TestParseDoesNotInterpretQuotesOrBackslashes(t *testing.T) {
	hb, err := Parse(`/usr/bin/env -S"quoted`)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/env", hb.Interpreter)
	assert.Equal(t, `-S"quoted`, hb.Arg)
}

func TestParseUnbalancedQuoteIsNotMalformed(t *testing.T) {
	hb, err := Parse(`/bin/sh -c "echo hi`)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", hb.Interpreter)
	assert.Equal(t, "-c", hb.Arg)
}

type fakeMapper struct {
	called bool
	result rules.Result
	err    error
}

func (m *fakeMapper) Map(path string, ctx rules.CallCtx) (rules.Result, error) {
	m.called = true
	return m.result, m.err
}

type fakeFullMapper struct {
	called bool
	host   string
	err    error
}

func (m *fakeFullMapper) MapPath(virtualPath string) (string, error) {
	m.called = true
	return m.host, m.err
}

func TestHandleBuildsArgvAndMapsCleanAbsoluteInterpreter(t *testing.T) {
	mapper := &fakeMapper{result: rules.Result{HostPath: "/host/usr/bin/python"}}
	full := &fakeFullMapper{}
	h := &Handler{Mapper: mapper, FullMapper: full}

	res, err := h.Handle(Request{
		HashbangRest: "/usr/bin/python -E",
		OrigFile:     "/opt/app/run.py",
		OrigArgv:     []string{"/opt/app/run.py", "arg1", "arg2"},
	})
	require.NoError(t, err)
	assert.True(t, mapper.called)
	assert.False(t, full.called)
	assert.Equal(t, []string{"/usr/bin/python", "-E", "/opt/app/run.py", "arg1", "arg2"}, res.Argv)
	assert.Equal(t, "/host/usr/bin/python", res.MappedFile)
	assert.Equal(t, "/usr/bin/python", res.Envp["__SB2_ORIG_BINARYNAME"])
	assert.Equal(t, "python", res.Envp["__SB2_BINARYNAME"])
}

func TestHandleFallsBackToFullMapperForNonCleanInterpreter(t *testing.T) {
	mapper := &fakeMapper{}
	full := &fakeFullMapper{host: "/host/bin/sh"}
	h := &Handler{Mapper: mapper, FullMapper: full}

	res, err := h.Handle(Request{
		HashbangRest: "../relative/sh",
		OrigFile:     "/opt/app/run",
		OrigArgv:     []string{"/opt/app/run"},
	})
	require.NoError(t, err)
	assert.False(t, mapper.called)
	assert.True(t, full.called)
	assert.Equal(t, "/host/bin/sh", res.MappedFile)
}

func TestHandleDeniedByScriptDenyExec(t *testing.T) {
	h := &Handler{DenyExec: true}
	_, err := h.Handle(Request{HashbangRest: "/bin/sh", OrigFile: "/x"})
	assert.ErrorIs(t, err, ErrDenied)
}

func TestHandlePreservesProvidedEnvp(t *testing.T) {
	mapper := &fakeMapper{result: rules.Result{HostPath: "/bin/sh"}}
	h := &Handler{Mapper: mapper}
	res, err := h.Handle(Request{
		HashbangRest: "/bin/sh",
		OrigFile:     "/x",
		OrigArgv:     []string{"/x"},
		Envp:         execpostprocess.Envp{"PATH": "/usr/bin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin", res.Envp["PATH"])
}
