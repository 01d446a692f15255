package execpostprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeDynamic_BuildsLdSoArgv(t *testing.T) {
	req := Request{
		OrigArgv0:    "gcc",
		OrigArgvRest: []string{"-c", "foo.c"},
		MappedFile:   "/tools/bin/gcc",
		Policy: ExecPolicy{
			Name:                         "default",
			NativeAppLdSo:                "/tools/lib/ld-linux.so",
			NativeAppLdSoSupportsArgv0:   true,
			NativeAppLdSoNoDefaultDirs:   true,
			NativeAppLdLibraryPathPrefix: "/tools/lib",
			HostLdPreloadDefault:         "/tools/lib/libsb2.so",
		},
		Envp: Envp{"LD_LIBRARY_PATH": "/usr/lib", "PATH": "/usr/bin"},
	}

	res := NativeDynamic(req)

	assert.Equal(t, "/tools/lib/ld-linux.so", res.File)
	assert.Equal(t, []string{
		"/tools/lib/ld-linux.so",
		"--rpath-prefix", "/tools/lib",
		"--nodefaultdirs",
		"--argv0", "gcc",
		"/tools/bin/gcc",
		"-c", "foo.c",
	}, res.Argv)
	assert.Equal(t, "/tools/lib:/usr/lib", res.Envp["LD_LIBRARY_PATH"])
	assert.Equal(t, "/tools/lib/libsb2.so", res.Envp["LD_PRELOAD"])
	assert.Equal(t, "/usr/lib", res.Envp["__SB2_LD_LIBRARY_PATH"])
	assert.Equal(t, "/usr/bin", res.Envp["PATH"])
}

func TestNativeDynamic_NoLdSoExecsMappedFileDirectly(t *testing.T) {
	req := Request{
		OrigArgv0:    "true",
		MappedFile:   "/tools/bin/true",
		Policy:       ExecPolicy{Name: "default"},
		Envp:         Envp{},
	}

	res := NativeDynamic(req)

	assert.Equal(t, "/tools/bin/true", res.File)
	assert.Equal(t, []string{"true"}, res.Argv)
}

func TestNativeDynamic_InhibitRpathSkipsPrefixFlag(t *testing.T) {
	req := Request{
		OrigArgv0:  "a.out",
		MappedFile: "/tools/bin/a.out",
		Policy: ExecPolicy{
			NativeAppLdSo:             "/tools/lib/ld-linux.so",
			NativeAppLdSoInhibitRpath: true,
		},
		Envp: Envp{},
	}

	res := NativeDynamic(req)

	assert.Equal(t, []string{
		"/tools/lib/ld-linux.so",
		"--inhibit-rpath", "",
		"/tools/bin/a.out",
	}, res.Argv)
}

func TestNativeStatic_WarnsOnUnlistedBinary(t *testing.T) {
	req := Request{
		OrigArgv0:          "static-bin",
		MappedFile:         "/tools/bin/static-bin",
		AllowStaticAbsPath: "/tools/bin/other",
		Policy:             ExecPolicy{},
		Envp:               Envp{},
	}

	res := NativeStatic(req)

	assert.Equal(t, "/tools/bin/static-bin", res.File)
	assert.Equal(t, []string{"static-bin"}, res.Argv)
	assert.Contains(t, res.Warning, "/tools/bin/static-bin")
}

func TestNativeStatic_AllowListedBinaryHasNoWarning(t *testing.T) {
	req := Request{
		OrigArgv0:          "static-bin",
		MappedFile:         "/tools/bin/static-bin",
		AllowStaticAbsPath: "/tools/bin/static-bin",
		Policy:             ExecPolicy{},
		Envp:               Envp{},
	}

	res := NativeStatic(req)

	assert.Empty(t, res.Warning)
}

func TestEmulated_BuildsQemuArgvAndStripsLocaleVars(t *testing.T) {
	req := Request{
		OrigArgv0:    "arm-binary",
		OrigArgvRest: []string{"--flag"},
		VirtualFile:  "/bin/arm-binary",
		Policy: ExecPolicy{
			CPUTransparency: &CPUTransparency{
				Name:          "qemu-arm",
				QemuArgv:      []string{"/usr/bin/qemu-arm", "-cpu", "cortex-a9"},
				HasArgv0Flag:  true,
				LdLibraryPath: "/emul/arm/lib",
			},
		},
		Envp: Envp{
			"LD_LIBRARY_PATH": "/usr/lib",
			"LOCPATH":         "/usr/share/locale",
		},
	}

	res, err := Emulated(req)
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/qemu-arm", res.File)
	assert.Equal(t, []string{
		"/usr/bin/qemu-arm", "-cpu", "cortex-a9",
		"-L", "/",
		"-0", "arm-binary",
		"/bin/arm-binary", "--flag",
	}, res.Argv)
	assert.Equal(t, "/emul/arm/lib:/usr/lib", res.Envp["LD_LIBRARY_PATH"])
	_, hasLocpath := res.Envp["LOCPATH"]
	assert.False(t, hasLocpath)
}

func TestEmulated_MissingCPUTransparencyIsError(t *testing.T) {
	_, err := Emulated(Request{Policy: ExecPolicy{}})
	assert.ErrorIs(t, err, ErrEmulatorNotConfigured)
}

func TestEmulated_EnvControlFlagsMovedToArgv(t *testing.T) {
	req := Request{
		OrigArgv0:   "bin",
		VirtualFile: "/bin/bin",
		Policy: ExecPolicy{
			CPUTransparency: &CPUTransparency{
				QemuArgv:               []string{"/usr/bin/qemu-arm"},
				QemuHasEnvControlFlags: true,
			},
		},
		Envp: Envp{"LD_TRACE_LOADED_OBJECTS": "1"},
	}

	res, err := Emulated(req)
	require.NoError(t, err)

	assert.Contains(t, res.Argv, "-E")
	assert.Contains(t, res.Argv, "LD_TRACE_LOADED_OBJECTS=1")
	_, stillSet := res.Envp["LD_TRACE_LOADED_OBJECTS"]
	assert.False(t, stillSet)
}

func TestValidate_RefusesEnvpWithNoLdVars(t *testing.T) {
	err := Validate(Envp{"PATH": "/usr/bin"})
	assert.ErrorIs(t, err, ErrMissingLdVars)
}

func TestValidate_AcceptsLdPreloadAlone(t *testing.T) {
	err := Validate(Envp{"LD_PRELOAD": "/tools/lib/libsb2.so"})
	assert.NoError(t, err)
}
