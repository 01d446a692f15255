package execpostprocess

import (
	"errors"
	"strings"
)

// Emulated implements the "CPU transparency" variant of §4.7: the
// foreign-CPU binary is never exec'd directly, the configured emulator
// is, with the virtual (unmapped) filename appended so it can map the
// binary itself inside the guest view.
func Emulated(req Request) (Result, error) {
	ct := req.Policy.CPUTransparency
	if ct == nil {
		return Result{}, ErrEmulatorNotConfigured
	}

	envp := cloneEnvp(req.Envp)
	preservedLib := preservedLdValue(envp, "LD_LIBRARY_PATH")

	argv := make([]string, 0, len(ct.QemuArgv)+8+len(req.OrigArgvRest))
	argv = append(argv, ct.QemuArgv...)
	argv = append(argv, "-L", "/")
	if ct.HasArgv0Flag {
		argv = append(argv, "-0", req.OrigArgv0)
	}

	envp.stripVars("GCONV_PATH", "NLSPATH", "LOCPATH")
	envp.stripVars("__SB2_LD_PRELOAD")

	if ct.QemuHasEnvControlFlags {
		for k := range envp {
			if strings.HasPrefix(k, "LD_TRACE_") {
				argv = append(argv, "-E", k+"="+envp[k])
				delete(envp, k)
			}
		}
	}

	envp.stripVars(commonStripSet...)
	envp.stripSB2Vars()
	envp["LD_LIBRARY_PATH"] = computeLd("", ct.LdLibraryPath, preservedLib, "", req.Policy.HostLdLibraryPathDefault)
	envp["LD_PRELOAD"] = computeLd("", ct.LdPreload, "", "", req.Policy.HostLdPreloadDefault)
	envp["__SB2_LD_LIBRARY_PATH"] = preservedLib

	argv = append(argv, req.VirtualFile)
	argv = append(argv, req.OrigArgvRest...)

	return Result{File: ct.QemuArgv[0], Argv: argv, Envp: envp}, nil
}

var ErrEmulatorNotConfigured = errors.New("execpostprocess: binary classified TARGET but policy has no cputransparency configuration")
