package execpostprocess

// NativeDynamic implements the "native dynamic" variant of §4.7: when
// the policy supplies an ld.so, the binary is never exec'd directly —
// ld.so is, with an argv built to make it load the mapped file itself.
func NativeDynamic(req Request) Result {
	envp := cloneEnvp(req.Envp)
	preservedLib := preservedLdValue(envp, "LD_LIBRARY_PATH")
	preservedPreload := preservedLdValue(envp, "LD_PRELOAD")

	envp.stripVars(commonStripSet...)
	envp.stripSB2Vars()

	envp["LD_LIBRARY_PATH"] = computeLd(
		req.Policy.NativeAppLdLibraryPathOverride,
		req.Policy.NativeAppLdLibraryPathPrefix, preservedLib, req.Policy.NativeAppLdLibraryPathSuffix,
		req.Policy.HostLdLibraryPathDefault,
	)
	envp["LD_PRELOAD"] = computeLd(
		req.Policy.NativeAppLdPreloadOverride,
		req.Policy.NativeAppLdPreloadPrefix, preservedPreload, req.Policy.NativeAppLdPreloadSuffix,
		req.Policy.HostLdPreloadDefault,
	)
	envp["__SB2_LD_LIBRARY_PATH"] = preservedLib
	envp["__SB2_LD_PRELOAD"] = preservedPreload

	if req.Policy.NativeAppLocalePath != "" {
		envp["LOCPATH"] = req.Policy.NativeAppLocalePath
		envp["NLSPATH"] = req.Policy.NativeAppLocalePath
	}
	if req.Policy.NativeAppGconvPath != "" {
		envp["GCONV_PATH"] = req.Policy.NativeAppGconvPath
	}

	if req.Policy.NativeAppLdSo == "" {
		return Result{File: req.MappedFile, Argv: buildOrigArgv(req), Envp: envp}
	}

	argv := []string{req.Policy.NativeAppLdSo}
	if req.Policy.NativeAppLdSoInhibitRpath {
		argv = append(argv, "--inhibit-rpath", "")
	} else {
		argv = append(argv, "--rpath-prefix", req.Policy.NativeAppLdLibraryPathPrefix)
	}
	if req.Policy.NativeAppLdSoNoDefaultDirs {
		argv = append(argv, "--nodefaultdirs")
	}
	if req.Policy.NativeAppLdSoSupportsArgv0 {
		argv = append(argv, "--argv0", req.OrigArgv0)
	}
	argv = append(argv, req.MappedFile)
	argv = append(argv, req.OrigArgvRest...)

	return Result{File: req.Policy.NativeAppLdSo, Argv: argv, Envp: envp}
}

// NativeStatic implements the "native static" variant: same envp
// treatment as dynamic, but argv passes through unchanged and a
// warning is raised unless the binary is on the one-path allow list.
func NativeStatic(req Request) Result {
	res := NativeDynamic(req)
	res.File = req.MappedFile
	res.Argv = buildOrigArgv(req)

	if req.AllowStaticAbsPath != req.MappedFile {
		res.Warning = "static binary exec: " + req.MappedFile
	}
	return res
}

func buildOrigArgv(req Request) []string {
	argv := make([]string, 0, 1+len(req.OrigArgvRest))
	argv = append(argv, req.OrigArgv0)
	argv = append(argv, req.OrigArgvRest...)
	return argv
}

func cloneEnvp(e Envp) Envp {
	out := make(Envp, len(e)+8)
	for k, v := range e {
		out[k] = v
	}
	return out
}
