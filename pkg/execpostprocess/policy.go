// Package execpostprocess builds the final argv/envp for a real
// execve given the binary type the exec inspector reported and the
// exec policy that applies: native dynamic (via explicit ld.so
// invocation), native static, or foreign-CPU ("cpu transparency")
// through an emulator (§4.7).
package execpostprocess

import "github.com/sb2root/sbcore/pkg/ruletree"

// ExecPolicy is the decoded, in-memory form of the named field bundle
// the data model describes, looked up by (key="exec_policy", mode,
// policy_name) in the catalog.
type ExecPolicy struct {
	Name string

	NativeAppLdSo                string
	NativeAppLdSoSupportsArgv0   bool
	NativeAppLdSoInhibitRpath    bool
	NativeAppLdSoNoDefaultDirs   bool
	// NativeAppLdLibraryPathOverride / NativeAppLdPreloadOverride, when
	// set, are used verbatim ("policy supplies an absolute value");
	// otherwise Prefix/Suffix are concatenated around the preserved
	// user value.
	NativeAppLdLibraryPathOverride string
	NativeAppLdLibraryPathPrefix   string
	NativeAppLdLibraryPathSuffix   string
	NativeAppLdPreloadOverride     string
	NativeAppLdPreloadPrefix       string
	NativeAppLdPreloadSuffix       string
	NativeAppLocalePath            string
	NativeAppGconvPath             string
	HostLdLibraryPathDefault       string
	HostLdPreloadDefault           string

	AllowStaticBinary bool

	CPUTransparency *CPUTransparency

	// ScriptInterpreterRules addresses the FsRule ObjectList
	// pkg/scripthandler.Mapper consults to map a "#!" interpreter path
	// (§4.8); zero means no script-specific rule list is configured and
	// the default full mapping pipeline is used unconditionally.
	ScriptInterpreterRules ruletree.Offset
	// ScriptDenyExec implements the script_deny_exec field: when true,
	// any "#!" script run under this policy is refused outright.
	ScriptDenyExec bool
}

// CPUTransparency describes the emulator configuration for TARGET
// binaries.
type CPUTransparency struct {
	Name                   string
	QemuArgv               []string
	HasArgv0Flag           bool
	QemuHasEnvControlFlags bool
	LdLibraryPath          string
	LdPreload              string
}
