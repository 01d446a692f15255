package pipeline

import (
	"strconv"

	"github.com/sb2root/sbcore/pkg/execpostprocess"
	"github.com/sb2root/sbcore/pkg/ruletree"
)

// Exec policy catalog field names, the fixed keys §3 "Exec policy"
// lists, addressed via {"exec_policy", mode, policy_name} in the root
// catalog. There is no dedicated boolean or uint32 record kind in the
// arena (§6), so a bool field's value is the String "0"/"1" and
// exec_flags is a decimal string parsed with strconv.
const (
	fieldNativeAppLdSo              = "native_app_ld_so"
	fieldNativeAppLdSoSupportsArgv0 = "native_app_ld_so_supports_argv0"
	fieldNativeAppLdSoInhibitRpath  = "native_app_ld_so_inhibit_rpath"
	fieldNativeAppLdSoNoDefaultDirs = "native_app_ld_so_no_default_dirs"
	fieldNativeAppLdLibraryPath     = "native_app_ld_library_path"
	fieldNativeAppLdLibraryPathPfx  = "native_app_ld_library_path_prefix"
	fieldNativeAppLdLibraryPathSfx  = "native_app_ld_library_path_suffix"
	fieldNativeAppLdPreload         = "native_app_ld_preload"
	fieldNativeAppLdPreloadPrefix   = "native_app_ld_preload_prefix"
	fieldNativeAppLdPreloadSuffix   = "native_app_ld_preload_suffix"
	fieldNativeAppLocalePath        = "native_app_locale_path"
	fieldNativeAppGconvPath         = "native_app_gconv_path"
	fieldHostLdLibraryPathDefault   = "host_ld_library_path_default"
	fieldHostLdPreloadDefault       = "host_ld_preload_default"
	fieldAllowStaticBinary          = "allow_static_binary"
	fieldCPUTransparency            = "cputransparency"
	fieldScriptInterpreterRules     = "script_interpreter_rules"
	fieldScriptDenyExec             = "script_deny_exec"
	fieldExecFlags                  = "exec_flags"

	fieldCTName               = "name"
	fieldCTQemuArgv            = "qemu_argv"
	fieldCTHasArgv0Flag        = "has_argv0_flag"
	fieldCTHasEnvControlFlags  = "qemu_has_env_control_flags"
	fieldCTLdLibraryPath       = "ld_library_path"
	fieldCTLdPreload           = "ld_preload"
)

// LoadExecPolicy decodes the named exec policy out of tree's root
// catalog, the way the exec pipeline looks one up by
// (key="exec_policy", mode, policy_name) before postprocessing an
// exec.
func LoadExecPolicy(tree *ruletree.Reader, root ruletree.Offset, mode, policyName string) (execpostprocess.ExecPolicy, error) {
	catOff, err := tree.CatalogLookup(root, "exec_policy", mode, policyName)
	if err != nil {
		return execpostprocess.ExecPolicy{}, err
	}
	entries, err := tree.GetCatalog(catOff)
	if err != nil {
		return execpostprocess.ExecPolicy{}, err
	}

	policy := execpostprocess.ExecPolicy{Name: policyName}
	for _, e := range entries {
		switch e.Key {
		case fieldNativeAppLdSo:
			policy.NativeAppLdSo, err = tree.GetString(e.Value)
		case fieldNativeAppLdSoSupportsArgv0:
			policy.NativeAppLdSoSupportsArgv0, err = decodeBool(tree, e.Value)
		case fieldNativeAppLdSoInhibitRpath:
			policy.NativeAppLdSoInhibitRpath, err = decodeBool(tree, e.Value)
		case fieldNativeAppLdSoNoDefaultDirs:
			policy.NativeAppLdSoNoDefaultDirs, err = decodeBool(tree, e.Value)
		case fieldNativeAppLdLibraryPath:
			policy.NativeAppLdLibraryPathOverride, err = tree.GetString(e.Value)
		case fieldNativeAppLdLibraryPathPfx:
			policy.NativeAppLdLibraryPathPrefix, err = tree.GetString(e.Value)
		case fieldNativeAppLdLibraryPathSfx:
			policy.NativeAppLdLibraryPathSuffix, err = tree.GetString(e.Value)
		case fieldNativeAppLdPreload:
			policy.NativeAppLdPreloadOverride, err = tree.GetString(e.Value)
		case fieldNativeAppLdPreloadPrefix:
			policy.NativeAppLdPreloadPrefix, err = tree.GetString(e.Value)
		case fieldNativeAppLdPreloadSuffix:
			policy.NativeAppLdPreloadSuffix, err = tree.GetString(e.Value)
		case fieldNativeAppLocalePath:
			policy.NativeAppLocalePath, err = tree.GetString(e.Value)
		case fieldNativeAppGconvPath:
			policy.NativeAppGconvPath, err = tree.GetString(e.Value)
		case fieldHostLdLibraryPathDefault:
			policy.HostLdLibraryPathDefault, err = tree.GetString(e.Value)
		case fieldHostLdPreloadDefault:
			policy.HostLdPreloadDefault, err = tree.GetString(e.Value)
		case fieldAllowStaticBinary:
			policy.AllowStaticBinary, err = decodeBool(tree, e.Value)
		case fieldScriptInterpreterRules:
			policy.ScriptInterpreterRules = e.Value
		case fieldScriptDenyExec:
			policy.ScriptDenyExec, err = decodeBool(tree, e.Value)
		case fieldCPUTransparency:
			policy.CPUTransparency, err = loadCPUTransparency(tree, e.Value)
		case fieldExecFlags:
			// Decoded for completeness; no field in ExecPolicy
			// currently consumes the raw bitmask, mirroring how
			// ruletree.FsRule's own Flags only matter through the
			// named booleans the rest of this struct already exposes.
			_, err = strconv.ParseUint(mustString(tree, e.Value), 10, 32)
		}
		if err != nil {
			return execpostprocess.ExecPolicy{}, err
		}
	}
	return policy, nil
}

func loadCPUTransparency(tree *ruletree.Reader, off ruletree.Offset) (*execpostprocess.CPUTransparency, error) {
	entries, err := tree.GetCatalog(off)
	if err != nil {
		return nil, err
	}
	ct := &execpostprocess.CPUTransparency{}
	for _, e := range entries {
		switch e.Key {
		case fieldCTName:
			ct.Name, err = tree.GetString(e.Value)
		case fieldCTQemuArgv:
			ct.QemuArgv, err = tree.GetStringList(e.Value)
		case fieldCTHasArgv0Flag:
			ct.HasArgv0Flag, err = decodeBool(tree, e.Value)
		case fieldCTHasEnvControlFlags:
			ct.QemuHasEnvControlFlags, err = decodeBool(tree, e.Value)
		case fieldCTLdLibraryPath:
			ct.LdLibraryPath, err = tree.GetString(e.Value)
		case fieldCTLdPreload:
			ct.LdPreload, err = tree.GetString(e.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	return ct, nil
}

func decodeBool(tree *ruletree.Reader, off ruletree.Offset) (bool, error) {
	s, err := tree.GetString(off)
	if err != nil {
		return false, err
	}
	return s == "1" || s == "true", nil
}

func mustString(tree *ruletree.Reader, off ruletree.Offset) string {
	s, _ := tree.GetString(off)
	return s
}

// SelectExecPolicy walks an ExecPolicySelectionRule ObjectList the way
// §3's "Exec policy selection rule" is consulted when a matched fs-rule
// left no exec-policy name of its own: the first rule whose selector
// matches the mapped file's path wins. Only the selector is compared;
// the rule's Flags are not consulted.
func SelectExecPolicy(tree *ruletree.Reader, listOff ruletree.Offset, mappedPath string) (string, bool, error) {
	offs, err := tree.GetObjectList(listOff)
	if err != nil {
		return "", false, err
	}
	for _, off := range offs {
		rule, err := tree.GetExecPolicySelectionRule(off)
		if err != nil {
			return "", false, err
		}
		if selectorMatches(rule.Type, rule.Selector, mappedPath) {
			return rule.PolicyName, true, nil
		}
	}
	return "", false, nil
}

func selectorMatches(selType ruletree.SelectorType, selector, path string) bool {
	switch selType {
	case ruletree.SelectorPath:
		return selector == path
	case ruletree.SelectorPrefix:
		return len(path) >= len(selector) && path[:len(selector)] == selector
	case ruletree.SelectorDir:
		return path == selector || (len(path) > len(selector) && path[:len(selector)] == selector && path[len(selector)] == '/') || selector == "/"
	default:
		return false
	}
}
