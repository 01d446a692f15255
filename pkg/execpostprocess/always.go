package execpostprocess

// AlwaysParams carries the values the "Always" block of §4.7 injects
// into envp regardless of which variant ran.
type AlwaysParams struct {
	VpermIDsSerialized string // fresh SBOX_VPERM_IDS, possibly re-derived for SUID/SGID
	MappedBinaryName   string // __SB2_REAL_BINARYNAME
	Basename           string // __SB2_BINARYNAME
	OrigBinaryName     string // __SB2_ORIG_BINARYNAME
	ExecBinaryName     string // __SB2_EXEC_BINARYNAME (script or orig)
	ChrootPath         string // __SB2_CHROOT_PATH, empty if chroot simulation inactive
	SessionDir         string // SBOX_SESSION_DIR, must survive unchanged
	MappingMethod      string // SBOX_MAPPING_METHOD, must survive unchanged
	SigtrapPreserved   string // SBOX_SIGTRAP, preserved if the caller cleared it
}

// ApplyAlways mutates envp in place per the "Always" block: it sets
// the __SB2_* identity variables and SBOX_VPERM_IDS, and refuses any
// attempt the intercepted program made to change SBOX_SESSION_DIR or
// SBOX_MAPPING_METHOD by restoring them from AlwaysParams, returning
// whether a restore happened (callers log a warning when it did).
func ApplyAlways(envp Envp, p AlwaysParams) (restoredProtectedVar bool) {
	envp["SBOX_VPERM_IDS"] = p.VpermIDsSerialized
	envp["__SB2_REAL_BINARYNAME"] = p.MappedBinaryName
	envp["__SB2_BINARYNAME"] = p.Basename
	envp["__SB2_ORIG_BINARYNAME"] = p.OrigBinaryName
	envp["__SB2_EXEC_BINARYNAME"] = p.ExecBinaryName

	if p.ChrootPath != "" {
		envp["__SB2_CHROOT_PATH"] = p.ChrootPath
	} else {
		delete(envp, "__SB2_CHROOT_PATH")
	}

	if p.SigtrapPreserved != "" {
		if _, set := envp["SBOX_SIGTRAP"]; !set {
			envp["SBOX_SIGTRAP"] = p.SigtrapPreserved
		}
	}

	if cur, ok := envp["SBOX_SESSION_DIR"]; ok && cur != p.SessionDir {
		restoredProtectedVar = true
	}
	envp["SBOX_SESSION_DIR"] = p.SessionDir

	if cur, ok := envp["SBOX_MAPPING_METHOD"]; ok && cur != p.MappingMethod {
		restoredProtectedVar = true
	}
	if p.MappingMethod != "" {
		envp["SBOX_MAPPING_METHOD"] = p.MappingMethod
	} else {
		delete(envp, "SBOX_MAPPING_METHOD")
	}

	return restoredProtectedVar
}
