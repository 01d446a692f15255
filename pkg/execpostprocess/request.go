package execpostprocess

import "errors"

// Request is everything one postprocessing pass needs about the exec
// being handled.
type Request struct {
	// OrigArgv0 is the original, un-rewritten argv[0] the caller
	// passed to execve (before preprocessing/mapping touched it).
	OrigArgv0 string
	// OrigArgvRest is orig_argv[1:].
	OrigArgvRest []string

	MappedFile  string // host path chosen by path mapping
	VirtualFile string // unmapped virtual path, used by emulator exec

	Interpreter string // PT_INTERP value for HOST_DYNAMIC, from the exec inspector

	Policy ExecPolicy
	Envp   Envp

	// AllowStaticAbsPath is SBOX_ALLOW_STATIC_BINARY's value: one
	// absolute path that suppresses the static-binary warning.
	AllowStaticAbsPath string
}

// Result is the final argv/file to exec plus the finished envp.
type Result struct {
	File string
	Argv []string
	Envp Envp
	// Warning is a non-fatal diagnostic line (e.g. the native-static
	// unlisted-binary warning); callers log it at WARNING level.
	Warning string
}

var (
	// ErrMissingLdVars is returned when the resulting envp has
	// neither LD_LIBRARY_PATH nor LD_PRELOAD set, which the pipeline
	// must refuse to exec with EINVAL.
	ErrMissingLdVars = errors.New("execpostprocess: resulting envp has neither LD_LIBRARY_PATH nor LD_PRELOAD")
)

// Validate checks the "exec round-trip" testable property: the
// resulting envp must carry at least one of LD_LIBRARY_PATH or
// LD_PRELOAD.
func Validate(envp Envp) error {
	_, haveLib := envp["LD_LIBRARY_PATH"]
	_, havePreload := envp["LD_PRELOAD"]
	if !haveLib && !havePreload {
		return ErrMissingLdVars
	}
	return nil
}
