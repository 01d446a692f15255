package pathutil

// Clean runs RemoveDots then CleanDotDots against path, returning the
// resulting List. It is the single entry point §4.1 describes as
// "clean", used both for virtual paths (with a resolver-backed
// PrefixResolver) and host paths (with IdentityResolver, since a host
// path handed back from readlink/realpath has no further symlinks to
// chase).
func Clean(r PrefixResolver, path string) (*List, error) {
	l := Split(path)
	RemoveDots(l)
	if err := CleanDotDots(r, l); err != nil {
		return nil, err
	}
	return l, nil
}
