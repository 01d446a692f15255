package pathutil

import "errors"

// ErrTooManyRestarts guards the splice-and-restart loop in CleanDotDots
// against pathological rule sets that keep producing a different
// resolved prefix forever.
var ErrTooManyRestarts = errors.New("pathutil: clean-dotdots exceeded restart bound")

const maxDotDotRestarts = 32

// PrefixResolver resolves the prefix of a path up to (but excluding) a
// ".." component. For virtual paths this recurses into the mapper; for
// host paths it is realpath.
type PrefixResolver interface {
	ResolvePrefix(prefix string) (string, error)
}

// CleanDotDots resolves ".." components without losing correctness in
// the presence of symlinks in the prefix, in three passes:
//
//  1. Strip any leading ".." — root's parent is root.
//  2. Drop any ".." whose preceding component is known not to be a
//     symlink, along with that component.
//  3. For any ".." still remaining, resolve the prefix up to it; if the
//     resolved prefix differs, splice it in and restart; otherwise just
//     drop the ".." and its predecessor.
func CleanDotDots(r PrefixResolver, l *List) error {
	for len(l.Components) > 0 && l.Components[0].Name == ".." {
		l.Components = l.Components[1:]
	}

	out := l.Components[:0:0]
	for _, c := range l.Components {
		if c.Name == ".." && len(out) > 0 && out[len(out)-1].NotSymlink {
			out = out[:len(out)-1]
			continue
		}
		out = append(out, c)
	}
	l.Components = out

	for restarts := 0; ; restarts++ {
		idx := indexOfDotDot(l.Components)
		if idx == -1 {
			return nil
		}
		if restarts >= maxDotDotRestarts {
			return ErrTooManyRestarts
		}

		prefix := &List{
			Components: append([]Component(nil), l.Components[:idx]...),
			Absolute:   l.Absolute,
			HostPath:   l.HostPath,
		}
		prefixStr := prefix.String()

		resolved, err := r.ResolvePrefix(prefixStr)
		if err != nil {
			return err
		}

		if resolved != prefixStr {
			resolvedList := Split(resolved)
			rest := append([]Component(nil), l.Components[idx:]...)
			l.Components = append(resolvedList.Components, rest...)
			continue
		}

		if idx == 0 {
			l.Components = l.Components[1:]
		} else {
			l.Components = append(append([]Component(nil), l.Components[:idx-1]...), l.Components[idx+1:]...)
		}
	}
}

func indexOfDotDot(cs []Component) int {
	for i, c := range cs {
		if c.Name == ".." {
			return i
		}
	}
	return -1
}

// IdentityResolver resolves every prefix to itself; useful for lexical-only
// cleanup (e.g. host paths already known to have no symlinks) and in tests.
type IdentityResolver struct{}

func (IdentityResolver) ResolvePrefix(prefix string) (string, error) { return prefix, nil }
