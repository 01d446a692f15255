// Package pathutil implements the Path Entry / Path List primitives of
// the mapping engine's data model: split/join/clean of absolute paths
// into component slices, and the three passes of ".." removal described
// in the design — two that need no outside help, one that must consult
// a resolver because a symlink in the prefix can change what ".."
// actually means.
package pathutil

import "strings"

// Component is one path segment plus whatever the resolver has learned
// about it so far.
type Component struct {
	Name       string
	IsSymlink  bool
	NotSymlink bool
	LinkTarget string
}

// List is the in-progress representation of a path being mapped. Lists
// are owned by whoever calls into this package; functions that recurse
// (the resolver) duplicate a list before mutating it.
type List struct {
	Components       []Component
	Absolute         bool
	HasTrailingSlash bool
	HostPath         bool
}

// Clone returns a deep copy so a recursive caller can mutate its own
// version without disturbing the caller's.
func (l *List) Clone() *List {
	out := &List{
		Components:       make([]Component, len(l.Components)),
		Absolute:         l.Absolute,
		HasTrailingSlash: l.HasTrailingSlash,
		HostPath:         l.HostPath,
	}
	copy(out.Components, l.Components)
	return out
}

// Split parses path into a List. Flags: Absolute if it begins with '/';
// HasTrailingSlash if the last byte is '/'; empty components produced by
// doubled slashes are dropped.
func Split(path string) *List {
	l := &List{}
	if path == "" {
		return l
	}
	l.Absolute = path[0] == '/'
	l.HasTrailingSlash = len(path) > 1 && path[len(path)-1] == '/'

	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		l.Components = append(l.Components, Component{Name: part})
	}
	return l
}

// String is the inverse of Split: a leading '/' iff Absolute, a trailing
// '/' iff HasTrailingSlash, components separated by single '/'.
func (l *List) String() string {
	var b strings.Builder
	if l.Absolute {
		b.WriteByte('/')
	}
	for i, c := range l.Components {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(c.Name)
	}
	if l.HasTrailingSlash && len(l.Components) > 0 {
		b.WriteByte('/')
	}
	out := b.String()
	if out == "" {
		if l.Absolute {
			return "/"
		}
		return "."
	}
	return out
}

// IsClean reports, lexically only, whether l contains any "." or ".."
// components.
func IsClean(l *List) (clean, hasDot, hasDotDot bool) {
	for _, c := range l.Components {
		switch c.Name {
		case ".":
			hasDot = true
		case "..":
			hasDotDot = true
		}
	}
	clean = !hasDot && !hasDotDot
	return
}

// RemoveDots strips every "." component. If the last original component
// was ".", the trailing-slash flag is set (a path ending in "/." behaves
// like one ending in "/").
func RemoveDots(l *List) {
	if len(l.Components) > 0 && l.Components[len(l.Components)-1].Name == "." {
		l.HasTrailingSlash = true
	}
	out := l.Components[:0:0]
	for _, c := range l.Components {
		if c.Name == "." {
			continue
		}
		out = append(out, c)
	}
	l.Components = out
}
