// Package uniondir implements the glossary's "Union dir": the
// UNION_DIR rule action's FUSE-backed materialization of several host
// directories as one synthesized directory, first source wins on a
// name collision. The merge logic itself (union.go) is plain
// filesystem-walk code testable without a FUSE mount; nodes.go wires
// it into a real github.com/hanwen/go-fuse/v2/fs filesystem, and
// builder.go owns mounting/unmounting per distinct source set.
package uniondir

import (
	"os"
	"path/filepath"
)

// resolveWinner returns the first source in sources order that has
// relPath (file, directory, or symlink), the "first source wins" rule
// UNION_DIR uses for a name collision.
func resolveWinner(sources []string, relPath string) (hostPath string, info os.FileInfo, ok bool) {
	for _, src := range sources {
		candidate := filepath.Join(src, relPath)
		fi, err := os.Lstat(candidate)
		if err != nil {
			continue
		}
		return candidate, fi, true
	}
	return "", nil, false
}

// dirSources returns the subset of sources that have relPath as a
// directory, in the same relative order, so a deeper Lookup/Readdir
// continues merging across every source that contributes at this
// level rather than collapsing to the single winner.
func dirSources(sources []string, relPath string) []string {
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		candidate := filepath.Join(src, relPath)
		fi, err := os.Stat(candidate)
		if err != nil || !fi.IsDir() {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// mergeNames lists the union of directory entry names across sources,
// first-seen order preserved and de-duplicated, the Readdir-side
// counterpart of resolveWinner.
func mergeNames(sources []string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, src := range sources {
		entries, err := os.ReadDir(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			names = append(names, e.Name())
		}
	}
	return names, nil
}
