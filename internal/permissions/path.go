package permissions

import (
	"os"
	"path/filepath"
)

// NormalizePath canonicalizes a path descriptor before matching: it is made
// absolute, cleaned of "." and ".." segments, and symlinks are resolved when
// the target exists. The normalized form is what checks return, so callers
// operate on the real location rather than whatever spelling the guest
// supplied.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Not-yet-existing targets (e.g. a write destination) keep the
			// cleaned absolute form.
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// pathCovers reports whether descriptor desc is the entry itself or lives
// underneath it. Both sides must already be normalized; comparison is at
// path-separator boundaries so "/tmp/foo" does not cover "/tmp/foobar".
func pathCovers(entry, desc string) bool {
	if entry == desc {
		return true
	}
	if entry == string(filepath.Separator) {
		return true
	}
	return len(desc) > len(entry) &&
		desc[:len(entry)] == entry &&
		desc[len(entry)] == filepath.Separator
}
