package documents

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideInbox = errors.New("path escapes inbox")
	ErrNotRegular   = errors.New("not a regular file")
)

// inboxPath checks that path, once symlinks are resolved, is a regular
// file inside dir. It returns the cleaned absolute path.
func inboxPath(path, dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return "", err
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(absDir, target)
	}
	target = filepath.Clean(target)

	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", err
	}
	if !within(resolved, realDir) {
		return "", ErrOutsideInbox
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotRegular
	}
	return target, nil
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
