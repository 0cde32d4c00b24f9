package mux

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// resolveTarget maps a request path onto the filesystem under root, which
// must itself be canonical. The joined path is canonicalized (symlinks and
// dot segments resolved) and must remain a descendant of root; an escape is
// reported as fs.ErrNotExist so that paths outside the root are
// indistinguishable from missing ones.
func resolveTarget(root, urlPath string) (string, error) {
	rel := strings.TrimPrefix(urlPath, "/")
	canonical, err := filepath.EvalSymlinks(filepath.Join(root, rel))
	if err != nil {
		return "", err
	}
	if canonical != root && !strings.HasPrefix(canonical, root+string(filepath.Separator)) {
		return "", fs.ErrNotExist
	}
	return canonical, nil
}

// statusFromFsError maps filesystem errors onto response statuses. Errors it
// does not recognize fall through to the 500 path.
func statusFromFsError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 404, "no such file or directory", true
	case errors.Is(err, fs.ErrPermission):
		return 403, "permission denied", true
	}
	return 0, "", false
}

// CanonicalRoot resolves the configured root directory once at startup; every
// request path is contained against the result.
func CanonicalRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.New("root is not a directory")
	}
	return canonical, nil
}
