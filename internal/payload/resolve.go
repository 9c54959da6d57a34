package payload

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// PathError reports a command-line argument that does not name an
// existing filesystem entry.
type PathError struct {
	Arg string
	Err error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid file path: %q", e.Arg)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Resolve canonicalises every argument: the result is absolute with all
// symbolic links evaluated. The first argument that does not resolve to an
// existing entry aborts with a *PathError.
// Entries the current user cannot read are still offered with a warning.
func Resolve(args []string, log *slog.Logger) ([]string, error) {
	if len(args) == 0 {
		return nil, ErrNoPaths
	}

	out := make([]string, 0, len(args))
	for _, arg := range args {
		p, err := canonicalize(arg)
		if err != nil {
			return nil, &PathError{Arg: arg, Err: err}
		}
		if err := unix.Access(p, unix.R_OK); err != nil && log != nil {
			log.Warn("offered path is not readable", "path", p, "error", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func canonicalize(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	// EvalSymlinks fails on missing entries, which doubles as the existence check.
	return filepath.EvalSymlinks(abs)
}
