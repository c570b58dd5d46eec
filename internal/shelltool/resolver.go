package shelltool

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver canonicalizes a path and verifies it is contained within
// Root, mirroring the teacher's internal/tools/files.Resolver.
type Resolver struct {
	Root string
}

// Resolve returns the canonical absolute path for p, rejecting anything
// that escapes Root via "..".
func (r Resolver) Resolve(p string) (string, error) {
	if r.Root == "" {
		return "", fmt.Errorf("shelltool: resolver has no root configured")
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", err
	}
	var candidate string
	if filepath.IsAbs(p) {
		candidate = filepath.Clean(p)
	} else {
		candidate = filepath.Clean(filepath.Join(root, p))
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("shelltool: path %q is outside world working directory", p)
	}
	return candidate, nil
}
