// Package filex resolves on-disk locations of the client's local state.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrInvalidProfile is returned for profile names that are not safe to use
// as a file name.
var ErrInvalidProfile = errors.New("invalid profile name")

var profileName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// EnsureDir creates dir (relative paths are resolved against the working
// directory) and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// ProfileDBPath returns the database file of the given profile inside
// dataDir, creating dataDir when needed. Every profile gets its own file.
func ProfileDBPath(dataDir, profile string) (string, error) {
	if !profileName.MatchString(profile) {
		return "", fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}

	dir, err := EnsureDir(dataDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, profile+".db"), nil
}
