package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validation errors.
var (
	// ErrPathTraversal indicates a key or path escapes its root.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrAbsolutePath indicates an absolute key.
	ErrAbsolutePath = errors.New("absolute path not allowed")

	// ErrEmptyPath indicates an empty key or path.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidKey indicates a malformed blob key.
	ErrInvalidKey = errors.New("invalid key")
)

// ValidateKey checks a slash-separated blob key: relative, no backslashes,
// no empty, "." or ".." segments.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyPath
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return fmt.Errorf("%w: %q", ErrAbsolutePath, key)
	}
	if strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		switch seg {
		case "..":
			return fmt.Errorf("%w: %q", ErrPathTraversal, key)
		case "", ".":
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidKey, key)
		}
	}
	return nil
}

// ValidatePrefix is ValidateKey for list prefixes, which may be empty or end
// with a slash.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return ValidateKey(strings.TrimSuffix(prefix, "/"))
}

// Within resolves key below root and returns the absolute path. The result
// never escapes root.
func Within(root, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	path := filepath.Join(absRoot, filepath.FromSlash(key))

	rel, err := filepath.Rel(absRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrPathTraversal, key, absRoot)
	}
	return path, nil
}
