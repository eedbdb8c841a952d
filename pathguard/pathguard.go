// Package pathguard provides filesystem hygiene for identifier-derived
// paths: validation of law/version identifiers used as path segments,
// traversal-safe joining, and crash-safe file replacement.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTraversal is returned when a user-supplied segment escapes its base.
var ErrTraversal = errors.New("pathguard: path traversal detected")

// ValidateID rejects identifiers unsuitable for file names or path
// segments. Allows alphanumeric, underscore, hyphen, and dot; rejects
// empty, overlong, and dot-only values.
func ValidateID(s string) error {
	if s == "" {
		return fmt.Errorf("pathguard: identifier must not be empty")
	}
	if len(s) > 128 {
		return fmt.Errorf("pathguard: identifier too long (max 128)")
	}
	if strings.Trim(s, ".") == "" {
		return fmt.Errorf("pathguard: identifier %q is dots only", s)
	}
	for _, r := range s {
		if !isIDChar(r) {
			return fmt.Errorf("pathguard: invalid character %q in identifier", r)
		}
	}
	return nil
}

// SafeJoin joins base with the given segments after validating each one,
// and verifies the result stays under base.
func SafeJoin(base string, segments ...string) (string, error) {
	for _, s := range segments {
		if err := ValidateID(s); err != nil {
			return "", err
		}
	}
	joined := filepath.Join(append([]string{base}, segments...)...)
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return joined, nil
}

// WriteAtomic writes data to path via a temp file in the same directory
// followed by rename, so a crash mid-write never corrupts an existing
// file. Parent directories are created as needed.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pathguard: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("pathguard: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("pathguard: write temp: %w", err)
	}
	// Flush to stable storage before the rename makes it visible.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("pathguard: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pathguard: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pathguard: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pathguard: rename: %w", err)
	}
	return nil
}

func isIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
