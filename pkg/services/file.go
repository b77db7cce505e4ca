package services

import (
	"os"
	"path/filepath"
	"strings"
)

// SafeJoin joins target under root/sub, returning "" when target would
// escape the root.
func SafeJoin(root, sub, target string) string {
	cleanTarget := filepath.Clean(filepath.FromSlash(target))
	if cleanTarget == "." || filepath.IsAbs(cleanTarget) || strings.Contains(cleanTarget, "..") {
		return ""
	}
	return filepath.Join(root, sub, cleanTarget)
}

// writeFileAtomic writes data to path through a temporary file in the same
// directory so readers never see a partial page.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
