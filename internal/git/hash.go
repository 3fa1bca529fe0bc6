package git

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ContentHash computes a deterministic hash over the files below root whose
// extension is in exts (every file when exts is empty). Hidden files and
// directories are skipped. The hash covers relative paths and file content.
func ContentHash(root string, exts ...string) (string, error) {
	var fileHashes []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !matchesExt(d.Name(), exts) {
			return nil
		}

		// #nosec G304 - p is from filepath.WalkDir, within root
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		h := sha256.Sum256(content)
		rel, _ := filepath.Rel(root, p)
		fileHashes = append(fileHashes, fmt.Sprintf("%s:%s", filepath.ToSlash(rel), hex.EncodeToString(h[:])))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	// Sort for deterministic ordering
	sort.Strings(fileHashes)

	h := sha256.New()
	for _, fh := range fileHashes {
		h.Write([]byte(fh))
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func matchesExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
