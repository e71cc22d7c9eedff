// Package manifest implements the manifest synthesizer (component I):
// walking a package's staged scratch directory into the sorted file list
// the installer later uses to copy, verify, and eventually remove a
// package's files. Grounded on
// original_source/crates/kiss-manifest/src/lib.rs's pkg_manifest and
// pkg_manifest_validate: reverse-lexicographic sort, trailing slash on
// directories, a self-referencing manifest entry, and the .la/charset.alias
// exclusion filter.
package manifest

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kissforge/kiss/internal/kerrors"
)

// excludedSuffixes lists the entries pkg_manifest drops from every
// generated manifest: libtool archive metadata and the locale charset
// alias table, neither of which is meaningful to track or later remove
// individually.
var excludedSuffixes = []string{".la", "charset.alias"}

// Path returns the manifest's own on-disk path: the self-referencing entry
// every manifest lists as one of its own members, so removing a package
// also removes its manifest.
func Path(installedDBDir, pkg string) string {
	return filepath.Join(installedDBDir, pkg, "manifest")
}

// Generate walks stageDir (the package's scratch install root) and returns
// every file, directory, and symlink beneath it as a manifest entry: paths
// relative to stageDir, with a trailing slash on directories, sorted in
// reverse lexicographic order so that removing files in manifest order
// always empties a directory before attempting to remove it. The manifest's
// own self-referencing entry (installedDBDir/pkg/manifest) is always
// included, even though it does not yet exist under stageDir at generation
// time.
func Generate(stageDir, installedDBDir, pkg string) ([]string, error) {
	var entries []string

	err := filepath.WalkDir(stageDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == stageDir {
			return nil
		}
		if excluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel := strings.TrimPrefix(path, stageDir)
		rel = "/" + strings.TrimPrefix(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			rel += "/"
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries = append(entries, Path(installedDBDir, pkg))

	sort.Sort(sort.Reverse(sort.StringSlice(entries)))
	return entries, nil
}

func excluded(path string) bool {
	base := filepath.Base(path)
	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// Write truncates-and-writes entries to destPath, one per line, matching
// pkg_manifest's tmp-file-then-copy sequence (callers are expected to write
// to a scratch path and rename into place for atomicity; Write itself only
// performs the final content write).
func Write(destPath string, entries []string) error {
	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		if _, err := w.WriteString(entry); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Read parses a manifest file back into its entries, in file order.
func Read(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

// Validate confirms every manifest entry exists on disk under root,
// treating a dangling symlink as present (matching is_symlink's lstat-based
// check in pkg_manifest_validate, which does not follow the link).
func Validate(pkg, root string, entries []string) error {
	missing := 0
	for _, entry := range entries {
		rel := strings.TrimPrefix(entry, "/")
		target := filepath.Join(root, rel)
		if !existsOrIsSymlink(target) {
			missing++
		}
	}
	if missing > 0 {
		return &kerrors.ManifestInvalidError{Package: pkg, Missing: missing}
	}
	return nil
}

func existsOrIsSymlink(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}
