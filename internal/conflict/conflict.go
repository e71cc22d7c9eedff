// Package conflict implements the conflict detector (component J):
// comparing a package's about-to-be-installed manifest against every other
// installed package's manifest, and converting conflicting file paths into
// "choices" (KISS's alternatives mechanism) when choice mode is enabled.
// Grounded on original_source/src/install.rs's pkg_conflicts: manifest
// directory entries (trailing-slash paths) never conflict, only plain
// files do; the choice file name is "<pkg>><escaped-path>" with "/"
// replaced by ">".
package conflict

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/kissforge/kiss/internal/kerrors"
)

// Detect reads newManifestPath (the package about to be installed) and every
// manifest file under installedDBDir belonging to a package other than pkg,
// returning the file paths (never directories) that appear in both.
func Detect(pkg, newManifestPath, installedDBDir string) ([]string, error) {
	candidates, err := readFilePaths(newManifestPath)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		installed[c] = false
	}

	entries, err := os.ReadDir(installedDBDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var conflicts []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == pkg {
			continue
		}
		manifestPath := filepath.Join(installedDBDir, entry.Name(), "manifest")
		lines, err := readFilePaths(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, line := range lines {
			if _, want := installed[line]; want {
				conflicts = append(conflicts, line)
			}
		}
	}

	return conflicts, nil
}

func readFilePaths(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasSuffix(line, "/") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, scanner.Err()
}

// ChoiceFileName builds the alternatives file name KISS uses when a
// conflicting path is converted to a choice: "<pkg>><escaped-path>", where
// the path has its leading slash removed and every remaining "/" replaced
// with ">".
func ChoiceFileName(pkg, conflictPath string) string {
	escaped := strings.ReplaceAll(strings.TrimPrefix(conflictPath, "/"), "/", ">")
	return pkg + ">" + escaped
}

// ConvertToChoices moves every conflicting file out of stageDir (the
// package's about-to-be-installed staging tree) into stageDir's choices
// directory, renamed per ChoiceFileName, so the installer lays down the
// choices directory entry instead of overwriting the other package's file.
// Returns the number of files moved and the first rename error, if any; it
// never returns a kerrors.ConflictError, since callers choose between this
// function and RequireNoConflicts by choice mode (see internal/kbuild).
func ConvertToChoices(pkg, stageDir, choicesSubdir string, conflicts []string) (int, error) {
	if len(conflicts) == 0 {
		return 0, nil
	}

	choiceDir := filepath.Join(stageDir, choicesSubdir)
	if err := os.MkdirAll(choiceDir, 0o755); err != nil {
		return 0, err
	}

	created := 0
	for _, conflictPath := range conflicts {
		realPath := filepath.Join(stageDir, conflictPath)
		choicePath := filepath.Join(choiceDir, ChoiceFileName(pkg, conflictPath))
		if err := os.Rename(realPath, choicePath); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// RequireNoConflicts returns a kerrors.ConflictError when conflicts is
// non-empty, the path taken when choice mode is disabled.
func RequireNoConflicts(pkg string, conflicts []string) error {
	if len(conflicts) == 0 {
		return nil
	}
	return &kerrors.ConflictError{Package: pkg, Conflicts: conflicts}
}
