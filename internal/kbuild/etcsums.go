package kbuild

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kissforge/kiss/internal/checksum"
)

// etcsumsFileName is the installed-database entry RemoveFiles and the
// installer's conflict/overwrite logic consult to decide whether a
// modified configuration file under /etc is safe to overwrite or remove.
const etcsumsFileName = "etcsums"

// GenerateEtcsums hashes every regular file staged under stageDir/etc and
// writes one "<hash> <path>" line per file to manifestDir/etcsums, sorted
// by path. A symlink under /etc hashes to the fixed placeholder
// "/dev/null", matching pkg_etcsums's treatment of symlinks: their target
// is not meaningful to compare against a future upgrade's shipped file.
// A package with no /etc directory writes no file at all.
func GenerateEtcsums(stageDir, manifestDir string) error {
	etcDir := filepath.Join(stageDir, "etc")
	if _, err := os.Stat(etcDir); err != nil {
		return nil
	}

	type entry struct {
		path string
		hash string
	}
	var entries []entry

	err := filepath.Walk(etcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(stageDir, path)
		if err != nil {
			return err
		}
		rel = "/" + filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			entries = append(entries, entry{path: rel, hash: "/dev/null"})
			return nil
		}

		hash, err := checksum.HashFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{path: rel, hash: hash})
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	f, err := os.OpenFile(filepath.Join(manifestDir, etcsumsFileName), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := w.WriteString(e.hash + " " + e.path + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadEtcsums parses an installed package's etcsums file into a lookup from
// root-relative path to recorded hash, the form install.RemoveFiles's
// recordedHash callback needs.
func ReadEtcsums(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		out[fields[1]] = fields[0]
	}
	return out, nil
}
