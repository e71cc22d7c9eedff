package kbuild

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kissforge/kiss/internal/pkgrepo"
)

// elfMagic is the four-byte header every ELF object, executable, or shared
// library starts with.
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// stripMatchingDirs lists the staged subtrees is_matching_directory scans:
// the two binary directories and any directory whose base name contains
// "lib" (covering lib, lib32, lib64, libexec).
func stripMatchingDirs(stageDir string) []string {
	var dirs []string
	for _, candidate := range []string{"bin", "sbin"} {
		dirs = append(dirs, filepath.Join(stageDir, candidate))
	}
	entries, err := os.ReadDir(stageDir)
	if err != nil {
		return dirs
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), "lib") {
			dirs = append(dirs, filepath.Join(stageDir, entry.Name()))
		}
	}
	return dirs
}

// Strip removes debug symbols from every ELF object and static archive
// member under a staged package's binary and library directories, skipping
// entirely when the package ships a "nostrip" file in its repository
// directory or the orchestrator's configuration disables stripping
// (spec.md §3's nostrip escape hatch). ELF executables and shared objects
// are stripped with "-s -R .comment -R .note"; ".a"/".o" archive members get
// "-g -R .comment -R .note" instead, preserving the symbol table a static
// archive's consumers still need to link against.
func (o *Orchestrator) Strip(stageDir, pkgName string) error {
	if !o.Config.Strip {
		return nil
	}
	pkg, err := pkgrepo.FindPackage(o.Config.RepoPath, pkgName)
	if err == nil {
		if _, statErr := os.Stat(filepath.Join(pkg.RepoPath, "nostrip")); statErr == nil {
			return nil
		}
	}

	for _, dir := range stripMatchingDirs(stageDir) {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			return stripFile(path)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func stripFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
		return nil
	}

	switch {
	case hasELFMagic(path):
		return runStrip(path, "-s", "-R", ".comment", "-R", ".note")
	case strings.HasSuffix(path, ".a") || strings.HasSuffix(path, ".o"):
		return runStrip(path, "-g", "-R", ".comment", "-R", ".note")
	default:
		return nil
	}
}

func hasELFMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, 4)
	n, err := f.Read(header)
	if err != nil || n < 4 {
		return false
	}
	for i, b := range elfMagic {
		if header[i] != b {
			return false
		}
	}
	return true
}

// runStrip invokes the host "strip" binary, tolerating a missing binutils
// installation: a build environment without strip available still produces
// a working, merely unstripped package rather than failing the build.
func runStrip(path string, args ...string) error {
	cmd := exec.Command("strip", append(args, path)...)
	if err := cmd.Run(); err != nil {
		if _, isMissingBinary := err.(*exec.Error); isMissingBinary {
			return nil
		}
		if _, isNonZeroExit := err.(*exec.ExitError); isNonZeroExit {
			return nil
		}
		return err
	}
	return nil
}
