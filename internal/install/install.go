// Package install implements the installer (component K): laying a
// package's extracted files into the live root in three passes (overwrite,
// remove-stale, verify), the etc-file merge policy, and package removal.
// Grounded on original_source/src/install.rs's pkg_install_files,
// pkg_remove_files, pkg_etc, and the three-call sequence pkg_install
// makes (overwrite=true/verify=false, then removal of stale files, then
// overwrite=false/verify=true) — reworked here into fallible Go functions
// returning errors to a single orchestrator exit point instead of the
// original's die!/log_and_notify_error process-exit calls (REDESIGN FLAG
// "Exception/panic semantics", §9).
package install

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kissforge/kiss/internal/checksum"
	"github.com/kissforge/kiss/internal/kerrors"
)

// RequireRoot returns a kerrors.PermissionDeniedError unless the current
// process is running as uid 0, matching pkg_install's effective-uid check.
func RequireRoot(operation string) error {
	if os.Geteuid() != 0 {
		return &kerrors.PermissionDeniedError{Operation: operation}
	}
	return nil
}

// InstallFiles copies every entry in files (manifest paths, processed in the
// order given) from sourceDir into pkgRoot. Directory entries (trailing "/")
// are skipped; each file's parent directories are created on demand with
// mode 0755. When overwrite is true, an existing destination regular file or
// symlink is removed before the copy; when verify is true, a destination that
// already exists is left untouched (this is the installer's third,
// verification-only pass). A file under /etc gets the merge policy from
// etcDecision: sum_old (recordedHash, the package's previously recorded
// checksum for that file) decides whether to overwrite the real path or
// redirect to a ".new" sibling instead of clobbering a locally modified
// config file.
func InstallFiles(files []string, pkgRoot, sourceDir string, overwrite, verify bool, recordedHash func(file string) (string, bool)) error {
	if recordedHash == nil {
		recordedHash = func(string) (string, bool) { return "", false }
	}

	for _, file := range files {
		if strings.HasSuffix(file, "/") {
			continue
		}
		stripped := strings.TrimPrefix(file, "/")
		destPath := filepath.Join(pkgRoot, stripped)
		sourcePath := filepath.Join(sourceDir, stripped)
		isEtcFile := strings.HasPrefix(file, "/etc/")

		if verify && !isEtcFile {
			if _, err := os.Stat(destPath); err == nil {
				continue
			}
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}

		sourceInfo, err := os.Lstat(sourcePath)
		if err != nil {
			return err
		}

		if sourceInfo.IsDir() {
			if _, err := os.Stat(destPath); err == nil {
				continue
			}
			if err := os.MkdirAll(destPath, sourceInfo.Mode().Perm()); err != nil {
				return err
			}
			continue
		}

		finalDest := destPath
		if isEtcFile {
			// sum_sys must be read off destPath before anything below would
			// touch it, or the comparison etcDecision makes is meaningless.
			action, err := etcDecision(file, destPath, sourcePath, recordedHash)
			if err != nil {
				return err
			}
			switch action {
			case etcSkip:
				continue
			case etcInstallNew:
				finalDest = destPath + ".new"
			case etcInstallReal:
				// copyFileAtomic/copySymlink rename over destPath, so no
				// separate removal is needed even if it already exists.
			}
		} else {
			if destInfo, err := os.Lstat(destPath); err == nil {
				isSymlink := destInfo.Mode()&os.ModeSymlink != 0
				if isSymlink {
					if overwrite {
						_ = os.Remove(destPath)
					} else {
						continue
					}
				} else if overwrite && destInfo.Mode().IsRegular() {
					_ = os.Remove(destPath)
				}
			}

			if verify {
				if _, err := os.Stat(destPath); err == nil {
					continue
				}
			}
		}

		if sourceInfo.Mode()&os.ModeSymlink != 0 {
			if err := copySymlink(sourcePath, finalDest); err != nil {
				return err
			}
			continue
		}

		if err := copyFileAtomic(sourcePath, finalDest, sourceInfo.Mode()); err != nil {
			return err
		}
	}
	return nil
}

// etcAction is etcDecision's three-way outcome for a single /etc file.
type etcAction int

const (
	etcInstallReal etcAction = iota
	etcInstallNew
	etcSkip
)

// etcDecision implements spec §4.K's etc-file merge policy: sum_old is the
// hash kiss recorded in etcsums the last time file was installed (via
// recordedHash), sum_sys is the hash of whatever is on disk right now, and
// sum_new is the hash of the incoming version. If the incoming content
// matches what was recorded (sum_old = sum_new) but the on-disk file has
// since diverged from that recording (sum_sys != sum_old), the file was
// edited locally: install.go never clobbers it, writing the incoming
// version to a ".new" sibling instead. With no sum_old on record at all —
// a package's first install, or one kiss never tracked — the file is
// always written to its real path. Every other combination is left alone.
func etcDecision(file, destPath, sourcePath string, recordedHash func(string) (string, bool)) (etcAction, error) {
	sumOld, hasOld := recordedHash(file)

	sumSys, err := hashOrEmpty(destPath)
	if err != nil {
		return etcSkip, err
	}
	sumNew, err := hashOrEmpty(sourcePath)
	if err != nil {
		return etcSkip, err
	}

	if hasOld && sumOld == sumNew && sumSys != sumOld {
		return etcInstallNew, nil
	}
	if !hasOld {
		return etcInstallReal, nil
	}
	return etcSkip, nil
}

func hashOrEmpty(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return checksum.HashFile(path)
}

func copySymlink(sourcePath, destPath string) error {
	target, err := os.Readlink(sourcePath)
	if err != nil {
		return err
	}
	_ = os.Remove(destPath)
	return os.Symlink(target, destPath)
}

// copyFileAtomic copies sourcePath to a sibling temp file prefixed
// "__kiss-tmp-" and renames it into place, matching
// create_temp_dest_path/pkg_install_files's tmp-then-rename sequence so a
// crash mid-copy never leaves a half-written destination file.
func copyFileAtomic(sourcePath, destPath string, mode os.FileMode) (err error) {
	tempPath := filepath.Join(filepath.Dir(destPath), "__kiss-tmp-"+filepath.Base(destPath))

	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		_ = os.Remove(tempPath)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, destPath)
}

// RemoveFiles deletes every entry in files from root, skipping a modified
// /etc file (one whose on-disk hash no longer matches the package's
// recorded checksum) and ignoring errors from removing a non-empty
// directory, mirroring pkg_remove_files exactly: the first pass stats
// through symlinks, so a symlink whose target is already missing is left in
// place (stat fails on it) rather than removed as a plain file; such
// dangling entries are instead collected and unlinked in the second sweep.
func RemoveFiles(root string, files []string, recordedHash func(file string) (string, bool)) error {
	var brokenSymlinks []string

	for _, file := range files {
		stripped := strings.TrimPrefix(file, "/")
		fullPath := filepath.Join(root, stripped)

		if strings.Contains(file, "/etc") {
			if expected, ok := recordedHash(file); ok {
				actual, err := hashOrEmpty(fullPath)
				if err != nil {
					return err
				}
				if actual != expected {
					continue
				}
			}
		}

		if info, err := os.Stat(fullPath); err == nil {
			if info.IsDir() {
				_ = os.Remove(fullPath)
			} else if err := os.Remove(fullPath); err != nil {
				return err
			}
		}

		if isDanglingSymlink(fullPath) {
			brokenSymlinks = append(brokenSymlinks, fullPath)
		}
	}

	for _, symlink := range brokenSymlinks {
		if isDanglingSymlink(symlink) {
			_ = os.Remove(symlink)
		}
	}

	return nil
}

// isDanglingSymlink reports whether path is a symlink whose target does not
// exist, without following the link itself.
func isDanglingSymlink(path string) bool {
	target, err := os.Readlink(path)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	_, statErr := os.Stat(target)
	return statErr != nil
}

// ManifestDiff returns the entries present in oldManifest but absent from
// newManifest: files the previous version of a package shipped that the new
// version no longer does, and which must therefore be removed during an
// upgrade.
func ManifestDiff(oldManifest, newManifest []string) []string {
	newSet := make(map[string]bool, len(newManifest))
	for _, f := range newManifest {
		newSet[f] = true
	}

	var diff []string
	for _, f := range oldManifest {
		if !newSet[f] {
			diff = append(diff, f)
		}
	}
	return diff
}
