package kbuild

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/kissforge/kiss/internal/archive"
	"github.com/kissforge/kiss/internal/conflict"
	"github.com/kissforge/kiss/internal/install"
	"github.com/kissforge/kiss/internal/kconfig"
	"github.com/kissforge/kiss/internal/kerrors"
	"github.com/kissforge/kiss/internal/klog"
	"github.com/kissforge/kiss/internal/manifest"
)

// Install drives one built tarball through the seven-phase flow spec.md
// §4.K describes: extract to scratch, validate the shipped manifest,
// detect conflicts against every other installed package (converting to
// choices when enabled, failing otherwise), diff against any previously
// installed version of the same package, lay down the new files in an
// overwrite pass, remove whatever the old version shipped that the new one
// no longer does, and finally run a verify-only pass that restores any entry
// still missing (/etc files follow the etcsums merge policy in both passes).
// Grounded on original_source/src/install.rs's
// pkg_install, split across this orchestrator rather than one monolithic
// function so each phase is independently testable.
func (o *Orchestrator) Install(pkgName, tarballPath string) error {
	if err := install.RequireRoot("install"); err != nil {
		return err
	}

	cfg := o.Config
	_, _, extractDir, err := o.scratchDirs(pkgName)
	if err != nil {
		return err
	}

	codec, err := archive.DetectCodec(tarballPath)
	if err != nil {
		return err
	}
	if codec == nil {
		return &kerrors.UnknownTarballFormatError{Path: tarballPath}
	}
	if err := archive.Extract(tarballPath, extractDir, codec, archive.ExtractOptions{}); err != nil {
		return err
	}

	newManifestPath := manifest.Path(filepath.Join(extractDir, "var/db/kiss/installed"), pkgName)
	entries, err := manifest.Read(newManifestPath)
	if err != nil {
		return err
	}
	if err := manifest.Validate(pkgName, extractDir, entries); err != nil {
		return err
	}

	conflicts, err := conflict.Detect(pkgName, newManifestPath, cfg.InstalledDBDir())
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		if !cfg.Choice {
			return conflict.RequireNoConflicts(pkgName, conflicts)
		}
		slog.Info("converting conflicts to choices", "package", pkgName, "count", len(conflicts), klog.Phase("choice"))
		if _, err := conflict.ConvertToChoices(pkgName, extractDir, kconfig.ChoicesSubdir, conflicts); err != nil {
			return err
		}
		entries = rewriteChoiceEntries(pkgName, entries, conflicts)
		if err := manifest.Write(newManifestPath, entries); err != nil {
			return err
		}
	}

	var staleFiles []string
	oldManifestPath := manifest.Path(cfg.InstalledDBDir(), pkgName)
	if oldEntries, err := manifest.Read(oldManifestPath); err == nil {
		staleFiles = install.ManifestDiff(oldEntries, entries)
	} else if !os.IsNotExist(err) {
		return err
	}

	etcsums, err := ReadEtcsums(filepath.Join(cfg.InstalledDBDir(), pkgName, etcsumsFileName))
	if err != nil {
		return err
	}
	recordedHash := func(file string) (string, bool) {
		hash, ok := etcsums[file]
		return hash, ok
	}

	if err := install.InstallFiles(entries, cfg.Root, extractDir, true, false, recordedHash); err != nil {
		return err
	}
	if len(staleFiles) > 0 {
		if err := install.RemoveFiles(cfg.Root, staleFiles, recordedHash); err != nil {
			return err
		}
	}
	if err := install.InstallFiles(entries, cfg.Root, extractDir, false, true, recordedHash); err != nil {
		return err
	}

	slog.Info("installed", "package", pkgName, klog.Phase("install"), klog.Success())
	return nil
}

// rewriteChoiceEntries replaces every conflicting path in entries with the
// choice-file path conflict.ConvertToChoices actually moved it to on disk,
// so the manifest InstallFiles reads (and the one copied into cfg.Root, since
// it is itself one of entries) names files where they now live rather than
// where the conflict detector first found them.
func rewriteChoiceEntries(pkgName string, entries, conflicts []string) []string {
	replacements := make(map[string]string, len(conflicts))
	for _, conflictPath := range conflicts {
		choicePath := "/" + kconfig.ChoicesSubdir + "/" + conflict.ChoiceFileName(pkgName, conflictPath)
		replacements[conflictPath] = choicePath
	}

	rewritten := make([]string, len(entries))
	for i, entry := range entries {
		if replacement, ok := replacements[entry]; ok {
			rewritten[i] = replacement
		} else {
			rewritten[i] = entry
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(rewritten)))
	return rewritten
}

// Remove uninstalls pkgName: its manifest's files are deleted from root
// (honoring locally modified /etc files the same way an upgrade's stale-file
// pass does), then its installed-database entry itself is removed.
func (o *Orchestrator) Remove(pkgName string) error {
	if err := install.RequireRoot("remove"); err != nil {
		return err
	}

	cfg := o.Config
	dbDir := filepath.Join(cfg.InstalledDBDir(), pkgName)
	manifestPath := filepath.Join(dbDir, "manifest")

	entries, err := manifest.Read(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &kerrors.PackageNotInstalledError{Name: pkgName}
		}
		return err
	}

	etcsums, err := ReadEtcsums(filepath.Join(dbDir, etcsumsFileName))
	if err != nil {
		return err
	}
	recordedHash := func(file string) (string, bool) {
		hash, ok := etcsums[file]
		return hash, ok
	}

	if err := install.RemoveFiles(cfg.Root, entries, recordedHash); err != nil {
		return err
	}

	if err := os.RemoveAll(dbDir); err != nil {
		return err
	}

	slog.Info("removed", "package", pkgName, klog.Phase("remove"), klog.Success())
	return nil
}
