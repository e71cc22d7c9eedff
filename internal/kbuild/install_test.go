package kbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kissforge/kiss/internal/archive"
	"github.com/kissforge/kiss/internal/kconfig"
	"github.com/kissforge/kiss/internal/kerrors"
	"github.com/kissforge/kiss/internal/manifest"
)

func requireRootForTest(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("install/remove require root privileges")
	}
}

func TestRemoveUnknownPackageReportsNotInstalled(t *testing.T) {
	requireRootForTest(t)

	root := t.TempDir()
	cfg := &kconfig.Config{Root: root}
	orch := &Orchestrator{Config: cfg}

	err := orch.Remove("does-not-exist")
	var notInstalled *kerrors.PackageNotInstalledError
	assert.ErrorAs(t, err, &notInstalled)
}

func TestRemoveDeletesManifestFilesAndDBEntry(t *testing.T) {
	requireRootForTest(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr", "bin", "widget"), []byte("binary"), 0o755))

	dbDir := filepath.Join(root, "var/db/kiss/installed/widget")
	require.NoError(t, os.MkdirAll(dbDir, 0o755))
	entries := []string{"/var/db/kiss/installed/widget/manifest", "/usr/bin/widget", "/usr/bin/"}
	require.NoError(t, manifest.Write(filepath.Join(dbDir, "manifest"), entries))

	cfg := &kconfig.Config{Root: root}
	orch := &Orchestrator{Config: cfg}

	require.NoError(t, orch.Remove("widget"))

	_, err := os.Stat(filepath.Join(root, "usr", "bin", "widget"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dbDir)
	assert.True(t, os.IsNotExist(err))
}

// TestInstallConvertsConflictToChoiceAndRewritesManifest exercises the choice
// path end to end through Orchestrator.Install: "pigz" ships a /usr/bin/gzip
// that the already-installed "gzip" package also owns, so with choice mode
// on it must land in the choices directory instead of clobbering gzip's
// file, and pigz's own installed manifest must be rewritten to point there
// (see internal/conflict/conflict_test.go for ConvertToChoices in isolation).
func TestInstallConvertsConflictToChoiceAndRewritesManifest(t *testing.T) {
	requireRootForTest(t)

	root := t.TempDir()
	cfg := &kconfig.Config{
		Root:     root,
		TmpDir:   t.TempDir(),
		CacheDir: t.TempDir(),
		Choice:   true,
		Compress: kconfig.CompressionGzip,
	}
	orch := &Orchestrator{Config: cfg, PID: os.Getpid()}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr", "bin", "gzip"), []byte("gzip binary"), 0o755))
	gzipDBDir := filepath.Join(root, "var/db/kiss/installed/gzip")
	require.NoError(t, os.MkdirAll(gzipDBDir, 0o755))
	require.NoError(t, manifest.Write(filepath.Join(gzipDBDir, "manifest"), []string{
		"/usr/", "/usr/bin/", "/usr/bin/gzip", "/var/db/kiss/installed/gzip/manifest",
	}))

	stageDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(stageDir, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stageDir, "usr", "bin", "gzip"), []byte("pigz binary"), 0o755))

	entries, err := manifest.Generate(stageDir, "/var/db/kiss/installed", "pigz")
	require.NoError(t, err)
	manifestDir := filepath.Join(stageDir, "var/db/kiss/installed/pigz")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))
	require.NoError(t, manifest.Write(filepath.Join(manifestDir, "manifest"), entries))

	codec, err := archive.CodecFor(kconfig.CompressionGzip)
	require.NoError(t, err)
	tarballPath := filepath.Join(t.TempDir(), "pigz@1.0.tar.gz")
	require.NoError(t, archive.Pack(stageDir, tarballPath, codec))

	require.NoError(t, orch.Install("pigz", tarballPath))

	data, err := os.ReadFile(filepath.Join(root, "usr", "bin", "gzip"))
	require.NoError(t, err)
	assert.Equal(t, "gzip binary", string(data), "gzip's own file must survive untouched")

	choiceData, err := os.ReadFile(filepath.Join(root, "var/db/kiss/choices", "pigz>usr>bin>gzip"))
	require.NoError(t, err)
	assert.Equal(t, "pigz binary", string(choiceData))

	pigzEntries, err := manifest.Read(filepath.Join(root, "var/db/kiss/installed/pigz/manifest"))
	require.NoError(t, err)
	assert.Contains(t, pigzEntries, "/var/db/kiss/choices/pigz>usr>bin>gzip")
	assert.NotContains(t, pigzEntries, "/usr/bin/gzip")
}
