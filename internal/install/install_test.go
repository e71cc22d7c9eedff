package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kissforge/kiss/internal/checksum"
)

func TestInstallFilesCopiesRegularFileAndDirectory(t *testing.T) {
	sourceDir := t.TempDir()
	pkgRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "usr", "bin", "tool"), []byte("payload"), 0o755))

	files := []string{"/usr/", "/usr/bin/", "/usr/bin/tool"}
	require.NoError(t, InstallFiles(files, pkgRoot, sourceDir, true, false, nil))

	data, err := os.ReadFile(filepath.Join(pkgRoot, "usr", "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestInstallFilesVerifyPassSkipsExisting(t *testing.T) {
	sourceDir := t.TempDir()
	pkgRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "usr", "bin", "tool"), []byte("new"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(pkgRoot, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgRoot, "usr", "bin", "tool"), []byte("existing"), 0o755))

	files := []string{"/usr/bin/tool"}
	require.NoError(t, InstallFiles(files, pkgRoot, sourceDir, false, true, nil))

	data, err := os.ReadFile(filepath.Join(pkgRoot, "usr", "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
}

func TestInstallFilesOverwriteReplacesExistingFile(t *testing.T) {
	sourceDir := t.TempDir()
	pkgRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "usr", "bin", "tool"), []byte("new"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(pkgRoot, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgRoot, "usr", "bin", "tool"), []byte("old"), 0o755))

	files := []string{"/usr/bin/tool"}
	require.NoError(t, InstallFiles(files, pkgRoot, sourceDir, true, false, nil))

	data, err := os.ReadFile(filepath.Join(pkgRoot, "usr", "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestInstallFilesEtcFileWithNoRecordedSumOverwritesReal(t *testing.T) {
	sourceDir := t.TempDir()
	pkgRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "etc", "widget.conf"), []byte("new config"), 0o644))

	noRecord := func(string) (string, bool) { return "", false }
	require.NoError(t, InstallFiles([]string{"/etc/widget.conf"}, pkgRoot, sourceDir, true, false, noRecord))

	data, err := os.ReadFile(filepath.Join(pkgRoot, "etc", "widget.conf"))
	require.NoError(t, err)
	assert.Equal(t, "new config", string(data))
	_, err = os.Stat(filepath.Join(pkgRoot, "etc", "widget.conf.new"))
	assert.True(t, os.IsNotExist(err))
}

func TestInstallFilesEtcFileUnmodifiedWithNewShippedVersionIsLeftAlone(t *testing.T) {
	sourceDir := t.TempDir()
	pkgRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "etc", "widget.conf"), []byte("new config"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(pkgRoot, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgRoot, "etc", "widget.conf"), []byte("old config"), 0o644))

	oldHash, err := checksum.HashFile(filepath.Join(pkgRoot, "etc", "widget.conf"))
	require.NoError(t, err)
	newHash, err := checksum.HashFile(filepath.Join(sourceDir, "etc", "widget.conf"))
	require.NoError(t, err)
	require.NotEqual(t, oldHash, newHash)

	recorded := func(string) (string, bool) { return oldHash, true }
	require.NoError(t, InstallFiles([]string{"/etc/widget.conf"}, pkgRoot, sourceDir, true, false, recorded))

	data, err := os.ReadFile(filepath.Join(pkgRoot, "etc", "widget.conf"))
	require.NoError(t, err)
	assert.Equal(t, "old config", string(data), "sum_old recorded but neither sum_old=sum_new nor unrecorded, so the file is left alone")
}

func TestInstallFilesEtcFileLocallyModifiedGetsNewSibling(t *testing.T) {
	sourceDir := t.TempDir()
	pkgRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(sourceDir, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "etc", "widget.conf"), []byte("shipped config"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(pkgRoot, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgRoot, "etc", "widget.conf"), []byte("locally edited"), 0o644))

	// sum_old equals sum_new (the package's content never changed), but the
	// on-disk file was edited locally since then (sum_sys diverges).
	shippedHash, err := checksum.HashFile(filepath.Join(sourceDir, "etc", "widget.conf"))
	require.NoError(t, err)

	recorded := func(string) (string, bool) { return shippedHash, true }
	require.NoError(t, InstallFiles([]string{"/etc/widget.conf"}, pkgRoot, sourceDir, true, false, recorded))

	data, err := os.ReadFile(filepath.Join(pkgRoot, "etc", "widget.conf"))
	require.NoError(t, err)
	assert.Equal(t, "locally edited", string(data), "local edits are never clobbered")

	newData, err := os.ReadFile(filepath.Join(pkgRoot, "etc", "widget.conf.new"))
	require.NoError(t, err)
	assert.Equal(t, "shipped config", string(newData))
}

func TestRemoveFilesDeletesPlainFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr", "bin", "tool"), []byte("x"), 0o755))

	err := RemoveFiles(root, []string{"/usr/bin/tool"}, func(string) (string, bool) { return "", false })
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, "usr", "bin", "tool"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveFilesSkipsModifiedEtcFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	path := filepath.Join(root, "etc", "config")
	require.NoError(t, os.WriteFile(path, []byte("modified by user"), 0o644))

	err := RemoveFiles(root, []string{"/etc/config"}, func(string) (string, bool) {
		return "some-hash-that-will-never-match", true
	})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestRemoveFilesUnlinksDanglingSymlink(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "lib"), 0o755))

	target := filepath.Join(root, "usr", "lib", "libfoo.so.1")
	link := filepath.Join(root, "usr", "lib", "libfoo.so")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	require.NoError(t, os.Symlink("libfoo.so.1", link))

	err := RemoveFiles(root, []string{"/usr/lib/libfoo.so.1", "/usr/lib/libfoo.so"}, func(string) (string, bool) { return "", false })
	require.NoError(t, err)

	_, statErr := os.Lstat(link)
	assert.True(t, os.IsNotExist(statErr), "dangling symlink should be unlinked")
}

func TestManifestDiffReturnsOnlyStaleEntries(t *testing.T) {
	old := []string{"/usr/bin/a", "/usr/bin/b", "/usr/"}
	new := []string{"/usr/bin/a", "/usr/"}

	diff := ManifestDiff(old, new)
	assert.Equal(t, []string{"/usr/bin/b"}, diff)
}
