package pkgrepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePackageDir(t *testing.T, repo, name, version string) {
	t.Helper()
	dir := filepath.Join(repo, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "version"), []byte(version+"\n"), 0o644))
}

func TestFindPackageReturnsFirstMatchInSearchPathOrder(t *testing.T) {
	repoA := t.TempDir()
	repoB := t.TempDir()
	makePackageDir(t, repoB, "gzip", "1.13 1")
	makePackageDir(t, repoA, "gzip", "1.12 2")

	pkg, err := FindPackage([]string{repoA, repoB}, "gzip")
	require.NoError(t, err)
	assert.Equal(t, "1.12-2", pkg.Version)
	assert.Equal(t, filepath.Join(repoA, "gzip"), pkg.RepoPath)
}

func TestFindPackageMissingReturnsTypedError(t *testing.T) {
	repo := t.TempDir()
	_, err := FindPackage([]string{repo}, "nonexistent")
	require.Error(t, err)
}

func TestReadVersionJoinsUpstreamAndRelease(t *testing.T) {
	repo := t.TempDir()
	makePackageDir(t, repo, "curl", "8.9.1 3")

	pkg, err := FindPackage([]string{repo}, "curl")
	require.NoError(t, err)
	assert.Equal(t, "8.9.1-3", pkg.Version)
}

func TestReadVersionSingleTokenHasNoReleaseSuffix(t *testing.T) {
	repo := t.TempDir()
	makePackageDir(t, repo, "curl", "8.9.1")

	pkg, err := FindPackage([]string{repo}, "curl")
	require.NoError(t, err)
	assert.Equal(t, "8.9.1", pkg.Version)
}

func TestCachedBinaryFindsPreferredExtensionFirst(t *testing.T) {
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "curl@8.9.1-3.tar.gz"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "curl@8.9.1-3.tar.zst"), nil, 0o644))

	path, ok := CachedBinary(binDir, "curl", "8.9.1-3", "zst")
	require.True(t, ok)
	assert.Contains(t, path, ".tar.zst")
}

func TestCachedBinaryFallsBackToAnyExtension(t *testing.T) {
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "curl@8.9.1-3.tar.xz"), nil, 0o644))

	path, ok := CachedBinary(binDir, "curl", "8.9.1-3", "gz")
	require.True(t, ok)
	assert.Contains(t, path, ".tar.xz")
}

func TestReadDependsSkipsCommentsAndMarksMakeDeps(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "depends"), []byte("# comment\nbinutils make\nlibc\n"), 0o644))

	deps, err := ReadDepends(repo)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, Dependency{Name: "binutils", Make: true}, deps[0])
	assert.Equal(t, Dependency{Name: "libc", Make: false}, deps[1])
}

func TestReadDependsMissingFileIsNotError(t *testing.T) {
	repo := t.TempDir()
	deps, err := ReadDepends(repo)
	require.NoError(t, err)
	assert.Nil(t, deps)
}
