package kbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultToolchainEnvFillsOnlyMissingVars(t *testing.T) {
	env := withDefaultToolchainEnv([]string{"CC=clang", "PATH=/usr/bin"})

	assert.Contains(t, env, "CC=clang")
	assert.Contains(t, env, "AR=ar")
	assert.Contains(t, env, "CXX=c++")
	assert.Contains(t, env, "NM=nm")
	assert.Contains(t, env, "RANLIB=ranlib")
	assert.Contains(t, env, "PATH=/usr/bin")

	count := 0
	for _, kv := range env {
		if kv == "CC=clang" {
			count++
		}
	}
	assert.Equal(t, 1, count, "an already-set variable must not be duplicated")
}

func TestIsArchiveName(t *testing.T) {
	assert.True(t, isArchiveName("foo-1.0.tar.gz"))
	assert.True(t, isArchiveName("foo-1.0.tar.zst"))
	assert.False(t, isArchiveName("patch-fix-build.diff"))
	assert.False(t, isArchiveName("foo-1.0.zip"))
}

func TestCopyTreeSkipsGitDirAndPreservesStructure(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "a.c"), []byte("int main(){}"), 0o644))

	dest := t.TempDir()
	require.NoError(t, copyTree(src, dest))

	data, err := os.ReadFile(filepath.Join(dest, "lib", "a.c"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", string(data))

	_, err = os.Stat(filepath.Join(dest, ".git"))
	assert.True(t, os.IsNotExist(err), "the .git directory must not be copied")
}
