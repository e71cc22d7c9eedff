package kbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kissforge/kiss/internal/kconfig"
)

func TestHasELFMagicDetectsHeaderOnly(t *testing.T) {
	dir := t.TempDir()

	elfPath := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(elfPath, append([]byte{0x7f, 'E', 'L', 'F'}, []byte("...rest...")...), 0o755))
	assert.True(t, hasELFMagic(elfPath))

	scriptPath := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/sh\necho hi\n"), 0o755))
	assert.False(t, hasELFMagic(scriptPath))
}

func TestStripMatchingDirsCoversBinSbinAndLibVariants(t *testing.T) {
	stageDir := t.TempDir()
	for _, dir := range []string{"bin", "sbin", "lib", "lib64", "libexec", "share"} {
		require.NoError(t, os.MkdirAll(filepath.Join(stageDir, dir), 0o755))
	}

	dirs := stripMatchingDirs(stageDir)

	var bases []string
	for _, d := range dirs {
		bases = append(bases, filepath.Base(d))
	}
	assert.Contains(t, bases, "bin")
	assert.Contains(t, bases, "sbin")
	assert.Contains(t, bases, "lib")
	assert.Contains(t, bases, "lib64")
	assert.Contains(t, bases, "libexec")
	assert.NotContains(t, bases, "share")
}

func TestStripSkipsWhenNostripFilePresent(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, "nostrip"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "version"), []byte("1.0 1"), 0o644))

	reposDir := t.TempDir()
	pkgDir := filepath.Join(reposDir, "widget")
	require.NoError(t, os.Rename(repo, pkgDir))

	stageDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(stageDir, "bin"), 0o755))
	binPath := filepath.Join(stageDir, "bin", "widget")
	require.NoError(t, os.WriteFile(binPath, append([]byte{0x7f, 'E', 'L', 'F'}, []byte("padding-bytes")...), 0o755))

	orch := &Orchestrator{Config: &kconfig.Config{RepoPath: []string{reposDir}, Strip: true}}
	require.NoError(t, orch.Strip(stageDir, "widget"))

	unchanged, err := os.ReadFile(binPath)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x7f, 'E', 'L', 'F'}, []byte("padding-bytes")...), unchanged)
}
