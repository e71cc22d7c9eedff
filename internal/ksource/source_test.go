package ksource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineEmptyLine(t *testing.T) {
	src, err := ParseLine("", "test", "", "")
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestParseLineCommentLine(t *testing.T) {
	src, err := ParseLine("# a comment", "test", "", "")
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestParseLineLocalFile(t *testing.T) {
	src, err := ParseLine("patches/fix.patch", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindLocalRelative, src.Kind)
	assert.Equal(t, "patches/fix.patch", src.URL)
	assert.Empty(t, src.SubPath)
	assert.Equal(t, "fix.patch", src.FileName)
	assert.True(t, src.ExtractArchive)
}

func TestParseLineLocalFileWithPath(t *testing.T) {
	src, err := ParseLine("patches/fix.patch fix.patch", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindLocalRelative, src.Kind)
	assert.Equal(t, "patches/fix.patch", src.URL)
	assert.Equal(t, "fix.patch", src.SubPath)
	assert.Equal(t, "fix.patch", src.FileName)
}

func TestParseLineRemoteFile(t *testing.T) {
	src, err := ParseLine("https://codeberg.org/XDream8/kiss-rs/archive/v1.0.tar.gz", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindHTTP, src.Kind)
	assert.Equal(t, "v1.0.tar.gz", src.FileName)
	assert.True(t, src.ExtractArchive)
}

func TestParseLineRemoteFileWithPath(t *testing.T) {
	src, err := ParseLine("https://codeberg.org/XDream8/kiss-rs/archive/v1.0.tar.gz kiss-rs-latest", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindHTTP, src.Kind)
	assert.Equal(t, "kiss-rs-latest", src.SubPath)
	assert.Equal(t, "v1.0.tar.gz", src.FileName)
}

func TestParseLineGit(t *testing.T) {
	src, err := ParseLine("git+https://codeberg.org/XDream8/kiss-rs", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindGit, src.Kind)
	assert.Equal(t, "kiss-rs", src.FileName)
	assert.False(t, src.ExtractArchive, "git sources are never extracted")
}

func TestParseLineGitWithPath(t *testing.T) {
	src, err := ParseLine("git+https://codeberg.org/XDream8/kiss-rs kiss-rs-latest", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindGit, src.Kind)
	assert.Equal(t, "kiss-rs-latest", src.SubPath)
	assert.Equal(t, "kiss-rs", src.FileName)
}

func TestParseLineNoExtractSuffix(t *testing.T) {
	src, err := ParseLine("https://example.com/archive.tar.gz?no-extract", "test", "", "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.False(t, src.ExtractArchive)
}

func TestParseLineCachedWhenFileAlreadyPresent(t *testing.T) {
	cacheDir := t.TempDir()
	target := filepath.Join(cacheDir, "test", "v1.0.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, nil, 0o644))

	src, err := ParseLine("https://codeberg.org/XDream8/kiss-rs/archive/v1.0.tar.gz", "test", "", cacheDir)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindCached, src.Kind)
}

func TestParseLineLocalAbsoluteFallsBackWhenRelativeMissing(t *testing.T) {
	repoDir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "overlay.patch")
	require.NoError(t, os.WriteFile(abs, nil, 0o644))

	src, err := ParseLine(abs, "test", repoDir, "")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, KindLocalAbsolute, src.Kind)
	assert.Equal(t, abs, src.RepoRelative)
}

func TestParseLineLocalUnresolvableErrors(t *testing.T) {
	repoDir := t.TempDir()
	_, err := ParseLine("does/not/exist.patch", "test", repoDir, "")
	require.Error(t, err)
}
