package kbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kissforge/kiss/internal/checksum"
)

func TestGenerateEtcsumsHashesRegularFilesAndPlaceholdersSymlinks(t *testing.T) {
	stageDir := t.TempDir()
	etcDir := filepath.Join(stageDir, "etc")
	require.NoError(t, os.MkdirAll(etcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(etcDir, "widget.conf"), []byte("key=value\n"), 0o644))
	require.NoError(t, os.Symlink("widget.conf", filepath.Join(etcDir, "widget.conf.link")))

	manifestDir := t.TempDir()
	require.NoError(t, GenerateEtcsums(stageDir, manifestDir))

	sums, err := ReadEtcsums(filepath.Join(manifestDir, etcsumsFileName))
	require.NoError(t, err)

	expected, err := checksum.HashFile(filepath.Join(etcDir, "widget.conf"))
	require.NoError(t, err)
	assert.Equal(t, expected, sums["/etc/widget.conf"])
	assert.Equal(t, "/dev/null", sums["/etc/widget.conf.link"])
}

func TestGenerateEtcsumsNoopWithoutEtcDir(t *testing.T) {
	stageDir := t.TempDir()
	manifestDir := t.TempDir()

	require.NoError(t, GenerateEtcsums(stageDir, manifestDir))

	_, err := os.Stat(filepath.Join(manifestDir, etcsumsFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestReadEtcsumsMissingFileIsNotError(t *testing.T) {
	sums, err := ReadEtcsums(filepath.Join(t.TempDir(), "etcsums"))
	require.NoError(t, err)
	assert.Nil(t, sums)
}
