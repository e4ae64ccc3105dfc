package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureCommands(t *testing.T) *[][]string {
	t.Helper()
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })

	var calls [][]string
	runCommand = func(name string, args ...string) error {
		calls = append(calls, append([]string{name}, args...))
		return nil
	}
	return &calls
}

func TestAppendBuildsEncryptedInvocation(t *testing.T) {
	calls := captureCommands(t)

	archivePath := filepath.Join(t.TempDir(), "job.7z")
	require.NoError(t, Append(archivePath, "s3cret", "/data/SUBJ-001"))

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{
		"7z", "a", "-ps3cret", "-mhe=on", "-mx1", "-y", archivePath, "/data/SUBJ-001",
	}, (*calls)[0])
}

func TestCreateSeedsArchiveWithIndexMarker(t *testing.T) {
	calls := captureCommands(t)

	archivePath := filepath.Join(t.TempDir(), "job.7z")
	require.NoError(t, Create(archivePath, "s3cret"))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "7z", call[0])
	assert.Equal(t, archivePath, call[6])
	assert.Equal(t, "INDEX.txt", filepath.Base(call[7]))
}

func TestCreateFailsWhenArchiveExists(t *testing.T) {
	calls := captureCommands(t)

	archivePath := filepath.Join(t.TempDir(), "job.7z")
	require.NoError(t, os.WriteFile(archivePath, []byte("existing"), 0o644))

	err := Create(archivePath, "s3cret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Empty(t, *calls)
}

func TestAppendWrapsCommandFailure(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })
	runCommand = func(name string, args ...string) error {
		return errors.New("7z: cannot open file")
	}

	err := Append("/tmp/job.7z", "pw", "/data/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adding /data/x to archive")
}
