package archive

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// runCommand is swapped in tests to inspect the constructed 7z
// invocation without needing the binary.
var runCommand = func(name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", bytes.TrimSpace(stderr.Bytes()), err)
	}
	return nil
}

// Create initializes a new password-protected archive at path. It
// fails when the path already exists and seeds the archive with an
// index marker so an empty archive is still a valid file.
func Create(path, password string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("archive %s already exists", path)
	}

	tmpDir, err := os.MkdirTemp("", "archive-init-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	marker := filepath.Join(tmpDir, "INDEX.txt")
	if err := os.WriteFile(marker, []byte("Archive created by dicom-transfer.\n"), 0o644); err != nil {
		return err
	}
	return Append(path, password, marker)
}

// Append adds a file or directory tree to the archive. The archive is
// AES-encrypted with header encryption so file names are hidden too;
// compression is kept at the fastest level since DICOM pixel data
// barely compresses.
func Append(path, password, source string) error {
	args := []string{
		"a",
		"-p" + password,
		"-mhe=on",
		"-mx1",
		"-y",
		path,
		source,
	}
	if err := runCommand("7z", args...); err != nil {
		return fmt.Errorf("adding %s to archive %s: %w", source, path, err)
	}
	return nil
}
