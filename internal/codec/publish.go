package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteOutput streams encode into a temp file beside dest and publishes it.
// When dest is the source itself the file is replaced; otherwise dest must
// not exist yet.
func WriteOutput(src, dest string, perm fs.FileMode, encode func(w io.Writer) error) error {
	destDir := filepath.Dir(dest)

	tmpFile, err := os.CreateTemp(destDir, "resizer-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return err
	}

	bw := bufio.NewWriter(tmpFile)
	if err := encode(bw); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if SameFile(src, dest) {
		return replaceFile(tmpFile.Name(), dest)
	}
	return publishNew(tmpFile.Name(), dest)
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// publishNew links tmpPath to destPath so an existing file is never
// overwritten. Filesystems without hard links fall back to a checked rename.
func publishNew(tmpPath, destPath string) error {
	err := os.Link(tmpPath, destPath)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrOutputExists, destPath)
	}
	if _, statErr := os.Lstat(destPath); statErr == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, destPath)
	}
	return os.Rename(tmpPath, destPath)
}
