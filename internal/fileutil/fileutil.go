package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to a file preserved before it is replaced.
const BackupSuffix = ".bak"

// BackupFile renames path to path+BackupSuffix, replacing any previous
// backup. It returns the backup path, or "" when path did not exist.
func BackupFile(path string) (string, error) {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	backup := path + BackupSuffix
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	return backup, nil
}

// ReplaceFile writes data next to path, moves any existing file to its
// backup, then renames the new file into place with mode. The target is
// never left half-written.
func ReplaceFile(path string, data []byte, mode os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}

	backup, err := BackupFile(path)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return backup, fmt.Errorf("install %s: %w", path, err)
	}
	return backup, nil
}

// EnsureDir creates path if needed and applies mode and ownership. A negative
// uid or gid leaves that id unchanged. Existing directories are not an error.
func EnsureDir(path string, mode os.FileMode, uid, gid int) (created bool, err error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", path)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(path, mode); err != nil {
			return false, fmt.Errorf("create %s: %w", path, err)
		}
		created = true
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return created, fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := Chown(path, uid, gid); err != nil {
		return created, err
	}
	return created, nil
}

// Chown changes ownership of path unless both ids are negative.
func Chown(path string, uid, gid int) error {
	if uid < 0 && gid < 0 {
		return nil
	}
	if err := os.Lchown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s to %d:%d: %w", path, uid, gid, err)
	}
	return nil
}
