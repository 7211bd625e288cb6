package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// ErrTargetExists is returned when a rename would overwrite an existing file
var ErrTargetExists = errors.New("target already exists")

// ErrSourceMissing is returned when the file to rename is gone
var ErrSourceMissing = errors.New("source does not exist")

// RenameNoClobber renames src to dest within the same filesystem.
// Unlike os.Rename it refuses to replace an existing dest.
func RenameNoClobber(src, dest string) error {
	if _, err := os.Lstat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
		return err
	}
	return renameNoReplace(src, dest)
}

// renameCheckThenMove is the portable variant: dest is checked before the
// rename, so another process may still create it in between
func renameCheckThenMove(src, dest string) error {
	if Exists(dest) {
		return fmt.Errorf("%w: %s", ErrTargetExists, dest)
	}
	return os.Rename(src, dest)
}

// Exists reports whether path exists
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// MoveFile moves a file to the destination directory.
// If a file with the same name exists, it appends a counter (e.g., file_1.jpg).
func MoveFile(src, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	filename := filepath.Base(src)
	destName := findUniqueName(filename, func(name string) bool {
		return !Exists(filepath.Join(destDir, name))
	})

	return moveFileAcrossFS(src, filepath.Join(destDir, destName))
}

// findUniqueName finds a unique filename by appending a counter if needed.
// isAvailable should return true if the name can be used.
func findUniqueName(filename string, isAvailable func(string) bool) string {
	if isAvailable(filename) {
		return filename
	}

	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", name, counter, ext)
		if isAvailable(candidate) {
			return candidate
		}
	}
}

// moveFileAcrossFS moves a file, falling back to copy+delete for cross-filesystem moves.
func moveFileAcrossFS(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFile(src, dest); err != nil {
			return err
		}
		return os.Remove(src)
	}

	return err
}

func copyFile(src, dest string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		os.Remove(dest)
		return err
	}

	return nil
}

// MoveToTrash moves a file to the system trash/recycle bin.
// - macOS: ~/.Trash
// - Linux: ~/.local/share/Trash (freedesktop.org spec)
// - Windows: Recycle Bin (via shell32.dll)
func MoveToTrash(src string) error {
	switch runtime.GOOS {
	case "windows":
		return moveToWindowsTrash(src)
	case "linux":
		trashDir, err := getTrashDir()
		if err != nil {
			return err
		}
		return moveToLinuxTrash(src, trashDir)
	default:
		trashDir, err := getTrashDir()
		if err != nil {
			return err
		}
		return MoveFile(src, trashDir)
	}
}

func getTrashDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	var trashDir string
	switch runtime.GOOS {
	case "darwin":
		trashDir = filepath.Join(homeDir, ".Trash")
	case "linux":
		trashDir = filepath.Join(homeDir, ".local", "share", "Trash", "files")
	default:
		trashDir = filepath.Join(homeDir, "imagecompare_trash")
	}

	if err := os.MkdirAll(trashDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	return trashDir, nil
}

// moveToLinuxTrash moves a file to Linux trash with a .trashinfo entry
// so desktop file managers can restore it.
func moveToLinuxTrash(src, trashFilesDir string) error {
	trashInfoDir := filepath.Join(filepath.Dir(trashFilesDir), "info")
	if err := os.MkdirAll(trashInfoDir, 0755); err != nil {
		return err
	}

	absPath, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	// Name must be free in both files/ and info/
	destName := findUniqueName(filepath.Base(src), func(name string) bool {
		return !Exists(filepath.Join(trashFilesDir, name)) &&
			!Exists(filepath.Join(trashInfoDir, name+".trashinfo"))
	})

	infoPath := filepath.Join(trashInfoDir, destName+".trashinfo")
	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		absPath, time.Now().Format("2006-01-02T15:04:05"))

	if err := os.WriteFile(infoPath, []byte(info), 0644); err != nil {
		return err
	}

	if err := moveFileAcrossFS(src, filepath.Join(trashFilesDir, destName)); err != nil {
		os.Remove(infoPath)
		return err
	}

	return nil
}
