//go:build linux

package fileutil

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// renameNoReplace asks the kernel to fail the rename if dest exists.
// Filesystems without RENAME_NOREPLACE fall back to check then rename.
func renameNoReplace(src, dest string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dest, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EEXIST):
		return fmt.Errorf("%w: %s", ErrTargetExists, dest)
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS), errors.Is(err, unix.ENOTSUP):
		return renameCheckThenMove(src, dest)
	default:
		return fmt.Errorf("failed to rename %s to %s: %w", src, dest, err)
	}
}
