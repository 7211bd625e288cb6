//go:build !windows

package fileutil

import "errors"

var errNoRecycleBin = errors.New("recycle bin is only available on windows")

// MoveToTrash never takes the windows branch here.
func moveToWindowsTrash(string) error {
	return errNoRecycleBin
}
