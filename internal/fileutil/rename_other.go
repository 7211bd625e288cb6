//go:build !linux

package fileutil

func renameNoReplace(src, dest string) error {
	return renameCheckThenMove(src, dest)
}
