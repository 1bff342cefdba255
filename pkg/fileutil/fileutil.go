// Package fileutil provides file system utility functions.
package fileutil

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// FindFileCaseInsensitiveFS searches dir in fsys for filename, ignoring case.
// Scripts name assets in whatever case the game files were authored with, so
// "BG.BMP" has to find "bg.bmp".
//
// Returns the slash-separated path of the match inside fsys.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if strings.ToLower(entry.Name()) == searchName {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// ResolveCaseInsensitive maps name onto an existing path in fsys, matching
// every path element without regard to case. Backslashes are accepted as
// separators.
func ResolveCaseInsensitive(fsys fs.FS, name string) (string, error) {
	clean := strings.ReplaceAll(name, "\\", "/")
	clean = path.Clean(strings.TrimPrefix(clean, "/"))
	if clean == "." {
		return ".", nil
	}
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("invalid path %q: %w", name, fs.ErrInvalid)
	}

	// 直接アクセスできればそのまま使う
	if _, err := fs.Stat(fsys, clean); err == nil {
		return clean, nil
	}

	dir := "."
	for _, elem := range strings.Split(clean, "/") {
		found, err := FindFileCaseInsensitiveFS(fsys, dir, elem)
		if err != nil {
			return "", err
		}
		dir = found
	}
	return dir, nil
}
