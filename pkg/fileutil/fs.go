package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// FileSystem is the read-only view of a game directory that the script
// loader and the asset consumers share. Names are resolved case-insensitively.
type FileSystem interface {
	// Open はファイルを開く（大文字小文字を無視）
	Open(name string) (fs.File, error)
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// Glob はパターンに一致するファイルを返す（大文字小文字を無視）
	Glob(pattern string) ([]string, error)
	// BasePath はベースパスを返す
	BasePath() string
}

// GameFS implements FileSystem over any fs.FS: a directory on disk via
// NewRealFS, or an embedded or in-memory tree via NewFS.
type GameFS struct {
	fsys     fs.FS
	basePath string
}

// NewRealFS returns a FileSystem rooted at the directory basePath.
func NewRealFS(basePath string) *GameFS {
	return &GameFS{fsys: os.DirFS(basePath), basePath: basePath}
}

// NewFS wraps fsys. basePath is only reported, never used for lookups.
func NewFS(fsys fs.FS, basePath string) *GameFS {
	return &GameFS{fsys: fsys, basePath: basePath}
}

func (g *GameFS) Open(name string) (fs.File, error) {
	actual, err := ResolveCaseInsensitive(g.fsys, name)
	if err != nil {
		return nil, err
	}
	return g.fsys.Open(actual)
}

func (g *GameFS) ReadFile(name string) ([]byte, error) {
	actual, err := ResolveCaseInsensitive(g.fsys, name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(g.fsys, actual)
}

// Glob matches pattern against every regular file, comparing lowercased
// paths. Results are sorted.
func (g *GameFS) Glob(pattern string) ([]string, error) {
	lowered := strings.ToLower(strings.ReplaceAll(pattern, "\\", "/"))
	if _, err := path.Match(lowered, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var matches []string
	err := fs.WalkDir(g.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := path.Match(lowered, strings.ToLower(p)); ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (g *GameFS) BasePath() string {
	return g.basePath
}
