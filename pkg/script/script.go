// Package script finds setting-script files in a game directory and decodes
// them to UTF-8.
package script

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/zurustar/scenevm/pkg/fileutil"
)

// DefaultPatterns is used when no script globs are configured.
var DefaultPatterns = []string{"*.scn"}

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "utf-8"

// Script はスクリプトファイルを表す
type Script struct {
	FileName string // ファイル名
	Content  string // UTF-8に変換された内容
	Size     int64  // ファイルサイズ
}

// Loader はスクリプトファイルの読み込みを行う
type Loader struct {
	fs       fileutil.FileSystem
	patterns []string
	encoding string
}

// NewLoader creates a loader over fsys. Empty patterns or encoding fall back
// to the defaults.
func NewLoader(fsys fileutil.FileSystem, patterns []string, encoding string) *Loader {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Loader{fs: fsys, patterns: patterns, encoding: encoding}
}

// LoadAllScripts loads every file matching the loader's patterns, in pattern
// order and then name order. A file matched by several patterns is loaded once.
func (l *Loader) LoadAllScripts() ([]Script, error) {
	scriptFiles, err := l.findScriptFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find script files: %w", err)
	}

	if len(scriptFiles) == 0 {
		return nil, fmt.Errorf("no script files matching %s found in %s", strings.Join(l.patterns, ", "), l.fs.BasePath())
	}

	var scripts []Script
	for _, filePath := range scriptFiles {
		script, err := l.loadScript(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", filePath, err)
		}
		scripts = append(scripts, *script)
	}

	return scripts, nil
}

func (l *Loader) findScriptFiles() ([]string, error) {
	seen := make(map[string]bool)
	var scriptFiles []string
	for _, pattern := range l.patterns {
		matches, err := l.fs.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				scriptFiles = append(scriptFiles, m)
			}
		}
	}
	return scriptFiles, nil
}

// loadScript 単一のスクリプトファイルを読み込む
func (l *Loader) loadScript(path string) (*Script, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	content, err := Decode(data, l.encoding)
	if err != nil {
		return nil, err
	}

	return &Script{
		FileName: path,
		Content:  content,
		Size:     int64(len(data)),
	}, nil
}

// Decode converts data from the named encoding (any WHATWG label such as
// "utf-8", "shift_jis" or "windows-1252") to UTF-8. A leading byte order
// mark overrides the label.
func Decode(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	decoder := unicode.BOMOverride(enc.NewDecoder())
	reader := transform.NewReader(bytes.NewReader(data), decoder)

	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return string(utf8Data), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

// ValidateEncoding reports whether name is a known encoding label.
func ValidateEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}
