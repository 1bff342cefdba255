// Package compiler provides the compilation pipeline for setting scripts.
// Source text is tokenized by the lexer and translated by the parser in a
// single pass into an opcode.Image: one Program per setting plus the symbol
// table they share.
//
// Entry points:
// - Compile: compiles one source string
// - CompileWithOptions: the same with a static arity source or logger
// - CompileFile: reads, decodes and compiles one file
// - CompileScripts: compiles files loaded by script.Loader into one image
package compiler

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/zurustar/scenevm/pkg/compiler/lexer"
	"github.com/zurustar/scenevm/pkg/compiler/parser"
	"github.com/zurustar/scenevm/pkg/logger"
	"github.com/zurustar/scenevm/pkg/opcode"
	"github.com/zurustar/scenevm/pkg/script"
	"github.com/zurustar/scenevm/pkg/symbol"
)

// CompileOptions provides configuration options for compilation.
type CompileOptions struct {
	// Arity, when set, rejects calls whose argument count the builtin
	// cannot accept.
	Arity parser.ArityChecker

	// Logger receives compile diagnostics. Defaults to logger.GetLogger().
	Logger *slog.Logger
}

// Compile compiles source code into an image.
//
// Settings that compile cleanly are present in the returned image even when
// other settings fail; every failure is reported in the error slice as a
// *CompileError.
func Compile(source string) (*opcode.Image, []error) {
	return CompileWithOptions(source, CompileOptions{})
}

// CompileWithOptions compiles source code with additional options.
func CompileWithOptions(source string, opts CompileOptions) (*opcode.Image, []error) {
	return CompileScripts([]script.Script{{Content: source, Size: int64(len(source))}}, opts)
}

// CompileFile reads path, decodes it from encoding (empty means UTF-8) and
// compiles it.
func CompileFile(path, encoding string, opts CompileOptions) (*opcode.Image, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read file %s: %w", path, err)}
	}

	content, err := script.Decode(data, encoding)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to convert encoding for %s: %w", path, err)}
	}

	return CompileScripts([]script.Script{{
		FileName: filepath.Base(path),
		Content:  content,
		Size:     int64(len(data)),
	}}, opts)
}

// CompileScripts compiles several scripts into one image. Setting names from
// all scripts are known before any script is translated, so settings may
// refer to settings in other files. Define blocks take effect in file order.
func CompileScripts(scripts []script.Script, opts CompileOptions) (*opcode.Image, []error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	table := symbol.NewTable()
	table.SetLogger(log)
	img := opcode.NewImage(table)
	parsers := make([]*parser.Parser, len(scripts))
	lexErrs := make([][]*lexer.LexerError, len(scripts))
	for i, s := range scripts {
		toks, errs := lexer.Tokenize(s.Content)
		lexErrs[i] = errs
		popts := []parser.Option{parser.WithFile(s.FileName), parser.WithLogger(log)}
		if opts.Arity != nil {
			popts = append(popts, parser.WithArity(opts.Arity))
		}
		parsers[i] = parser.New(toks, img, popts...)
		parsers[i].Prescan()
	}

	var allErrors []error
	for i, p := range parsers {
		diags := p.Parse()
		diags = append(diags, unreached(lexErrs[i], diags)...)
		slices.SortStableFunc(diags, func(a, b *parser.ParserError) int {
			return cmp.Or(cmp.Compare(a.Line, b.Line), cmp.Compare(a.Column, b.Column))
		})
		for _, pe := range diags {
			allErrors = append(allErrors, newCompileError(pe, scripts[i].FileName, scripts[i].Content))
		}
	}

	log.Debug("compiled scripts",
		"files", len(scripts),
		"settings", len(img.Settings),
		"symbols", img.Table.Len(),
		"errors", len(allErrors))

	return img, allErrors
}

// unreached returns the lexer errors the parser did not report itself. The
// parser reports an ILLEGAL token only when it reaches it, so tokens inside a
// unit skipped after an earlier error are only known to the lexer.
func unreached(lexErrs []*lexer.LexerError, reported []*parser.ParserError) []*parser.ParserError {
	type pos struct{ line, column int }
	seen := make(map[pos]bool)
	for _, pe := range reported {
		if pe.Kind == parser.LexicalError {
			seen[pos{pe.Line, pe.Column}] = true
		}
	}
	var out []*parser.ParserError
	for _, le := range lexErrs {
		if seen[pos{le.Line, le.Column}] {
			continue
		}
		out = append(out, &parser.ParserError{
			Kind:    parser.LexicalError,
			Message: le.Message,
			Line:    le.Line,
			Column:  le.Column,
		})
	}
	return out
}

// CompileDirectory loads the scripts of a game directory and compiles them.
func CompileDirectory(loader *script.Loader, opts CompileOptions) (*opcode.Image, []error) {
	scripts, err := loader.LoadAllScripts()
	if err != nil {
		return nil, []error{err}
	}
	return CompileScripts(scripts, opts)
}
