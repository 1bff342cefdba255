// Package app wires the command line, the game configuration, the compiler,
// the engine and a front-end together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/zurustar/scenevm/pkg/audio"
	"github.com/zurustar/scenevm/pkg/cli"
	"github.com/zurustar/scenevm/pkg/compiler"
	"github.com/zurustar/scenevm/pkg/config"
	"github.com/zurustar/scenevm/pkg/engine"
	"github.com/zurustar/scenevm/pkg/fileutil"
	"github.com/zurustar/scenevm/pkg/logger"
	"github.com/zurustar/scenevm/pkg/opcode"
	"github.com/zurustar/scenevm/pkg/savegame"
	"github.com/zurustar/scenevm/pkg/script"
	"github.com/zurustar/scenevm/pkg/window"
)

// ErrCompile is returned when the scripts do not compile.
var ErrCompile = errors.New("compilation failed")

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	args   *cli.Config
	game   *config.Config
	fsys   fileutil.FileSystem
	out    io.Writer
	log    *slog.Logger
	engine *engine.Engine
	sound  *audio.System
}

// New Applicationを作成。ヘルプ、逆アセンブル結果、ログは out に出力する
func New(out io.Writer) *Application {
	return &Application{out: out}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	parsed, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.args = parsed

	if app.args.ShowHelp {
		cli.PrintHelp(app.out)
		return nil
	}

	// 2. ロガーの初期化
	if err := logger.InitLoggerWithFormat(app.args.LogLevel, app.args.LogFormat, app.out); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()

	// 3. 設定ファイルの読み込み
	if err := app.loadConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.fsys = fileutil.NewRealFS(app.game.AssetDir())
	app.log.Info("Application started", "title", app.game.Game.Title, "assets", app.game.AssetDir())

	// 4. エンジンの作成（組み込み関数の引数の数をコンパイラが参照する）
	app.engine = engine.New(app.engineOptions()...)
	defer app.shutdown()

	// 5. スクリプトのコンパイル
	img, err := app.compile()
	if err != nil {
		return err
	}

	if app.args.Disasm {
		return opcode.DisassembleImage(app.out, img)
	}

	// 6. 実行
	app.engine.Load(img)
	if err := app.engine.Start(app.game.Game.Start); err != nil {
		return err
	}
	if err := app.run(); err != nil {
		return err
	}

	app.log.Info("Application terminated normally")
	return nil
}

// loadConfig reads scenevm.toml (the one named on the command line, or the
// one in the game directory) and applies the command line overrides.
func (app *Application) loadConfig() error {
	var err error
	switch {
	case app.args.ConfigPath != "":
		app.game, err = config.Load(app.args.ConfigPath)
	default:
		dir := app.args.GameDir
		if dir == "" {
			dir = "."
		}
		app.game, err = loadGameDir(dir)
	}
	if err != nil {
		return err
	}

	if app.args.Start != "" {
		app.game.Game.Start = app.args.Start
	}
	if app.args.Seed != 0 {
		app.game.Game.Seed = app.args.Seed
	}
	return nil
}

func loadGameDir(dir string) (*config.Config, error) {
	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return config.Default(abs), nil
}

func (app *Application) engineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(app.log),
		engine.WithTicksPerSecond(app.game.Game.TicksPerSecond),
		engine.WithSeed(app.game.Game.Seed),
		engine.WithHeadless(app.args.Headless),
		engine.WithTimeout(app.args.Timeout),
		engine.WithSaver(savegame.NewStore(app.game.SaveDir())),
	}

	// ヘッドレスモードでは音を鳴らさない
	if app.game.Audio.Enabled && !app.args.Headless {
		sound, err := audio.NewSystem(app.fsys,
			audio.WithLogger(app.log),
			audio.WithSoundFont(findSoundFont(app.fsys, app.game.SoundFontPath())))
		if err != nil {
			app.log.Warn("audio disabled", "error", err)
		} else {
			app.sound = sound
			opts = append(opts, engine.WithSoundPlayer(sound))
		}
	}
	return opts
}

// compile はスクリプトをコンパイルする。エラーはすべてログに出力する
func (app *Application) compile() (*opcode.Image, error) {
	opts := compiler.CompileOptions{Arity: app.engine.Registry(), Logger: app.log}

	var img *opcode.Image
	var errs []error
	if app.args.ScriptFile != "" {
		path := filepath.Join(app.args.GameDir, app.args.ScriptFile)
		img, errs = compiler.CompileFile(path, app.game.Game.Encoding, opts)
	} else {
		loader := script.NewLoader(app.fsys, app.game.Game.Scripts, app.game.Game.Encoding)
		img, errs = compiler.CompileDirectory(loader, opts)
	}

	if len(errs) > 0 {
		for _, err := range errs {
			app.log.Error("compile error", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCompile, errors.Join(errs...))
	}

	app.log.Info("Scripts compiled successfully", "settings", len(img.Order), "symbols", img.Table.Len())
	return img, nil
}

func (app *Application) run() error {
	if app.args.Headless {
		app.log.Info("Headless mode: running without a window")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := app.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	g := window.NewGame(app.engine, app.fsys, window.Options{
		Title:     windowTitle(app.game),
		Width:     app.game.Window.Width,
		Height:    app.game.Window.Height,
		Scale:     app.game.Window.Scale,
		TPS:       app.game.Game.TicksPerSecond,
		ShowExits: app.game.Window.ShowExits,
	})
	return window.Run(g)
}

func windowTitle(c *config.Config) string {
	if c.Game.Title == "" {
		return "scenevm"
	}
	return c.Game.Title + " - scenevm"
}

func (app *Application) shutdown() {
	app.engine.Shutdown()
	if app.sound != nil {
		app.sound.Close()
	}
}
