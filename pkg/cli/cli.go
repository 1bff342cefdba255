package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	GameDir    string        // ゲームのディレクトリ
	ScriptFile string        // 単一スクリプト指定時のファイル名
	ConfigPath string        // scenevm.toml のパス
	Timeout    time.Duration // タイムアウト時間（0は無制限）
	LogLevel   string        // ログレベル（debug, info, warn, error）
	LogFormat  string        // ログ形式（text, json）
	Headless   bool          // ヘッドレスモード
	Disasm     bool          // 逆アセンブル結果を表示して終了
	Start      string        // 最初に実行する setting
	Seed       int64         // random(N%) のシード（0は時刻）
	ShowHelp   bool          // ヘルプ表示フラグ
}

// boolFlags never take a value, so reorderArgs must not consume the next
// argument after them.
var boolFlags = map[string]bool{
	"headless": true,
	"disasm":   true,
	"help":     true,
	"h":        true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("scenevm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var timeoutSec int
	fs.StringVar(&config.ConfigPath, "config", "", "設定ファイル（scenevm.toml）")
	fs.StringVar(&config.ConfigPath, "c", "", "設定ファイル（短縮形）")
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.StringVar(&config.LogFormat, "log-format", "text", "ログ形式（text, json）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.Disasm, "disasm", false, "逆アセンブルして終了")
	fs.StringVar(&config.Start, "start", "", "最初に実行する setting")
	fs.Int64Var(&config.Seed, "seed", 0, "乱数のシード")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	config.LogFormat = strings.ToLower(config.LogFormat)
	if config.LogFormat != "text" && config.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", config.LogFormat)
	}

	if fs.NArg() > 1 {
		return nil, fmt.Errorf("too many arguments: %s", strings.Join(fs.Args(), " "))
	}

	// 位置引数（ゲームディレクトリ、スクリプト、または設定ファイル）
	if fs.NArg() > 0 {
		path := fs.Arg(0)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if config.ConfigPath != "" {
				return nil, fmt.Errorf("both --config and %s given", path)
			}
			config.ConfigPath = path
		case ".scn":
			// スクリプトファイルが指定された場合、ディレクトリとファイル名に分離
			config.GameDir = filepath.Dir(path)
			config.ScriptFile = filepath.Base(path)
		default:
			config.GameDir = path
		}
	}

	return config, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") || boolFlags[name] {
				continue
			}
			// 次の引数が値である可能性をチェック（-t 5 のような場合）
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `scenevm - setting script runner

Usage:
  scenevm [options] [game-dir | script.scn | scenevm.toml]

Arguments:
  game-dir      ゲームのディレクトリ（*.scn を読み込む。scenevm.toml があれば使用）
  script.scn    単一のスクリプトファイルを実行
  scenevm.toml  設定ファイルを指定

Options:
  -c, --config <path>         設定ファイル（scenevm.toml）
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --log-format <format>       ログ形式: text, json（デフォルト: text）
  --headless                  ヘッドレスモード（GUIなし、音なし）
  --disasm                    コンパイル結果を逆アセンブルして終了
  --start <setting>           最初に実行する setting（デフォルト: 設定ファイルまたは最初の setting）
  --seed <n>                  random(N%%) のシード（0は時刻から）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル

Examples:
  scenevm games/office                 ディレクトリを指定
  scenevm games/office/lobby.scn       スクリプトを直接指定
  scenevm --disasm games/office        バイトコードを表示
  scenevm --headless -t 10 games/office  ヘッドレスで10秒実行
`)
}
