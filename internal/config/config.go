// Package config はarcunpackコマンドの設定管理を行います
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Version はコマンドのバージョンです
const Version = "0.1.0"

// ErrNoInput は入力ファイルが指定されていない場合のエラー
var ErrNoInput = errors.New("入力ファイルが指定されていません")

// Config はアプリケーションの設定を保持します
type Config struct {
	Inputs      []string
	OutputDir   string
	Format      string
	Plugin      string
	Rename      bool
	List        bool
	ListFormats bool
	DebugMode   bool
	Parallel    bool
	Workers     int
	Include     []string
	Recurse     bool
	ShowVersion bool
	ShowHelp    bool
}

// NewFlagSet は cfg に結び付いたフラグを定義します
func NewFlagSet(name string, cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&cfg.OutputDir, "out", "o", ".", "where to put the output files")
	fs.StringVarP(&cfg.Format, "fmt", "f", "", "disable guessing and use the given format")
	fs.StringVar(&cfg.Plugin, "plugin", "", "use the given key set / variant of the format (e.g. sweet, td)")
	fs.BoolVarP(&cfg.Rename, "rename", "r", false, "rename existing target files instead of overwriting them")
	fs.BoolVarP(&cfg.List, "list", "l", false, "list archive entries without extracting")
	fs.BoolVar(&cfg.ListFormats, "list-formats", false, "show supported formats")
	fs.BoolVarP(&cfg.DebugMode, "debug", "d", false, "enable debug output")
	fs.BoolVarP(&cfg.Parallel, "parallel", "p", false, "decode archive entries in parallel")
	fs.IntVarP(&cfg.Workers, "workers", "w", 4, "number of workers for parallel decoding")
	fs.StringArrayVarP(&cfg.Include, "include", "i", nil, "only extract entries matching the glob (repeatable, ** supported)")
	fs.BoolVar(&cfg.Recurse, "recurse", false, "unpack outputs that are themselves archives of a linked format")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "show version information")
	fs.BoolVarP(&cfg.ShowHelp, "help", "h", false, "show help")
	return fs
}

// ParseFlags はコマンドライン引数（プログラム名を除く）を解析して設定を返します。
// バージョン・ヘルプ・形式一覧の表示以外で入力がない場合は ErrNoInput を返します。
func ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	fs := NewFlagSet("arcunpack", cfg)
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, err
	}
	cfg.Inputs = fs.Args()

	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("invalid number of workers: %d", cfg.Workers)
	}
	if cfg.ShowVersion || cfg.ShowHelp || cfg.ListFormats {
		return cfg, nil
	}
	if len(cfg.Inputs) == 0 {
		return nil, ErrNoInput
	}
	return cfg, nil
}

// PrintHelp は使い方を w に書き込みます
func PrintHelp(w io.Writer, formats []string) {
	fmt.Fprintf(w, `arcunpack v%s
Extracts images and sounds from game archives.

Usage:
  arcunpack [flags] input_path [input_path...]

Depending on the format, files are saved either in a subdirectory
(archives) or next to the input files (images, compressed files).
Directories given as input are searched recursively.

Flags:
`, Version)
	fs := NewFlagSet("arcunpack", &Config{})
	fs.SetOutput(w)
	fs.PrintDefaults()

	if len(formats) > 0 {
		fmt.Fprintln(w, "\nSupported formats:")
		for _, f := range formats {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}

// HandleVersion はバージョン表示を処理します。表示した場合は true を返します。
func HandleVersion(w io.Writer, showVersion bool) bool {
	if showVersion {
		fmt.Fprintf(w, "arcunpack version %s\n", Version)
	}
	return showVersion
}

// DebugLogger はデバッグ出力を管理します
type DebugLogger struct {
	enabled bool
	out     io.Writer
}

// NewDebugLogger は標準出力に書き込む新しいDebugLoggerを作成します
func NewDebugLogger(enabled bool) *DebugLogger {
	return &DebugLogger{enabled: enabled, out: os.Stdout}
}

// Printf はデバッグモードが有効な場合のみメッセージを表示します
func (d *DebugLogger) Printf(format string, a ...any) {
	if d.enabled {
		fmt.Fprintf(d.out, format, a...)
	}
}

// ConsoleLogger は常に出力するロガーです（進捗表示用）
type ConsoleLogger struct {
	out io.Writer
}

// NewConsoleLogger は w に書き込む ConsoleLogger を作成します
func NewConsoleLogger(w io.Writer) *ConsoleLogger {
	return &ConsoleLogger{out: w}
}

// Printf はメッセージを表示します
func (c *ConsoleLogger) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}
