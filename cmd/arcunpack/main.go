package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/shiroemons/go-arcunpack/internal/config"
	"github.com/shiroemons/go-arcunpack/internal/fileutil"
	"github.com/shiroemons/go-arcunpack/internal/saver"
	"github.com/shiroemons/go-arcunpack/internal/unpacker"
	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/formats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], fileutil.NewOSFileSystem(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run はコマンドを実行し、終了コードを返します
func run(ctx context.Context, args []string, fsys fileutil.FileSystem, stdout, stderr io.Writer) int {
	cfg, err := config.ParseFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, "エラー: %v\n\n", err)
		if errors.Is(err, config.ErrNoInput) {
			config.PrintHelp(stderr, nil)
		}
		return 1
	}

	if config.HandleVersion(stdout, cfg.ShowVersion) {
		return 0
	}

	registry := formats.NewRegistry()
	if cfg.ShowHelp {
		config.PrintHelp(stdout, registry.Formats())
		return 0
	}
	if cfg.ListFormats {
		printFormats(stdout, registry)
		return 0
	}

	inputs, err := fileutil.ExpandInputs(fsys, cfg.Inputs)
	if err != nil {
		fmt.Fprintf(stderr, "エラー: %v\n", err)
		return 1
	}

	debug := config.NewDebugLogger(cfg.DebugMode)
	disk := saver.NewDisk(cfg.OutputDir, !cfg.Rename, debug)
	disk.FS = fsys

	workers := 1
	if cfg.Parallel {
		workers = cfg.Workers
	}
	u := &unpacker.Unpacker{
		Registry: registry,
		FS:       fsys,
		Saver:    disk,
		Logger:   config.NewConsoleLogger(stdout),
		Debug:    debug,
		Format:   cfg.Format,
		Plugin:   cfg.Plugin,
		Workers:  workers,
		Include:  cfg.Include,
		Recurse:  cfg.Recurse,
	}
	if err := u.Validate(); err != nil {
		fmt.Fprintf(stderr, "エラー: %v\n", err)
		return 1
	}

	if cfg.List {
		return listInputs(ctx, u, inputs, stdout, stderr)
	}

	if !u.Run(ctx, inputs) {
		return 1
	}
	if cfg.DebugMode {
		fmt.Fprintf(stdout, "%d 個のファイルを保存しました\n", len(disk.Saved))
	}
	return 0
}

// printFormats は登録済みの形式と、候補を持つ形式の候補IDを表示します
func printFormats(w io.Writer, registry *arc.Registry) {
	for _, id := range registry.Formats() {
		d, err := registry.Create(id)
		if err != nil {
			continue
		}
		if ps, ok := d.(arc.PluginSelector); ok {
			fmt.Fprintf(w, "%-20s plugins: %v\n", id, ps.Plugins())
			continue
		}
		fmt.Fprintln(w, id)
	}
}

// listInputs は各入力のエントリ一覧を表示します
func listInputs(ctx context.Context, u *unpacker.Unpacker, inputs []fileutil.Input, stdout, stderr io.Writer) int {
	code := 0
	for _, in := range inputs {
		id, meta, err := u.List(ctx, in)
		if err != nil {
			fmt.Fprintf(stderr, "%s: エラー: %v\n", in.Path, err)
			code = 1
			continue
		}
		listArchive(stdout, in.Path, id, meta)
	}
	return code
}

func listArchive(w io.Writer, path, format string, meta *arc.Meta) {
	fmt.Fprintf(w, "%s (%s)\n", path, format)
	fmt.Fprintln(w, "----------------------------")
	fmt.Fprintf(w, "%-32s %10s %10s\n", "ファイル名", "オフセット", "サイズ")
	fmt.Fprintln(w, "----------------------------")

	if len(meta.Entries) == 0 {
		fmt.Fprintln(w, "ファイルがありません")
		return
	}
	for _, e := range meta.Entries {
		fmt.Fprintf(w, "%-32s %10d %10d\n", e.Path, e.Offset, e.Size)
	}
	fmt.Fprintln(w, "----------------------------")
}
