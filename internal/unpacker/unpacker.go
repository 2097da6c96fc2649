// Package unpacker は入力ファイルの形式を推定し、デコード結果を保存する処理をまとめます
package unpacker

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/shiroemons/go-arcunpack/internal/fileutil"
	"github.com/shiroemons/go-arcunpack/internal/saver"
	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

// DefaultMaxDepth は関連形式を再帰的に展開する深さの既定値です
const DefaultMaxDepth = 4

// ErrInvalidPattern は --include のパターンが不正な場合のエラー
var ErrInvalidPattern = errors.New("不正なパターンです")

// Unpacker は入力ファイルを順に展開します
type Unpacker struct {
	Registry *arc.Registry
	FS       fileutil.FileSystem
	Saver    arc.FileSaver

	// Logger は進捗の表示先、Debug はデコーダ内部のログの出力先です
	Logger arc.Logger
	Debug  arc.Logger

	// Format が空でなければ推定せずにその形式を使います
	Format string
	// Plugin が空でなければ鍵・作品の候補を固定します
	Plugin string
	// Workers が2以上ならアーカイブのエントリを並行に取り出します
	Workers int
	// Include が空でなければ、一致するエントリだけを取り出します（最上位のアーカイブのみ）
	Include []string
	// Recurse が true なら、関連形式として認識された出力をさらに展開します
	Recurse  bool
	MaxDepth int
}

// Result は1つの入力の処理結果です
type Result struct {
	Input  fileutil.Input
	Format string
	Err    error
}

// Validate は設定を確認します
func (u *Unpacker) Validate() error {
	if u.Registry == nil || u.Saver == nil {
		return errors.New("unpacker: registry and saver are required")
	}
	if u.Format != "" && !u.Registry.Has(u.Format) {
		return fmt.Errorf("%w: %s", arc.ErrUnknownFormat, u.Format)
	}
	for _, p := range u.Include {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return nil
}

func (u *Unpacker) fs() fileutil.FileSystem {
	if u.FS == nil {
		return fileutil.NewOSFileSystem()
	}
	return u.FS
}

func (u *Unpacker) maxDepth() int {
	if u.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return u.MaxDepth
}

// Run はすべての入力を処理し、すべて成功した場合に true を返します。
// ある入力の失敗は他の入力の処理を止めません。
func (u *Unpacker) Run(ctx context.Context, inputs []fileutil.Input) bool {
	ok := true
	for _, r := range u.RunDetailed(ctx, inputs) {
		ok = ok && r.Err == nil
	}
	return ok
}

// RunDetailed はすべての入力を処理し、入力ごとの結果を返します
func (u *Unpacker) RunDetailed(ctx context.Context, inputs []fileutil.Input) []Result {
	logger := arc.OrNop(u.Logger)

	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			results = append(results, Result{Input: in, Err: ctx.Err()})
			continue
		default:
		}

		logger.Printf("Reading %s\n", in.Path)
		format, err := u.unpackInput(ctx, in)
		if err != nil {
			logger.Printf("Error: %v\n", err)
			logger.Printf("Unpacking finished with errors.\n")
		} else {
			logger.Printf("Unpacking finished successfully.\n")
		}
		results = append(results, Result{Input: in, Format: format, Err: err})
	}
	return results
}

func (u *Unpacker) unpackInput(ctx context.Context, in fileutil.Input) (string, error) {
	data, err := u.fs().ReadFile(in.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", fileutil.ErrReadFile, in.Path, err)
	}
	f := arc.NewFile(in.Path, data)

	id, d, err := u.selectDecoder(f)
	if err != nil {
		return "", err
	}
	arc.OrNop(u.Logger).Printf("Unpacking...\n")
	return id, u.unpack(ctx, d, f, BaseName(in.BaseName), 0, u.Saver)
}

// selectDecoder は Format が指定されていればその形式、なければ推定した形式のデコーダを返します
func (u *Unpacker) selectDecoder(f *arc.File) (string, arc.Decoder, error) {
	var id string
	var d arc.Decoder
	if u.Format != "" {
		created, err := u.Registry.Create(u.Format)
		if err != nil {
			return "", nil, err
		}
		id, d = u.Format, created
	} else {
		m, err := arc.Guess(u.Registry, f, u.Logger)
		if err != nil {
			var amb *arc.AmbiguousFormatError
			if errors.As(err, &amb) {
				return "", nil, fmt.Errorf("%w; provide --fmt and proceed manually", err)
			}
			return "", nil, err
		}
		id, d = m.ID, m.Decoder
	}

	if u.Plugin != "" {
		ps, ok := d.(arc.PluginSelector)
		if !ok {
			return "", nil, fmt.Errorf("%w: format %s has no plugins", arc.ErrNotSupported, id)
		}
		if err := ps.SetPlugin(u.Plugin); err != nil {
			return "", nil, err
		}
	}
	return id, d, nil
}

// unpack は f を d でデコードし、名前を合成して next に保存します
func (u *Unpacker) unpack(ctx context.Context, d arc.Decoder, f *arc.File, baseName string, depth int, next arc.FileSaver) error {
	rs := &renamingSaver{strategy: arc.StrategyOf(d), baseName: baseName, next: next}
	emit := u.emitter(ctx, d, rs, depth)

	ad, ok := d.(arc.ArchiveDecoder)
	if !ok {
		return d.Unpack(ctx, f, arc.FileSaverFunc(emit), u.Debug)
	}

	meta, err := arc.ReadMeta(ad, f, u.Debug)
	if err != nil {
		return err
	}
	entries := meta.Entries
	if depth == 0 {
		entries = u.filter(entries)
	}
	if u.Workers > 1 {
		return u.readParallel(ctx, ad, f, meta, entries, emit)
	}

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		out, err := arc.ReadFile(ad, f, meta, e, u.Debug)
		if err != nil {
			return err
		}
		if err := emit(out); err != nil {
			return err
		}
	}
	return nil
}

// readParallel はエントリを並行に取り出し、ディレクトリの順に emit します
func (u *Unpacker) readParallel(ctx context.Context, d arc.ArchiveDecoder, f *arc.File, meta *arc.Meta, entries []*arc.Entry, emit func(*arc.File) error) error {
	outs := make([]*arc.File, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.Workers)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := arc.ReadFile(d, f, meta, e, u.Debug)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outs {
		if err := emit(out); err != nil {
			return err
		}
	}
	return nil
}

// emitter は出力を保存する関数を返します。出力は格納順に1つずつ渡されます。
// 名前のない出力には格納順の番号から名前を付けます。
// Recurse が有効で、出力が d の関連形式として認識された場合はさらに展開します。
// 展開結果は成功した場合だけ保存し、失敗した場合は出力をそのまま保存します。
func (u *Unpacker) emitter(ctx context.Context, d arc.Decoder, rs *renamingSaver, depth int) func(*arc.File) error {
	linked := arc.LinkedFormatsOf(d)
	index := 0
	return func(out *arc.File) error {
		if out.Name == "" {
			out = arc.NewFile(UnnamedName(index), out.Content)
		}
		index++

		if !u.Recurse || len(linked) == 0 || depth+1 > u.maxDepth() {
			return rs.Save(out)
		}
		m, err := arc.GuessAmong(u.Registry, linked, out, u.Debug)
		if err != nil {
			return rs.Save(out)
		}

		name := DecorateName(rs.strategy, rs.baseName, out.Name)
		arc.OrNop(u.Logger).Printf("%s: unpacking as %s\n", name, m.ID)
		child := &saver.Memory{}
		if err := u.unpack(ctx, m.Decoder, out, BaseName(name), depth+1, child); err != nil {
			if ctx.Err() != nil {
				return err
			}
			arc.OrNop(u.Logger).Printf("%s: %v, saving as is\n", name, err)
			return rs.Save(out)
		}
		for _, f := range child.Files() {
			if err := rs.next.Save(f); err != nil {
				return err
			}
		}
		return nil
	}
}

// filter は Include のいずれかに一致するエントリを返します
func (u *Unpacker) filter(entries []*arc.Entry) []*arc.Entry {
	if len(u.Include) == 0 {
		return entries
	}
	var out []*arc.Entry
	for _, e := range entries {
		for _, p := range u.Include {
			if ok, _ := doublestar.Match(p, e.Path); ok {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// List は入力の形式を推定し、アーカイブのディレクトリを返します。データは取り出しません。
func (u *Unpacker) List(ctx context.Context, in fileutil.Input) (string, *arc.Meta, error) {
	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	default:
	}

	data, err := u.fs().ReadFile(in.Path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", fileutil.ErrReadFile, in.Path, err)
	}
	f := arc.NewFile(in.Path, data)

	id, d, err := u.selectDecoder(f)
	if err != nil {
		return "", nil, err
	}
	ad, ok := d.(arc.ArchiveDecoder)
	if !ok {
		return id, nil, fmt.Errorf("%w: %s is not an archive format", arc.ErrNotSupported, id)
	}
	meta, err := arc.ReadMeta(ad, f, u.Debug)
	if err != nil {
		return id, nil, err
	}
	meta.Entries = u.filter(meta.Entries)
	return id, meta, nil
}
