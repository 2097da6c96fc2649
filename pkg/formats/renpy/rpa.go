// Package renpy は Ren'Py のアーカイブ形式を扱います
package renpy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/unpickle"
)

// RPAFormat は RPA アーカイブの形式ID
const RPAFormat = "renpy/rpa"

const (
	rpaMagic3 = "RPA-3.0 "
	rpaMagic2 = "RPA-2.0 "
)

// RPADecoder は Ren'Py の RPA アーカイブのデコーダです。
//
// ヘッダ: "RPA-3.0 " + 16桁の16進数（テーブル位置）+ " " + 8桁の16進数（鍵）
// RPA-2.0 は鍵がなく 0 として扱います。
// テーブルは zlib 圧縮された pickle で、エントリごとに
// 文字列2つ（名前, 先頭に付加するバイト列）と整数2つ（オフセット, サイズ）が現れます。
// 整数は鍵との XOR です。
type RPADecoder struct{}

// Register は Ren'Py の形式を登録します
func Register(r arc.Registrar) {
	r.Register(RPAFormat, func() arc.Decoder { return &RPADecoder{} })
}

func rpaVersion(data []byte) int {
	switch {
	case binio.HasPrefix(data, rpaMagic3):
		return 3
	case binio.HasPrefix(data, rpaMagic2):
		return 2
	default:
		return 0
	}
}

// IsRecognized はマジックが一致するかを返します
func (d *RPADecoder) IsRecognized(f *arc.File) bool {
	return rpaVersion(f.Content) != 0
}

func readHex(r *binio.Reader, digits int) (uint64, error) {
	b, err := r.Read(digits)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid hex number %q", arc.ErrCorruptData, b)
	}
	return v, nil
}

// ReadMeta はテーブルを展開してエントリ一覧を読み込みます。
// 先頭に付加するバイト列がある場合は Entry.Extra ([]byte) に入ります。
func (d *RPADecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	version := rpaVersion(f.Content)
	if version == 0 {
		return nil, fmt.Errorf("%w: unknown RPA version", arc.ErrNotSupported)
	}

	r := binio.NewReader(f.Content)
	if err := r.Skip(len(rpaMagic3)); err != nil {
		return nil, err
	}
	tableOffset, err := readHex(r, 16)
	if err != nil {
		return nil, err
	}
	var key uint64
	if version == 3 {
		if err := r.Skip(1); err != nil {
			return nil, err
		}
		if key, err = readHex(r, 8); err != nil {
			return nil, err
		}
	}

	if tableOffset > uint64(len(f.Content)) {
		return nil, fmt.Errorf("%w: table offset 0x%X out of range", arc.ErrCorruptData, tableOffset)
	}
	table, err := inflate(f.Content[tableOffset:])
	if err != nil {
		return nil, err
	}
	res, err := unpickle.Unpickle(table)
	if err != nil {
		return nil, err
	}
	return decodeTable(res, key)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: table: %w", arc.ErrCorruptData, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: table: %w", arc.ErrCorruptData, err)
	}
	return out, nil
}

// decodeTable は文字列と整数を組み合わせてエントリを作ります。
// i 番目のエントリは Strings[2i] (名前), Strings[2i+1] (先頭のバイト列),
// Numbers[2i] (オフセット), Numbers[2i+1] (サイズ) です。
// 先頭のバイト列を持たない古い形式（整数が名前の2倍）は未対応です。
func decodeTable(res *unpickle.Result, key uint64) (*arc.Meta, error) {
	if len(res.Strings) > 0 && len(res.Numbers) == 2*len(res.Strings) {
		// 実物のサンプルで確認できていない形式なので推測で読まない
		return nil, fmt.Errorf("%w: unvalidated table without prefixes (%d names, %d numbers)",
			arc.ErrNotSupported, len(res.Strings), len(res.Numbers))
	}
	if len(res.Strings)%2 != 0 || len(res.Numbers) != len(res.Strings) {
		return nil, fmt.Errorf("%w: table with %d strings and %d numbers",
			arc.ErrNotSupported, len(res.Strings), len(res.Numbers))
	}

	count := len(res.Strings) / 2
	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, count)}
	for i := 0; i < count; i++ {
		e := &arc.Entry{
			Path:   res.Strings[i*2],
			Offset: uint64(res.Numbers[i*2]) ^ key,
			Size:   uint64(res.Numbers[i*2+1]) ^ key,
		}
		if prefix := res.Strings[i*2+1]; prefix != "" {
			e.Extra = []byte(prefix)
		}
		meta.Entries = append(meta.Entries, e)
	}
	return meta, nil
}

// ReadFile は先頭のバイト列とデータを連結して取り出します
func (d *RPADecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	prefix, _ := e.Extra.([]byte)
	out := make([]byte, 0, len(prefix)+len(data))
	out = append(out, prefix...)
	out = append(out, data...)
	return arc.NewFile(e.Path, out), nil
}

// Unpack はすべてのエントリを取り出します
func (d *RPADecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
