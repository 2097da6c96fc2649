// Package lz4frame は LZ4 フレーム形式で圧縮されたファイルを扱います
package lz4frame

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/pierrec/lz4/v4"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

// LZ4Format は LZ4 フレームの形式ID
const LZ4Format = "lz4/frame"

const (
	lz4Magic       = "\x04\x22\x4d\x18"
	frameMagic     = 0x184D2204
	skippableMagic = 0x184D2A50
)

// フレーム記述子のフラグ
const (
	flagContentChecksum = 0x04
	flagContentSize     = 0x08
	flagBlockChecksum   = 0x10
)

// LZ4Decoder は LZ4 フレームを展開する変換器です
type LZ4Decoder struct{}

// Register は LZ4 形式を登録します
func Register(r arc.Registrar) {
	r.Register(LZ4Format, func() arc.Decoder { return &LZ4Decoder{} })
}

// IsRecognized はマジックが一致するかを返します
func (d *LZ4Decoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, lz4Magic)
}

// Convert は f を展開したファイルを返します。名前は f の名前から拡張子 .lz4 を除いたものです。
func (d *LZ4Decoder) Convert(f *arc.File, logger arc.Logger) (*arc.File, error) {
	// 読み込み側はブロックの境界で途切れたストリームを正常な終端として扱うので、先に構造を確かめる
	if ok, err := lz4.ValidFrameHeader(f.Content); err != nil {
		return nil, fmt.Errorf("%w: lz4: frame header: %w", arc.ErrCorruptData, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: lz4: invalid frame header", arc.ErrCorruptData)
	}
	if err := checkFrames(f.Content); err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", arc.ErrCorruptData, err)
	}
	data, err := io.ReadAll(lz4.NewReader(bytes.NewReader(f.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", arc.ErrCorruptData, err)
	}
	logger.Printf("lz4: %d -> %d bytes\n", len(f.Content), len(data))
	return arc.NewFile(arc.ChangeSuffix(path.Base(f.Name), ".lz4 .tlz4=.tar"), data), nil
}

// Unpack は展開したファイルを saver に渡します
func (d *LZ4Decoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	out, err := d.Convert(f, arc.OrNop(logger))
	if err != nil {
		return arc.NewDecodeError("decode", f.Name, err)
	}
	return saver.Save(out)
}

// checkFrames はフレームをブロックの長さに沿ってたどり、すべてのフレームが終端マークと
// チェックサムまで揃っていることを確かめます。スキップ可能なフレームは読み飛ばします。
func checkFrames(data []byte) error {
	r := binio.NewReader(data)
	for !r.EOF() {
		start := r.Tell()
		magic, err := r.ReadU32LE()
		if err != nil {
			return err
		}
		switch {
		case magic == frameMagic:
		case magic&0xFFFFFFF0 == skippableMagic:
			size, err := r.ReadU32LE()
			if err != nil {
				return err
			}
			if err := r.Skip(int(size)); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("unknown frame magic %#08x at %d", magic, start)
		}

		flags, err := r.ReadU8()
		if err != nil {
			return err
		}
		// BD と記述子のチェックサム、あれば内容のサイズ
		header := 2
		if flags&flagContentSize != 0 {
			header += 8
		}
		if err := r.Skip(header); err != nil {
			return err
		}

		for {
			size, err := r.ReadU32LE()
			if err != nil {
				return fmt.Errorf("frame at %d has no end mark: %w", start, err)
			}
			if size == 0 {
				break
			}
			n := int(size & 0x7FFFFFFF)
			if flags&flagBlockChecksum != 0 {
				n += 4
			}
			if err := r.Skip(n); err != nil {
				return err
			}
		}
		if flags&flagContentChecksum != 0 {
			if err := r.Skip(4); err != nil {
				return fmt.Errorf("frame at %d has no content checksum: %w", start, err)
			}
		}
	}
	return nil
}
