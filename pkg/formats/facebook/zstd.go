// Package facebook は zstd 圧縮されたファイルを扱います
package facebook

import (
	"context"
	"fmt"
	"path"

	"github.com/klauspost/compress/zstd"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

// ZstdFormat は zstd の形式ID
const ZstdFormat = "facebook/zstd"

const zstdMagic = "\x28\xb5\x2f\xfd"

// zstd.Decoder は並行に利用できるので、すべての変換で共有する
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("zstd decoder initialization failed: " + err.Error())
	}
}

// ZstdDecoder は zstd フレームを展開する変換器です
type ZstdDecoder struct{}

// Register は zstd 形式を登録します
func Register(r arc.Registrar) {
	r.Register(ZstdFormat, func() arc.Decoder { return &ZstdDecoder{} })
}

// IsRecognized はマジックが一致するかを返します
func (d *ZstdDecoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, zstdMagic)
}

// Convert は f を展開したファイルを返します。名前は f の名前から拡張子 .zst を除いたものです。
func (d *ZstdDecoder) Convert(f *arc.File, logger arc.Logger) (*arc.File, error) {
	data, err := zstdDecoder.DecodeAll(f.Content, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", arc.ErrCorruptData, err)
	}
	logger.Printf("zstd: %d -> %d bytes\n", len(f.Content), len(data))
	return arc.NewFile(arc.ChangeSuffix(path.Base(f.Name), ".zst .zstd .tzst=.tar"), data), nil
}

// Unpack は展開したファイルを saver に渡します
func (d *ZstdDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
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
