// Package gnu は gzip 圧縮されたファイルを扱います
package gnu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/gzip"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// GzipFormat は gzip の形式ID
const GzipFormat = "gnu/gzip"

const gzipMagic = "\x1f\x8b"

// GzipDecoder は gzip ストリームを展開する変換器です
type GzipDecoder struct{}

// Register は GNU の形式を登録します
func Register(r arc.Registrar) {
	r.Register(GzipFormat, func() arc.Decoder { return &GzipDecoder{} })
}

// IsRecognized はマジックが一致するかを返します
func (d *GzipDecoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, gzipMagic)
}

// Convert は f を展開したファイルを返します。
// 名前はヘッダに記録された元の名前、なければ f の名前から拡張子 .gz を除いたものです。
func (d *GzipDecoder) Convert(f *arc.File, logger arc.Logger) (*arc.File, error) {
	zr, err := gzip.NewReader(bytes.NewReader(f.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", arc.ErrCorruptData, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", arc.ErrCorruptData, err)
	}

	name := arc.ChangeSuffix(path.Base(f.Name), ".gz .gzip .tgz=.tar")
	if zr.Name != "" {
		// ヘッダの名前は ISO 8859-1 と決まっているが、実際には Shift-JIS のものもある
		name = path.Base(textenc.DecodeName([]byte(zr.Name)))
		logger.Printf("gzip header name: %s\n", name)
	}
	return arc.NewFile(name, data), nil
}

// Unpack は展開したファイルを saver に渡します
func (d *GzipDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
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
