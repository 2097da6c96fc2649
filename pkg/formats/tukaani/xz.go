// Package tukaani は xz 圧縮されたファイルを扱います
package tukaani

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/therootcompany/xz"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

// XZFormat は xz の形式ID
const XZFormat = "tukaani/xz"

const xzMagic = "\xfd7zXZ\x00"

// XZDecoder は xz ストリームを展開する変換器です
type XZDecoder struct{}

// Register は Tukaani の形式を登録します
func Register(r arc.Registrar) {
	r.Register(XZFormat, func() arc.Decoder { return &XZDecoder{} })
}

// IsRecognized はマジックが一致するかを返します
func (d *XZDecoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, xzMagic)
}

// Convert は f を展開したファイルを返します。名前は f の名前から拡張子 .xz を除いたものです。
func (d *XZDecoder) Convert(f *arc.File, logger arc.Logger) (*arc.File, error) {
	zr, err := xz.NewReader(bytes.NewReader(f.Content), xz.DefaultDictMax)
	if err != nil {
		return nil, fmt.Errorf("%w: xz: %w", arc.ErrCorruptData, err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: xz: %w", arc.ErrCorruptData, err)
	}
	logger.Printf("xz: %d -> %d bytes\n", len(f.Content), len(data))
	return arc.NewFile(arc.ChangeSuffix(path.Base(f.Name), ".xz .txz=.tar"), data), nil
}

// Unpack は展開したファイルを saver に渡します
func (d *XZDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
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
