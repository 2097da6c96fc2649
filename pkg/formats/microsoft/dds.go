// Package microsoft は DirectDraw Surface (DDS) 画像を扱います
package microsoft

import (
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/dxt"
)

// DDSFormat は DDS 画像の形式ID
const DDSFormat = "microsoft/dds"

const (
	ddsMagic       = "DDS "
	ddsHeaderSize  = 124
	dx10HeaderSize = 20

	ddpfFourCC = 0x4
	ddpfRGB    = 0x40
)

// ddsHeader は DDS_HEADER のうちデコードに使う項目です
type ddsHeader struct {
	height      uint32
	width       uint32
	pfFlags     uint32
	fourCC      string
	rgbBitCount uint32
}

// DDSDecoder は DDS 画像のデコーダです。
// DXT1/DXT3/DXT5 と非圧縮の32ビット BGRA に対応します。
type DDSDecoder struct{}

// Register は Microsoft の形式を登録します
func Register(r arc.Registrar) {
	r.Register(DDSFormat, func() arc.Decoder { return &DDSDecoder{} })
}

// IsRecognized はマジックが一致するかを返します
func (d *DDSDecoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, ddsMagic)
}

func readDDSHeader(r *binio.Reader) (*ddsHeader, error) {
	if err := r.Skip(len(ddsMagic)); err != nil {
		return nil, err
	}
	raw, err := r.Sub(r.Tell(), ddsHeaderSize)
	if err != nil {
		return nil, err
	}
	if err := r.Skip(ddsHeaderSize); err != nil {
		return nil, err
	}

	h := &ddsHeader{}
	// size, flags の次が height, width
	_ = raw.Seek(8)
	if h.height, err = raw.ReadU32LE(); err != nil {
		return nil, err
	}
	if h.width, err = raw.ReadU32LE(); err != nil {
		return nil, err
	}
	// pitch, depth, mipmap, reserved[11], ddspf.size を飛ばす
	_ = raw.Seek(76)
	if h.pfFlags, err = raw.ReadU32LE(); err != nil {
		return nil, err
	}
	fourCC, err := raw.Read(4)
	if err != nil {
		return nil, err
	}
	h.fourCC = string(fourCC)
	if h.rgbBitCount, err = raw.ReadU32LE(); err != nil {
		return nil, err
	}
	return h, nil
}

// Decode は画像を展開します。ブロック圧縮の場合、幅と高さは4の倍数に切り上げられます。
func (d *DDSDecoder) Decode(f *arc.File, logger arc.Logger) (*arc.Image, error) {
	r := binio.NewReader(f.Content)
	h, err := readDDSHeader(r)
	if err != nil {
		return nil, err
	}
	if h.fourCC == "DX10" {
		if err := r.Skip(dx10HeaderSize); err != nil {
			return nil, err
		}
	}
	data := f.Content[r.Tell():]
	width, height := int(h.width), int(h.height)

	switch {
	case h.pfFlags&ddpfFourCC != 0:
		var blockSize int
		var decode func([]byte, int, int) (*arc.Image, error)
		switch h.fourCC {
		case "DXT1":
			blockSize, decode = dxt.DXT1BlockSize, dxt.DecodeDXT1
		case "DXT3":
			blockSize, decode = dxt.DXT3BlockSize, dxt.DecodeDXT3
		case "DXT5":
			blockSize, decode = dxt.DXT5BlockSize, dxt.DecodeDXT5
		default:
			return nil, fmt.Errorf("%w: %q textures", arc.ErrNotSupported, h.fourCC)
		}
		blocks := (uint64(h.width) + 3) / 4 * ((uint64(h.height) + 3) / 4)
		if err := need(data, blocks, blockSize); err != nil {
			return nil, err
		}
		logger.Printf("DDS %s %dx%d\n", h.fourCC, width, height)
		return decode(data, width, height)

	case h.pfFlags&ddpfRGB != 0 && h.rgbBitCount == 32:
		if err := need(data, uint64(h.width)*uint64(h.height), 4); err != nil {
			return nil, err
		}
		logger.Printf("DDS BGRA8888 %dx%d\n", width, height)
		return dxt.DecodeBGRA8888(data, width, height)

	default:
		return nil, fmt.Errorf("%w: pixel format flags 0x%X, %d bits", arc.ErrNotSupported, h.pfFlags, h.rgbBitCount)
	}
}

// need は画像の確保前に count 個の unit バイト単位が data に収まるかを確認します
func need(data []byte, count uint64, unit int) error {
	if count > uint64(len(data)/unit) {
		return fmt.Errorf("%w: pixel data needs %d units of %d bytes, have %d bytes", binio.ErrTruncatedRead, count, unit, len(data))
	}
	return nil
}

// Unpack は画像を PNG に変換して saver に渡します
func (d *DDSDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackImage(ctx, d, f, saver, logger)
}
