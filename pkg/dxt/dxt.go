// Package dxt は DXT1/DXT3/DXT5 (BC1-BC3) の4x4ブロック圧縮を展開します
package dxt

import (
	"encoding/binary"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

// ブロックのバイト数
const (
	DXT1BlockSize = 8
	DXT3BlockSize = 16
	DXT5BlockSize = 16
)

// BGR565 は16ビット色を8ビットRGBAに展開します（アルファは255）
func BGR565(v uint16) arc.Pixel {
	return arc.Pixel{
		B: uint8(v&0x1F) << 3,
		G: uint8((v>>5)&0x3F) << 2,
		R: uint8(v>>11) << 3,
		A: 0xFF,
	}
}

func channels(p arc.Pixel) [4]int {
	return [4]int{int(p.R), int(p.G), int(p.B), int(p.A)}
}

func fromChannels(c [4]int) arc.Pixel {
	return arc.Pixel{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2]), A: uint8(c[3])}
}

// DecodeColorBlock は8バイトの色ブロックを行優先の16画素に展開します。
// 色0のすべてのチャンネルが色1以下の場合は透過モードで、色2は中間色、色3は全チャンネル0です。
func DecodeColorBlock(b [8]byte) [16]arc.Pixel {
	var palette [4]arc.Pixel
	palette[0] = BGR565(binary.LittleEndian.Uint16(b[0:]))
	palette[1] = BGR565(binary.LittleEndian.Uint16(b[2:]))

	c0, c1 := channels(palette[0]), channels(palette[1])
	transparent := true
	for i := range c0 {
		if c0[i] > c1[i] {
			transparent = false
			break
		}
	}

	var c2, c3 [4]int
	for i := range c0 {
		if transparent {
			c2[i] = (c0[i] + c1[i]) >> 1
			c3[i] = 0
		} else {
			c2[i] = (c0[i]*2 + c1[i]) / 3
			c3[i] = (c1[i]*2 + c0[i]) / 3
		}
	}
	palette[2] = fromChannels(c2)
	palette[3] = fromChannels(c3)

	var out [16]arc.Pixel
	lookup := binary.LittleEndian.Uint32(b[4:])
	for i := range out {
		out[i] = palette[lookup&3]
		lookup >>= 2
	}
	return out
}

// DecodeDXT5AlphaBlock は8バイトの補間アルファブロックを行優先の16画素分に展開します
func DecodeDXT5AlphaBlock(b [8]byte) [16]uint8 {
	var alpha [8]int
	alpha[0], alpha[1] = int(b[0]), int(b[1])
	if alpha[0] > alpha[1] {
		for i := 2; i < 8; i++ {
			alpha[i] = ((8-i)*alpha[0] + (i-1)*alpha[1]) / 7
		}
	} else {
		for i := 2; i < 6; i++ {
			alpha[i] = ((6-i)*alpha[0] + (i-1)*alpha[1]) / 5
		}
		alpha[6] = 0
		alpha[7] = 255
	}

	var out [16]uint8
	for group := 0; group < 2; group++ {
		p := b[2+group*3:]
		lookup := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
		for j := 0; j < 8; j++ {
			out[group*8+j] = uint8(alpha[lookup&7])
			lookup >>= 3
		}
	}
	return out
}

// DecodeDXT3AlphaBlock は8バイトの4ビット明示アルファを行優先の16画素分に展開します。
// 各バイトの上位4ビットが左の画素です。
func DecodeDXT3AlphaBlock(b [8]byte) [16]uint8 {
	var out [16]uint8
	for i, v := range b {
		out[i*2] = v & 0xF0
		out[i*2+1] = (v & 0x0F) << 4
	}
	return out
}

// blockDecoder は1ブロック分のデータから16画素を作ります
type blockDecoder func(block []byte) [16]arc.Pixel

func decodeBlocks(data []byte, width, height, blockSize int, decode blockDecoder) (*arc.Image, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid image size: %dx%d", width, height)
	}
	img := arc.NewBlockImage(width, height)
	r := binio.NewReader(data)
	for by := 0; by < img.Height; by += 4 {
		for bx := 0; bx < img.Width; bx += 4 {
			block, err := r.Read(blockSize)
			if err != nil {
				return nil, err
			}
			px := decode(block)
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					img.Set(bx+x, by+y, px[y*4+x])
				}
			}
		}
	}
	return img, nil
}

// DecodeDXT1 は DXT1 で圧縮された画像を展開します。幅と高さは4の倍数に切り上げられます。
func DecodeDXT1(data []byte, width, height int) (*arc.Image, error) {
	return decodeBlocks(data, width, height, DXT1BlockSize, func(block []byte) [16]arc.Pixel {
		return DecodeColorBlock([8]byte(block))
	})
}

// DecodeDXT3 は DXT3 で圧縮された画像を展開します
func DecodeDXT3(data []byte, width, height int) (*arc.Image, error) {
	return decodeBlocks(data, width, height, DXT3BlockSize, func(block []byte) [16]arc.Pixel {
		alpha := DecodeDXT3AlphaBlock([8]byte(block[:8]))
		return withAlpha(DecodeColorBlock([8]byte(block[8:])), alpha)
	})
}

// DecodeDXT5 は DXT5 で圧縮された画像を展開します
func DecodeDXT5(data []byte, width, height int) (*arc.Image, error) {
	return decodeBlocks(data, width, height, DXT5BlockSize, func(block []byte) [16]arc.Pixel {
		alpha := DecodeDXT5AlphaBlock([8]byte(block[:8]))
		return withAlpha(DecodeColorBlock([8]byte(block[8:])), alpha)
	})
}

func withAlpha(px [16]arc.Pixel, alpha [16]uint8) [16]arc.Pixel {
	for i := range px {
		px[i].A = alpha[i]
	}
	return px
}

// DecodeBGRA8888 は非圧縮の32ビットBGRA画像を展開します（サイズの切り上げはしません）
func DecodeBGRA8888(data []byte, width, height int) (*arc.Image, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid image size: %dx%d", width, height)
	}
	img := arc.NewImage(width, height)
	r := binio.NewReader(data)
	raw, err := r.Read(width * height * 4)
	if err != nil {
		return nil, err
	}
	for i := range img.Pix {
		p := raw[i*4:]
		img.Pix[i] = arc.Pixel{B: p[0], G: p[1], R: p[2], A: p[3]}
	}
	return img, nil
}
