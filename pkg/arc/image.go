package arc

import (
	"bytes"
	"image"
	"image/png"
)

// Pixel は8ビットRGBAの1画素です
type Pixel struct {
	R, G, B, A uint8
}

// Image は行優先の画素バッファです
type Image struct {
	Width  int
	Height int
	Pix    []Pixel
}

// NewImage は width x height の画像を作成します
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]Pixel, width*height),
	}
}

// NewBlockImage は幅と高さを4の倍数に切り上げた画像を作成します（4x4ブロック圧縮用）
func NewBlockImage(width, height int) *Image {
	return NewImage((width+3)&^3, (height+3)&^3)
}

// At は (x, y) の画素を返します
func (im *Image) At(x, y int) Pixel {
	return im.Pix[y*im.Width+x]
}

// Set は (x, y) の画素を設定します
func (im *Image) Set(x, y int, p Pixel) {
	im.Pix[y*im.Width+x] = p
}

// Crop は左上から width x height を切り出した新しい画像を返します
func (im *Image) Crop(width, height int) *Image {
	width = min(width, im.Width)
	height = min(height, im.Height)
	if width == im.Width && height == im.Height {
		return im
	}
	out := NewImage(width, height)
	for y := 0; y < height; y++ {
		copy(out.Pix[y*width:(y+1)*width], im.Pix[y*im.Width:])
	}
	return out
}

// NRGBA は image.NRGBA に変換します
func (im *Image) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
	for i, p := range im.Pix {
		out.Pix[i*4+0] = p.R
		out.Pix[i*4+1] = p.G
		out.Pix[i*4+2] = p.B
		out.Pix[i*4+3] = p.A
	}
	return out
}

// EncodePNG は PNG 形式にエンコードします
func (im *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, im.NRGBA()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
