package microsoft

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image/png"
	"testing"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

func buildDDS(width, height uint32, pfFlags uint32, fourCC string, bits uint32, extra int, data []byte) []byte {
	header := make([]byte, ddsHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(header[0:], ddsHeaderSize)
	le.PutUint32(header[4:], 0x1007)
	le.PutUint32(header[8:], height)
	le.PutUint32(header[12:], width)
	le.PutUint32(header[72:], 32)
	le.PutUint32(header[76:], pfFlags)
	copy(header[80:84], fourCC)
	le.PutUint32(header[84:], bits)

	var buf bytes.Buffer
	buf.WriteString(ddsMagic)
	buf.Write(header)
	buf.Write(make([]byte, extra))
	buf.Write(data)
	return buf.Bytes()
}

type collectSaver struct {
	files []*arc.File
}

func (s *collectSaver) Save(f *arc.File) error {
	s.files = append(s.files, f)
	return nil
}

func TestDDS_Decode(t *testing.T) {
	white := arc.Pixel{R: 0xF8, G: 0xFC, B: 0xF8, A: 0xFF}

	tests := []struct {
		name       string
		data       []byte
		wantWidth  int
		wantHeight int
		check      func(t *testing.T, img *arc.Image)
	}{
		{
			name:       "DXT1",
			data:       buildDDS(4, 4, ddpfFourCC, "DXT1", 0, 0, []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}),
			wantWidth:  4,
			wantHeight: 4,
			check: func(t *testing.T, img *arc.Image) {
				if got := img.At(2, 2); got != white {
					t.Errorf("At(2, 2) = %+v, want %+v", got, white)
				}
			},
		},
		{
			name: "DXT5 は4の倍数に切り上げ",
			data: buildDDS(3, 2, ddpfFourCC, "DXT5", 0, 0, []byte{
				0x80, 0x80, 0, 0, 0, 0, 0, 0,
				0xFF, 0xFF, 0, 0, 0, 0, 0, 0,
			}),
			wantWidth:  4,
			wantHeight: 4,
			check: func(t *testing.T, img *arc.Image) {
				if got := img.At(0, 0).A; got != 0x80 {
					t.Errorf("At(0, 0).A = %d, want 128", got)
				}
			},
		},
		{
			name:       "BGRA8888",
			data:       buildDDS(2, 1, ddpfRGB, "", 32, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
			wantWidth:  2,
			wantHeight: 1,
			check: func(t *testing.T, img *arc.Image) {
				if got, want := img.At(1, 0), (arc.Pixel{B: 5, G: 6, R: 7, A: 8}); got != want {
					t.Errorf("At(1, 0) = %+v, want %+v", got, want)
				}
			},
		},
		{
			name:       "DX10 拡張ヘッダを読み飛ばす",
			data:       buildDDS(1, 1, ddpfRGB, "DX10", 32, dx10HeaderSize, []byte{9, 8, 7, 6}),
			wantWidth:  1,
			wantHeight: 1,
			check: func(t *testing.T, img *arc.Image) {
				if got, want := img.At(0, 0), (arc.Pixel{B: 9, G: 8, R: 7, A: 6}); got != want {
					t.Errorf("At(0, 0) = %+v, want %+v", got, want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := arc.NewFile("tex.dds", tt.data)
			d := &DDSDecoder{}
			if !d.IsRecognized(f) {
				t.Fatal("IsRecognized() = false")
			}
			img, err := d.Decode(f, arc.NopLogger{})
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if img.Width != tt.wantWidth || img.Height != tt.wantHeight {
				t.Fatalf("size = %dx%d, want %dx%d", img.Width, img.Height, tt.wantWidth, tt.wantHeight)
			}
			tt.check(t, img)
		})
	}
}

func TestDDS_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"未対応の fourCC", buildDDS(4, 4, ddpfFourCC, "ATI2", 0, 0, make([]byte, 16)), arc.ErrNotSupported},
		{"24ビット RGB", buildDDS(1, 1, ddpfRGB, "", 24, 0, make([]byte, 3)), arc.ErrNotSupported},
		{"画素データ不足", buildDDS(8, 8, ddpfFourCC, "DXT1", 0, 0, make([]byte, 16)), arc.ErrTruncatedRead},
		{"巨大な画像サイズ", buildDDS(0xFFFFFFFF, 0xFFFFFFFF, ddpfRGB, "", 32, 0, nil), arc.ErrTruncatedRead},
		{"ヘッダ不足", []byte("DDS \x7c\x00\x00\x00"), arc.ErrTruncatedRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&DDSDecoder{}).Decode(arc.NewFile("bad.dds", tt.data), arc.NopLogger{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDDS_Unpack(t *testing.T) {
	f := arc.NewFile("chara/face.dds", buildDDS(4, 4, ddpfFourCC, "DXT1", 0, 0, []byte{0xFF, 0xFF, 0, 0, 0, 0, 0, 0}))
	saver := &collectSaver{}
	if err := (&DDSDecoder{}).Unpack(context.Background(), f, saver, nil); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if len(saver.files) != 1 {
		t.Fatalf("saved %d files, want 1", len(saver.files))
	}
	out := saver.files[0]
	if out.Name != "chara/face.png" {
		t.Errorf("Name = %q, want chara/face.png", out.Name)
	}
	img, err := png.Decode(bytes.NewReader(out.Content))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("PNG size = %v, want 4x4", b)
	}
}
