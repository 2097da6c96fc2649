package crypto

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestUNLZSS_TerminatorOnly(t *testing.T) {
	// 終端オフセット0のみのデータ
	// flag=0 (1ビット) + offset=0 (13ビット) = 14ビット = 0b00000000000000
	// バイト表現: 0x00, 0x00
	input := []byte{0x00, 0x00}
	in := bytes.NewReader(input)
	out := &bytes.Buffer{}

	err := UNLZSS(in, out)
	if err != nil {
		t.Errorf("UNLZSS() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("出力が空であるべき: got %d bytes", out.Len())
	}
}

func TestUNLZSS_SingleLiteral(t *testing.T) {
	// 1バイトのリテラル + 終端
	// flag=1 (1ビット) + literal=0x41 (8ビット) = 9ビット
	// flag=0 (1ビット) + offset=0 (13ビット) = 14ビット
	// 合計23ビット
	// バイト: 10100000 1_0000000 00000000
	//         0xA0      0x80      0x00
	// 実際: 1 01000001 0 0000000000000
	// = 1010 0000 | 1000 0000 | 0000 0...
	input := []byte{0xA0, 0x80, 0x00}
	in := bytes.NewReader(input)
	out := &bytes.Buffer{}

	err := UNLZSS(in, out)
	if err != nil {
		t.Errorf("UNLZSS() error = %v", err)
	}
	expected := []byte{0x41}
	if !bytes.Equal(out.Bytes(), expected) {
		t.Errorf("UNLZSS() = %v, want %v", out.Bytes(), expected)
	}
}

func TestUNLZSS_EmptyInput(t *testing.T) {
	input := []byte{}
	in := bytes.NewReader(input)
	out := &bytes.Buffer{}

	err := UNLZSS(in, out)
	if err != io.ErrUnexpectedEOF {
		t.Errorf("UNLZSS() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestUNLZSS_MultipleLiterals(t *testing.T) {
	// 複数のリテラル: 'A', 'B' + 終端
	// 1 01000001 | 1 01000010 | 0 0000000000000
	// = 10100000 | 11010000 | 10_00000 | 00000000
	// = 0xA0, 0xD0, 0x80, 0x00
	input := []byte{0xA0, 0xD0, 0x80, 0x00}
	in := bytes.NewReader(input)
	out := &bytes.Buffer{}

	err := UNLZSS(in, out)
	if err != nil {
		t.Errorf("UNLZSS() error = %v", err)
	}
	expected := []byte{0x41, 0x42}
	if !bytes.Equal(out.Bytes(), expected) {
		t.Errorf("UNLZSS() = %v, want %v", out.Bytes(), expected)
	}
}

func TestUNLZSS_SelfOverlappingCopy(t *testing.T) {
	// 'A' のリテラル + 参照位置1・長さ5 (フィールド値2) + 終端
	// 書き込み中の領域と重なる参照は1バイトずつコピーされる
	input := []byte{0xA0, 0x80, 0x02, 0x40, 0x00, 0x00}
	out := &bytes.Buffer{}

	if err := UNLZSS(bytes.NewReader(input), out); err != nil {
		t.Fatalf("UNLZSS() error = %v", err)
	}
	if got := out.String(); got != "AAAAAA" {
		t.Errorf("UNLZSS() = %q, want %q", got, "AAAAAA")
	}
}

func TestUNLZSSWith_BackReferenceBeforeStart(t *testing.T) {
	strict := TouhouLZSS
	strict.PresetWindow = false

	// 何も出力していない状態で参照位置5を参照する
	input := []byte{0x00, 0x14, 0x00, 0x00}
	err := UNLZSSWith(bytes.NewReader(input), &bytes.Buffer{}, strict)
	if !errors.Is(err, ErrBackReference) {
		t.Errorf("UNLZSSWith() error = %v, want ErrBackReference", err)
	}
}

func TestLZSSBytewise(t *testing.T) {
	strict := LZSSParams{
		WindowSize: 0x1000,
		InitialPos: 0,
		OffsetBits: 12,
		LengthBits: 4,
		MinMatch:   3,
		Terminator: -1,
	}

	tests := []struct {
		name    string
		data    []byte
		outSize int
		params  LZSSParams
		want    []byte
		wantErr error
	}{
		{
			name: "リテラルと自己重複コピー",
			// control=0b0111: リテラル3つ + 参照 (0xFEE, 長さ6)
			data:    []byte{0x07, 'a', 'b', 'c', 0xEE, 0xF3},
			outSize: 9,
			params:  OkumuraLZSS,
			want:    []byte("abcabcabc"),
		},
		{
			name:    "初期化済み辞書の参照",
			data:    []byte{0x00, 0x00, 0x00},
			outSize: 3,
			params:  OkumuraLZSS,
			want:    []byte{0, 0, 0},
		},
		{
			name:    "出力サイズで打ち切り",
			data:    []byte{0x07, 'a', 'b', 'c', 0xEE, 0xF3},
			outSize: 5,
			params:  OkumuraLZSS,
			want:    []byte("abcab"),
		},
		{
			name:    "厳密モードでの正しい参照",
			data:    []byte{0x01, 'x', 0x00, 0x00},
			outSize: 4,
			params:  strict,
			want:    []byte("xxxx"),
		},
		{
			name:    "厳密モードで先頭より前を参照",
			data:    []byte{0x00, 0x10, 0x00},
			outSize: 3,
			params:  strict,
			wantErr: ErrBackReference,
		},
		{
			name:    "入力不足",
			data:    []byte{0xFF, 'a'},
			outSize: 4,
			params:  OkumuraLZSS,
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LZSSBytewise(tt.data, tt.outSize, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("LZSSBytewise() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LZSSBytewise() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("LZSSBytewise() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLZSSBytewise_InvalidParams(t *testing.T) {
	p := OkumuraLZSS
	p.WindowSize = 1000
	if _, err := LZSSBytewise([]byte{0xFF}, 1, p); err == nil {
		t.Error("LZSSBytewise() should reject a window size that is not a power of two")
	}
	p = OkumuraLZSS
	p.LengthBits = 5
	if _, err := LZSSBytewise([]byte{0xFF}, 1, p); err == nil {
		t.Error("LZSSBytewise() should reject a layout that is not 16 bits wide")
	}
}
