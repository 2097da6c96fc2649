package unpickle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

func binUnicode(s string) []byte {
	b := []byte{'X', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[1:], uint32(len(s)))
	return append(b, s...)
}

func binInt(v uint32) []byte {
	b := []byte{'J', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[1:], v)
	return b
}

func TestUnpickle_Index(t *testing.T) {
	// {"a.txt": [(16, 5, "")], "b/c.png": [(300, 70000, "pre")]} をプロトコル2で書き出したもの
	var buf bytes.Buffer
	buf.Write([]byte{0x80, 0x02, '}', 'q', 0x01, '('})
	buf.Write(binUnicode("a.txt"))
	buf.Write([]byte{']', 'q', 0x02})
	buf.Write([]byte{'K', 16, 'K', 5, 'U', 0, 0x87, 'q', 0x03, 'a'})
	buf.Write(binUnicode("b/c.png"))
	buf.Write([]byte{']', 'r', 0x04, 0, 0, 0})
	buf.Write([]byte{'M', 0x2C, 0x01})
	buf.Write(binInt(70000))
	buf.Write([]byte{'U', 3, 'p', 'r', 'e', 0x87, 'a', 'u', '.'})

	res, err := Unpickle(buf.Bytes())
	if err != nil {
		t.Fatalf("Unpickle() error = %v", err)
	}
	wantStrings := []string{"a.txt", "", "b/c.png", "pre"}
	if !slices.Equal(res.Strings, wantStrings) {
		t.Errorf("Strings = %q, want %q", res.Strings, wantStrings)
	}
	wantNumbers := []int64{16, 5, 300, 70000}
	if !slices.Equal(res.Numbers, wantNumbers) {
		t.Errorf("Numbers = %v, want %v", res.Numbers, wantNumbers)
	}
}

func TestUnpickle(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantStrings []string
		wantNumbers []int64
		wantErr     error
	}{
		{
			name:        "LONG1",
			data:        []byte{0x8A, 0x03, 0x01, 0x02, 0x03, '.'},
			wantNumbers: []int64{0x030201},
		},
		{
			name:        "長さ0のLONG1",
			data:        []byte{0x8A, 0x00, '.'},
			wantNumbers: []int64{0},
		},
		{
			name:        "STOP以降は読まない",
			data:        []byte{'K', 7, '.', 'c', 'x'},
			wantNumbers: []int64{7},
		},
		{
			name:        "STOPなしで終端",
			data:        []byte{'U', 2, 'h', 'i'},
			wantStrings: []string{"hi"},
		},
		{
			name: "空データ",
			data: []byte{},
		},
		{
			name:    "未対応の命令",
			data:    []byte{0x80, 0x02, 'c', 'o', 's', '\n'},
			wantErr: ErrUnsupportedOpcode,
		},
		{
			name:    "9バイト以上のLONG1",
			data:    append([]byte{0x8A, 0x09}, make([]byte, 9)...),
			wantErr: ErrUnsupportedOpcode,
		},
		{
			name:    "文字列の途中で終端",
			data:    []byte{'U', 5, 'a', 'b'},
			wantErr: binio.ErrTruncatedRead,
		},
		{
			name:    "BINPUTの引数がない",
			data:    []byte{'q'},
			wantErr: binio.ErrTruncatedRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Unpickle(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Unpickle() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unpickle() error = %v", err)
			}
			if !slices.Equal(res.Strings, tt.wantStrings) {
				t.Errorf("Strings = %q, want %q", res.Strings, tt.wantStrings)
			}
			if !slices.Equal(res.Numbers, tt.wantNumbers) {
				t.Errorf("Numbers = %v, want %v", res.Numbers, tt.wantNumbers)
			}
		})
	}
}
