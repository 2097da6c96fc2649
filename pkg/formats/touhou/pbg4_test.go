package touhou

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

// buildPBG4 は compress が false のファイルを LZSS にせずそのまま格納します（壊れたデータのテスト用）
func buildPBG4(files []tha1File) []byte {
	var body bytes.Buffer
	var list bytes.Buffer
	le := func(w *bytes.Buffer, v uint32) { _ = binary.Write(w, binary.LittleEndian, v) }

	for _, f := range files {
		payload := f.content
		if f.compress {
			payload = literalLZSS(f.content)
		}
		list.WriteString(f.name)
		list.WriteByte(0)
		le(&list, uint32(pbg4HeaderSize+body.Len()))
		le(&list, uint32(len(f.content)))
		le(&list, 0)
		body.Write(payload)
	}

	var out bytes.Buffer
	out.WriteString(pbg4Magic)
	le(&out, uint32(len(files)))
	le(&out, uint32(pbg4HeaderSize+body.Len()))
	le(&out, uint32(list.Len()))
	out.Write(body.Bytes())
	out.Write(literalLZSS(list.Bytes()))
	return out.Bytes()
}

var pbg4Files = []tha1File{
	{name: "th07logo.jpg", content: []byte("\xff\xd8\xff\xe0 not really a jpeg"), compress: true},
	{name: "music/th07_01.wav", content: bytes.Repeat([]byte{0x10, 0x20}, 300), compress: true},
}

func TestPBG4_Unpack(t *testing.T) {
	f := arc.NewFile("th07.dat", buildPBG4(pbg4Files))
	d := &PBG4Decoder{}
	if !d.IsRecognized(f) {
		t.Fatal("IsRecognized() = false")
	}

	saver := &collectSaver{}
	if err := d.Unpack(context.Background(), f, saver, nil); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if len(saver.files) != len(pbg4Files) {
		t.Fatalf("saved %d files, want %d", len(saver.files), len(pbg4Files))
	}
	for i, want := range pbg4Files {
		got := saver.files[i]
		if got.Name != want.name || !bytes.Equal(got.Content, want.content) {
			t.Errorf("files[%d] = %q (%d bytes), want %q (%d bytes)", i, got.Name, len(got.Content), want.name, len(want.content))
		}
	}
}

func TestPBG4_ReadMeta(t *testing.T) {
	f := arc.NewFile("th07.dat", buildPBG4(pbg4Files))
	meta, err := arc.ReadMeta(&PBG4Decoder{}, f, nil)
	if err != nil {
		t.Fatalf("ReadMeta() error = %v", err)
	}
	if len(meta.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(meta.Entries))
	}
	first := uint64(len(literalLZSS(pbg4Files[0].content)))
	if meta.Entries[0].Offset != pbg4HeaderSize || meta.Entries[0].Size != first {
		t.Errorf("entries[0] = [%d, +%d), want [16, +%d)", meta.Entries[0].Offset, meta.Entries[0].Size, first)
	}
	if meta.Entries[1].Offset != pbg4HeaderSize+first {
		t.Errorf("entries[1].Offset = %d, want %d", meta.Entries[1].Offset, pbg4HeaderSize+first)
	}
}

func TestPBG4_Errors(t *testing.T) {
	d := &PBG4Decoder{}

	t.Run("一覧の位置が範囲外", func(t *testing.T) {
		data := buildPBG4(pbg4Files)
		binary.LittleEndian.PutUint32(data[8:], uint32(len(data)+1))
		if d.IsRecognized(arc.NewFile("a.dat", data)) {
			t.Error("IsRecognized() = true for list offset past the end")
		}
	})

	t.Run("壊れた圧縮データ", func(t *testing.T) {
		f := arc.NewFile("a.dat", buildPBG4([]tha1File{{name: "bad.bin", content: []byte{0x80}}}))
		err := d.Unpack(context.Background(), f, &collectSaver{}, nil)
		if !errors.Is(err, arc.ErrCorruptData) {
			t.Errorf("Unpack() error = %v, want ErrCorruptData", err)
		}
	})

	t.Run("エントリ数が多すぎる", func(t *testing.T) {
		data := buildPBG4(pbg4Files)
		binary.LittleEndian.PutUint32(data[4:], 1000)
		_, err := arc.ReadMeta(d, arc.NewFile("a.dat", data), nil)
		if !errors.Is(err, arc.ErrCorruptData) {
			t.Errorf("ReadMeta() error = %v, want ErrCorruptData", err)
		}
	})
}
