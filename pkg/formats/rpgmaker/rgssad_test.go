package rpgmaker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
)

type rgssFile struct {
	name string
	data []byte
}

// buildRGSSAD は RGSSAD を作成します。XOR 暗号なので暗号化は復号と同じ操作です。
func buildRGSSAD(files []rgssFile) []byte {
	var buf bytes.Buffer
	buf.WriteString(rgssadMagic)

	ks := crypto.NewKeystream(rgssadInitialKey, crypto.AdvanceRGSS)
	for _, f := range files {
		_ = binary.Write(&buf, binary.LittleEndian, ks.XORUint32(uint32(len(f.name))))
		name := []byte(f.name)
		ks.XORBytes(name)
		buf.Write(name)
		_ = binary.Write(&buf, binary.LittleEndian, ks.XORUint32(uint32(len(f.data))))

		data := bytes.Clone(f.data)
		crypto.NewKeystream(ks.Key(), crypto.AdvanceRGSS).XORWordsLE(data)
		buf.Write(data)
	}
	return buf.Bytes()
}

type collectSaver struct {
	files []*arc.File
}

func (s *collectSaver) Save(f *arc.File) error {
	s.files = append(s.files, f)
	return nil
}

func TestRGSSAD_Unpack(t *testing.T) {
	files := []rgssFile{
		{name: `Data\Scripts.rxdata`, data: []byte("script data, 23 bytes!!")},
		{name: `Graphics\Titles\title.png`, data: []byte("\x89PNG\r\n\x1a\n")},
		{name: `Audio\empty.ogg`, data: nil},
		{name: `Data\odd.bin`, data: []byte{1, 2, 3, 4, 5, 6, 7}},
	}
	f := arc.NewFile("Game.rgssad", buildRGSSAD(files))
	d := &RGSSADDecoder{}

	if !d.IsRecognized(f) {
		t.Fatal("IsRecognized() = false")
	}

	saver := &collectSaver{}
	if err := d.Unpack(context.Background(), f, saver, nil); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}

	// サイズ0のエントリは出力されない
	want := []rgssFile{
		{name: "Data/Scripts.rxdata", data: files[0].data},
		{name: "Graphics/Titles/title.png", data: files[1].data},
		{name: "Data/odd.bin", data: files[3].data},
	}
	if len(saver.files) != len(want) {
		t.Fatalf("saved %d files, want %d", len(saver.files), len(want))
	}
	for i, w := range want {
		if saver.files[i].Name != w.name {
			t.Errorf("files[%d].Name = %q, want %q", i, saver.files[i].Name, w.name)
		}
		if !bytes.Equal(saver.files[i].Content, w.data) {
			t.Errorf("files[%d].Content = % X, want % X", i, saver.files[i].Content, w.data)
		}
	}
}

func TestRGSSAD_FirstEntryKey(t *testing.T) {
	// 名前の長さ・名前1バイト・サイズで鍵が3回進む
	f := arc.NewFile("Game.rgssad", buildRGSSAD([]rgssFile{{name: "a", data: []byte("x")}}))
	meta, err := (&RGSSADDecoder{}).ReadMeta(f, nil)
	if err != nil {
		t.Fatalf("ReadMeta() error = %v", err)
	}
	// 0xDEADCAFE -> 0x16C08CF5 -> 0x9F43DAB6 -> 0x5ADAFAFD
	if key := meta.Entries[0].Extra.(uint32); key != 0x5ADAFAFD {
		t.Errorf("entry key = 0x%08X, want 0x5ADAFAFD", key)
	}
	if meta.Entries[0].Offset != uint64(len(rgssadMagic)+4+1+4) {
		t.Errorf("offset = %d", meta.Entries[0].Offset)
	}
}

func TestRGSSAD_Truncated(t *testing.T) {
	data := buildRGSSAD([]rgssFile{{name: "a.txt", data: []byte("0123456789")}})
	f := arc.NewFile("Game.rgssad", data[:len(data)-3])

	_, err := arc.ReadMeta(&RGSSADDecoder{}, f, nil)
	if !errors.Is(err, arc.ErrTruncatedRead) {
		t.Errorf("ReadMeta() error = %v, want ErrTruncatedRead", err)
	}
}

func TestRGSSAD_IsRecognized(t *testing.T) {
	d := &RGSSADDecoder{}
	if d.IsRecognized(arc.NewFile("x", []byte("RGSSAD\x00\x02"))) {
		t.Error("IsRecognized() should reject other versions")
	}
}
