package cronus

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
)

type pakFile struct {
	name string
	data []byte
}

// literalLZSS はリテラルのみのフラグバイト方式 LZSS に変換します（テスト用）
func literalLZSS(data []byte) []byte {
	var out []byte
	for i := 0; i < len(data); i += 8 {
		out = append(out, 0xFF)
		out = append(out, data[i:min(i+8, len(data))]...)
	}
	return out
}

func buildPAK(keys PAKKeys, encrypted bool, files []pakFile) []byte {
	le := binary.LittleEndian

	var table bytes.Buffer
	var payload bytes.Buffer
	for _, f := range files {
		name := make([]byte, pakNameSize)
		copy(name, f.name)
		table.Write(name)
		_ = binary.Write(&table, le, uint32(payload.Len()))
		_ = binary.Write(&table, le, uint32(len(f.data)))
		payload.Write(f.data)
	}

	tableData := table.Bytes()
	var flag uint32
	if encrypted {
		flag = 1
		tableData = literalLZSS(tableData)
		key := deltaKey(pakTableKeyInput)
		crypto.NewKeystream(key, crypto.AdvanceAdd(key)).XORBytes(tableData)
	}

	var buf bytes.Buffer
	buf.WriteString(pakMagic)
	_ = binary.Write(&buf, le, flag)
	dataStart := uint32(len(pakMagic) + 12 + len(tableData))
	_ = binary.Write(&buf, le, uint32(len(files))^keys.Key1)
	_ = binary.Write(&buf, le, dataStart^keys.Key2)
	buf.Write(tableData)
	buf.Write(payload.Bytes())
	return buf.Bytes()
}

var sampleFiles = []pakFile{
	{name: "script.txt", data: []byte("hello, cherry")},
	{name: "\x93\x8c\x95\xfb.bmp", data: []byte("BM\x00\x01\x02")},
	{name: "bgm01.ogg", data: []byte("OggS....")},
}

func TestDeltaKey(t *testing.T) {
	if got := deltaKey("CHERRYSOFT"); got != 777 {
		t.Errorf("deltaKey() = %d, want 777", got)
	}
}

func TestPAK_PluginGuessing(t *testing.T) {
	tests := []struct {
		name       string
		keys       PAKKeys
		encrypted  bool
		wantPlugin string
	}{
		{"Doki Doki Princess (平文)", PAKKeys{0, 0}, false, "dokidoki"},
		{"Doki Doki Princess (暗号化)", PAKKeys{0, 0}, true, "dokidoki"},
		{"Sweet Pleasure (暗号化)", PAKKeys{0xBC138744, 0x64E0BA23}, true, "sweet"},
		{"Sweet Pleasure (平文)", PAKKeys{0xBC138744, 0x64E0BA23}, false, "sweet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := arc.NewFile("data.pak", buildPAK(tt.keys, tt.encrypted, sampleFiles))
			d := NewPAKDecoder()
			if !d.IsRecognized(f) {
				t.Fatal("IsRecognized() = false")
			}

			meta, err := arc.ReadMeta(d, f, nil)
			if err != nil {
				t.Fatalf("ReadMeta() error = %v", err)
			}
			if meta.Extra != tt.wantPlugin {
				t.Errorf("plugin = %v, want %s", meta.Extra, tt.wantPlugin)
			}

			saver := &collectSaver{}
			if err := d.Unpack(context.Background(), f, saver, nil); err != nil {
				t.Fatalf("Unpack() error = %v", err)
			}
			wantNames := []string{"script.txt", "東方.bmp", "bgm01.ogg"}
			if len(saver.files) != len(wantNames) {
				t.Fatalf("saved %d files, want %d", len(saver.files), len(wantNames))
			}
			for i, out := range saver.files {
				if out.Name != wantNames[i] {
					t.Errorf("files[%d].Name = %q, want %q", i, out.Name, wantNames[i])
				}
				if !bytes.Equal(out.Content, sampleFiles[i].data) {
					t.Errorf("files[%d].Content = %q, want %q", i, out.Content, sampleFiles[i].data)
				}
			}
		})
	}
}

func TestPAK_UnknownKeys(t *testing.T) {
	f := arc.NewFile("data.pak", buildPAK(PAKKeys{0x12345678, 0x9ABCDEF0}, true, sampleFiles))
	_, err := arc.ReadMeta(NewPAKDecoder(), f, nil)
	if !errors.Is(err, arc.ErrUnknownEncryptionScheme) {
		t.Errorf("ReadMeta() error = %v, want ErrUnknownEncryptionScheme", err)
	}
}

func TestPAK_SetPlugin(t *testing.T) {
	d := NewPAKDecoder()
	if got := d.Plugins(); !slices.Equal(got, []string{"dokidoki", "sweet"}) {
		t.Errorf("Plugins() = %v", got)
	}
	if err := d.SetPlugin("unknown"); !errors.Is(err, arc.ErrNotSupported) {
		t.Errorf("SetPlugin(unknown) error = %v, want ErrNotSupported", err)
	}

	// 違う鍵に固定すると推定は行われない
	if err := d.SetPlugin("dokidoki"); err != nil {
		t.Fatalf("SetPlugin() error = %v", err)
	}
	f := arc.NewFile("data.pak", buildPAK(PAKKeys{0xBC138744, 0x64E0BA23}, true, sampleFiles))
	if _, err := arc.ReadMeta(d, f, nil); !errors.Is(err, arc.ErrUnknownEncryptionScheme) {
		t.Errorf("ReadMeta() error = %v, want ErrUnknownEncryptionScheme", err)
	}

	if err := d.SetPlugin("sweet"); err != nil {
		t.Fatalf("SetPlugin() error = %v", err)
	}
	if _, err := arc.ReadMeta(d, f, nil); err != nil {
		t.Errorf("ReadMeta() error = %v", err)
	}
}

func TestPAK_EmptyArchiveRejected(t *testing.T) {
	f := arc.NewFile("empty.pak", buildPAK(PAKKeys{}, false, nil))
	_, err := arc.ReadMeta(NewPAKDecoder(), f, nil)
	if !errors.Is(err, arc.ErrUnknownEncryptionScheme) {
		t.Errorf("ReadMeta() error = %v, want ErrUnknownEncryptionScheme", err)
	}
}

type collectSaver struct {
	files []*arc.File
}

func (s *collectSaver) Save(f *arc.File) error {
	s.files = append(s.files, f)
	return nil
}
