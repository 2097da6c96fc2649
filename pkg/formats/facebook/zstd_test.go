package facebook

import (
	"context"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestZstd_Unpack(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
	}{
		{"拡張子 .zst を除く", "save/slot1.bin.zst", "slot1.bin"},
		{"拡張子 .zstd を除く", "voice.pak.zstd", "voice.pak"},
		{"tzst は tar", "assets.tzst", "assets.tar"},
		{"拡張子なし", "blob", "blob"},
	}

	payload := []byte("zstandard compressed game data")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := arc.NewFile(tt.input, compress(t, payload))
			d := &ZstdDecoder{}
			if !d.IsRecognized(f) {
				t.Fatal("IsRecognized() = false")
			}

			var got *arc.File
			saver := arc.FileSaverFunc(func(out *arc.File) error {
				got = out
				return nil
			})
			if err := d.Unpack(context.Background(), f, saver, nil); err != nil {
				t.Fatalf("Unpack() error = %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if string(got.Content) != string(payload) {
				t.Errorf("Content = %q", got.Content)
			}
		})
	}
}

func TestZstd_Errors(t *testing.T) {
	d := &ZstdDecoder{}

	t.Run("壊れたデータ", func(t *testing.T) {
		data := compress(t, []byte("some data that will be cut short"))
		_, err := d.Convert(arc.NewFile("a.zst", data[:len(data)-6]), arc.NopLogger{})
		if !errors.Is(err, arc.ErrCorruptData) {
			t.Errorf("Convert() error = %v, want ErrCorruptData", err)
		}
	})

	t.Run("マジック不一致", func(t *testing.T) {
		if d.IsRecognized(arc.NewFile("a.zst", []byte{0x28, 0xb5, 0x2f})) {
			t.Error("IsRecognized() = true for short input")
		}
	})

	t.Run("キャンセル", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := d.Unpack(ctx, arc.NewFile("a.zst", compress(t, []byte("x"))), arc.FileSaverFunc(func(*arc.File) error {
			t.Error("Save() must not be called")
			return nil
		}), nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Unpack() error = %v, want context.Canceled", err)
		}
	})
}
