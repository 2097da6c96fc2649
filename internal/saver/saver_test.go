package saver

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/shiroemons/go-arcunpack/internal/fileutil"
	"github.com/shiroemons/go-arcunpack/internal/mocks"
	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

func TestDisk_Save(t *testing.T) {
	tests := []struct {
		name      string
		overwrite bool
		existing  map[string][]byte
		file      *arc.File
		wantPath  string
		wantSaved bool
	}{
		{
			name:      "新規",
			file:      arc.NewFile("bgm/01.wav", []byte("new")),
			wantPath:  "out/bgm/01.wav",
			wantSaved: true,
		},
		{
			name:      "同じ内容はスキップ",
			existing:  map[string][]byte{"out/a.txt": []byte("same")},
			file:      arc.NewFile("a.txt", []byte("same")),
			wantPath:  "out/a.txt",
			wantSaved: false,
		},
		{
			name:      "異なる内容は連番",
			existing:  map[string][]byte{"out/a.txt": []byte("old")},
			file:      arc.NewFile("a.txt", []byte("new")),
			wantPath:  "out/a(1).txt",
			wantSaved: true,
		},
		{
			name: "連番も使用済み",
			existing: map[string][]byte{
				"out/a.txt":    []byte("old"),
				"out/a(1).txt": []byte("older"),
			},
			file:      arc.NewFile("a.txt", []byte("new")),
			wantPath:  "out/a(2).txt",
			wantSaved: true,
		},
		{
			name:      "上書き",
			overwrite: true,
			existing:  map[string][]byte{"out/a.txt": []byte("old")},
			file:      arc.NewFile("a.txt", []byte("new")),
			wantPath:  "out/a.txt",
			wantSaved: true,
		},
		{
			name:      "同じ長さで異なる内容は連番",
			existing:  map[string][]byte{"out/a.txt": []byte("abc")},
			file:      arc.NewFile("a.txt", []byte("abd")),
			wantPath:  "out/a(1).txt",
			wantSaved: true,
		},
		{
			name: "連番に同じ内容があればスキップ",
			existing: map[string][]byte{
				"out/a.txt":    []byte("old"),
				"out/a(1).txt": []byte("new"),
			},
			file:      arc.NewFile("a.txt", []byte("new")),
			wantPath:  "out/a(1).txt",
			wantSaved: false,
		},
		{
			name:      "拡張子なし",
			existing:  map[string][]byte{"out/v1.0/readme": []byte("old")},
			file:      arc.NewFile("v1.0/readme", []byte("new")),
			wantPath:  "out/v1.0/readme(1)",
			wantSaved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := mocks.NewMockFileSystem()
			for p, data := range tt.existing {
				fs.Files[p] = data
			}
			d := &Disk{FS: fs, OutputDir: "out", Overwrite: tt.overwrite}

			if err := d.Save(tt.file); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if tt.wantSaved {
				if !slices.Equal(d.Saved, []string{tt.wantPath}) {
					t.Errorf("Saved = %v, want [%s]", d.Saved, tt.wantPath)
				}
				if string(fs.Files[tt.wantPath]) != string(tt.file.Content) {
					t.Errorf("content at %s = %q", tt.wantPath, fs.Files[tt.wantPath])
				}
			} else if len(fs.Writes) != 0 {
				t.Errorf("Writes = %v, want none", fs.Writes)
			}
		})
	}
}

func TestDisk_Errors(t *testing.T) {
	t.Run("出力先の外", func(t *testing.T) {
		d := &Disk{FS: mocks.NewMockFileSystem(), OutputDir: "out"}
		err := d.Save(arc.NewFile("../../etc/passwd", []byte("x")))
		if !errors.Is(err, fileutil.ErrUnsafePath) {
			t.Errorf("Save() error = %v, want ErrUnsafePath", err)
		}
	})

	t.Run("ディレクトリ作成の失敗", func(t *testing.T) {
		fs := mocks.NewMockFileSystem()
		fs.Error = errors.New("disk full")
		d := &Disk{FS: fs, OutputDir: "out"}
		err := d.Save(arc.NewFile("a.txt", []byte("x")))
		if !errors.Is(err, fileutil.ErrCreateDirectory) {
			t.Errorf("Save() error = %v, want ErrCreateDirectory", err)
		}
	})
}

func TestDisk_OSFileSystem(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, false, nil)

	for _, content := range []string{"first", "first", "second"} {
		if err := d.Save(arc.NewFile("sub/data.bin", []byte(content))); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	want := []string{
		filepath.Join(dir, "sub", "data.bin"),
		filepath.Join(dir, "sub", "data(1).bin"),
	}
	if !slices.Equal(d.Saved, want) {
		t.Errorf("Saved = %v, want %v", d.Saved, want)
	}
	got, err := os.ReadFile(want[1])
	if err != nil || string(got) != "second" {
		t.Errorf("ReadFile() = %q, %v", got, err)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	m := &Memory{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Save(arc.NewFile("x", nil))
		}()
	}
	wg.Wait()

	if len(m.Files()) != 50 || len(m.Names()) != 50 {
		t.Errorf("saved %d files, want 50", len(m.Files()))
	}
}
