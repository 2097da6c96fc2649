package arc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

// magicDecoder は先頭のマジックだけで認識するテスト用デコーダです
type magicDecoder struct {
	magic string
}

func (d *magicDecoder) IsRecognized(f *File) bool {
	return binio.HasPrefix(f.Content, d.magic)
}

func (d *magicDecoder) Unpack(ctx context.Context, f *File, saver FileSaver, logger Logger) error {
	return saver.Save(NewFile(f.Name, f.Content))
}

// tableArchive は固定のディレクトリを返すテスト用アーカイブデコーダです
type tableArchive struct {
	entries []Entry
	readErr error
}

func (d *tableArchive) IsRecognized(f *File) bool { return true }

func (d *tableArchive) Unpack(ctx context.Context, f *File, saver FileSaver, logger Logger) error {
	return UnpackArchive(ctx, d, f, saver, logger)
}

func (d *tableArchive) ReadMeta(f *File, logger Logger) (*Meta, error) {
	if d.readErr != nil {
		return nil, d.readErr
	}
	meta := &Meta{}
	for i := range d.entries {
		e := d.entries[i]
		meta.Entries = append(meta.Entries, &e)
	}
	return meta, nil
}

func (d *tableArchive) ReadFile(f *File, meta *Meta, e *Entry, logger Logger) (*File, error) {
	data, err := SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	return NewFile(e.Path, append([]byte(nil), data...)), nil
}

// recordLogger は出力を記録する Logger です
type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordLogger) Printf(format string, a ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, strings.TrimSuffix(fmt.Sprintf(format, a...), "\n"))
}

// memorySaver は保存されたファイルを記録する FileSaver です
type memorySaver struct {
	files []*File
}

func (s *memorySaver) Save(f *File) error {
	s.files = append(s.files, f)
	return nil
}
