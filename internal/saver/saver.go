// Package saver はデコード結果の保存先を提供します
package saver

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/shiroemons/go-arcunpack/internal/fileutil"
	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

// 同名のファイルがある場合に試す連番の上限
const maxRenameAttempts = 10000

// Disk はファイルを OutputDir の下に書き込みます。
//
// Overwrite が false で保存先が既に存在する場合、内容が同じならスキップし、
// 異なれば "name(1).ext" のように連番を付けた名前で保存します。
type Disk struct {
	FS        fileutil.FileSystem
	OutputDir string
	Overwrite bool
	Logger    arc.Logger

	// Saved は保存したパスの一覧です（スキップしたものは含みません）
	Saved []string
}

// NewDisk は OS のファイルシステムに書き込む Disk を作成します
func NewDisk(outputDir string, overwrite bool, logger arc.Logger) *Disk {
	return &Disk{
		FS:        fileutil.NewOSFileSystem(),
		OutputDir: outputDir,
		Overwrite: overwrite,
		Logger:    arc.OrNop(logger),
	}
}

// Save は f を保存します
func (d *Disk) Save(f *arc.File) error {
	logger := arc.OrNop(d.Logger)

	target, err := fileutil.SafeJoin(d.OutputDir, f.Name)
	if err != nil {
		return err
	}
	if err := d.FS.MkdirAll(dirOf(target), 0o755); err != nil {
		return fmt.Errorf("%w: %w", fileutil.ErrCreateDirectory, err)
	}

	if !d.Overwrite {
		var skip bool
		target, skip, err = d.resolve(target, f.Content)
		if err != nil {
			return err
		}
		if skip {
			logger.Printf("%s: identical file exists, skipped\n", target)
			return nil
		}
	}

	if err := d.FS.WriteFile(target, f.Content, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", fileutil.ErrWriteFile, target, err)
	}
	d.Saved = append(d.Saved, target)
	logger.Printf("Saved %s (%d bytes)\n", target, len(f.Content))
	return nil
}

// resolve は既存のファイルと衝突しない保存先を返します。
// 同じ内容のファイルが既にある場合は skip が true になります。
func (d *Disk) resolve(target string, content []byte) (string, bool, error) {
	sum := xxhash.Sum64(content)
	base, ext := splitExt(target)

	candidate := target
	for i := 1; i <= maxRenameAttempts; i++ {
		if !d.FS.FileExists(candidate) {
			return candidate, false, nil
		}
		same, err := d.sameContent(candidate, len(content), sum)
		if err != nil {
			return "", false, err
		}
		if same {
			return candidate, true, nil
		}
		candidate = fmt.Sprintf("%s(%d)%s", base, i, ext)
	}
	return "", false, fmt.Errorf("%w: too many files named %s", fileutil.ErrWriteFile, target)
}

// sameContent は既存のファイルが長さ size でダイジェスト sum を持つかを返します。
// 内容そのものは比較しません。
func (d *Disk) sameContent(name string, size int, sum uint64) (bool, error) {
	existing, err := d.FS.ReadFile(name)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", fileutil.ErrReadFile, name, err)
	}
	if len(existing) != size {
		return false, nil
	}
	digest := xxhash.New()
	_, _ = digest.Write(existing)
	return digest.Sum64() == sum, nil
}

func dirOf(p string) string {
	i := strings.LastIndexAny(p, `/\`)
	if i < 0 {
		return "."
	}
	return p[:i]
}

// splitExt はパスを拡張子の前後に分けます。拡張子はディレクトリ部分には含まれません。
func splitExt(p string) (string, string) {
	name := p[strings.LastIndexAny(p, `/\`)+1:]
	ext := path.Ext(name)
	return p[:len(p)-len(ext)], ext
}

// Memory はファイルをメモリに集めます。並行に呼び出せます。
type Memory struct {
	mu    sync.Mutex
	files []*arc.File
}

// Save は f を記録します
func (m *Memory) Save(f *arc.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, f)
	return nil
}

// Files は保存された順のファイル一覧を返します
func (m *Memory) Files() []*arc.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*arc.File(nil), m.files...)
}

// Names は保存された順のファイル名を返します
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.files))
	for i, f := range m.files {
		names[i] = f.Name
	}
	return names
}
