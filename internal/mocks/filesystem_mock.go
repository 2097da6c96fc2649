// Package mocks はテスト用のモック実装を提供します
package mocks

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shiroemons/go-arcunpack/internal/fileutil"
)

// MockFileSystem はテスト用のファイルシステムモック
type MockFileSystem struct {
	Files map[string][]byte
	Dirs  map[string]bool
	Error error

	// Writes は WriteFile が呼ばれた順のパスです
	Writes []string
}

// NewMockFileSystem は新しいMockFileSystemを作成します
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files: make(map[string][]byte),
		Dirs:  make(map[string]bool),
	}
}

// FileExists はファイルが存在するか確認します
func (m *MockFileSystem) FileExists(filename string) bool {
	_, exists := m.Files[filename]
	return exists
}

// ReadFile はファイルを読み込みます
func (m *MockFileSystem) ReadFile(filename string) ([]byte, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	data, exists := m.Files[filename]
	if !exists {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

// WriteFile はファイルを書き込みます
func (m *MockFileSystem) WriteFile(filename string, data []byte, perm uint32) error {
	if m.Error != nil {
		return m.Error
	}
	m.Files[filename] = data
	m.Writes = append(m.Writes, filename)
	return nil
}

// MkdirAll はディレクトリを作成します
func (m *MockFileSystem) MkdirAll(path string, perm uint32) error {
	if m.Error != nil {
		return m.Error
	}
	m.Dirs[path] = true
	return nil
}

// Stat はファイル情報を取得します
func (m *MockFileSystem) Stat(name string) (fileutil.FileInfo, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	if data, exists := m.Files[name]; exists {
		return &MockFileInfo{name: filepath.Base(name), size: int64(len(data))}, nil
	}
	if m.isDir(name) {
		return &MockFileInfo{name: filepath.Base(name), isDir: true}, nil
	}
	return nil, fs.ErrNotExist
}

// isDir は明示的に登録されているか、配下にファイルがあるディレクトリかを返します
func (m *MockFileSystem) isDir(name string) bool {
	if m.Dirs[name] {
		return true
	}
	prefix := strings.TrimSuffix(name, "/") + "/"
	for p := range m.Files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// ReadDir はディレクトリの直下のエントリを名前順に返します
func (m *MockFileSystem) ReadDir(dirname string) ([]fileutil.DirEntry, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	if !m.isDir(dirname) {
		return nil, errors.New("directory not found")
	}

	prefix := strings.TrimSuffix(dirname, "/") + "/"
	children := make(map[string]bool) // 名前 -> ディレクトリか
	for p := range m.Files {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			name, _, nested := strings.Cut(rest, "/")
			children[name] = children[name] || nested
		}
	}
	for p := range m.Dirs {
		if rest, ok := strings.CutPrefix(p, prefix); ok && rest != "" {
			name, _, _ := strings.Cut(rest, "/")
			children[name] = true
		}
	}

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make([]fileutil.DirEntry, len(names))
	for i, name := range names {
		entries[i] = &MockDirEntry{name: name, isDir: children[name]}
	}
	return entries, nil
}

// MockFileInfo はテスト用のFileInfo実装
type MockFileInfo struct {
	name  string
	isDir bool
	size  int64
}

// Name はファイル名を返します
func (fi *MockFileInfo) Name() string { return fi.name }

// IsDir はディレクトリかどうかを返します
func (fi *MockFileInfo) IsDir() bool { return fi.isDir }

// Size はファイルサイズを返します
func (fi *MockFileInfo) Size() int64 { return fi.size }

// MockDirEntry はテスト用のDirEntry実装
type MockDirEntry struct {
	name  string
	isDir bool
}

// Name はエントリ名を返します
func (de *MockDirEntry) Name() string { return de.name }

// IsDir はディレクトリかどうかを返します
func (de *MockDirEntry) IsDir() bool { return de.isDir }
