// Package fileutil はファイル操作のユーティリティ関数を提供します
package fileutil

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Input は入力ファイルのパスと、出力名の基準になる名前の組です
type Input struct {
	Path string
	// BaseName はファイルなら名前部分、ディレクトリ経由ならそのディレクトリからの相対パス（"/" 区切り）
	BaseName string
}

// ExpandInputs は入力パスを展開します。ディレクトリは再帰的にたどり、その中のファイルを名前順に返します。
func ExpandInputs(fsys FileSystem, paths []string) ([]Input, error) {
	var inputs []Input
	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadFile, p, err)
		}
		if !info.IsDir() {
			inputs = append(inputs, Input{Path: p, BaseName: filepath.Base(p)})
			continue
		}
		found, err := findInDir(fsys, p, "")
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, found...)
	}
	return inputs, nil
}

// findInDir は dir 以下のファイルを再帰的に検索します。rel は dir の基準ディレクトリからの相対パスです。
func findInDir(fsys FileSystem, dir, rel string) ([]Input, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadDirectory, dir, err)
	}

	var inputs []Input
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		r := path.Join(rel, entry.Name())
		if !entry.IsDir() {
			inputs = append(inputs, Input{Path: p, BaseName: r})
			continue
		}
		sub, err := findInDir(fsys, p, r)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, sub...)
	}
	return inputs, nil
}

// SafeJoin はアーカイブ内の名前 name を dir の下のパスに変換します。
// 名前の区切り文字は "/" です。dir の外を指す名前は ErrUnsafePath になります。
func SafeJoin(dir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	clean := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
		}
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}
