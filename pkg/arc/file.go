// Package arc はアーカイブ・画像デコーダの共通基盤を提供します。
//
// 主な機能:
//   - File, Entry, Meta, Image: デコード対象と結果のデータモデル
//   - Decoder, ArchiveDecoder, ImageDecoder: 各形式が実装するインターフェース
//   - Registry: 形式IDからデコーダを生成する不変のテーブル
//   - Guess: 登録済みの全形式で認識を試し、形式を推定
//   - ReadMeta, UnpackArchive, GuessPlugin: 2段階のアーカイブ読み込みと鍵の推定
package arc

import (
	"path"
	"strings"
)

// File は名前とデータの組です。
// Content の所有権は File にあり、デコーダは元データを変更しません。
type File struct {
	Name    string
	Content []byte
}

// NewFile は新しいFileを作成します
func NewFile(name string, content []byte) *File {
	return &File{Name: name, Content: content}
}

// Ext は名前の拡張子（"." を含む）を返します
func (f *File) Ext() string {
	return path.Ext(f.Name)
}

// HasExt は拡張子が ext と一致するかを大文字小文字を区別せずに返します
func (f *File) HasExt(ext string) bool {
	return strings.EqualFold(strings.TrimPrefix(f.Ext(), "."), strings.TrimPrefix(ext, "."))
}

// ChangeExt は拡張子を ext に置き換えます。拡張子がない場合は追加します。
func (f *File) ChangeExt(ext string) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	f.Name = strings.TrimSuffix(f.Name, f.Ext()) + ext
}

// ChangeSuffix は rules の規則に従って名前の末尾を置き換えます。
// rules は空白区切りで、"from" は削除、"from=to" は置換を表します。最初に一致した規則だけが使われます。
// 名前全体が from と一致する場合は変更しません。
func ChangeSuffix(name, rules string) string {
	for _, rule := range strings.Fields(rules) {
		from, to, _ := strings.Cut(rule, "=")
		if strings.HasSuffix(name, from) && len(name) > len(from) {
			return name[:len(name)-len(from)] + to
		}
	}
	return name
}
