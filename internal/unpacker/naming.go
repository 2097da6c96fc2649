package unpacker

import (
	"fmt"
	"path"
	"strings"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

// BaseName は入力の相対パスから出力名の基準を作ります。
// 名前部分の拡張子の前に "~" を挟みます（"bgm/th10.dat" -> "bgm/th10~.dat"）。
// アーカイブの展開先ディレクトリが入力ファイルと衝突しないようにするためです。
func BaseName(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	dir, file := path.Split(rel)
	ext := path.Ext(file)
	return dir + strings.TrimSuffix(file, ext) + "~" + ext
}

// DecorateName は出力名の合成方法に従い、基準名とデコード結果の名前を合成します
func DecorateName(strategy arc.NamingStrategy, baseName, name string) string {
	switch strategy {
	case arc.NamingChild:
		if baseName == "" {
			return name
		}
		return path.Join(baseName, name)
	case arc.NamingSibling:
		dir := path.Dir(baseName)
		if baseName == "" || dir == "." {
			return name
		}
		return path.Join(dir, name)
	default:
		return name
	}
}

// UnnamedName は名前のない出力に付ける名前を返します。index は格納順の番号です。
func UnnamedName(index int) string {
	return fmt.Sprintf("unnamed-%04d", index)
}

// renamingSaver は保存前に名前を合成します
type renamingSaver struct {
	strategy arc.NamingStrategy
	baseName string
	next     arc.FileSaver
}

func (s *renamingSaver) Save(f *arc.File) error {
	return s.next.Save(arc.NewFile(DecorateName(s.strategy, s.baseName, f.Name), f.Content))
}
