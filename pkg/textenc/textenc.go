// Package textenc はアーカイブ内のファイル名の文字コード変換を行います
package textenc

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// FromShiftJIS はShift-JISからUTF-8に変換します
func FromShiftJIS(str string) (string, error) {
	reader := strings.NewReader(str)
	transformer := japanese.ShiftJIS.NewDecoder()
	ret, err := io.ReadAll(transform.NewReader(reader, transformer))
	if err != nil {
		return "", err
	}
	return string(ret), nil
}

// ToShiftJIS はUTF-8からShift-JISに変換します
func ToShiftJIS(str string) (string, error) {
	ret, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), str)
	if err != nil {
		return "", err
	}
	return ret, nil
}

// DecodeName はアーカイブ内のファイル名をUTF-8に変換し、区切り文字を "/" に揃えます。
// ASCIIのみの名前はそのまま使い、それ以外はShift-JISとして変換します。
// 変換できない場合は元のバイト列を使います。
func DecodeName(b []byte) string {
	name := string(b)
	if !isASCII(b) {
		if s, err := FromShiftJIS(name); err == nil && !strings.ContainsRune(s, utf8.RuneError) {
			name = s
		}
	}
	return ToSlash(name)
}

// ToSlash は区切り文字のバックスラッシュを "/" に置き換えます
func ToSlash(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
