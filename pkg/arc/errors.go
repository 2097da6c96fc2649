package arc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
	"github.com/shiroemons/go-arcunpack/pkg/unpickle"
)

// エラーの種類
var (
	// ErrTruncatedRead はデータ終端を越えて読み込もうとした場合のエラー
	ErrTruncatedRead = binio.ErrTruncatedRead

	// ErrCorruptData はデータが壊れている場合のエラー
	ErrCorruptData = errors.New("データが壊れています")

	// ErrNotSupported は未対応の形式・バージョンの場合のエラー
	ErrNotSupported = errors.New("未対応の形式です")

	// ErrUnsupportedOpcode は構造化データに未対応の命令が含まれる場合のエラー
	ErrUnsupportedOpcode = unpickle.ErrUnsupportedOpcode

	// ErrNotRecognized はどの形式としても認識されなかった場合のエラー
	ErrNotRecognized = errors.New("どの形式としても認識されませんでした")

	// ErrAmbiguousFormat は複数の形式として認識された場合のエラー
	ErrAmbiguousFormat = errors.New("複数の形式として認識されました")

	// ErrUnknownEncryptionScheme はどの暗号化パラメータでも検証に成功しなかった場合のエラー
	ErrUnknownEncryptionScheme = errors.New("未知の暗号化方式です")

	// ErrUnknownFormat は登録されていない形式IDが指定された場合のエラー
	ErrUnknownFormat = errors.New("未登録の形式です")
)

// AmbiguousFormatError は複数の形式として認識された場合のエラーです
type AmbiguousFormatError struct {
	Formats []string // 認識した形式ID（登録順）
}

// Error はエラーメッセージを返します
func (e *AmbiguousFormatError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAmbiguousFormat, strings.Join(e.Formats, ", "))
}

// Unwrap は ErrAmbiguousFormat を返します
func (e *AmbiguousFormatError) Unwrap() error {
	return ErrAmbiguousFormat
}

// DecodeError はデコード処理中のエラー
type DecodeError struct {
	Op   string // 実行していた操作
	Path string // ファイル名またはエントリ名
	Err  error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返します
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError は新しいDecodeErrorを作成します
func NewDecodeError(op, path string, err error) *DecodeError {
	return &DecodeError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

var kinds = []error{
	ErrAmbiguousFormat,
	ErrNotRecognized,
	ErrUnknownFormat,
	ErrUnknownEncryptionScheme,
	ErrUnsupportedOpcode,
	ErrNotSupported,
	ErrTruncatedRead,
	ErrCorruptData,
}

// Kind は err をエラーの種類（このパッケージのセンチネルエラー）に分類します。
// 下位パッケージのエラーも対応する種類に変換されます。分類できない場合は nil を返します。
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	switch {
	case errors.Is(err, crypto.ErrBackReference),
		errors.Is(err, binio.ErrInvalidSeek),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ErrCorruptData
	}
	return nil
}

// corrupt は ErrCorruptData を包んだエラーを作成します
func corrupt(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptData, fmt.Sprintf(format, a...))
}
