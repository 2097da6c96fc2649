package fileutil

import "errors"

var (
	// ErrCreateDirectory は出力先ディレクトリの作成に失敗した場合のエラー
	ErrCreateDirectory = errors.New("出力先ディレクトリの作成に失敗しました")

	// ErrWriteFile はファイルの書き込みに失敗した場合のエラー
	ErrWriteFile = errors.New("ファイルの書き込みに失敗しました")

	// ErrReadFile はファイルの読み込みに失敗した場合のエラー
	ErrReadFile = errors.New("ファイルの読み込みに失敗しました")

	// ErrReadDirectory はディレクトリ内のファイル一覧を取得できない場合のエラー
	ErrReadDirectory = errors.New("ディレクトリ内のファイル一覧を取得できませんでした")

	// ErrUnsafePath は出力先ディレクトリの外を指す名前の場合のエラー
	ErrUnsafePath = errors.New("出力先ディレクトリの外を指すパスです")
)
