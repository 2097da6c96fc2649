package arc

import "context"

// FileSaver はデコード結果を受け取るインターフェースです。
// 渡される File の名前はデコードしたままの名前です（リネームは FileSaver 側の責務）。
type FileSaver interface {
	Save(f *File) error
}

// FileSaverFunc は関数を FileSaver として使うためのアダプタです
type FileSaverFunc func(f *File) error

// Save は fn(f) を呼び出します
func (fn FileSaverFunc) Save(f *File) error {
	return fn(f)
}

// Decoder はすべての形式が実装するインターフェースです
type Decoder interface {
	// IsRecognized は f がこの形式かを返します。f を変更してはいけません。
	IsRecognized(f *File) bool

	// Unpack は f をデコードし、結果を saver に渡します
	Unpack(ctx context.Context, f *File, saver FileSaver, logger Logger) error
}

// ArchiveDecoder はディレクトリの読み込みとデータの取り出しを分けて行えるデコーダです
type ArchiveDecoder interface {
	Decoder

	// ReadMeta はヘッダとディレクトリを読み込みます
	ReadMeta(f *File, logger Logger) (*Meta, error)

	// ReadFile は1つのエントリのデータを取り出します。
	// 異なるエントリに対する呼び出しは互いに独立で、並行に実行できます。
	ReadFile(f *File, meta *Meta, e *Entry, logger Logger) (*File, error)
}

// ImageDecoder は1つの画像を出力するデコーダです
type ImageDecoder interface {
	Decoder
	Decode(f *File, logger Logger) (*Image, error)
}

// LinkedFormatter は出力が別の登録済み形式であることが多いデコーダが実装します
type LinkedFormatter interface {
	LinkedFormats() []string
}

// NamingStrategist は出力名の合成方法を指定するデコーダが実装します
type NamingStrategist interface {
	NamingStrategy() NamingStrategy
}

// NamingStrategy は入力名とデコード結果の名前の合成方法です
type NamingStrategy int

const (
	// NamingChild は入力名をディレクトリとして、その下に出力します（アーカイブの既定）
	NamingChild NamingStrategy = iota
	// NamingSibling は入力と同じディレクトリに、デコード結果の名前で出力します（変換の既定）
	NamingSibling
	// NamingRoot はデコード結果の名前をそのまま使います
	NamingRoot
)

// String は名前を返します
func (s NamingStrategy) String() string {
	switch s {
	case NamingChild:
		return "child"
	case NamingSibling:
		return "sibling"
	case NamingRoot:
		return "root"
	default:
		return "unknown"
	}
}

// StrategyOf は d の出力名の合成方法を返します。
// 指定がない場合、アーカイブは NamingChild、それ以外は NamingSibling です。
func StrategyOf(d Decoder) NamingStrategy {
	if ns, ok := d.(NamingStrategist); ok {
		return ns.NamingStrategy()
	}
	if _, ok := d.(ArchiveDecoder); ok {
		return NamingChild
	}
	return NamingSibling
}

// LinkedFormatsOf は d の関連形式を返します
func LinkedFormatsOf(d Decoder) []string {
	if lf, ok := d.(LinkedFormatter); ok {
		return lf.LinkedFormats()
	}
	return nil
}

// PluginSelector は暗号化パラメータなどの候補を持ち、候補の固定ができるデコーダが実装します
type PluginSelector interface {
	// Plugins は候補IDの一覧を返します
	Plugins() []string
	// SetPlugin は使用する候補を id に固定します。空文字列なら推定に戻します。
	SetPlugin(id string) error
}
