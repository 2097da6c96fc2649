// Package cronus は Cronus のゲームで使われるアーカイブ形式を扱います
package cronus

import (
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// PAKFormat は Cronus PAK アーカイブの形式ID
const PAKFormat = "cronus/pak"

const (
	pakMagic         = "CHERRY PACK 2.0\x00"
	pakEntrySize     = 24
	pakNameSize      = 16
	pakTableKeyInput = "CHERRYSOFT"

	// フラグバイト方式の LZSS は2バイトの参照から最大18バイトを出力する
	maxLZSSRatio = 9
)

// PAKKeys はファイル数とデータ開始位置の XOR 鍵です
type PAKKeys struct {
	Key1 uint32
	Key2 uint32
}

// PAKDecoder は Cronus PAK アーカイブのデコーダです。
// ヘッダには鍵の識別子がないため、既知の鍵を順に試して検証します。
type PAKDecoder struct {
	plugins *arc.PluginSet[PAKKeys]
	pinned  string
}

// NewPAKDecoder は既知の鍵を登録したデコーダを作成します
func NewPAKDecoder() *PAKDecoder {
	plugins := &arc.PluginSet[PAKKeys]{}
	plugins.Add("dokidoki", "Doki Doki Princess", PAKKeys{0x00000000, 0x00000000})
	plugins.Add("sweet", "Sweet Pleasure", PAKKeys{0xBC138744, 0x64E0BA23})
	return &PAKDecoder{plugins: plugins}
}

// Register は Cronus の形式を登録します
func Register(r arc.Registrar) {
	r.Register(PAKFormat, func() arc.Decoder { return NewPAKDecoder() })
}

// Plugins は鍵の候補IDを返します
func (d *PAKDecoder) Plugins() []string {
	return d.plugins.Names()
}

// SetPlugin は使用する鍵を固定します
func (d *PAKDecoder) SetPlugin(id string) error {
	if _, err := d.plugins.Only(id); err != nil {
		return err
	}
	d.pinned = id
	return nil
}

// IsRecognized はマジックが一致するかを返します
func (d *PAKDecoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, pakMagic)
}

// deltaKey はテーブルの復号鍵です（鍵文字列のバイト値の和）
func deltaKey(s string) uint32 {
	var key uint32
	for i := 0; i < len(s); i++ {
		key += uint32(s[i])
	}
	return key
}

// ReadMeta は鍵を推定してエントリ一覧を読み込みます。
// 選択された鍵のIDは Meta.Extra に格納されます。
func (d *PAKDecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	logger = arc.OrNop(logger)
	r := binio.NewReader(f.Content)
	if err := r.Skip(len(pakMagic)); err != nil {
		return nil, err
	}
	flag, err := r.ReadU32LE()
	if err != nil {
		return nil, err
	}
	encrypted := flag > 0
	pos := r.Tell()

	plugins, err := d.plugins.Only(d.pinned)
	if err != nil {
		return nil, err
	}
	p, meta, err := arc.GuessPlugin(plugins, uint64(len(f.Content)), func(keys PAKKeys) (*arc.Meta, error) {
		return readTable(f.Content, pos, keys, encrypted)
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Printf("%s: using plugin %s (%s)\n", f.Name, p.ID, p.Name)
	meta.Extra = p.ID
	return meta, nil
}

func readTable(data []byte, pos int, keys PAKKeys, encrypted bool) (*arc.Meta, error) {
	r := binio.NewReader(data)
	if err := r.Seek(pos); err != nil {
		return nil, err
	}
	count, err := r.ReadU32LE()
	if err != nil {
		return nil, err
	}
	dataStart, err := r.ReadU32LE()
	if err != nil {
		return nil, err
	}
	count ^= keys.Key1
	dataStart ^= keys.Key2

	if uint64(dataStart) < uint64(r.Tell()) || uint64(dataStart) > uint64(r.Size()) {
		return nil, fmt.Errorf("%w: data start 0x%X out of range", arc.ErrCorruptData, dataStart)
	}
	table, err := r.Read(int(dataStart) - r.Tell())
	if err != nil {
		return nil, err
	}

	tableSize := uint64(count) * pakEntrySize
	if encrypted {
		if tableSize > uint64(len(table))*maxLZSSRatio {
			return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", arc.ErrCorruptData, count, len(table))
		}
		key := deltaKey(pakTableKeyInput)
		crypto.NewKeystream(key, crypto.AdvanceAdd(key)).XORBytes(table)
		table, err = crypto.LZSSBytewise(table, int(tableSize), crypto.OkumuraLZSS)
		if err != nil {
			return nil, err
		}
	} else if tableSize > uint64(len(table)) {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", arc.ErrCorruptData, count, len(table))
	}

	tr := binio.NewReader(table)
	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, count)}
	for i := uint32(0); i < count; i++ {
		name, err := tr.ReadZeroPadded(pakNameSize)
		if err != nil {
			return nil, err
		}
		offset, err := tr.ReadU32LE()
		if err != nil {
			return nil, err
		}
		size, err := tr.ReadU32LE()
		if err != nil {
			return nil, err
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   textenc.DecodeName(name),
			Offset: uint64(offset) + uint64(dataStart),
			Size:   uint64(size),
		})
	}
	return meta, nil
}

// ReadFile はエントリのデータをそのまま取り出します
func (d *PAKDecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	return arc.NewFile(e.Path, append([]byte(nil), data...)), nil
}

// Unpack はすべてのエントリを取り出します
func (d *PAKDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
