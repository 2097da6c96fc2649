package touhou

import (
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
)

// YumemiFormat は Yumemi アーカイブの形式ID
const YumemiFormat = "touhou/yumemi"

const (
	yumemiHeaderSize = 16
	yumemiEntrySize  = 32
	yumemiNameSize   = 13
	yumemiListStep   = 0x51
)

// yumemiInfo は Entry.Extra に入るエントリ固有の情報です
type yumemiInfo struct {
	key      byte
	origSize uint16
}

// YumemiDecoder は東方紅魔郷世代のアーカイブのデコーダです。マジックはありません。
//
// ヘッダ: u16 一覧のサイズ（ヘッダを含む）, u16 予約, u16 エントリ数, u8 一覧の鍵, 9バイト予約
// エントリ (32バイト): u16 マジック (0x9595 / 0xF388), u8 鍵, 8.3形式の名前 13バイト,
// u16 格納サイズ, u16 元のサイズ, u32 オフセット, 8バイト予約
//
// 一覧は鍵が1バイトごとに 0x51 ずつ増える XOR、データはエントリの鍵の XOR です。
type YumemiDecoder struct{}

type yumemiHeader struct {
	listSize uint16
	count    uint16
	key      byte
}

func readYumemiHeader(data []byte) (*yumemiHeader, error) {
	r := binio.NewReader(data)
	h := &yumemiHeader{}
	var err error
	if h.listSize, err = r.ReadU16LE(); err != nil {
		return nil, err
	}
	if err := r.Skip(2); err != nil {
		return nil, err
	}
	if h.count, err = r.ReadU16LE(); err != nil {
		return nil, err
	}
	if h.key, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if int(h.listSize) > len(data) || h.listSize < yumemiHeaderSize {
		return nil, fmt.Errorf("%w: list size %d, data size %d", arc.ErrCorruptData, h.listSize, len(data))
	}
	if h.listSize&0x1F != 0 || int(h.listSize)/yumemiEntrySize < int(h.count) {
		return nil, fmt.Errorf("%w: list size %d for %d entries", arc.ErrCorruptData, h.listSize, h.count)
	}
	return h, nil
}

func (h *yumemiHeader) decryptList(data []byte) []byte {
	list := append([]byte(nil), data[yumemiHeaderSize:h.listSize]...)
	crypto.NewKeystream(uint32(h.key), crypto.AdvanceAdd(yumemiListStep)).XORBytes(list)
	return list
}

func validEntryMagic(m uint16) bool {
	return m == 0x9595 || m == 0xF388
}

// IsRecognized はヘッダが妥当で、最初のエントリのマジックが一致するかを返します
func (d *YumemiDecoder) IsRecognized(f *arc.File) bool {
	h, err := readYumemiHeader(f.Content)
	if err != nil || h.count == 0 || int(h.listSize)-yumemiHeaderSize < yumemiEntrySize {
		return false
	}
	r := binio.NewReader(h.decryptList(f.Content))
	m, err := r.ReadU16LE()
	return err == nil && validEntryMagic(m)
}

// ReadMeta はエントリ一覧を読み込みます。マジックが0のエントリで一覧は終わります。
func (d *YumemiDecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	h, err := readYumemiHeader(f.Content)
	if err != nil {
		return nil, err
	}
	r := binio.NewReader(h.decryptList(f.Content))

	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, h.count)}
	for i := 0; i < int(h.count) && r.Remaining() >= yumemiEntrySize; i++ {
		magic, _ := r.ReadU16LE()
		if magic == 0 {
			break
		}
		if !validEntryMagic(magic) {
			return nil, fmt.Errorf("%w: entry %d: invalid magic 0x%04X", arc.ErrCorruptData, i, magic)
		}
		key, _ := r.ReadU8()
		rawName, _ := r.Read(yumemiNameSize)
		compSize, _ := r.ReadU16LE()
		origSize, _ := r.ReadU16LE()
		offset, _ := r.ReadU32LE()
		if err := r.Skip(8); err != nil {
			return nil, err
		}

		name, ok := validShortName(rawName)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d: invalid name %q", arc.ErrCorruptData, i, rawName)
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   name,
			Offset: uint64(offset),
			Size:   uint64(compSize),
			Extra:  yumemiInfo{key: key, origSize: origSize},
		})
	}
	if len(meta.Entries) == 0 && h.count > 0 {
		return nil, fmt.Errorf("%w: no valid entries", arc.ErrCorruptData)
	}
	return meta, nil
}

// ReadFile はエントリの鍵で XOR したデータを返します
func (d *YumemiDecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	info, ok := e.Extra.(yumemiInfo)
	if !ok {
		return nil, fmt.Errorf("%w: entry %q has no Yumemi info", arc.ErrCorruptData, e.Path)
	}
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ info.key
	}
	if uint64(info.origSize) != e.Size {
		logger.Printf("%s: stored %d bytes, original %d bytes\n", e.Path, e.Size, info.origSize)
	}
	return arc.NewFile(e.Path, out), nil
}

// Unpack はすべてのエントリを取り出します
func (d *YumemiDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}

// validShortName は0終端の8.3形式の名前を検証し、名前部分を返します
func validShortName(b []byte) (string, bool) {
	isChar := func(c byte) bool {
		return c >= ' ' && c != '+' && c != ',' && c != ';' && c != '=' && c != '[' && c != ']' && c != '.'
	}

	i := 0
	for i < 8 && i < len(b) && isChar(b[i]) {
		i++
	}
	if i == 0 {
		return "", false
	}
	j := 0
	if i < len(b) && b[i] == '.' {
		j = 1
		for j < 4 && i+j < len(b) && isChar(b[i+j]) {
			j++
		}
		if j == 1 {
			return "", false
		}
	}
	if i+j >= len(b) || b[i+j] != 0 {
		return "", false
	}
	return string(b[:i+j]), true
}
