package touhou

import (
	"context"
	"errors"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// MarisaFormat は Marisa アーカイブの形式ID
const MarisaFormat = "touhou/marisa"

const marisaHeaderSize = 6

// 一覧の暗号化方式
const (
	marisaListMT  = "mt19937"
	marisaListXOR = "xor"
)

// MarisaDecoder は Marisa アーカイブのデコーダです。マジックはありません。
//
// ヘッダ: u16 エントリ数, u32 一覧のサイズ
// エントリ: u32 オフセット, u32 サイズ, u8 名前の長さ, 名前
//
// 一覧は MT19937 (シードは一覧のサイズ+6) の鍵列、古いものは鍵 0xC5 から増分が加速する XOR で暗号化されています。
// データはオフセットから求めた1バイトの鍵の XOR です。
type MarisaDecoder struct{}

type marisaHeader struct {
	count    uint16
	listSize uint32
}

func readMarisaHeader(data []byte) (*marisaHeader, error) {
	r := binio.NewReader(data)
	h := &marisaHeader{}
	var err error
	if h.count, err = r.ReadU16LE(); err != nil {
		return nil, err
	}
	if h.listSize, err = r.ReadU32LE(); err != nil {
		return nil, err
	}
	if h.count == 0 || h.listSize == 0 {
		return nil, fmt.Errorf("%w: empty file list", arc.ErrCorruptData)
	}
	if uint64(h.listSize)+marisaHeaderSize > uint64(len(data)) {
		return nil, fmt.Errorf("%w: list size %d, data size %d", arc.ErrCorruptData, h.listSize, len(data))
	}
	return h, nil
}

func (h *marisaHeader) parse(list []byte, size int) (*arc.Meta, error) {
	// オフセット + サイズ + 名前の長さ
	if int(h.count)*9 > len(list) {
		return nil, fmt.Errorf("%w: %d entries in %d-byte list", arc.ErrCorruptData, h.count, len(list))
	}
	dataStart := uint64(h.listSize) + marisaHeaderSize

	r := binio.NewReader(list)
	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, h.count)}
	for i := 0; i < int(h.count); i++ {
		offset, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		length, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		nameLen, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		name, err := r.Read(int(nameLen))
		if err != nil {
			return nil, err
		}
		if nameLen == 0 {
			return nil, fmt.Errorf("%w: entry %d has no name", arc.ErrCorruptData, i)
		}
		if uint64(offset) < dataStart || uint64(offset)+uint64(length) > uint64(size) {
			return nil, fmt.Errorf("%w: entry %d [%d, +%d) out of range", arc.ErrCorruptData, i, offset, length)
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   textenc.DecodeName(name),
			Offset: uint64(offset),
			Size:   uint64(length),
		})
	}
	return meta, nil
}

// readMarisaList は MT19937 で復号した一覧を試し、解析できなければ XOR で復号した一覧を試します
func readMarisaList(data []byte, logger arc.Logger) (*arc.Meta, error) {
	h, err := readMarisaHeader(data)
	if err != nil {
		return nil, err
	}
	enc := data[marisaHeaderSize : marisaHeaderSize+int(h.listSize)]

	list := append([]byte(nil), enc...)
	crypto.NewMT19937(h.listSize + marisaHeaderSize).XORBytes(list)
	meta, errMT := h.parse(list, len(data))
	if errMT == nil {
		logger.Printf("Marisa file list is encrypted with %s\n", marisaListMT)
		meta.Extra = marisaListMT
		return meta, nil
	}

	list = append(list[:0], enc...)
	xorAccelerating(list, 0xC5, 0x89, 0x49)
	meta, errXOR := h.parse(list, len(data))
	if errXOR == nil {
		logger.Printf("Marisa file list is encrypted with %s\n", marisaListXOR)
		meta.Extra = marisaListXOR
		return meta, nil
	}
	return nil, fmt.Errorf("file list: %w", errors.Join(errMT, errXOR))
}

// IsRecognized はどちらかの方式で一覧を復号できるかを返します
func (d *MarisaDecoder) IsRecognized(f *arc.File) bool {
	_, err := readMarisaList(f.Content, arc.NopLogger{})
	return err == nil
}

// ReadMeta はファイル一覧を読み込みます。Meta.Extra は一覧の暗号化方式です。
func (d *MarisaDecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	return readMarisaList(f.Content, logger)
}

// ReadFile はエントリを復号します
func (d *MarisaDecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	key := byte(e.Offset>>1 | 0x23)
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key
	}
	return arc.NewFile(e.Path, out), nil
}

// Unpack はすべてのエントリを取り出します
func (d *MarisaDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
