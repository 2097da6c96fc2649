package touhou

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// PBGZFormat は PBGZ アーカイブの形式ID
const PBGZFormat = "touhou/pbgz"

const (
	pbgzMagic      = "PBGZ"
	pbgzHeaderSize = 16

	// ヘッダ値の補正定数
	pbgzFileCountOffset  = 123456
	pbgzListOffsetOffset = 345678
	pbgzListSizeOffset   = 567891

	// 各エントリの先頭に付く "edz" + 種別の長さ
	edzHeaderSize = 4
)

var (
	pbgzHeaderCrypt = crypto.THCryptParam{Key: 0x1b, Step: 0x37, Block: 0x0c, Limit: 0x400}
	pbgzListCrypt   = crypto.THCryptParam{Key: 0x3e, Step: 0x9b, Block: 0x80, Limit: 0x400}
)

// typedParam はエントリの種別バイトと暗号化パラメータの組です
type typedParam struct {
	typ byte
	crypto.THCryptParam
}

// 永夜抄
var inParams = []typedParam{
	{0x4d, crypto.THCryptParam{Key: 0x1b, Step: 0x37, Block: 0x40, Limit: 0x2000}},
	{0x54, crypto.THCryptParam{Key: 0x51, Step: 0xe9, Block: 0x40, Limit: 0x3000}},
	{0x41, crypto.THCryptParam{Key: 0xc1, Step: 0x51, Block: 0x1400, Limit: 0x2000}},
	{0x4a, crypto.THCryptParam{Key: 0x03, Step: 0x19, Block: 0x1400, Limit: 0x7800}},
	{0x45, crypto.THCryptParam{Key: 0xab, Step: 0xcd, Block: 0x200, Limit: 0x1000}},
	{0x57, crypto.THCryptParam{Key: 0x12, Step: 0x34, Block: 0x400, Limit: 0x2800}},
	{0x2d, crypto.THCryptParam{Key: 0x35, Step: 0x97, Block: 0x80, Limit: 0x2800}},
	{0x2a, crypto.THCryptParam{Key: 0x99, Step: 0x37, Block: 0x400, Limit: 0x1000}},
}

// 文花帖
var stbParams = []typedParam{
	{0x4d, crypto.THCryptParam{Key: 0x1b, Step: 0x37, Block: 0x40, Limit: 0x2800}},
	{0x54, crypto.THCryptParam{Key: 0x51, Step: 0xe9, Block: 0x40, Limit: 0x3000}},
	{0x41, crypto.THCryptParam{Key: 0xc1, Step: 0x51, Block: 0x400, Limit: 0x400}},
	{0x4a, crypto.THCryptParam{Key: 0x03, Step: 0x19, Block: 0x400, Limit: 0x400}},
	{0x45, crypto.THCryptParam{Key: 0xab, Step: 0xcd, Block: 0x200, Limit: 0x1000}},
	{0x57, crypto.THCryptParam{Key: 0x12, Step: 0x34, Block: 0x400, Limit: 0x400}},
	{0x2d, crypto.THCryptParam{Key: 0x35, Step: 0x97, Block: 0x80, Limit: 0x2800}},
	{0x2a, crypto.THCryptParam{Key: 0x99, Step: 0x37, Block: 0x400, Limit: 0x1000}},
}

// PBGZ の作品ごとの候補ID
const (
	VariantIN  = "in"
	VariantStB = "stb"
)

// PBGZDecoder は PBGZ アーカイブのデコーダです。
//
// マジックに続く12バイトのヘッダと、ファイル一覧が暗号化されています。
// 各エントリは LZSS で圧縮されており、解凍すると "edz" + 種別バイトに続いて
// 種別ごとのパラメータで暗号化されたデータが現れます。
type PBGZDecoder struct {
	variants variantPicker[[]typedParam]
}

// NewPBGZDecoder は作品ごとのパラメータを登録したデコーダを作成します
func NewPBGZDecoder() *PBGZDecoder {
	variants := &arc.PluginSet[[]typedParam]{}
	variants.Add(VariantIN, "TH08 Imperishable Night", inParams)
	variants.Add(VariantStB, "TH09.5 Shoot the Bullet", stbParams)
	return &PBGZDecoder{variants: variantPicker[[]typedParam]{
		set:      variants,
		infer:    PBGZVariantFromName,
		fallback: VariantIN,
	}}
}

// PBGZVariantFromName はファイル名から候補IDを推定します（th095.dat なら stb）
func PBGZVariantFromName(name string) string {
	switch titleDigits(name) {
	case "095":
		return VariantStB
	case "08":
		return VariantIN
	default:
		return ""
	}
}

// Plugins は作品ごとのパラメータの候補IDを返します
func (d *PBGZDecoder) Plugins() []string {
	return d.variants.names()
}

// SetPlugin は使用するパラメータを固定します
func (d *PBGZDecoder) SetPlugin(id string) error {
	return d.variants.pin(id)
}

type pbgzHeader struct {
	fileCount  uint32
	listOffset uint32
	listSize   uint32
}

func readPBGZHeader(data []byte) (*pbgzHeader, error) {
	if !binio.HasPrefix(data, pbgzMagic) {
		return nil, fmt.Errorf("%w: invalid magic", arc.ErrNotRecognized)
	}
	if len(data) < pbgzHeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes", binio.ErrTruncatedRead, pbgzHeaderSize)
	}
	plain, err := pbgzHeaderCrypt.Decrypt(data[len(pbgzMagic):pbgzHeaderSize])
	if err != nil {
		return nil, err
	}

	r := binio.NewReader(plain)
	h := &pbgzHeader{}
	for _, v := range []*uint32{&h.fileCount, &h.listOffset, &h.listSize} {
		if *v, err = r.ReadU32LE(); err != nil {
			return nil, err
		}
	}
	h.fileCount -= pbgzFileCountOffset
	h.listOffset -= pbgzListOffsetOffset
	h.listSize -= pbgzListSizeOffset
	return h, nil
}

// IsRecognized はマジックが一致し、ファイル一覧の位置がデータ内にあるかを返します
func (d *PBGZDecoder) IsRecognized(f *arc.File) bool {
	h, err := readPBGZHeader(f.Content)
	return err == nil && h.listOffset >= pbgzHeaderSize && uint64(h.listOffset) < uint64(len(f.Content))
}

// ReadMeta はファイル一覧を復号・解凍してエントリ一覧を読み込みます
func (d *PBGZDecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	h, err := readPBGZHeader(f.Content)
	if err != nil {
		return nil, err
	}
	if h.listOffset < pbgzHeaderSize || uint64(h.listOffset) >= uint64(len(f.Content)) {
		return nil, fmt.Errorf("%w: list offset %d out of range", arc.ErrCorruptData, h.listOffset)
	}

	comp, err := pbgzListCrypt.Decrypt(f.Content[h.listOffset:])
	if err != nil {
		return nil, err
	}
	var list bytes.Buffer
	if err := crypto.UNLZSS(bytes.NewReader(comp), &list); err != nil {
		return nil, fmt.Errorf("%w: file list: %w", arc.ErrCorruptData, err)
	}
	if list.Len() != int(h.listSize) {
		logger.Printf("PBGZ file list is %d bytes, header says %d\n", list.Len(), h.listSize)
	}
	meta, err := readNamedList(list.Bytes(), h.fileCount, uint64(h.listOffset))
	if err != nil {
		return nil, err
	}
	for _, e := range meta.Entries {
		info := e.Extra.(entryInfo)
		info.origSize -= edzHeaderSize
		e.Extra = info
	}
	return meta, nil
}

// readNamedList は PBGZ・PBG4 のファイル一覧を読み込みます。
// 各エントリは0終端の名前, u32 オフセット, u32 元のサイズ, u32 予約 です。
// 格納サイズは次のエントリ（最後はファイル一覧）までの距離です。
func readNamedList(list []byte, count uint32, listOffset uint64) (*arc.Meta, error) {
	// 名前(1バイト以上) + 0 + オフセット + サイズ + 予約
	if uint64(count)*14 > uint64(len(list)) {
		return nil, fmt.Errorf("%w: %d entries in %d-byte list", arc.ErrCorruptData, count, len(list))
	}

	r := binio.NewReader(list)
	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, count)}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadCString()
		if err != nil {
			return nil, err
		}
		offset, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		origSize, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		if err := r.Skip(4); err != nil {
			return nil, err
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   textenc.DecodeName(name),
			Offset: uint64(offset),
			Extra:  entryInfo{origSize: origSize},
		})
	}

	for i, e := range meta.Entries {
		end := listOffset
		if i+1 < len(meta.Entries) {
			end = meta.Entries[i+1].Offset
		}
		if end < e.Offset {
			return nil, fmt.Errorf("%w: entry %q offsets are not ascending", arc.ErrCorruptData, e.Path)
		}
		e.Size = end - e.Offset
	}
	return meta, nil
}

// ReadFile はエントリを解凍し、種別に応じたパラメータで復号します
func (d *PBGZDecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	params, err := d.variants.pick("PBGZ", f, logger)
	if err != nil {
		return nil, err
	}
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}

	var unpacked bytes.Buffer
	if err := crypto.UNLZSS(bytes.NewReader(data), &unpacked); err != nil {
		return nil, fmt.Errorf("%w: %w", arc.ErrCorruptData, err)
	}
	b := unpacked.Bytes()
	if !binio.HasPrefix(b, "edz") || len(b) < edzHeaderSize {
		return nil, fmt.Errorf("%w: %s: missing edz header", arc.ErrCorruptData, e.Path)
	}

	typ := b[3]
	for _, p := range params {
		if p.typ != typ {
			continue
		}
		plain, err := p.Decrypt(b[edzHeaderSize:])
		if err != nil {
			return nil, err
		}
		if info, ok := e.Extra.(entryInfo); ok && int(info.origSize) != len(plain) {
			logger.Printf("%s: decoded %d bytes, expected %d\n", e.Path, len(plain), info.origSize)
		}
		return arc.NewFile(e.Path, plain), nil
	}
	return nil, fmt.Errorf("%w: %s: entry type 0x%02X", arc.ErrNotSupported, e.Path, typ)
}

// Unpack はすべてのエントリを取り出します
func (d *PBGZDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
