// Package touhou は東方Projectのアーカイブ形式を扱います
package touhou

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// THA1Format は THA1 アーカイブの形式ID
const THA1Format = "touhou/tha1"

const (
	tha1Magic      = "THA1"
	tha1HeaderSize = 0x10

	// ヘッダ値の補正定数
	listSizeOffset     = 123456789
	listCompSizeOffset = 987654321
	fileCountOffset    = 135792468

	// 名前(4バイト以上) + オフセット + サイズ + 予約
	minEntrySize = 16
)

var (
	headerCrypt = crypto.THCryptParam{Key: 0x1b, Step: 0x37, Block: 0x10, Limit: 0x10}
	listKey     = byte(0x3e)
	listStep    = byte(0x9b)
	listBlock   = 0x80
)

// 風神録・地霊殿
var mofParams = []crypto.THCryptParam{
	{Key: 0x1b, Step: 0x37, Block: 0x40, Limit: 0x2800},
	{Key: 0x51, Step: 0xe9, Block: 0x40, Limit: 0x3000},
	{Key: 0xc1, Step: 0x51, Block: 0x80, Limit: 0x3200},
	{Key: 0x03, Step: 0x19, Block: 0x400, Limit: 0x7800},
	{Key: 0xab, Step: 0xcd, Block: 0x200, Limit: 0x2800},
	{Key: 0x12, Step: 0x34, Block: 0x80, Limit: 0x3200},
	{Key: 0x35, Step: 0x97, Block: 0x80, Limit: 0x2800},
	{Key: 0x99, Step: 0x37, Block: 0x400, Limit: 0x2000},
}

// 星蓮船・ダブルスポイラー・妖精大戦争
var ufoParams = []crypto.THCryptParam{
	{Key: 0x1b, Step: 0x73, Block: 0x40, Limit: 0x3800},
	{Key: 0x51, Step: 0x9e, Block: 0x40, Limit: 0x4000},
	{Key: 0xc1, Step: 0x15, Block: 0x400, Limit: 0x2c00},
	{Key: 0x03, Step: 0x91, Block: 0x80, Limit: 0x6400},
	{Key: 0xab, Step: 0xdc, Block: 0x80, Limit: 0x6e00},
	{Key: 0x12, Step: 0x43, Block: 0x200, Limit: 0x3c00},
	{Key: 0x35, Step: 0x79, Block: 0x400, Limit: 0x3c00},
	{Key: 0x99, Step: 0x7d, Block: 0x80, Limit: 0x2800},
}

// 神霊廟以降
var tdParams = []crypto.THCryptParam{
	{Key: 0x1b, Step: 0x73, Block: 0x0100, Limit: 0x3800},
	{Key: 0x12, Step: 0x43, Block: 0x0200, Limit: 0x3e00},
	{Key: 0x35, Step: 0x79, Block: 0x0400, Limit: 0x3c00},
	{Key: 0x03, Step: 0x91, Block: 0x0080, Limit: 0x6400},
	{Key: 0xab, Step: 0xdc, Block: 0x0080, Limit: 0x6e00},
	{Key: 0x51, Step: 0x9e, Block: 0x0100, Limit: 0x4000},
	{Key: 0xc1, Step: 0x15, Block: 0x0400, Limit: 0x2c00},
	{Key: 0x99, Step: 0x7d, Block: 0x0080, Limit: 0x4400},
}

// 作品ごとの暗号化パラメータの候補ID
const (
	VariantMoF = "mof"
	VariantUFO = "ufo"
	VariantTD  = "td"
)

// entryInfo は Entry.Extra に入るエントリ固有の情報です
type entryInfo struct {
	origSize uint32
	checksum byte // 生の名前のバイト値の和。暗号化パラメータの選択に使う
}

// THA1Decoder は THA1 アーカイブのデコーダです。
//
// ヘッダ16バイトは固定パラメータで暗号化されています。
// ファイル一覧は末尾にあり、暗号化と LZSS 圧縮がかかっています。
// 各エントリは名前から選ばれる8組のパラメータのいずれかで暗号化され、
// 元のサイズと異なる場合は LZSS で圧縮されています。
type THA1Decoder struct {
	variants variantPicker[[]crypto.THCryptParam]
}

// NewTHA1Decoder は作品ごとのパラメータを登録したデコーダを作成します
func NewTHA1Decoder() *THA1Decoder {
	variants := &arc.PluginSet[[]crypto.THCryptParam]{}
	variants.Add(VariantMoF, "TH10 Mountain of Faith / TH11 Subterranean Animism", mofParams)
	variants.Add(VariantUFO, "TH12 Undefined Fantastic Object / TH12.5 Double Spoiler / TH12.8 Fairy Wars", ufoParams)
	variants.Add(VariantTD, "TH13 Ten Desires and later games", tdParams)
	return &THA1Decoder{variants: variantPicker[[]crypto.THCryptParam]{
		set:      variants,
		infer:    VariantFromName,
		fallback: VariantMoF,
	}}
}

// Register は東方Projectの形式を登録します
func Register(r arc.Registrar) {
	r.Register(THA1Format, func() arc.Decoder { return NewTHA1Decoder() })
	r.Register(PBGZFormat, func() arc.Decoder { return NewPBGZDecoder() })
	r.Register(PBG4Format, func() arc.Decoder { return &PBG4Decoder{} })
	r.Register(YumemiFormat, func() arc.Decoder { return &YumemiDecoder{} })
	r.Register(SuicaFormat, func() arc.Decoder { return &SuicaDecoder{} })
	r.Register(MarisaFormat, func() arc.Decoder { return &MarisaDecoder{} })
	r.Register(THFmtFormat, func() arc.Decoder { return &THFmtDecoder{} })
}

// LinkedFormats は THA1 に格納されている変換可能な形式を返します
func (d *THA1Decoder) LinkedFormats() []string {
	return []string{THFmtFormat}
}

// Plugins は作品ごとのパラメータの候補IDを返します
func (d *THA1Decoder) Plugins() []string {
	return d.variants.names()
}

// SetPlugin は使用するパラメータを固定します。空文字列ならファイル名から推定します。
func (d *THA1Decoder) SetPlugin(id string) error {
	return d.variants.pin(id)
}

// VariantFromName はファイル名（th10.dat, th125.dat など）から候補IDを推定します。
// 推定できない場合は空文字列を返します。
func VariantFromName(name string) string {
	n, err := strconv.Atoi(titleDigits(name))
	if err != nil {
		return ""
	}
	// th125, th143 などの外伝は先頭2桁が本編の番号
	if n >= 100 {
		n /= 10
	}
	switch {
	case n == 10 || n == 11:
		return VariantMoF
	case n == 12:
		return VariantUFO
	case n >= 13:
		return VariantTD
	default:
		return ""
	}
}

type tha1Header struct {
	listSize     uint32
	listCompSize uint32
	fileCount    uint32
}

func readHeader(data []byte) (*tha1Header, error) {
	if len(data) < tha1HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes", binio.ErrTruncatedRead, tha1HeaderSize)
	}
	plain, err := headerCrypt.Decrypt(data[:tha1HeaderSize])
	if err != nil {
		return nil, err
	}
	if !binio.HasPrefix(plain, tha1Magic) {
		return nil, fmt.Errorf("%w: invalid magic", arc.ErrNotRecognized)
	}

	r := binio.NewReader(plain)
	_ = r.Skip(len(tha1Magic))
	h := &tha1Header{}
	for _, v := range []*uint32{&h.listSize, &h.listCompSize, &h.fileCount} {
		if *v, err = r.ReadU32LE(); err != nil {
			return nil, err
		}
	}
	h.listSize -= listSizeOffset
	h.listCompSize -= listCompSizeOffset
	h.fileCount -= fileCountOffset
	return h, nil
}

// IsRecognized は復号したヘッダのマジックが一致するかを返します
func (d *THA1Decoder) IsRecognized(f *arc.File) bool {
	_, err := readHeader(f.Content)
	return err == nil
}

// ReadMeta は末尾のファイル一覧を復号・解凍してエントリ一覧を読み込みます
func (d *THA1Decoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	h, err := readHeader(f.Content)
	if err != nil {
		return nil, err
	}
	if uint64(h.listCompSize) > uint64(len(f.Content)-tha1HeaderSize) {
		return nil, fmt.Errorf("%w: list size %d exceeds data size", arc.ErrCorruptData, h.listCompSize)
	}
	listOffset := len(f.Content) - int(h.listCompSize)

	listCrypt := crypto.THCryptParam{Key: listKey, Step: listStep, Block: listBlock, Limit: int(h.listCompSize)}
	comp, err := listCrypt.Decrypt(f.Content[listOffset:])
	if err != nil {
		return nil, err
	}
	var list bytes.Buffer
	if err := crypto.UNLZSS(bytes.NewReader(comp), &list); err != nil {
		return nil, fmt.Errorf("%w: file list: %w", arc.ErrCorruptData, err)
	}
	if list.Len() != int(h.listSize) {
		logger.Printf("THA1 file list is %d bytes, header says %d\n", list.Len(), h.listSize)
	}
	if uint64(h.fileCount)*minEntrySize > uint64(list.Len()) {
		return nil, fmt.Errorf("%w: %d entries in %d-byte list", arc.ErrCorruptData, h.fileCount, list.Len())
	}

	r := binio.NewReader(list.Bytes())
	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, h.fileCount)}
	for i := uint32(0); i < h.fileCount; i++ {
		name, err := readName(r)
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

		var sum byte
		for _, c := range name {
			sum += c
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   textenc.DecodeName(name),
			Offset: uint64(offset),
			Extra:  entryInfo{origSize: origSize, checksum: sum},
		})
	}

	// 圧縮後のサイズは次のエントリ（最後はファイル一覧）までの距離
	for i, e := range meta.Entries {
		end := uint64(listOffset)
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

// readName は4バイト単位で0を含む単位まで名前を読み込みます
func readName(r *binio.Reader) ([]byte, error) {
	var name []byte
	for {
		b, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return append(name, b[:i]...), nil
		}
		name = append(name, b...)
	}
}

// ReadFile はエントリを復号し、圧縮されていれば解凍します
func (d *THA1Decoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	info, ok := e.Extra.(entryInfo)
	if !ok {
		return nil, fmt.Errorf("%w: entry %q has no THA1 info", arc.ErrCorruptData, e.Path)
	}
	params, err := d.variants.pick("THA1", f, logger)
	if err != nil {
		return nil, err
	}
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}

	plain, err := params[info.checksum&7].Decrypt(data)
	if err != nil {
		return nil, err
	}
	if uint64(info.origSize) == e.Size {
		return arc.NewFile(e.Path, plain), nil
	}

	out := bytes.NewBuffer(make([]byte, 0, info.origSize))
	if err := crypto.UNLZSS(bytes.NewReader(plain), out); err != nil {
		return nil, fmt.Errorf("%w: %w", arc.ErrCorruptData, err)
	}
	if out.Len() != int(info.origSize) {
		logger.Printf("%s: decompressed %d bytes, expected %d\n", e.Path, out.Len(), info.origSize)
	}
	return arc.NewFile(e.Path, out.Bytes()), nil
}

// Unpack はすべてのエントリを取り出します
func (d *THA1Decoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
