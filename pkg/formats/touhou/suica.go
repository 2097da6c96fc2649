package touhou

import (
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// SuicaFormat は東方萃夢想のアーカイブの形式ID
const SuicaFormat = "touhou/suica"

const (
	suicaHeaderSize = 2
	suicaEntrySize  = 0x6C
	suicaNameSize   = 0x64
)

// SuicaDecoder は東方萃夢想のアーカイブのデコーダです。マジックはありません。
//
// ヘッダ: u16 エントリ数
// エントリ (0x6C バイト): 0終端の名前 0x64 バイト, u32 サイズ, u32 オフセット
// 一覧は鍵 0x64 から始まり、増分も 0x4D ずつ増える XOR で暗号化されています。データは平文です。
type SuicaDecoder struct{}

// xorAccelerating は鍵の増分が1バイトごとに accel ずつ増える XOR を p に適用します
func xorAccelerating(p []byte, key, step, accel byte) {
	for i := range p {
		p[i] ^= key
		key += step
		step += accel
	}
}

func readSuicaList(data []byte) (*arc.Meta, error) {
	r := binio.NewReader(data)
	count, err := r.ReadU16LE()
	if err != nil {
		return nil, err
	}
	listSize := int(count) * suicaEntrySize
	if count == 0 || suicaHeaderSize+listSize > len(data) {
		return nil, fmt.Errorf("%w: %d entries in %d bytes", arc.ErrCorruptData, count, len(data))
	}

	list, err := r.Read(listSize)
	if err != nil {
		return nil, err
	}
	xorAccelerating(list, 0x64, 0x64, 0x4D)

	lr := binio.NewReader(list)
	meta := &arc.Meta{Entries: make([]*arc.Entry, 0, count)}
	for i := 0; i < int(count); i++ {
		name, err := lr.ReadZeroPadded(suicaNameSize)
		if err != nil {
			return nil, err
		}
		size, err := lr.ReadU32LE()
		if err != nil {
			return nil, err
		}
		offset, err := lr.ReadU32LE()
		if err != nil {
			return nil, err
		}
		if len(name) == 0 {
			return nil, fmt.Errorf("%w: entry %d has no name", arc.ErrCorruptData, i)
		}
		if int(offset) < suicaHeaderSize+listSize || uint64(offset)+uint64(size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: entry %d [%d, +%d) out of range", arc.ErrCorruptData, i, offset, size)
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   textenc.DecodeName(name),
			Offset: uint64(offset),
			Size:   uint64(size),
		})
	}
	return meta, nil
}

// IsRecognized は一覧を復号して、すべてのエントリが妥当かを返します
func (d *SuicaDecoder) IsRecognized(f *arc.File) bool {
	_, err := readSuicaList(f.Content)
	return err == nil
}

// ReadMeta はファイル一覧を読み込みます
func (d *SuicaDecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	return readSuicaList(f.Content)
}

// ReadFile はエントリをそのまま取り出します
func (d *SuicaDecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	return arc.NewFile(e.Path, append([]byte(nil), data...)), nil
}

// Unpack はすべてのエントリを取り出します
func (d *SuicaDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
