// Package rpgmaker は RPG Maker (RGSS) のアーカイブ形式を扱います
package rpgmaker

import (
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// RGSSADFormat は RGSSAD アーカイブの形式ID
const RGSSADFormat = "rpgmaker/rgssad"

const (
	rgssadMagic      = "RGSSAD\x00\x01"
	rgssadInitialKey = 0xDEADCAFE
)

// RGSSADDecoder は RPG Maker XP/VX の RGSSAD アーカイブのデコーダです。
//
// ヘッダの後にエントリが連続します。名前の長さ・名前・サイズは1つの鍵列で暗号化され、
// データはその時点の鍵から始まる別の鍵列で4バイト単位に暗号化されています。
type RGSSADDecoder struct{}

// Register は RPG Maker の形式を登録します
func Register(r arc.Registrar) {
	r.Register(RGSSADFormat, func() arc.Decoder { return &RGSSADDecoder{} })
}

// IsRecognized はマジックが一致するかを返します
func (d *RGSSADDecoder) IsRecognized(f *arc.File) bool {
	return binio.HasPrefix(f.Content, rgssadMagic)
}

// ReadMeta はエントリ一覧を読み込みます。
// 各エントリの Extra にはデータの復号鍵 (uint32) が入ります。
func (d *RGSSADDecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	r := binio.NewReader(f.Content)
	if err := r.Skip(len(rgssadMagic)); err != nil {
		return nil, err
	}

	ks := crypto.NewKeystream(rgssadInitialKey, crypto.AdvanceRGSS)
	meta := &arc.Meta{}
	for !r.EOF() {
		v, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		nameSize := ks.XORUint32(v)
		name, err := r.Read(int(nameSize))
		if err != nil {
			return nil, fmt.Errorf("entry %d name: %w", len(meta.Entries), err)
		}
		ks.XORBytes(name)

		v, err = r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		size := ks.XORUint32(v)

		e := &arc.Entry{
			Path:   textenc.ToSlash(string(name)),
			Offset: uint64(r.Tell()),
			Size:   uint64(size),
			Extra:  ks.Key(),
		}
		if err := r.Skip(int(size)); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
		meta.Entries = append(meta.Entries, e)
	}
	return meta, nil
}

// ReadFile はエントリのデータを復号して取り出します
func (d *RGSSADDecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	key, ok := e.Extra.(uint32)
	if !ok {
		return nil, fmt.Errorf("%w: entry %s has no key", arc.ErrCorruptData, e.Path)
	}
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), data...)
	crypto.NewKeystream(key, crypto.AdvanceRGSS).XORWordsLE(out)
	return arc.NewFile(e.Path, out), nil
}

// Unpack はすべてのエントリを取り出します
func (d *RGSSADDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
