// Package playstation はPlayStation系のアーカイブ形式を扱います
package playstation

import (
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/textenc"
)

// GPDAFormat は GPDA アーカイブの形式ID
const GPDAFormat = "playstation/gpda"

const (
	gpdaMagic       = "GPDA"
	gpdaCountOffset = 12
)

// GPDADecoder は GPDA アーカイブのデコーダです。
//
// ヘッダ: "GPDA", u32 全体サイズ, u32 (未使用), u32 エントリ数
// エントリ: u32 オフセット, u32 予約 (0), u32 サイズ, u32 名前のオフセット (0 なら名前なし)
// 名前: u32 長さ + バイト列
type GPDADecoder struct{}

// Register は GPDA 形式を登録します
func Register(r arc.Registrar) {
	r.Register(GPDAFormat, func() arc.Decoder { return &GPDADecoder{} })
}

// IsRecognized はマジックと全体サイズが一致するかを返します
func (d *GPDADecoder) IsRecognized(f *arc.File) bool {
	if !binio.HasPrefix(f.Content, gpdaMagic) {
		return false
	}
	r := binio.NewReader(f.Content)
	if err := r.Skip(len(gpdaMagic)); err != nil {
		return false
	}
	size, err := r.ReadU32LE()
	return err == nil && uint64(size) == uint64(len(f.Content))
}

// ReadMeta はエントリ一覧を読み込みます。サイズ0のエントリは含めません。
func (d *GPDADecoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	r := binio.NewReader(f.Content)
	if err := r.Seek(gpdaCountOffset); err != nil {
		return nil, err
	}
	count, err := r.ReadU32LE()
	if err != nil {
		return nil, err
	}

	meta := &arc.Meta{}
	for i := uint32(0); i < count; i++ {
		offset, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		reserved, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		if reserved != 0 {
			return nil, fmt.Errorf("%w: entry %d: expected 0 at reserved field, got 0x%X", arc.ErrCorruptData, i, reserved)
		}
		size, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}
		nameOffset, err := r.ReadU32LE()
		if err != nil {
			return nil, err
		}

		var name string
		if nameOffset != 0 {
			err := r.Peek(int(nameOffset), func() error {
				n, err := r.ReadU32LE()
				if err != nil {
					return err
				}
				b, err := r.Read(int(n))
				if err != nil {
					return err
				}
				name = textenc.DecodeName(b)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("entry %d name: %w", i, err)
			}
		}

		if size == 0 {
			continue
		}
		meta.Entries = append(meta.Entries, &arc.Entry{
			Path:   name,
			Offset: uint64(offset),
			Size:   uint64(size),
		})
	}
	return meta, nil
}

// ReadFile はエントリのデータをそのまま取り出します
func (d *GPDADecoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	return arc.NewFile(e.Path, append([]byte(nil), data...)), nil
}

// Unpack はすべてのエントリを取り出します
func (d *GPDADecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}

// LinkedFormats は GPDA に格納されることが多い形式です
func (d *GPDADecoder) LinkedFormats() []string {
	return []string{GPDAFormat, "gnu/gzip"}
}
