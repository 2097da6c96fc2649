package arc

import (
	"context"
	"fmt"
)

// ReadMeta は d.ReadMeta でディレクトリを読み込み、検証します。
// サイズ0のエントリは取り除かれ、Offset+Size がデータ長を超えるエントリは ErrCorruptData になります。
func ReadMeta(d ArchiveDecoder, f *File, logger Logger) (*Meta, error) {
	meta, err := d.ReadMeta(f, OrNop(logger))
	if err != nil {
		return nil, NewDecodeError("read_meta", f.Name, err)
	}
	if meta == nil {
		return nil, NewDecodeError("read_meta", f.Name, corrupt("no directory"))
	}

	entries := meta.Entries[:0:0]
	for _, e := range meta.Entries {
		if e.Size == 0 {
			continue
		}
		if err := checkBounds(f, e); err != nil {
			return nil, NewDecodeError("read_meta", f.Name, err)
		}
		entries = append(entries, e)
	}
	meta.Entries = entries
	return meta, nil
}

func checkBounds(f *File, e *Entry) error {
	size := uint64(len(f.Content))
	if e.Offset > size || e.Size > size-e.Offset {
		return corrupt("entry %q [%d, +%d) exceeds data size %d", e.Path, e.Offset, e.Size, size)
	}
	return nil
}

// SliceEntry は e の範囲のデータを返します（コピーしません）。範囲外の場合は ErrCorruptData です。
func SliceEntry(f *File, e *Entry) ([]byte, error) {
	if err := checkBounds(f, e); err != nil {
		return nil, err
	}
	return f.Content[e.Offset : e.Offset+e.Size : e.Offset+e.Size], nil
}

// ReadFile は d.ReadFile を呼び出し、エラーにエントリ名を付加します
func ReadFile(d ArchiveDecoder, f *File, meta *Meta, e *Entry, logger Logger) (*File, error) {
	out, err := d.ReadFile(f, meta, e, OrNop(logger))
	if err != nil {
		return nil, NewDecodeError("read_file", e.Path, err)
	}
	return out, nil
}

// UnpackArchive はアーカイブ形式の Unpack の共通実装です。
// ディレクトリを読み込み、格納順に各エントリを取り出して saver に渡します。
// 最初のエラーで中断します。ctx はエントリごとに確認されます。
func UnpackArchive(ctx context.Context, d ArchiveDecoder, f *File, saver FileSaver, logger Logger) error {
	logger = OrNop(logger)

	meta, err := ReadMeta(d, f, logger)
	if err != nil {
		return err
	}
	for _, e := range meta.Entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := ReadFile(d, f, meta, e, logger)
		if err != nil {
			return err
		}
		if err := saver.Save(out); err != nil {
			return fmt.Errorf("save %s: %w", out.Name, err)
		}
	}
	return nil
}

// UnpackImage は画像形式の Unpack の共通実装です。
// 画像を PNG にエンコードし、拡張子を .png に置き換えて saver に渡します。
func UnpackImage(ctx context.Context, d ImageDecoder, f *File, saver FileSaver, logger Logger) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	img, err := d.Decode(f, OrNop(logger))
	if err != nil {
		return NewDecodeError("decode", f.Name, err)
	}
	data, err := img.EncodePNG()
	if err != nil {
		return NewDecodeError("encode", f.Name, err)
	}
	out := NewFile(f.Name, data)
	out.ChangeExt("png")
	if err := saver.Save(out); err != nil {
		return fmt.Errorf("save %s: %w", out.Name, err)
	}
	return nil
}
