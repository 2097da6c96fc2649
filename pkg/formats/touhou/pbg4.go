package touhou

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
	"github.com/shiroemons/go-arcunpack/pkg/binio"
	"github.com/shiroemons/go-arcunpack/pkg/crypto"
)

// PBG4Format は PBG4 アーカイブの形式ID
const PBG4Format = "touhou/pbg4"

const (
	pbg4Magic      = "PBG4"
	pbg4HeaderSize = 16
)

// PBG4Decoder は PBG4 アーカイブのデコーダです。暗号化はありません。
//
// ヘッダ: "PBG4", u32 エントリ数, u32 ファイル一覧の位置, u32 ファイル一覧の元のサイズ
// ファイル一覧は末尾にあり LZSS で圧縮されています。各エントリも LZSS で圧縮されています。
type PBG4Decoder struct{}

type pbg4Header struct {
	fileCount  uint32
	listOffset uint32
	listSize   uint32
}

func readPBG4Header(data []byte) (*pbg4Header, error) {
	if !binio.HasPrefix(data, pbg4Magic) {
		return nil, fmt.Errorf("%w: invalid magic", arc.ErrNotRecognized)
	}
	r := binio.NewReader(data)
	if err := r.Skip(len(pbg4Magic)); err != nil {
		return nil, err
	}
	h := &pbg4Header{}
	var err error
	for _, v := range []*uint32{&h.fileCount, &h.listOffset, &h.listSize} {
		if *v, err = r.ReadU32LE(); err != nil {
			return nil, err
		}
	}
	if h.listOffset < pbg4HeaderSize || uint64(h.listOffset) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: list offset %d out of range", arc.ErrCorruptData, h.listOffset)
	}
	return h, nil
}

// IsRecognized はマジックが一致し、ファイル一覧の位置がデータ内にあるかを返します
func (d *PBG4Decoder) IsRecognized(f *arc.File) bool {
	_, err := readPBG4Header(f.Content)
	return err == nil
}

// ReadMeta は末尾のファイル一覧を解凍してエントリ一覧を読み込みます
func (d *PBG4Decoder) ReadMeta(f *arc.File, logger arc.Logger) (*arc.Meta, error) {
	h, err := readPBG4Header(f.Content)
	if err != nil {
		return nil, err
	}
	var list bytes.Buffer
	if err := crypto.UNLZSS(bytes.NewReader(f.Content[h.listOffset:]), &list); err != nil {
		return nil, fmt.Errorf("%w: file list: %w", arc.ErrCorruptData, err)
	}
	if list.Len() != int(h.listSize) {
		logger.Printf("PBG4 file list is %d bytes, header says %d\n", list.Len(), h.listSize)
	}
	return readNamedList(list.Bytes(), h.fileCount, uint64(h.listOffset))
}

// ReadFile はエントリを解凍します
func (d *PBG4Decoder) ReadFile(f *arc.File, meta *arc.Meta, e *arc.Entry, logger arc.Logger) (*arc.File, error) {
	data, err := arc.SliceEntry(f, e)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if info, ok := e.Extra.(entryInfo); ok {
		out.Grow(int(info.origSize))
	}
	if err := crypto.UNLZSS(bytes.NewReader(data), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", arc.ErrCorruptData, err)
	}
	if info, ok := e.Extra.(entryInfo); ok && out.Len() != int(info.origSize) {
		logger.Printf("%s: decompressed %d bytes, expected %d\n", e.Path, out.Len(), info.origSize)
	}
	return arc.NewFile(e.Path, out.Bytes()), nil
}

// Unpack はすべてのエントリを取り出します
func (d *PBG4Decoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	return arc.UnpackArchive(ctx, d, f, saver, logger)
}
