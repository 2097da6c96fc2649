package touhou

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/shiroemons/go-arcunpack/pkg/arc"
)

// THFmtFormat は BGM 再生情報 (thbgm.fmt) の形式ID
const THFmtFormat = "touhou/thfmt"

const (
	thfmtRecordSize = 52
	thfmtNameSize   = 16
)

// BGMRecord は thbgm.fmt の1曲分の再生情報です。位置と長さの単位はバイトです。
type BGMRecord struct {
	FileName string
	Start    uint32
	Intro    uint32
	Length   uint32
}

// Loop はループ部の長さを返します
func (r BGMRecord) Loop() uint32 {
	return r.Length - r.Intro
}

// THFmtDecoder は thbgm.fmt をループ位置の一覧（テキスト）に変換します。
//
// 52バイトのレコードの並びで、各レコードは 16バイトの0終端のファイル名,
// u32 開始位置, u32 (未使用), u32 イントロ部の長さ, u32 全体の長さ, 20バイトの波形情報 です。
// ファイル名が空のレコードは無視されます。
type THFmtDecoder struct{}

// ParseTHFmt はレコードを読み込みます
func ParseTHFmt(data []byte) ([]BGMRecord, error) {
	if len(data) == 0 || len(data)%thfmtRecordSize != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of %d", arc.ErrCorruptData, len(data), thfmtRecordSize)
	}

	var records []BGMRecord
	for off := 0; off < len(data); off += thfmtRecordSize {
		rec := data[off : off+thfmtRecordSize]
		n := bytes.IndexByte(rec[:thfmtNameSize], 0)
		if n < 0 {
			return nil, fmt.Errorf("%w: record at %d has an unterminated name", arc.ErrCorruptData, off)
		}
		if n == 0 {
			continue
		}
		name := string(rec[:n])
		for _, c := range []byte(name) {
			if c < 0x20 || c >= 0x7f {
				return nil, fmt.Errorf("%w: record at %d has a non-ASCII name", arc.ErrCorruptData, off)
			}
		}
		r := BGMRecord{
			FileName: name,
			Start:    binary.LittleEndian.Uint32(rec[16:]),
			Intro:    binary.LittleEndian.Uint32(rec[24:]),
			Length:   binary.LittleEndian.Uint32(rec[28:]),
		}
		if r.Intro > r.Length {
			return nil, fmt.Errorf("%w: %s: intro %d exceeds length %d", arc.ErrCorruptData, name, r.Intro, r.Length)
		}
		records = append(records, r)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no named records", arc.ErrCorruptData)
	}
	return records, nil
}

// IsRecognized は拡張子が .fmt で、すべてのレコードが .wav のファイル名を持つかを返します
func (d *THFmtDecoder) IsRecognized(f *arc.File) bool {
	if !f.HasExt("fmt") {
		return false
	}
	records, err := ParseTHFmt(f.Content)
	if err != nil {
		return false
	}
	for _, r := range records {
		if !strings.HasSuffix(strings.ToLower(r.FileName), ".wav") {
			return false
		}
	}
	return true
}

// FormatBGMRecords はレコードを "開始位置,イントロ部の長さ,ループ部の長さ,ファイル名" の行にします。値は16進です。
func FormatBGMRecords(records []BGMRecord) string {
	var b strings.Builder
	b.WriteString("#曲データ\n")
	b.WriteString("#開始位置[Bytes]、イントロ部の長さ[Bytes]、ループ部の長さ[Bytes]、ファイル名\n")
	b.WriteString("#位置・長さは16進値として記述する\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%08X,%08X,%08X,%s\n", r.Start, r.Intro, r.Loop(), r.FileName)
	}
	return b.String()
}

// Unpack は thbgm.fmt を同じ名前の .txt に変換して saver に渡します
func (d *THFmtDecoder) Unpack(ctx context.Context, f *arc.File, saver arc.FileSaver, logger arc.Logger) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := ParseTHFmt(f.Content)
	if err != nil {
		return arc.NewDecodeError("decode", f.Name, err)
	}
	arc.OrNop(logger).Printf("%s: %d BGM records\n", f.Name, len(records))

	out := arc.NewFile(f.Name, []byte(FormatBGMRecords(records)))
	out.ChangeExt(".txt")
	return saver.Save(out)
}
