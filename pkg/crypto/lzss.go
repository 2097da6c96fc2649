package crypto

import (
	"errors"
	"fmt"
	"io"
)

// ErrBackReference は出力の先頭より前を参照する後方参照のエラー
var ErrBackReference = errors.New("後方参照が出力の先頭より前を指しています")

// LZSSParams はスライディング窓型の LZSS 解凍パラメータです。
// 窓サイズやビット幅は形式ごとの定数です。
type LZSSParams struct {
	WindowSize int  // 辞書（窓）のサイズ。2の累乗であること
	InitialPos int  // 辞書の書き込み開始位置
	OffsetBits uint // 参照位置のビット数
	LengthBits uint // 長さのビット数
	MinMatch   int  // 長さに加算される最小一致長

	// PresetWindow が true の場合、辞書は0で初期化済みとみなし、
	// まだ書き込まれていない位置への参照も許可します。
	// false の場合、出力の先頭より前への参照は ErrBackReference になります。
	PresetWindow bool

	// Terminator はストリーム終端を表す参照位置です（ビット単位形式のみ）。負の値なら終端なし。
	Terminator int
}

// TouhouLZSS は東方Projectのアーカイブで使われるビット単位の LZSS です
var TouhouLZSS = LZSSParams{
	WindowSize:   0x2000,
	InitialPos:   1,
	OffsetBits:   13,
	LengthBits:   4,
	MinMatch:     3,
	PresetWindow: true,
	Terminator:   0,
}

// OkumuraLZSS はフラグバイト方式の一般的な LZSS (4KB 窓, 初期位置 0xFEE) です
var OkumuraLZSS = LZSSParams{
	WindowSize:   0x1000,
	InitialPos:   0xFEE,
	OffsetBits:   12,
	LengthBits:   4,
	MinMatch:     3,
	PresetWindow: true,
	Terminator:   -1,
}

// window は解凍中の辞書と出力を管理します
type window struct {
	p       LZSSParams
	dict    []byte
	pos     int
	mask    int
	out     []byte
	limit   int // 出力上限 (負なら無制限)
	written int
}

func newWindow(p LZSSParams, limit int) (*window, error) {
	if p.WindowSize <= 0 || p.WindowSize&(p.WindowSize-1) != 0 {
		return nil, fmt.Errorf("invalid LZSS window size: %d", p.WindowSize)
	}
	w := &window{
		p:     p,
		dict:  make([]byte, p.WindowSize),
		pos:   p.InitialPos & (p.WindowSize - 1),
		mask:  p.WindowSize - 1,
		limit: limit,
	}
	if limit > 0 {
		w.out = make([]byte, 0, limit)
	}
	return w, nil
}

func (w *window) full() bool {
	return w.limit >= 0 && len(w.out) >= w.limit
}

func (w *window) put(b byte) {
	w.out = append(w.out, b)
	w.dict[w.pos] = b
	w.pos = (w.pos + 1) & w.mask
	w.written++
}

// copyFrom は辞書位置 offset から length バイトを1バイトずつコピーします。
// 参照先が書き込み位置と重なる場合も、コピー済みのバイトが順に使われます。
func (w *window) copyFrom(offset, length int) error {
	for i := 0; i < length && !w.full(); i++ {
		src := (offset + i) & w.mask
		if !w.p.PresetWindow && w.written < w.p.WindowSize {
			dist := (w.pos - src) & w.mask
			if dist == 0 || dist > w.written {
				return fmt.Errorf("%w: offset %d, %d bytes written", ErrBackReference, offset, w.written)
			}
		}
		w.put(w.dict[src])
	}
	return nil
}

// UNLZSS は東方Project形式 (TouhouLZSS) で圧縮されたデータを解凍します
func UNLZSS(in io.Reader, out io.Writer) error {
	return UNLZSSWith(in, out, TouhouLZSS)
}

// UNLZSSWith はビット単位 (MSB 先頭) の LZSS を解凍します。
// フラグ1: 8ビットのリテラル, フラグ0: 参照位置 + 長さ。
func UNLZSSWith(in io.Reader, out io.Writer, p LZSSParams) error {
	w, err := newWindow(p, -1)
	if err != nil {
		return err
	}
	if err := unlzssBits(NewBitReader(in), w); err != nil {
		return err
	}
	_, err = out.Write(w.out)
	return err
}

func unlzssBits(reader *BitReader, w *window) error {
	for {
		flag, err := reader.Read(1)
		if err != nil {
			if err == io.EOF && w.p.Terminator < 0 {
				return nil
			}
			return unexpected(err)
		}

		if flag == 1 {
			c, err := reader.Read(8)
			if err != nil {
				return unexpected(err)
			}
			w.put(byte(c))
			continue
		}

		offset, err := reader.Read(w.p.OffsetBits)
		// 終端の参照位置は EOF より優先して判定する
		if err == nil || err == io.EOF {
			if w.p.Terminator >= 0 && int(offset) == w.p.Terminator {
				return nil
			}
		}
		if err != nil {
			return unexpected(err)
		}

		length, err := reader.Read(w.p.LengthBits)
		if err != nil {
			return unexpected(err)
		}
		if err := w.copyFrom(int(offset), int(length)+w.p.MinMatch); err != nil {
			return err
		}
	}
}

// LZSSBytewise はフラグバイト (LSB 先頭) 方式の LZSS を解凍します。
// 参照は2バイトで、1バイト目が参照位置の下位8ビット、2バイト目の上位が参照位置の上位、下位が長さです。
// outSize バイトを出力した時点で終了します。入力が先に尽きた場合は io.ErrUnexpectedEOF を返します。
func LZSSBytewise(data []byte, outSize int, p LZSSParams) ([]byte, error) {
	if p.OffsetBits+p.LengthBits != 16 || p.OffsetBits < 8 {
		return nil, fmt.Errorf("unsupported bytewise LZSS layout: %d+%d bits", p.OffsetBits, p.LengthBits)
	}
	w, err := newWindow(p, outSize)
	if err != nil {
		return nil, err
	}
	lengthMask := 1<<p.LengthBits - 1

	src := 0
	for !w.full() {
		if src >= len(data) {
			return w.out, io.ErrUnexpectedEOF
		}
		control := data[src]
		src++

		for i := 0; i < 8 && !w.full(); i++ {
			if control>>i&1 == 1 {
				if src >= len(data) {
					return w.out, io.ErrUnexpectedEOF
				}
				w.put(data[src])
				src++
				continue
			}

			if src+1 >= len(data) {
				return w.out, io.ErrUnexpectedEOF
			}
			lo, hi := int(data[src]), int(data[src+1])
			src += 2
			offset := lo | (hi>>p.LengthBits)<<8
			length := hi&lengthMask + p.MinMatch
			if err := w.copyFrom(offset, length); err != nil {
				return w.out, err
			}
		}
	}
	return w.out, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
