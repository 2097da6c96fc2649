// Package unpickle は限定された命令セットの構造化データ（pickle 形式のサブセット）を読み込みます。
//
// 文字列と整数だけを出現順に取り出します。リスト・辞書などの構造は無視するため、
// 呼び出し側が固定の個数ずつ組み合わせてレコードを復元します。
package unpickle

import (
	"errors"
	"fmt"

	"github.com/shiroemons/go-arcunpack/pkg/binio"
)

// ErrUnsupportedOpcode は未対応の命令が現れた場合のエラー
var ErrUnsupportedOpcode = errors.New("未対応の命令です")

// 命令
const (
	opProto          = 0x80 // PROTO: 1バイトのバージョン
	opShortBinString = 'U'  // SHORT_BINSTRING: u8 長さ + バイト列
	opBinUnicode     = 'X'  // BINUNICODE: u32 長さ + UTF-8
	opBinInt1        = 'K'  // BININT1: u8
	opBinInt2        = 'M'  // BININT2: u16
	opBinInt         = 'J'  // BININT: u32
	opLong1          = 0x8A // LONG1: u8 長さ + リトルエンディアンの整数
	opBinPut         = 'q'  // BINPUT: u8 (メモは使わない)
	opLongBinPut     = 'r'  // LONG_BINPUT: u32
	opStop           = '.'
)

// 構造を表すだけで値を持たない命令
var noops = map[byte]bool{
	'a':  true, // APPEND
	'u':  true, // SETITEMS
	'(':  true, // MARK
	']':  true, // EMPTY_LIST
	'}':  true, // EMPTY_DICT
	0x85: true, // TUPLE1
	0x86: true, // TUPLE2
	0x87: true, // TUPLE3
}

// Result は出現順の文字列と整数です
type Result struct {
	Strings []string
	Numbers []int64
}

// Unpickle は data を STOP 命令または終端まで読み込みます。
// 命令の引数が途中で切れている場合は binio.ErrTruncatedRead を返します。
func Unpickle(data []byte) (*Result, error) {
	r := binio.NewReader(data)
	res := &Result{}

	for !r.EOF() {
		pos := r.Tell()
		op, err := r.ReadU8()
		if err != nil {
			return nil, err
		}

		switch {
		case op == opStop:
			return res, nil
		case noops[op]:
		case op == opProto, op == opBinPut:
			err = r.Skip(1)
		case op == opLongBinPut:
			err = r.Skip(4)
		case op == opShortBinString:
			var n uint8
			if n, err = r.ReadU8(); err == nil {
				err = res.readString(r, int(n))
			}
		case op == opBinUnicode:
			var n uint32
			if n, err = r.ReadU32LE(); err == nil {
				err = res.readString(r, int(n))
			}
		case op == opBinInt1:
			var v uint8
			v, err = r.ReadU8()
			res.Numbers = append(res.Numbers, int64(v))
		case op == opBinInt2:
			var v uint16
			v, err = r.ReadU16LE()
			res.Numbers = append(res.Numbers, int64(v))
		case op == opBinInt:
			var v uint32
			v, err = r.ReadU32LE()
			res.Numbers = append(res.Numbers, int64(v))
		case op == opLong1:
			var n uint8
			if n, err = r.ReadU8(); err == nil {
				var v int64
				if v, err = readLong(r, int(n)); err == nil {
					res.Numbers = append(res.Numbers, v)
				}
			}
		default:
			return nil, fmt.Errorf("%w: 0x%02X at %d", ErrUnsupportedOpcode, op, pos)
		}
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (res *Result) readString(r *binio.Reader, n int) error {
	b, err := r.Read(n)
	if err != nil {
		return err
	}
	res.Strings = append(res.Strings, string(b))
	return nil
}

// readLong は n バイトのリトルエンディアン整数を読み込みます。
// 9バイト以上は int64 に収まらないため ErrUnsupportedOpcode です。
func readLong(r *binio.Reader, n int) (int64, error) {
	if n > 8 {
		return 0, fmt.Errorf("%w: LONG1 with %d bytes", ErrUnsupportedOpcode, n)
	}
	b, err := r.Read(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return int64(v), nil
}
