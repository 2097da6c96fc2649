// Package binio はバイト列を順次・ランダムアクセスで読み込むカーソルを提供します。
//
// 多バイト値の読み込みは必ずエンディアンを明示します（LE/BE）。
// ホストのエンディアンには依存しません。
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncatedRead はバッファ終端を越えて読み込もうとした場合のエラー
var ErrTruncatedRead = errors.New("バッファ終端を越えて読み込もうとしました")

// ErrInvalidSeek は範囲外へのシークのエラー
var ErrInvalidSeek = errors.New("範囲外へのシークです")

// Reader はバイト列上のカーソルです。
// 元のバイト列は変更しません。
type Reader struct {
	buf []byte
	pos int
}

// NewReader は新しいReaderを作成します
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Size はバッファ全体の長さを返します
func (r *Reader) Size() int {
	return len(r.buf)
}

// Tell は現在位置を返します
func (r *Reader) Tell() int {
	return r.pos
}

// Remaining は残りバイト数を返します
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// EOF は終端に達しているかを返します
func (r *Reader) EOF() bool {
	return r.pos >= len(r.buf)
}

// Seek は絶対位置へ移動します。終端ちょうどへの移動は許可されます。
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidSeek, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

// Skip は現在位置から n バイト進めます
func (r *Reader) Skip(n int) error {
	if n < 0 || n > r.Remaining() {
		return fmt.Errorf("%w: skip %d at %d (size %d)", ErrTruncatedRead, n, r.pos, len(r.buf))
	}
	r.pos += n
	return nil
}

// Peek は pos に一時的に移動して fn を実行し、どの経路で抜けても元の位置に戻します
func (r *Reader) Peek(pos int, fn func() error) error {
	saved := r.pos
	defer func() { r.pos = saved }()

	if err := r.Seek(pos); err != nil {
		return err
	}
	return fn()
}

// Sub は [offset, offset+size) の範囲を独立したカーソルとして返します。
// バックエンドのバイト列は共有されます。
func (r *Reader) Sub(offset, size int) (*Reader, error) {
	if offset < 0 || size < 0 || offset > len(r.buf) || size > len(r.buf)-offset {
		return nil, fmt.Errorf("%w: sub [%d, +%d) (size %d)", ErrTruncatedRead, offset, size, len(r.buf))
	}
	return &Reader{buf: r.buf[offset : offset+size : offset+size]}, nil
}

// view は n バイト分のスライスを返し、位置を進めます（コピーしません）
func (r *Reader) view(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: read %d at %d (size %d)", ErrTruncatedRead, n, r.pos, len(r.buf))
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Read はちょうど n バイトを読み込みます。返り値はコピーです。
func (r *Reader) Read(n int) ([]byte, error) {
	b, err := r.view(n)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// ReadZeroPadded は n バイトの固定長フィールドを読み込み、最初の0までを返します
func (r *Reader) ReadZeroPadded(n int) ([]byte, error) {
	b, err := r.view(n)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return bytes.Clone(b), nil
}

// ReadCString は0終端の文字列を読み込みます（終端の0は消費されます）
func (r *Reader) ReadCString() ([]byte, error) {
	i := bytes.IndexByte(r.buf[r.pos:], 0)
	if i < 0 {
		return nil, fmt.Errorf("%w: unterminated string at %d", ErrTruncatedRead, r.pos)
	}
	b := bytes.Clone(r.buf[r.pos : r.pos+i])
	r.pos += i + 1
	return b, nil
}

// ReadU8 は1バイト読み込みます
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.view(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16LE はリトルエンディアンの16ビット値を読み込みます
func (r *Reader) ReadU16LE() (uint16, error) {
	b, err := r.view(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU16BE はビッグエンディアンの16ビット値を読み込みます
func (r *Reader) ReadU16BE() (uint16, error) {
	b, err := r.view(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32LE はリトルエンディアンの32ビット値を読み込みます
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.view(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU32BE はビッグエンディアンの32ビット値を読み込みます
func (r *Reader) ReadU32BE() (uint32, error) {
	b, err := r.view(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64LE はリトルエンディアンの64ビット値を読み込みます
func (r *Reader) ReadU64LE() (uint64, error) {
	b, err := r.view(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadU64BE はビッグエンディアンの64ビット値を読み込みます
func (r *Reader) ReadU64BE() (uint64, error) {
	b, err := r.view(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// HasPrefix は先頭から magic が一致するかを返します。位置は変更しません。
func HasPrefix(buf []byte, magic string) bool {
	return len(buf) >= len(magic) && string(buf[:len(magic)]) == magic
}
