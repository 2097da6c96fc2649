package crypto

import (
	"bufio"
	"fmt"
	"io"
)

// BitReader は io.Reader から MSB 側を先頭としてビット単位でデータを読み込みます。
type BitReader struct {
	reader io.ByteReader
	buffer byte
	count  uint // 現在のバッファ内のビット数 (0-8)
}

// NewBitReader は新しい BitReader を作成します。
func NewBitReader(r io.Reader) *BitReader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &BitReader{reader: br}
}

// ReadBit は1ビット読み込みます。
func (br *BitReader) ReadBit() (uint32, error) {
	if br.count == 0 {
		b, err := br.reader.ReadByte()
		if err != nil {
			return 0, err
		}
		br.buffer = b
		br.count = 8
	}
	bit := uint32(br.buffer>>7) & 1
	br.buffer <<= 1
	br.count--
	return bit, nil
}

// Read は指定されたビット数を読み込み、その値を返します。
// 途中で入力が尽きた場合は、それまでに読み込めたビットから構成される値と io.EOF を返します。
func (br *BitReader) Read(numBits uint) (uint32, error) {
	if numBits == 0 || numBits > 32 {
		return 0, fmt.Errorf("invalid number of bits to read: %d", numBits)
	}

	var value uint32
	for i := uint(0); i < numBits; i++ {
		bit, err := br.ReadBit()
		if err != nil {
			return value, err
		}
		value = value<<1 | bit
	}
	return value, nil
}
