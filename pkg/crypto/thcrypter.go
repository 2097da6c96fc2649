// Package crypto はゲームアーカイブで使用される暗号化・圧縮アルゴリズムを提供します。
//
// 主な機能:
//   - THCrypter: 東方Project特有のXORベース暗号化の解除
//   - UNLZSS / LZSSBytewise: スライディング窓型 LZSS の解凍
//   - Keystream: 鍵が1バイトごとに変化する XOR 暗号
//   - BitReader: MSB 先頭のビット単位読み込み
package crypto

import (
	"bytes"
	"fmt"
	"io"
)

// THCryptParam は THCrypter のパラメータです
type THCryptParam struct {
	Key   byte
	Step  byte
	Block int
	Limit int
}

// Decrypt は data 全体を復号した新しいスライスを返します
func (p THCryptParam) Decrypt(data []byte) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, len(data)))
	if err := THCrypter(bytes.NewReader(data), out, len(data), p.Key, p.Step, p.Block, p.Limit); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// THCrypter は東方Project特有の暗号化を解除する関数です。
// ブロック内のバイト順を入れ替えながら、1バイトごとに key += step で XOR します。
// in: 入力ストリーム
// out: 出力ストリーム
// size: 元のサイズ
// key: 暗号化キー
// step: 暗号化ステップ
// block: ブロックサイズ
// limit: 暗号化されている先頭部分のサイズ。これを超えた部分と末尾の addup バイトはそのままコピーされます
func THCrypter(in io.Reader, out io.Writer, size int, key byte, step byte, block int, limit int) error {
	if block <= 0 {
		return fmt.Errorf("invalid THCrypter block size: %d", block)
	}
	inBuf := make([]byte, block)
	outBuf := make([]byte, block)

	addup := size % block
	if addup >= block/4 {
		addup = 0
	}
	addup += size % 2

	// 実際に処理するメイン部分のサイズ
	mainSize := size - addup

	remainingSize := mainSize
	remainingLimit := limit
	currentKey := key // key はブロック間で引き継がれる

	for remainingSize > 0 && remainingLimit > 0 {
		processBlockSize := min(block, remainingSize, remainingLimit)

		if _, err := io.ReadFull(in, inBuf[:processBlockSize]); err != nil {
			return fmt.Errorf("THCrypter read: %w", unexpected(err))
		}

		pin := 0
		for j := 0; j < 2; j++ {
			pout := processBlockSize - j - 1
			for i := 0; i < (processBlockSize-j+1)/2; i++ {
				if pout >= 0 && pin < processBlockSize {
					outBuf[pout] = inBuf[pin] ^ currentKey
				}
				pin++
				pout -= 2
				currentKey += step
			}
		}

		if _, err := out.Write(outBuf[:processBlockSize]); err != nil {
			return err
		}

		remainingLimit -= processBlockSize
		remainingSize -= processBlockSize
	}

	// limit を超えた残りと addup バイトをそのままコピー
	rest := int64(remainingSize + addup)
	if rest > 0 {
		n, err := io.CopyN(out, in, rest)
		if err != nil {
			if n < rest && err == io.EOF {
				return fmt.Errorf("THCrypter read: %w", io.ErrUnexpectedEOF)
			}
			return err
		}
	}
	return nil
}
