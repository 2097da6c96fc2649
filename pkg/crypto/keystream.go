package crypto

import "encoding/binary"

// AdvanceFunc は鍵の状態を1ステップ進める関数です
type AdvanceFunc func(key uint32) uint32

// AdvanceRGSS は RPG Maker (RGSSAD) の鍵更新 k*7+3 です
func AdvanceRGSS(key uint32) uint32 {
	return key*7 + 3
}

// AdvanceAdd は一定値を加算する鍵更新を返します。
// AdvanceAdd(0x51) は Yumemi 形式の鍵更新です。
func AdvanceAdd(delta uint32) AdvanceFunc {
	return func(key uint32) uint32 {
		return key + delta
	}
}

// Keystream は1バイトごとに状態が変化する XOR 暗号です。
// 状態は呼び出しをまたいで引き継がれます。並行利用はできません。
type Keystream struct {
	key     uint32
	advance AdvanceFunc
}

// NewKeystream は初期鍵と鍵更新関数から Keystream を作成します
func NewKeystream(key uint32, advance AdvanceFunc) *Keystream {
	return &Keystream{key: key, advance: advance}
}

// Key は現在の鍵の状態を返します
func (k *Keystream) Key() uint32 {
	return k.key
}

// XORBytes は各バイトを鍵の下位8ビットで XOR し、1バイトごとに鍵を進めます（その場で変換）
func (k *Keystream) XORBytes(p []byte) {
	for i := range p {
		p[i] ^= byte(k.key)
		k.key = k.advance(k.key)
	}
}

// XORUint32 は同じ鍵列に属する長さ・サイズなどの32ビット値を復号し、鍵を1回進めます
func (k *Keystream) XORUint32(v uint32) uint32 {
	v ^= k.key
	k.key = k.advance(k.key)
	return v
}

// XORWordsLE は p をリトルエンディアンの32ビット単位で XOR し、1ワードごとに鍵を進めます。
// 4バイトに満たない末尾は、現在の鍵の下位バイトから順に XOR します（鍵は進めません）。
func (k *Keystream) XORWordsLE(p []byte) {
	n := len(p) &^ 3
	for i := 0; i < n; i += 4 {
		w := binary.LittleEndian.Uint32(p[i:])
		binary.LittleEndian.PutUint32(p[i:], w^k.key)
		k.key = k.advance(k.key)
	}
	for i := n; i < len(p); i++ {
		p[i] ^= byte(k.key >> (8 * uint(i-n)))
	}
}
