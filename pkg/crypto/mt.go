package crypto

const (
	mtStateSize = 624
	mtShift     = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
)

// MT19937 はメルセンヌ・ツイスタ疑似乱数生成器です。
// 一部のアーカイブはファイル一覧の鍵列にこの出力の下位8ビットを使います。
type MT19937 struct {
	state [mtStateSize]uint32
	index int
}

// NewMT19937 は seed で初期化した生成器を返します
func NewMT19937(seed uint32) *MT19937 {
	g := &MT19937{}
	g.state[0] = seed
	for i := 1; i < mtStateSize; i++ {
		prev := g.state[i-1]
		g.state[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	g.index = mtStateSize
	return g
}

func (g *MT19937) twist() {
	for i := 0; i < mtStateSize; i++ {
		y := g.state[i]&mtUpperMask | g.state[(i+1)%mtStateSize]&mtLowerMask
		next := g.state[(i+mtShift)%mtStateSize] ^ y>>1
		if y&1 != 0 {
			next ^= mtMatrixA
		}
		g.state[i] = next
	}
	g.index = 0
}

// Uint32 は次の乱数を返します
func (g *MT19937) Uint32() uint32 {
	if g.index >= mtStateSize {
		g.twist()
	}
	y := g.state[g.index]
	g.index++

	y ^= y >> 11
	y ^= y << 7 & 0x9d2c5680
	y ^= y << 15 & 0xefc60000
	y ^= y >> 18
	return y
}

// XORBytes は p の各バイトを乱数の下位8ビットと XOR します
func (g *MT19937) XORBytes(p []byte) {
	for i := range p {
		p[i] ^= byte(g.Uint32())
	}
}
