// Package mt19937 implements the 32-bit Mersenne Twister and the state
// reconstruction attack against it: 624 consecutive outputs are enough to
// recover the full internal state and predict every following output.
package mt19937

// ---------------------------------------------------------
// CONSTANTS
// ---------------------------------------------------------

const (
	// StateSize is the number of 32-bit words in the generator state, and
	// therefore the number of outputs needed to clone it.
	StateSize = 624

	shiftSize      = 397
	matrixA        = 0x9908b0df
	upperMask      = 0x80000000
	lowerMask      = 0x7fffffff
	seedMultiplier = 1812433253

	temperMaskB = 0x9d2c5680
	temperMaskC = 0xefc60000

	// DefaultSeed is the seed the reference implementation uses when none is given.
	DefaultSeed = 5489
)

// ---------------------------------------------------------
// GENERATOR
// ---------------------------------------------------------

// Generator is an MT19937 instance. It is not safe for concurrent use.
type Generator struct {
	state [StateSize]uint32
	index int
}

// New returns a generator seeded with init_genrand(seed).
func New(seed uint32) *Generator {
	g := &Generator{}
	g.Seed(seed)
	return g
}

// Seed resets the generator with the init_genrand recurrence.
func (g *Generator) Seed(seed uint32) {
	g.state[0] = seed
	for i := 1; i < StateSize; i++ {
		prev := g.state[i-1]
		g.state[i] = seedMultiplier*(prev^(prev>>30)) + uint32(i)
	}
	g.index = StateSize
}

// SeedArray resets the generator with init_by_array, the scheme CPython's
// random.seed uses for integer seeds (key = 32-bit little-endian chunks).
func (g *Generator) SeedArray(key []uint32) {
	g.Seed(19650218)
	if len(key) == 0 {
		return
	}

	i, j := 1, 0
	k := StateSize
	if len(key) > k {
		k = len(key)
	}
	for ; k > 0; k-- {
		prev := g.state[i-1]
		g.state[i] = (g.state[i] ^ ((prev ^ (prev >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= StateSize {
			g.state[0] = g.state[StateSize-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}
	for k = StateSize - 1; k > 0; k-- {
		prev := g.state[i-1]
		g.state[i] = (g.state[i] ^ ((prev ^ (prev >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= StateSize {
			g.state[0] = g.state[StateSize-1]
			i = 1
		}
	}
	g.state[0] = 0x80000000
	g.index = StateSize
}

// Uint32 returns the next tempered output and advances the cursor by one.
func (g *Generator) Uint32() uint32 {
	if g.index >= StateSize {
		g.twist()
	}
	y := g.state[g.index]
	g.index++
	return Temper(y)
}

func (g *Generator) twist() {
	for i := 0; i < StateSize; i++ {
		y := (g.state[i] & upperMask) | (g.state[(i+1)%StateSize] & lowerMask)
		next := g.state[(i+shiftSize)%StateSize] ^ (y >> 1)
		if y&1 != 0 {
			next ^= matrixA
		}
		g.state[i] = next
	}
	g.index = 0
}

// ---------------------------------------------------------
// TEMPERING
// ---------------------------------------------------------

// Temper applies the MT19937 output transform to a raw state word.
func Temper(y uint32) uint32 {
	y ^= y >> 11
	y ^= (y << 7) & temperMaskB
	y ^= (y << 15) & temperMaskC
	y ^= y >> 18
	return y
}

// Untemper recovers the raw state word that produced output y.
func Untemper(y uint32) uint32 {
	y = undoRightShiftXor(y, 18)
	y = undoLeftShiftXorMask(y, 15, temperMaskC)
	y = undoLeftShiftXorMask(y, 7, temperMaskB)
	y = undoRightShiftXor(y, 11)
	return y
}

// undoRightShiftXor inverts y = x ^ (x >> s). Each pass fixes s more high bits.
func undoRightShiftXor(y uint32, s uint) uint32 {
	x := y
	for fixed := s; fixed < 32; fixed += s {
		x = y ^ (x >> s)
	}
	return x
}

// undoLeftShiftXorMask inverts y = x ^ ((x << s) & mask). Each pass fixes s more low bits.
func undoLeftShiftXorMask(y uint32, s uint, mask uint32) uint32 {
	x := y
	for fixed := s; fixed < 32; fixed += s {
		x = y ^ ((x << s) & mask)
	}
	return x
}

// GuessRange maps a raw output into [1, n] as (v mod n) + 1.
func GuessRange(v, n uint32) uint32 {
	if n == 0 {
		panic("mt19937: GuessRange with n == 0")
	}
	return v%n + 1
}
