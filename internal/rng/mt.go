// Package rng provides the seeded pseudo-random generator used by the
// traversal engine.
//
// The generator is a 32-bit Mersenne Twister (MT19937) with the reference
// seed expansion and tempering. Float64 combines two 32-bit draws into a
// 53-bit double in [0,1), matching the reference genrand_res53.
//
// A Generator is NOT safe for concurrent use. Each build owns its own
// generator; sharing one between two in-flight traversals breaks
// reproducibility.
package rng

const (
	stateSize  = 624
	shiftSize  = 397
	matrixA    = 0x9908b0df
	upperMask  = 0x80000000
	lowerMask  = 0x7fffffff
	seedFactor = 1812433253
)

// Generator is an MT19937 instance.
type Generator struct {
	mt    [stateSize]uint32
	index int
	seed  uint32
	draws uint64
}

// New creates a generator seeded with seed.
func New(seed uint32) *Generator {
	g := &Generator{}
	g.Seed(seed)
	return g
}

// Seed resets the generator state from seed.
func (g *Generator) Seed(seed uint32) {
	g.seed = seed
	g.draws = 0
	g.mt[0] = seed
	for i := 1; i < stateSize; i++ {
		prev := g.mt[i-1]
		g.mt[i] = seedFactor*(prev^(prev>>30)) + uint32(i)
	}
	g.index = stateSize
}

// SeedValue returns the seed the generator was last seeded with.
func (g *Generator) SeedValue() uint32 {
	return g.seed
}

// Draws returns the number of 32-bit words consumed since the last Seed.
// Two passes that must stay in lockstep can compare this value.
func (g *Generator) Draws() uint64 {
	return g.draws
}

// Uint32 returns the next tempered 32-bit word.
func (g *Generator) Uint32() uint32 {
	if g.index >= stateSize {
		g.twist()
	}
	y := g.mt[g.index]
	g.index++
	g.draws++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 returns a 53-bit precision double in [0,1).
func (g *Generator) Float64() float64 {
	a := g.Uint32() >> 5
	b := g.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) * (1.0 / 9007199254740992.0)
}

// Next is an alias for Float64.
func (g *Generator) Next() float64 {
	return g.Float64()
}

// Skip advances the generator by n doubles without returning them.
func (g *Generator) Skip(n int) {
	for i := 0; i < n; i++ {
		g.Float64()
	}
}

func (g *Generator) twist() {
	for i := 0; i < stateSize; i++ {
		y := (g.mt[i] & upperMask) | (g.mt[(i+1)%stateSize] & lowerMask)
		next := g.mt[(i+shiftSize)%stateSize] ^ (y >> 1)
		if y&1 != 0 {
			next ^= matrixA
		}
		g.mt[i] = next
	}
	g.index = 0
}
