package pairedend

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestWrappedSeedOffset(t *testing.T) {
	expect.EQ(t, wrappedSeedOffset(16, 0), 0)
	expect.EQ(t, wrappedSeedOffset(16, 1), 8)
	expect.EQ(t, wrappedSeedOffset(16, 2), 4)
	expect.EQ(t, wrappedSeedOffset(16, 3), 12)
	expect.EQ(t, wrappedSeedOffset(16, 4), 2)
	expect.EQ(t, wrappedSeedOffset(16, 5), 6)
	expect.EQ(t, wrappedSeedOffset(16, 6), 10)
	expect.EQ(t, wrappedSeedOffset(16, 7), 14)

	// Offsets stay in range; for power-of-two seed lengths every wrap
	// pass starts at a distinct offset. (Other lengths may repeat an
	// offset late in the sequence, which the used-seed bitmap absorbs.)
	for _, seedLen := range []int{16, 20, 25, 32} {
		seen := map[int]bool{}
		distinct := seedLen&(seedLen-1) == 0
		for w := 0; w < seedLen; w++ {
			off := wrappedSeedOffset(seedLen, w)
			expect.True(t, off >= 0 && off < seedLen)
			if distinct {
				expect.False(t, seen[off], "repeated wrap offset", seedLen, w, off)
			}
			seen[off] = true
		}
	}
}

func TestSeedUsedMap(t *testing.T) {
	m := make(seedUsedMap, 16)
	m.set(3)
	m.set(100)
	expect.True(t, m.get(3))
	expect.True(t, m.get(100))
	expect.False(t, m.get(4))
	m.clear(128)
	expect.False(t, m.get(3))
	expect.False(t, m.get(100))
}
