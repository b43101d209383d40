package pairedend

import (
	"testing"

	"github.com/grailbio/testutil/expect"

	"github.com/grailbio/align/genome"
)

func locs(vals ...int64) []genome.Location {
	out := make([]genome.Location, len(vals))
	for i, v := range vals {
		out[i] = genome.Location(v)
	}
	return out
}

func TestHitSetTraversal(t *testing.T) {
	h := newHitSet(4, maxMergeDistance)
	h.init()

	// Two overlapping seeds of the same disjoint set; implied read-start
	// locations are hits minus seed offset.
	h.recordLookup(0, nil, locs(1000, 500, 100), true)
	h.recordLookup(5, nil, locs(1005, 405, 105), false)

	loc, offset, ok := h.firstHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(1000))
	// Both lookups imply 1000; the first maximal one wins.
	expect.EQ(t, offset, 0)

	loc, _, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(500))

	loc, offset, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(400))
	expect.EQ(t, offset, 5)

	loc, _, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(100))

	_, _, ok = h.nextLowerHit()
	expect.False(t, ok)
}

func TestHitSetNextHitLE(t *testing.T) {
	h := newHitSet(4, maxMergeDistance)
	h.init()
	h.recordLookup(0, nil, locs(900, 700, 300), true)
	h.recordLookup(10, nil, locs(760, 320, 60), false)

	loc, offset, ok := h.nextHitLE(800)
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(750))
	expect.EQ(t, offset, 10)

	loc, offset, ok = h.nextHitLE(600)
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(310))
	expect.EQ(t, offset, 10)

	loc, offset, ok = h.nextHitLE(200)
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(50))
	expect.EQ(t, offset, 10)

	_, _, ok = h.nextHitLE(20)
	expect.False(t, ok)
}

func TestHitSetTrimsUnderflowingHits(t *testing.T) {
	h := newHitSet(2, maxMergeDistance)
	h.init()
	// The trailing hit (3) is smaller than the seed offset (5): a read
	// starting before the genome. It must be trimmed.
	h.recordLookup(5, nil, locs(105, 55, 3), true)

	loc, _, ok := h.firstHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(100))
	loc, _, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(50))
	_, _, ok = h.nextLowerHit()
	expect.False(t, ok)
}

func TestBestPossibleScore(t *testing.T) {
	h := newHitSet(6, maxMergeDistance)
	h.init()

	// First disjoint set: one lookup that hits location 1000, one
	// exhausted seed.
	h.recordLookup(0, nil, locs(1000), true)
	h.recordLookup(20, nil, nil, false)
	// Second disjoint set: both seeds miss location 1000 entirely.
	h.recordLookup(4, nil, locs(5000), true)
	h.recordLookup(30, nil, locs(7000), false)

	loc, _, ok := h.firstHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(6970))

	// At 6970: set 1 has 1 exhausted + lookup at 1000 missing = 2 misses;
	// set 2 has the 5000-lookup missing = 1 miss.
	expect.EQ(t, h.bestPossibleScore(), 2)

	loc, _, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(4996))
	expect.EQ(t, h.bestPossibleScore(), 2)

	loc, _, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(1000))
	// At 1000: set 1 has only its exhausted seed (1 miss); set 2 misses
	// with both lookups (2 misses), which is the max over the sets.
	expect.EQ(t, h.bestPossibleScore(), 2)
}

func TestBestPossibleScoreSupportWindow(t *testing.T) {
	h := newHitSet(4, maxMergeDistance)
	h.init()
	// Two non-overlapping seeds in one set, hitting the same region.
	h.recordLookup(0, nil, locs(1000), true)
	h.recordLookup(40, nil, locs(1040), false)

	loc, _, ok := h.firstHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(1000))
	// Both seeds support 1000 (each hit is within the merge window of
	// location+offset), so the lower bound is 0.
	expect.EQ(t, h.bestPossibleScore(), 0)
}

func TestHitSet32BitWidth(t *testing.T) {
	h := newHitSet(2, maxMergeDistance)
	h.init()
	h.recordLookup(0, []uint32{800, 400}, nil, true)

	loc, _, ok := h.firstHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(800))
	loc, _, ok = h.nextLowerHit()
	expect.True(t, ok)
	expect.EQ(t, loc, genome.Location(400))
}
