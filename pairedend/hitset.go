package pairedend

import "github.com/grailbio/align/genome"

// maxMergeDistance is how close a seed hit must land to the location
// under consideration to count as supporting it.
const maxMergeDistance = 31

// hitLookup is the recorded result of one seed lookup: a borrowed,
// descending-sorted hit list plus a traversal cursor. Exactly one of
// hits32/hits64 is set, matching the index width.
type hitLookup struct {
	seedOffset genome.Location
	nHits      int
	hits32     []uint32
	hits64     []genome.Location
	cur        int // currentHitForIntersection
	disjoint   int32
}

func (l *hitLookup) hit(i int) genome.Location {
	if l.hits64 != nil {
		return l.hits64[i]
	}
	return genome.Location(l.hits32[i])
}

type disjointHitSet struct {
	exhausted int32
	miss      int32
}

// hitSet holds all the seed lookups for one (read, direction) and
// supports the descending intersection traversal.
//
// INVARIANT: every hit list is sorted strictly descending, and every
// remaining hit is >= its lookup's seedOffset (smaller hits are trimmed
// at record time because the implied read start would precede the
// genome).
type hitSet struct {
	maxSeeds         int
	maxMergeDistance genome.Location

	lookups  []hitLookup
	disjoint []disjointHitSet
	current  int32 // index of the open disjoint set, -1 before the first

	// Ring of lookups with a non-empty hit list, threaded through ringNext
	// by lookup index; the header cell sits at index maxSeeds.
	ringNext []int32
	ringPrev []int32

	mostRecent genome.Location
}

func newHitSet(maxSeeds int, maxMerge genome.Location) *hitSet {
	return &hitSet{
		maxSeeds:         maxSeeds,
		maxMergeDistance: maxMerge,
		lookups:          make([]hitLookup, 0, maxSeeds),
		disjoint:         make([]disjointHitSet, maxSeeds),
		ringNext:         make([]int32, maxSeeds+1),
		ringPrev:         make([]int32, maxSeeds+1),
	}
}

func (h *hitSet) init() {
	h.lookups = h.lookups[:0]
	h.current = -1
	head := int32(h.maxSeeds)
	h.ringNext[head] = head
	h.ringPrev[head] = head
	h.mostRecent = 0
}

// recordLookup appends one seed lookup. An empty hit list only bumps the
// open disjoint set's exhausted count.
func (h *hitSet) recordLookup(seedOffset int, hits32 []uint32, hits64 []genome.Location, beginsDisjointHitSet bool) {
	if beginsDisjointHitSet {
		h.current++
		h.disjoint[h.current].exhausted = 0
	}
	nHits := len(hits32) + len(hits64)
	if nHits == 0 {
		h.disjoint[h.current].exhausted++
		return
	}

	h.lookups = append(h.lookups, hitLookup{
		seedOffset: genome.Location(seedOffset),
		nHits:      nHits,
		hits32:     hits32,
		hits64:     hits64,
		disjoint:   h.current,
	})
	i := int32(len(h.lookups) - 1)
	l := &h.lookups[i]

	// Trim trailing hits smaller than seedOffset; they would place the
	// read before the start of the genome.
	for l.nHits > 0 && l.hit(l.nHits-1) < l.seedOffset {
		l.nHits--
	}

	head := int32(h.maxSeeds)
	h.ringPrev[i] = head
	h.ringNext[i] = h.ringNext[head]
	h.ringPrev[h.ringNext[i]] = i
	h.ringNext[head] = i
}

// firstHit seeds the intersection: the largest implied read-start
// location across all lookups.
func (h *hitSet) firstHit() (genome.Location, int, bool) {
	found := false
	var best genome.Location
	var offset genome.Location
	for i := range h.lookups {
		l := &h.lookups[i]
		if l.nHits > 0 && l.hit(0)-l.seedOffset > best {
			best = l.hit(0) - l.seedOffset
			offset = l.seedOffset
			found = true
		}
	}
	if found {
		h.mostRecent = best
	}
	return best, int(offset), found
}

// nextHitLE finds the largest implied location <= maxLoc across all
// lookups, advancing every lookup's cursor to its own best probe.
func (h *hitSet) nextHitLE(maxLoc genome.Location) (genome.Location, int, bool) {
	found := false
	var best genome.Location
	var offset genome.Location
	for i := range h.lookups {
		l := &h.lookups[i]
		lo, hi := l.cur, l.nHits-1
		target := maxLoc + l.seedOffset
		for lo <= hi {
			probe := (lo + hi) / 2
			// The hit lists are sorted largest to smallest, so this
			// odd-looking test is the right one: hits[probe] is the first
			// entry at or below target.
			if l.hit(probe) <= target && (probe == 0 || l.hit(probe-1) > target) {
				if l.hit(probe)-l.seedOffset > best {
					found = true
					best = l.hit(probe) - l.seedOffset
					offset = l.seedOffset
					h.mostRecent = best
				}
				l.cur = probe
				break
			}
			if l.hit(probe) > target {
				lo = probe + 1
			} else {
				hi = probe - 1
			}
		}
		if lo > hi {
			l.cur = l.nHits // exhausted
		}
	}
	return best, int(offset), found
}

// nextLowerHit advances past the most recently returned location and
// returns the next one below it.
func (h *hitSet) nextLowerHit() (genome.Location, int, bool) {
	found := false
	var best genome.Location
	var offset genome.Location
	for i := range h.lookups {
		l := &h.lookups[i]
		if l.cur != l.nHits && l.hit(l.cur)-l.seedOffset == h.mostRecent {
			l.cur++
			if l.cur == l.nHits {
				continue
			}
		}
		if l.cur != l.nHits {
			loc := l.hit(l.cur)
			if loc-l.seedOffset > best && loc >= l.seedOffset {
				best = loc - l.seedOffset
				offset = l.seedOffset
				found = true
			}
		}
	}
	if found {
		h.mostRecent = best
	}
	return best, int(offset), found
}

// bestPossibleScore lower-bounds the edit distance at the current
// location: the largest number of misses in any disjoint hit set. A seed
// that truly overlaps the location must land within maxMergeDistance of
// it, so a whole set of non-overlapping seeds missing implies at least
// that many edits.
func (h *hitSet) bestPossibleScore() int {
	for i := int32(0); i <= h.current; i++ {
		h.disjoint[i].miss = h.disjoint[i].exhausted
	}
	head := int32(h.maxSeeds)
	for i := h.ringNext[head]; i != head; i = h.ringNext[i] {
		l := &h.lookups[i]
		target := h.mostRecent + l.seedOffset
		supports := l.cur != l.nHits && locationIsWithin(l.hit(l.cur), target, h.maxMergeDistance) ||
			l.cur != 0 && locationIsWithin(l.hit(l.cur-1), target, h.maxMergeDistance)
		if !supports {
			h.disjoint[l.disjoint].miss++
		}
	}
	best := int32(0)
	for i := int32(0); i <= h.current; i++ {
		if h.disjoint[i].miss > best {
			best = h.disjoint[i].miss
		}
	}
	return int(best)
}

func locationIsWithin(a, b, distance genome.Location) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= distance
}
