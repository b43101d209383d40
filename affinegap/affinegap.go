// Package affinegap implements gap-affine alignment of a read half
// against reference text, anchored at the seed boundary. It reports both
// the affine-gap score and an edit-distance-equivalent score so callers
// can keep a single pruning currency.
//
// ComputeScoreBanded restricts the dynamic program to diagonals within
// the edit bound and should be preferred when the pattern is long
// relative to the band; ComputeScore explores the full matrix.
package affinegap

import "math"

const (
	snpProb     = 0.001
	qualityBase = 33
)

// ScoreAboveLimit mirrors the edit-distance sentinel: no alignment within
// the edit bound.
const ScoreAboveLimit = -1

type cell struct {
	score   int32 // affine-gap score of the best path into this cell
	edits   int32 // substitutions plus gap columns on that path
	matched int32
	prob    float64
	valid   bool
}

// Scorer carries penalties and scratch rows. Not safe for concurrent use;
// independent Scorers are.
type Scorer struct {
	matchReward      int32
	subPenalty       int32
	gapOpenPenalty   int32
	gapExtendPenalty int32

	phredToProb [256]float64

	// Rolling rows, one pair per matrix.
	hPrev, hCur []cell
	ePrev, eCur []cell
	fPrev, fCur []cell
}

// NewScorer returns a Scorer with the given scoring parameters, sized for
// patterns up to maxPatternLen.
func NewScorer(matchReward, subPenalty, gapOpenPenalty, gapExtendPenalty, maxPatternLen int) *Scorer {
	s := &Scorer{
		matchReward:      int32(matchReward),
		subPenalty:       int32(subPenalty),
		gapOpenPenalty:   int32(gapOpenPenalty),
		gapExtendPenalty: int32(gapExtendPenalty),
	}
	for c := 0; c < 256; c++ {
		q := c - qualityBase
		if q < 0 {
			q = 0
		}
		p := math.Pow(10, -float64(q)/10)
		if p > 0.75 {
			p = 0.75
		}
		s.phredToProb[c] = p / 3
	}
	// Text may run up to the edit bound past the pattern end.
	width := maxPatternLen + 2*64 + 2
	for _, row := range []*[]cell{&s.hPrev, &s.hCur, &s.ePrev, &s.eCur, &s.fPrev, &s.fCur} {
		*row = make([]cell, width)
	}
	return s
}

// ComputeScore aligns pattern against a prefix of text with no band
// restriction. The alignment is anchored at offset 0 of both; the pattern
// end may be soft clipped. seedLen match rewards for the adjacent seed
// are folded into the returned agScore.
//
// Returns the affine-gap score, the edit-equivalent score (or
// ScoreAboveLimit), the match probability, the net indel drift of the
// chosen path, and the number of pattern bases clipped.
func (s *Scorer) ComputeScore(text, pattern, qual []byte, limit, seedLen int) (agScore, score int, matchProb float64, netIndel, basesClipped int) {
	return s.compute(text, pattern, qual, limit, seedLen, len(text)+len(pattern))
}

// ComputeScoreBanded is ComputeScore restricted to diagonals within
// limit.
func (s *Scorer) ComputeScoreBanded(text, pattern, qual []byte, limit, seedLen int) (agScore, score int, matchProb float64, netIndel, basesClipped int) {
	band := limit
	if band < 1 {
		band = 1
	}
	return s.compute(text, pattern, qual, limit, seedLen, band)
}

func (s *Scorer) compute(text, pattern, qual []byte, limit, seedLen, band int) (int, int, float64, int, int) {
	patternLen := len(pattern)
	textLen := len(text)
	if maxText := patternLen + limit; textLen > maxText {
		textLen = maxText
	}
	if patternLen == 0 {
		return seedLen * int(s.matchReward), 0, 1, 0, 0
	}
	if limit < 0 {
		return ScoreAboveLimit, ScoreAboveLimit, 0, 0, 0
	}

	// best tracks the preferred end cell. Full-pattern and clipped ends are
	// ranked together: higher score, then fewer clipped, then fewer edits.
	type endState struct {
		c       cell
		clipped int32
		d       int // net indel
		found   bool
	}
	var best endState
	better := func(cand cell, clipped int32, d int) bool {
		if !best.found {
			return true
		}
		adj := cand.score
		old := best.c.score
		if adj != old {
			return adj > old
		}
		if clipped != best.clipped {
			return clipped < best.clipped
		}
		return cand.edits < best.c.edits
	}

	neg := cell{score: math.MinInt32 / 4}
	for j := 0; j <= textLen; j++ {
		s.hPrev[j], s.ePrev[j], s.fPrev[j] = neg, neg, neg
	}
	s.hPrev[0] = cell{prob: 1, valid: true}
	// Row 0: leading gaps in the pattern (text-only consumption).
	for j := 1; j <= textLen; j++ {
		var from cell
		if j == 1 {
			from = s.hPrev[0]
			from.score -= s.gapOpenPenalty
		} else {
			from = s.ePrev[j-1]
		}
		from.score -= s.gapExtendPenalty
		from.edits++
		from.prob *= indelColumnProb
		s.ePrev[j] = from
		if from.score > s.hPrev[j].score {
			s.hPrev[j] = from
		}
	}

	for i := 1; i <= patternLen; i++ {
		lo, hi := 1, textLen
		if i-band > lo {
			lo = i - band
		}
		if i+band < hi {
			hi = i + band
		}
		for j := 0; j <= textLen; j++ {
			s.hCur[j], s.eCur[j], s.fCur[j] = neg, neg, neg
		}

		// Column 0: leading gaps in the text (pattern-only consumption).
		if i <= band {
			from := s.fPrev[0]
			if i == 1 {
				from = s.hPrev[0]
				from.score -= s.gapOpenPenalty
			}
			from.score -= s.gapExtendPenalty
			from.edits++
			from.prob *= indelColumnProb
			s.fCur[0] = from
			s.hCur[0] = from
		}

		for j := lo; j <= hi; j++ {
			// E: gap in pattern, arriving from the left.
			open := s.hCur[j-1]
			open.score -= s.gapOpenPenalty + s.gapExtendPenalty
			ext := s.eCur[j-1]
			ext.score -= s.gapExtendPenalty
			e := open
			if ext.valid && (!open.valid || ext.score > open.score) {
				e = ext
			}
			if e.valid {
				e.edits++
				e.prob *= indelColumnProb
			}
			s.eCur[j] = e

			// F: gap in text, arriving from above.
			open = s.hPrev[j]
			open.score -= s.gapOpenPenalty + s.gapExtendPenalty
			ext = s.fPrev[j]
			ext.score -= s.gapExtendPenalty
			f := open
			if ext.valid && (!open.valid || ext.score > open.score) {
				f = ext
			}
			if f.valid {
				f.edits++
				f.prob *= indelColumnProb
			}
			s.fCur[j] = f

			// Diagonal.
			diag := s.hPrev[j-1]
			if diag.valid {
				if pattern[i-1] == text[j-1] {
					diag.score += s.matchReward
					diag.matched++
					diag.prob *= 1 - snpProb
				} else {
					diag.score -= s.subPenalty
					diag.edits++
					diag.prob *= s.phredToProb[qualAt(qual, i-1)]
				}
			}

			h := diag
			if e.valid && (!h.valid || e.score > h.score) {
				h = e
			}
			if f.valid && (!h.valid || f.score > h.score) {
				h = f
			}
			s.hCur[j] = h

			if h.valid && int(h.edits) <= limit {
				if i == patternLen {
					if better(h, 0, j-i) {
						best = endState{c: h, clipped: 0, d: j - i, found: true}
					}
				} else if patternLen-i <= limit && better(h, int32(patternLen-i), j-i) {
					// A clipped base hides a potential edit, so clipping is
					// bounded by the same budget.
					best = endState{c: h, clipped: int32(patternLen - i), d: j - i, found: true}
				}
			}
		}
		s.hPrev, s.hCur = s.hCur, s.hPrev
		s.ePrev, s.eCur = s.eCur, s.ePrev
		s.fPrev, s.fCur = s.fCur, s.fPrev
	}

	if !best.found || int(best.c.edits) > limit {
		return ScoreAboveLimit, ScoreAboveLimit, 0, 0, 0
	}
	ag := int(best.c.score) + seedLen*int(s.matchReward)
	return ag, int(best.c.edits), best.c.prob, best.d, int(best.clipped)
}

// indelColumnProb is the probability charged per gap column.
const indelColumnProb = 0.0001

func qualAt(qual []byte, i int) byte {
	if i < len(qual) {
		return qual[i]
	}
	return qualityBase
}
