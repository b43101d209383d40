package pairedend

import (
	"github.com/grailbio/align/genome"
	"github.com/grailbio/align/mapq"
)

const (
	// mergeClusterRadius: two pair alignments whose ends both fall within
	// this distance of a cluster's anchor are duplicates of each other.
	mergeClusterRadius = 50

	// locationNotYetScored marks a mate candidate that has never been
	// scored; ScoreAboveLimit marks one scored and found wanting.
	locationNotYetScored = -2

	// tooBigScoreValue is the initial best pair score; no real score can
	// reach it.
	tooBigScoreValue = 1 << 30

	// none is the nil arena index.
	none = int32(-1)
)

// scoringCandidate is a candidate location for the fewer-hits read,
// queued by best-possible score until the main loop scores it.
type scoringCandidate struct {
	location          genome.Location
	seedOffset        int
	whichSetPair      int32
	bestPossibleScore int32
	// mateIndex is the lowest (by location) mate candidate within the
	// spacing window at discovery time; the scoring walk starts there and
	// moves down the mate pool.
	mateIndex int32
	// next links candidates within one best-possible-score bucket, LIFO.
	next int32
	// mergeAnchor is the cluster this candidate belongs to, or none.
	mergeAnchor int32

	usedAffineGapScoring bool
	basesClippedBefore   int
	basesClippedAfter    int
	agScore              int
}

// scoringMateCandidate is a candidate location for the more-hits read.
// Scoring is lazy and cached together with the limit it ran under, so a
// mate shared by several fewer-hits candidates is scored once, and scored
// again only if it came out above its limit and a later candidate offers
// a looser limit.
type scoringMateCandidate struct {
	location          genome.Location
	seedOffset        int
	bestPossibleScore int32
	score             int
	scoreLimit        int
	matchProbability  float64
	genomeOffset      int

	usedAffineGapScoring bool
	basesClippedBefore   int
	basesClippedAfter    int
	agScore              int
}

func (m *scoringMateCandidate) init(loc genome.Location, bestPossibleScore int32, seedOffset int) {
	m.location = loc
	m.bestPossibleScore = bestPossibleScore
	m.seedOffset = seedOffset
	m.score = locationNotYetScored
	m.scoreLimit = -1
	m.matchProbability = 0
	m.genomeOffset = 0
	m.usedAffineGapScoring = false
	m.basesClippedBefore = 0
	m.basesClippedAfter = 0
	m.agScore = 0
}

// mergeAnchor is the representative of a cluster of near-duplicate pair
// alignments.
type mergeAnchor struct {
	moreHitLocation  genome.Location
	fewerHitLocation genome.Location
	matchProbability float64
	pairScore        int
}

func (m *mergeAnchor) init(moreLoc, fewerLoc genome.Location, prob float64, pairScore int) {
	m.moreHitLocation = moreLoc
	m.fewerHitLocation = fewerLoc
	m.matchProbability = prob
	m.pairScore = pairScore
}

func (m *mergeAnchor) rangeMatches(moreLoc, fewerLoc genome.Location) bool {
	return locationIsWithin(moreLoc, m.moreHitLocation, mergeClusterRadius) &&
		locationIsWithin(fewerLoc, m.fewerHitLocation, mergeClusterRadius)
}

// checkMerge folds a new pair alignment into the cluster. When the new
// pair lands within the cluster it either replaces the representative
// (strictly higher match probability; the displaced probability is
// returned so the caller can back it out of its running sum) or is
// eliminated. Outside the cluster the anchor is re-seeded.
func (m *mergeAnchor) checkMerge(moreLoc, fewerLoc genome.Location, prob float64, pairScore int) (oldProb float64, eliminated bool) {
	if m.moreHitLocation == genome.InvalidLocation || !m.rangeMatches(moreLoc, fewerLoc) {
		m.init(moreLoc, fewerLoc, prob, pairScore)
		return 0, false
	}
	if prob > m.matchProbability {
		oldProb = m.matchProbability
		m.matchProbability = prob
		m.pairScore = pairScore
		return oldProb, false
	}
	return 0, true
}

// scoreSet is the running best-pair state. Two instances track all
// alignments and non-ALT alignments separately so that ALT awareness can
// choose between them at the end.
type scoreSet struct {
	bestPairScore         int
	probabilityOfBestPair float64
	probabilityOfAllPairs float64

	bestResultGenomeLocation      [NumReadsPerPair]genome.Location
	bestResultScore               [NumReadsPerPair]int
	bestResultDirection           [NumReadsPerPair]Direction
	bestResultUsedAffineGap       [NumReadsPerPair]bool
	bestResultBasesClippedBefore  [NumReadsPerPair]int
	bestResultBasesClippedAfter   [NumReadsPerPair]int
	bestResultAGScore             [NumReadsPerPair]int
}

func (s *scoreSet) init() {
	s.bestPairScore = tooBigScoreValue
	s.probabilityOfBestPair = 0
	s.probabilityOfAllPairs = 0
}

// backOutProbability removes a merged-away pair's probability. The max
// guards against floating-point non-associativity driving the sum
// negative.
func (s *scoreSet) backOutProbability(oldPairProbability float64) {
	s.probabilityOfAllPairs -= oldPairProbability
	if s.probabilityOfAllPairs < 0 {
		s.probabilityOfAllPairs = 0
	}
}

func (s *scoreSet) updateBestHitIfNeeded(pairScore int, pairProbability float64, fewerEndScore int,
	readWithMoreHits int, fewerEndGenomeLocationOffset int, directions [NumReadsPerPair]Direction,
	candidate *scoringCandidate, mate *scoringMateCandidate) bool {

	s.probabilityOfAllPairs += pairProbability
	readWithFewerHits := 1 - readWithMoreHits

	if pairProbability <= s.probabilityOfBestPair {
		return false
	}
	s.bestPairScore = pairScore
	s.probabilityOfBestPair = pairProbability
	s.bestResultGenomeLocation[readWithFewerHits] = candidate.location + genome.Location(fewerEndGenomeLocationOffset)
	s.bestResultGenomeLocation[readWithMoreHits] = mate.location + genome.Location(mate.genomeOffset)
	s.bestResultScore[readWithFewerHits] = fewerEndScore
	s.bestResultScore[readWithMoreHits] = mate.score
	s.bestResultDirection[readWithFewerHits] = directions[readWithFewerHits]
	s.bestResultDirection[readWithMoreHits] = directions[readWithMoreHits]
	s.bestResultUsedAffineGap[readWithFewerHits] = candidate.usedAffineGapScoring
	s.bestResultUsedAffineGap[readWithMoreHits] = mate.usedAffineGapScoring
	s.bestResultBasesClippedBefore[readWithFewerHits] = candidate.basesClippedBefore
	s.bestResultBasesClippedAfter[readWithFewerHits] = candidate.basesClippedAfter
	s.bestResultBasesClippedBefore[readWithMoreHits] = mate.basesClippedBefore
	s.bestResultBasesClippedAfter[readWithMoreHits] = mate.basesClippedAfter
	s.bestResultAGScore[readWithFewerHits] = candidate.agScore
	s.bestResultAGScore[readWithMoreHits] = mate.agScore
	return true
}

func (s *scoreSet) fillInResult(result *PairedResult, popularSeedsSkipped [NumReadsPerPair]int) {
	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		result.Location[whichRead] = s.bestResultGenomeLocation[whichRead]
		result.Direction[whichRead] = s.bestResultDirection[whichRead]
		result.Mapq[whichRead] = mapq.Compute(s.probabilityOfAllPairs, s.probabilityOfBestPair,
			s.bestResultScore[whichRead], popularSeedsSkipped[0]+popularSeedsSkipped[1])
		if result.Mapq[whichRead] > mapq.LimitForSingleHit {
			result.Status[whichRead] = SingleHit
		} else {
			result.Status[whichRead] = MultipleHits
		}
		result.Score[whichRead] = s.bestResultScore[whichRead]
		result.ClippingForReadAdjustment[whichRead] = 0
		result.UsedAffineGapScoring[whichRead] = s.bestResultUsedAffineGap[whichRead]
		result.BasesClippedBefore[whichRead] = s.bestResultBasesClippedBefore[whichRead]
		result.BasesClippedAfter[whichRead] = s.bestResultBasesClippedAfter[whichRead]
		result.AGScore[whichRead] = s.bestResultAGScore[whichRead]
	}
}
