// Package pairedend aligns read pairs against an indexed reference by
// intersecting the seed-hit location sets of the two mates.
//
// The aligner works in three phases. Phase 1 picks seeds from each read
// and records the index lookups into per-(read, direction) hit sets.
// Phase 2 walks the hit sets of each set pair (forward0/RC1 and
// RC0/forward1) from high genome location downward, emitting candidate
// pairs whose ends fall within the configured spacing window; each
// candidate carries a lower bound on its edit distance derived from how
// many non-overlapping seeds missed the location. Phase 3 scores
// candidates in ascending lower-bound order, merging near-duplicate pairs
// and accumulating the probability mass that feeds mapping quality, until
// no unscored candidate can matter.
package pairedend

import (
	"github.com/grailbio/base/log"

	"github.com/grailbio/align/affinegap"
	"github.com/grailbio/align/genome"
	"github.com/grailbio/align/landauvishkin"
	"github.com/grailbio/align/seedindex"
)

// Aligner is a single-threaded paired-end aligner. All working memory is
// allocated at construction; Align does not allocate. Run one Aligner per
// goroutine; the index and genome are shared and read-only.
type Aligner struct {
	index   *seedindex.Index
	genome  *genome.Genome
	opts    Opts
	seedLen int

	// Adjuster, when non-nil, post-processes results unless
	// Opts.IgnoreAlignmentAdjustmentsForOm is set.
	Adjuster AlignmentAdjuster

	lv, reverseLV *landauvishkin.Scorer
	ag, reverseAG *affinegap.Scorer

	hitSets      [NumReadsPerPair][numDirections]*hitSet
	reads        [NumReadsPerPair][numDirections]readData
	reversedRead [NumReadsPerPair][numDirections][]byte
	rcReadData   [NumReadsPerPair][]byte
	rcQuality    [NumReadsPerPair][]byte

	seedUsed           seedUsedMap
	reverseTextScratch []byte

	scoringCandidatePool     []scoringCandidate
	scoringCandidatePoolUsed int
	scoringMateCandidates    [numSetPairs][]scoringMateCandidate
	scoringMateCandidateUsed [numSetPairs]int
	mergeAnchorPool          []mergeAnchor
	mergeAnchorPoolUsed      int

	// scoringCandidates[k] heads the LIFO list of candidates whose best
	// possible score is k.
	scoringCandidates []int32

	hitsPerContigCounts []hitsPerContigCount
	contigCountEpoch    uint64

	nLocationsScored int
}

type hitsPerContigCount struct {
	hits  int
	epoch uint64
}

// setPairDirections[whichSetPair][whichRead] is the direction each read
// takes in a set pair: a proper pair has its mates on opposite strands.
var setPairDirections = [numSetPairs][NumReadsPerPair]Direction{
	{Forward, ReverseComplement},
	{ReverseComplement, Forward},
}

// NewAligner builds an aligner over index. The aligner keeps a reference
// to the index and its genome.
func NewAligner(index *seedindex.Index, opts Opts) *Aligner {
	seedLen := index.SeedLength()
	maxSeedsToUse := opts.NumSeeds
	if maxSeedsToUse == 0 {
		maxSeedsToUse = int(float64(opts.MaxReadSize) * opts.SeedCoverage / float64(seedLen))
	}
	if maxSeedsToUse < 1 {
		maxSeedsToUse = 1
	}

	a := &Aligner{
		index:   index,
		genome:  index.Genome(),
		opts:    opts,
		seedLen: seedLen,
		lv:      landauvishkin.NewScorer(),
		reverseLV: landauvishkin.NewScorer(),
		ag: affinegap.NewScorer(opts.MatchReward, opts.SubPenalty,
			opts.GapOpenPenalty, opts.GapExtendPenalty, opts.MaxReadSize),
		reverseAG: affinegap.NewScorer(opts.MatchReward, opts.SubPenalty,
			opts.GapOpenPenalty, opts.GapExtendPenalty, opts.MaxReadSize),
	}

	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		a.rcReadData[whichRead] = make([]byte, opts.MaxReadSize)
		a.rcQuality[whichRead] = make([]byte, opts.MaxReadSize)
		for dir := 0; dir < numDirections; dir++ {
			a.reversedRead[whichRead][dir] = make([]byte, opts.MaxReadSize)
			a.hitSets[whichRead][dir] = newHitSet(maxSeedsToUse, maxMergeDistance)
		}
	}

	a.seedUsed = make(seedUsedMap, (opts.MaxReadSize+7)/8+1)
	a.reverseTextScratch = make([]byte, 0, opts.MaxReadSize+landauvishkin.MaxK+1)

	poolSize := opts.MaxBigHits * maxSeedsToUse * NumReadsPerPair
	if poolSize > opts.MaxCandidatePoolSize {
		poolSize = opts.MaxCandidatePoolSize
	}
	a.scoringCandidatePool = make([]scoringCandidate, poolSize)
	for i := 0; i < numSetPairs; i++ {
		a.scoringMateCandidates[i] = make([]scoringMateCandidate, poolSize/NumReadsPerPair)
	}
	a.mergeAnchorPool = make([]mergeAnchor, poolSize)
	a.scoringCandidates = make([]int32, opts.MaxK+opts.ExtraSearchDepth+1)

	if opts.MaxSecondaryAlignmentsPerContig > 0 {
		a.hitsPerContigCounts = make([]hitsPerContigCount, a.genome.NumContigs())
	}
	return a
}

// NumLocationsScored returns the total number of scorer invocations over
// the aligner's lifetime.
func (a *Aligner) NumLocationsScored() int { return a.nLocationsScored }

// Align places read0 and read1 as a pair. result receives the primary
// alignment (Status NotFound when there is none) and firstALTResult the
// supplementary ALT alignment when ALT awareness demoted it.
//
// Secondary alignments within maxEditDistanceForSecondaryResults of the
// best (disabled when -1) are written to secondaryResults; at most
// maxSecondaryResultsToReturn survive post-processing. Align returns
// (n, true) on success. If secondaryResults is too small it returns
// (len(secondaryResults)+1, false) and the caller should retry with a
// larger buffer.
func (a *Aligner) Align(read0, read1 *Read, result, firstALTResult *PairedResult,
	maxEditDistanceForSecondaryResults int, secondaryResults []PairedResult,
	maxSecondaryResultsToReturn int) (int, bool) {

	firstALTResult.Status[0] = NotFound
	firstALTResult.Status[1] = NotFound
	firstALTResult.Supplementary[0] = false
	firstALTResult.Supplementary[1] = false

	result.NumLVCalls = 0
	result.NumSmallHits = 0
	for r := 0; r < NumReadsPerPair; r++ {
		result.ClippingForReadAdjustment[r] = 0
		result.UsedAffineGapScoring[r] = false
		result.BasesClippedBefore[r] = 0
		result.BasesClippedAfter[r] = 0
		result.AGScore[r] = 0
	}

	nSecondaryResults := 0
	locationsScoredAtEntry := a.nLocationsScored

	maxSeeds := a.opts.NumSeeds
	if maxSeeds == 0 {
		longer := read0.Len()
		if read1.Len() > longer {
			longer = read1.Len()
		}
		maxSeeds = int(float64(longer) * a.opts.SeedCoverage / float64(a.seedLen))
	}

	a.scoringCandidatePoolUsed = 0
	for k := range a.scoringCandidates {
		a.scoringCandidates[k] = none
	}
	for i := 0; i < numSetPairs; i++ {
		a.scoringMateCandidateUsed[i] = 0
	}
	a.mergeAnchorPoolUsed = 0

	var scoresForAllAlignments, scoresForNonAltAlignments scoreSet
	scoresForAllAlignments.init()
	scoresForNonAltAlignments.init()

	var popularSeedsSkipped [NumReadsPerPair]int

	inputReads := [NumReadsPerPair]*Read{read0, read1}

	// Too short to seed; the caller usually enforces a longer minimum.
	if read0.Len() < a.seedLen || read1.Len() < a.seedLen {
		setNotFound(result)
		return 0, true
	}

	countOfNs := 0
	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		read := inputReads[whichRead]
		readLen := read.Len()
		if readLen > a.opts.MaxReadSize {
			log.Fatalf("pairedend: read %s length %d exceeds the configured maximum %d; "+
				"rebuild the aligner with a larger MaxReadSize", read.Name, readLen, a.opts.MaxReadSize)
		}
		for dir := 0; dir < numDirections; dir++ {
			a.hitSets[whichRead][dir].init()
		}
		// Build the reverse complement.
		for i := 0; i < readLen; i++ {
			a.rcReadData[whichRead][i] = rcTranslationTable[read.Seq[readLen-i-1]]
			a.rcQuality[whichRead][i] = read.Qual[readLen-i-1]
			countOfNs += int(nTable[read.Seq[i]])
		}
		a.reads[whichRead][Forward] = readData{seq: read.Seq, qual: read.Qual}
		a.reads[whichRead][ReverseComplement] = readData{
			seq:  a.rcReadData[whichRead][:readLen],
			qual: a.rcQuality[whichRead][:readLen],
		}
	}

	if countOfNs > a.opts.MaxK {
		setNotFound(result)
		return 0, true
	}

	// Reversed bases for the backward scorer.
	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		for dir := 0; dir < numDirections; dir++ {
			rd := &a.reads[whichRead][dir]
			n := rd.len()
			for i := 0; i < n; i++ {
				a.reversedRead[whichRead][dir][i] = rd.seq[n-i-1]
			}
		}
	}

	// Phase 1: seed lookups.
	var totalHits [NumReadsPerPair][numDirections]int64
	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		a.lookupSeedsForRead(whichRead, maxSeeds, &totalHits[whichRead], &popularSeedsSkipped[whichRead])
	}

	readWithMoreHits := 1
	if totalHits[0][Forward]+totalHits[0][ReverseComplement] > totalHits[1][Forward]+totalHits[1][ReverseComplement] {
		readWithMoreHits = 0
	}
	readWithFewerHits := 1 - readWithMoreHits

	// Phase 2: intersect the hit sets of each set pair.
	maxUsedBestPossibleScoreList := a.findCandidates(readWithFewerHits, readWithMoreHits)

	// Phase 3: score candidates in ascending lower-bound order.
	overflow := a.scoreCandidates(readWithFewerHits, readWithMoreHits, maxUsedBestPossibleScoreList,
		&scoresForAllAlignments, &scoresForNonAltAlignments,
		maxEditDistanceForSecondaryResults, secondaryResults, &nSecondaryResults)
	if overflow {
		return len(secondaryResults) + 1, false
	}

	// Choose which score set to emit.
	scoreSetToEmit := &scoresForAllAlignments
	if a.opts.AltAwareness &&
		scoresForNonAltAlignments.bestPairScore <= scoresForAllAlignments.bestPairScore+a.opts.MaxScoreGapToPreferNonAltAlignment {
		scoreSetToEmit = &scoresForNonAltAlignments
	}

	if scoreSetToEmit.bestPairScore == tooBigScoreValue {
		setNotFound(result)
		result.NumLVCalls = a.nLocationsScored - locationsScoredAtEntry
		return nSecondaryResults, true
	}

	scoreSetToEmit.fillInResult(result, popularSeedsSkipped)
	result.AlignedAsPair = true
	result.NumLVCalls = a.nLocationsScored - locationsScoredAtEntry
	if a.opts.AltAwareness && scoreSetToEmit == &scoresForNonAltAlignments &&
		(scoresForAllAlignments.bestResultGenomeLocation[0] != scoresForNonAltAlignments.bestResultGenomeLocation[0] ||
			scoresForAllAlignments.bestResultGenomeLocation[1] != scoresForNonAltAlignments.bestResultGenomeLocation[1]) {
		scoresForAllAlignments.fillInResult(firstALTResult, popularSeedsSkipped)
		firstALTResult.AlignedAsPair = true
		for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
			firstALTResult.Supplementary[whichRead] = true
		}
	}

	a.finalizeSecondaryResults(inputReads, result, scoreSetToEmit,
		maxEditDistanceForSecondaryResults, secondaryResults, &nSecondaryResults, maxSecondaryResultsToReturn)
	return nSecondaryResults, true
}

func setNotFound(result *PairedResult) {
	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		result.Location[whichRead] = genome.InvalidLocation
		result.Mapq[whichRead] = 0
		result.Score[whichRead] = ScoreAboveLimit
		result.Status[whichRead] = NotFound
		result.ClippingForReadAdjustment[whichRead] = 0
		result.UsedAffineGapScoring[whichRead] = false
		result.BasesClippedBefore[whichRead] = 0
		result.BasesClippedAfter[whichRead] = 0
		result.AGScore[whichRead] = ScoreAboveLimit
	}
	result.AlignedAsPair = false
}

// lookupSeedsForRead picks seeds across the read in wrapped order and
// records the index lookups into both directions' hit sets.
func (a *Aligner) lookupSeedsForRead(whichRead, maxSeeds int, totalHits *[numDirections]int64, popularSeedsSkipped *int) {
	read := &a.reads[whichRead][Forward]
	readLen := read.len()
	nPossibleSeeds := readLen - a.seedLen + 1
	a.seedUsed.clear(readLen)

	beginsDisjointHitSet := [numDirections]bool{true, true}
	nextSeedToTest := 0
	wrapCount := 0
	lookups := 0

	for lookups < nPossibleSeeds && lookups < maxSeeds {
		if nextSeedToTest >= nPossibleSeeds {
			wrapCount++
			beginsDisjointHitSet[Forward] = true
			beginsDisjointHitSet[ReverseComplement] = true
			if wrapCount >= a.seedLen {
				// Not enough valid seeds in this read to reach the target.
				break
			}
			nextSeedToTest = wrappedSeedOffset(a.seedLen, wrapCount)
		}

		for nextSeedToTest < nPossibleSeeds && a.seedUsed.get(nextSeedToTest) {
			nextSeedToTest++
		}
		if nextSeedToTest >= nPossibleSeeds {
			// Used seeds pushed us past the end; wrap around.
			continue
		}

		a.seedUsed.set(nextSeedToTest)

		seed, ok := seedindex.MakeSeed(read.seq[nextSeedToTest : nextSeedToTest+a.seedLen])
		if !ok {
			// Contains an N.
			nextSeedToTest++
			continue
		}

		var hits32 [numDirections][]uint32
		var hits64 [numDirections][]genome.Location
		if a.index.Has64BitLocations() {
			hits64[Forward], hits64[ReverseComplement] = a.index.LookupSeed(seed)
		} else {
			hits32[Forward], hits32[ReverseComplement] = a.index.LookupSeed32(seed)
		}

		lookups++
		for dir := 0; dir < numDirections; dir++ {
			offset := nextSeedToTest
			if Direction(dir) == ReverseComplement {
				offset = readLen - a.seedLen - nextSeedToTest
			}
			nHits := len(hits32[dir]) + len(hits64[dir])
			if nHits < a.opts.MaxBigHits {
				totalHits[dir] += int64(nHits)
				a.hitSets[whichRead][dir].recordLookup(offset, hits32[dir], hits64[dir], beginsDisjointHitSet[dir])
				beginsDisjointHitSet[dir] = false
			} else {
				*popularSeedsSkipped++
			}
		}

		// If there aren't enough seeds left to reach the end of the read,
		// space the remainder out more or less evenly.
		if (maxSeeds-lookups+1)*a.seedLen+nextSeedToTest < nPossibleSeeds {
			nextSeedToTest += (nPossibleSeeds - nextSeedToTest - 1) / (maxSeeds - lookups + 1)
		} else {
			nextSeedToTest += a.seedLen
		}
	}
}

// findCandidates runs the descending intersection walk for both set
// pairs, filling the mate-candidate pools and the best-possible-score
// buckets. It returns the highest bucket used.
func (a *Aligner) findCandidates(readWithFewerHits, readWithMoreHits int) int {
	maxSpacing := genome.Location(a.opts.MaxSpacing)
	maxUsed := 0

	for whichSetPair := 0; whichSetPair < numSetPairs; whichSetPair++ {
		var setPair [NumReadsPerPair]*hitSet
		if whichSetPair == 0 {
			setPair[0] = a.hitSets[0][Forward]
			setPair[1] = a.hitSets[1][ReverseComplement]
		} else {
			setPair[0] = a.hitSets[0][ReverseComplement]
			setPair[1] = a.hitSets[1][Forward]
		}

		fewerSide := setPair[readWithFewerHits]
		moreSide := setPair[readWithMoreHits]
		matePool := a.scoringMateCandidates[whichSetPair]

		lastFewerLocation, lastFewerSeedOffset, ok := fewerSide.firstHit()
		if !ok {
			continue // no hits in this direction pairing
		}

		lastMoreLocation := genome.InvalidLocation
		lastMoreSeedOffset := 0
		outOfMoreHitsLocations := false

		// Loop invariant: lastFewerLocation is the highest location on the
		// fewer-hits side not yet considered, lastMoreLocation likewise for
		// the more-hits side (higher ones within range are already in the
		// mate pool).
		for {
			if lastMoreLocation > lastFewerLocation+maxSpacing {
				// More-hits side is too high to mate this candidate; bring
				// it down.
				lastMoreLocation, lastMoreSeedOffset, ok = moreSide.nextHitLE(lastFewerLocation + maxSpacing)
				if !ok {
					break // end of all the mates; done with this set pair
				}
			}

			nUsed := a.scoringMateCandidateUsed[whichSetPair]
			if (lastMoreLocation+maxSpacing < lastFewerLocation || outOfMoreHitsLocations) &&
				(nUsed == 0 || !locationIsWithin(matePool[nUsed-1].location, lastFewerLocation, maxSpacing)) {
				// No mates for this fewer-hits candidate.
				if outOfMoreHitsLocations {
					break
				}
				lastFewerLocation, lastFewerSeedOffset, ok = fewerSide.nextHitLE(lastMoreLocation + maxSpacing)
				if !ok {
					break
				}
				continue
			}

			// Record every more-hits hit within range as a mate candidate.
			for lastMoreLocation+maxSpacing >= lastFewerLocation && !outOfMoreHitsLocations {
				bestPossibleScore := 0
				if !a.opts.NoTruncation {
					bestPossibleScore = moreSide.bestPossibleScore()
				}
				if nUsed >= len(matePool) {
					log.Fatalf("pairedend: ran out of mate candidate pool entries; " +
						"rerunning with a larger MaxCandidatePoolSize may help")
				}
				matePool[nUsed].init(lastMoreLocation, int32(bestPossibleScore), lastMoreSeedOffset)
				nUsed++
				a.scoringMateCandidateUsed[whichSetPair] = nUsed

				lastMoreLocation, lastMoreSeedOffset, ok = moreSide.nextLowerHit()
				if !ok {
					lastMoreLocation = 0
					outOfMoreHitsLocations = true
				}
			}

			// Now the fewer-hits candidate itself. Its mates may include
			// candidates recorded for an earlier, nearby fewer-hits hit, so
			// the scan has to look at the whole in-range tail of the pool.
			bestPossibleScoreForFewer := 0
			if !a.opts.NoTruncation {
				bestPossibleScoreForFewer = fewerSide.bestPossibleScore()
			}

			lowestBestPossibleScoreOfAnyPossibleMate := a.opts.MaxK + a.opts.ExtraSearchDepth
			for i := nUsed - 1; i >= 0; i-- {
				if matePool[i].location > lastFewerLocation+maxSpacing {
					break
				}
				if int(matePool[i].bestPossibleScore) < lowestBestPossibleScoreOfAnyPossibleMate {
					lowestBestPossibleScoreOfAnyPossibleMate = int(matePool[i].bestPossibleScore)
				}
			}

			if lowestBestPossibleScoreOfAnyPossibleMate+bestPossibleScoreForFewer <= a.opts.MaxK+a.opts.ExtraSearchDepth {
				// A pair we can't prove is too bad; queue it.
				if a.scoringCandidatePoolUsed >= len(a.scoringCandidatePool) {
					log.Fatalf("pairedend: ran out of scoring candidate pool entries; " +
						"rerunning with a larger MaxCandidatePoolSize may help")
				}
				bucket := 0
				if !a.opts.NoOrderedEvaluation {
					bucket = lowestBestPossibleScoreOfAnyPossibleMate + bestPossibleScoreForFewer
				}
				i := int32(a.scoringCandidatePoolUsed)
				a.scoringCandidatePool[i] = scoringCandidate{
					location:          lastFewerLocation,
					seedOffset:        lastFewerSeedOffset,
					whichSetPair:      int32(whichSetPair),
					bestPossibleScore: int32(bestPossibleScoreForFewer),
					mateIndex:         int32(nUsed - 1),
					next:              a.scoringCandidates[bucket],
					mergeAnchor:       none,
				}
				a.scoringCandidates[bucket] = i
				a.scoringCandidatePoolUsed++
				if bucket > maxUsed {
					maxUsed = bucket
				}
			}

			lastFewerLocation, lastFewerSeedOffset, ok = fewerSide.nextLowerHit()
			if !ok {
				break
			}
		}
	}
	return maxUsed
}

// computeScoreLimit returns how bad a score is still worth computing for
// a candidate, given the current bests. Non-ALT alignments stay
// interesting while within the preference gap of the best ALT alignment;
// ALT alignments must beat the best non-ALT by more than the gap.
func (a *Aligner) computeScoreLimit(nonALTAlignment bool, all, nonALT *scoreSet) int {
	gap := a.opts.MaxScoreGapToPreferNonAltAlignment
	if nonALTAlignment {
		return a.opts.ExtraSearchDepth + min(a.opts.MaxK, min(all.bestPairScore+gap, nonALT.bestPairScore))
	}
	return a.opts.ExtraSearchDepth + min(a.opts.MaxK, min(all.bestPairScore, nonALT.bestPairScore-gap))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
