package pairedend

import (
	"sort"

	"github.com/grailbio/base/log"

	"github.com/grailbio/align/genome"
)

// scoreCandidates is phase 3: pop candidates off the best-possible-score
// buckets in ascending order, score them and their mates, merge
// near-duplicates and keep the two score sets current. It reports whether
// the secondary-result buffer overflowed.
func (a *Aligner) scoreCandidates(readWithFewerHits, readWithMoreHits, maxUsedBestPossibleScoreList int,
	all, nonALT *scoreSet,
	maxEditDistanceForSecondaryResults int, secondaryResults []PairedResult, nSecondaryResults *int) bool {

	minSpacing := genome.Location(a.opts.MinSpacing)
	maxSpacing := genome.Location(a.opts.MaxSpacing)
	gap := a.opts.MaxScoreGapToPreferNonAltAlignment

	currentList := 0

scoringLoop:
	// Keep going while some list could still contain a score that matters
	// to either the ALT or the non-ALT outcome.
	for currentList <= maxUsedBestPossibleScoreList &&
		currentList <= a.opts.ExtraSearchDepth+min(a.opts.MaxK,
			max(min(all.bestPairScore, nonALT.bestPairScore-gap),
				min(all.bestPairScore+gap, nonALT.bestPairScore))) {

		if a.scoringCandidates[currentList] == none {
			currentList++
			continue
		}

		candidateIndex := a.scoringCandidates[currentList]
		candidate := &a.scoringCandidatePool[candidateIndex]

		nonALTAlignment := !a.opts.AltAwareness || !a.genome.IsALT(candidate.location)

		scoreLimit := a.computeScoreLimit(nonALTAlignment, all, nonALT)
		if currentList > scoreLimit {
			// Now that we know ALT vs non-ALT, this candidate's own limit
			// may be tighter than the loop bound; drop it.
			a.scoringCandidates[currentList] = candidate.next
			continue
		}

		fewer := a.scoreLocation(readWithFewerHits, setPairDirections[candidate.whichSetPair][readWithFewerHits],
			candidate.location, candidate.seedOffset, scoreLimit)
		candidate.usedAffineGapScoring = fewer.usedAffineGapScoring
		candidate.basesClippedBefore = fewer.basesClippedBefore
		candidate.basesClippedAfter = fewer.basesClippedAfter
		candidate.agScore = fewer.agScore

		if fewer.score != ScoreAboveLimit && fewer.score < int(candidate.bestPossibleScore) {
			log.Panicf("pairedend: scored %d below its lower bound %d", fewer.score, candidate.bestPossibleScore)
		}

		if fewer.score != ScoreAboveLimit {
			matePool := a.scoringMateCandidates[candidate.whichSetPair]
			mateIndex := candidate.mateIndex

			for {
				mate := &matePool[mateIndex]
				if !locationIsWithin(mate.location, candidate.location, minSpacing) &&
					int(mate.bestPossibleScore) <= scoreLimit-fewer.score {
					// Within range and not provably too poor; consider it.
					if mate.score == locationNotYetScored ||
						(mate.score == ScoreAboveLimit && mate.scoreLimit < scoreLimit-fewer.score) {
						out := a.scoreLocation(readWithMoreHits, setPairDirections[candidate.whichSetPair][readWithMoreHits],
							mate.location, mate.seedOffset, scoreLimit-fewer.score)
						mate.score = out.score
						mate.matchProbability = out.matchProbability
						mate.genomeOffset = out.genomeLocationOffset
						mate.usedAffineGapScoring = out.usedAffineGapScoring
						mate.basesClippedBefore = out.basesClippedBefore
						mate.basesClippedAfter = out.basesClippedAfter
						mate.agScore = out.agScore
						mate.scoreLimit = scoreLimit - fewer.score
						if mate.score != ScoreAboveLimit && mate.score < int(mate.bestPossibleScore) {
							log.Panicf("pairedend: mate scored %d below its lower bound %d", mate.score, mate.bestPossibleScore)
						}
					}

					// The cached score may come from a looser limit; recheck.
					if mate.score != ScoreAboveLimit && fewer.score+mate.score <= scoreLimit {
						pairProbability := mate.matchProbability * fewer.matchProbability
						pairScore := mate.score + fewer.score

						anchorIndex := a.findMergeAnchor(candidateIndex, fewer.genomeLocationOffset)
						var oldPairProbability float64
						eliminatedByMerge := false
						if anchorIndex == none {
							if a.mergeAnchorPoolUsed >= len(a.mergeAnchorPool) {
								log.Fatalf("pairedend: ran out of merge anchor pool entries; " +
									"rerunning with a larger MaxCandidatePoolSize may help")
							}
							anchorIndex = int32(a.mergeAnchorPoolUsed)
							a.mergeAnchorPoolUsed++
							a.mergeAnchorPool[anchorIndex].init(
								mate.location+genome.Location(mate.genomeOffset),
								candidate.location+genome.Location(fewer.genomeLocationOffset),
								pairProbability, pairScore)
							candidate.mergeAnchor = anchorIndex
						} else {
							candidate.mergeAnchor = anchorIndex
							oldPairProbability, eliminatedByMerge = a.mergeAnchorPool[anchorIndex].checkMerge(
								mate.location+genome.Location(mate.genomeOffset),
								candidate.location+genome.Location(fewer.genomeLocationOffset),
								pairProbability, pairScore)
						}

						if !eliminatedByMerge {
							all.backOutProbability(oldPairProbability)
							if nonALTAlignment {
								nonALT.backOutProbability(oldPairProbability)
							}

							// When the new pair displaces the best, the old
							// best may still be worth keeping as a secondary.
							if pairProbability > all.probabilityOfBestPair &&
								maxEditDistanceForSecondaryResults != -1 &&
								maxEditDistanceForSecondaryResults >= all.bestPairScore-pairScore {
								if *nSecondaryResults >= len(secondaryResults) {
									*nSecondaryResults = len(secondaryResults) + 1
									return true
								}
								sec := &secondaryResults[*nSecondaryResults]
								*sec = PairedResult{AlignedAsPair: true}
								for r := 0; r < NumReadsPerPair; r++ {
									sec.Direction[r] = all.bestResultDirection[r]
									sec.Location[r] = all.bestResultGenomeLocation[r]
									sec.Score[r] = all.bestResultScore[r]
									sec.Status[r] = MultipleHits
									sec.UsedAffineGapScoring[r] = all.bestResultUsedAffineGap[r]
									sec.BasesClippedBefore[r] = all.bestResultBasesClippedBefore[r]
									sec.BasesClippedAfter[r] = all.bestResultBasesClippedAfter[r]
									sec.AGScore[r] = all.bestResultAGScore[r]
								}
								*nSecondaryResults++
							}

							if nonALTAlignment {
								nonALT.updateBestHitIfNeeded(pairScore, pairProbability, fewer.score,
									readWithMoreHits, fewer.genomeLocationOffset,
									setPairDirections[candidate.whichSetPair], candidate, mate)
							}
							updatedBestScore := all.updateBestHitIfNeeded(pairScore, pairProbability, fewer.score,
								readWithMoreHits, fewer.genomeLocationOffset,
								setPairDirections[candidate.whichSetPair], candidate, mate)

							scoreLimit = a.computeScoreLimit(nonALTAlignment, all, nonALT)

							if !updatedBestScore && maxEditDistanceForSecondaryResults != -1 &&
								pairScore <= a.opts.MaxK &&
								maxEditDistanceForSecondaryResults >= pairScore-all.bestPairScore {
								// A secondary result to save.
								if *nSecondaryResults >= len(secondaryResults) {
									*nSecondaryResults = len(secondaryResults) + 1
									return true
								}
								sec := &secondaryResults[*nSecondaryResults]
								*sec = PairedResult{AlignedAsPair: true}
								sec.Direction[readWithMoreHits] = setPairDirections[candidate.whichSetPair][readWithMoreHits]
								sec.Direction[readWithFewerHits] = setPairDirections[candidate.whichSetPair][readWithFewerHits]
								sec.Location[readWithMoreHits] = mate.location + genome.Location(mate.genomeOffset)
								sec.Location[readWithFewerHits] = candidate.location + genome.Location(fewer.genomeLocationOffset)
								sec.Score[readWithMoreHits] = mate.score
								sec.Score[readWithFewerHits] = fewer.score
								sec.Status[0] = MultipleHits
								sec.Status[1] = MultipleHits
								sec.UsedAffineGapScoring[readWithMoreHits] = mate.usedAffineGapScoring
								sec.UsedAffineGapScoring[readWithFewerHits] = candidate.usedAffineGapScoring
								sec.BasesClippedBefore[readWithFewerHits] = candidate.basesClippedBefore
								sec.BasesClippedAfter[readWithFewerHits] = candidate.basesClippedAfter
								sec.BasesClippedBefore[readWithMoreHits] = mate.basesClippedBefore
								sec.BasesClippedAfter[readWithMoreHits] = mate.basesClippedAfter
								sec.AGScore[readWithMoreHits] = mate.agScore
								sec.AGScore[readWithFewerHits] = candidate.agScore
								*nSecondaryResults++
							}

							emitted := all.probabilityOfAllPairs
							if a.opts.AltAwareness {
								emitted = nonALT.probabilityOfAllPairs
							}
							if emitted >= a.opts.ProbabilityOfAllPairsCutoff && maxEditDistanceForSecondaryResults == -1 {
								// Nothing can rescue the mapping quality from
								// zero; stop looking.
								break scoringLoop
							}
						}
					}
				}

				if mateIndex == 0 ||
					!locationIsWithin(matePool[mateIndex-1].location, candidate.location, maxSpacing) {
					break // out of mate candidates
				}
				mateIndex--
			}
		}

		a.scoringCandidates[currentList] = candidate.next
	}
	return false
}

// findMergeAnchor scans neighbouring candidates in the arena for an
// existing cluster whose fewer-hits location is within the cluster radius
// and whose set pair matches. Arena order approximates genome order, so
// the scan stops at the first candidate outside the radius.
func (a *Aligner) findMergeAnchor(candidateIndex int32, fewerEndGenomeLocationOffset int) int32 {
	candidate := &a.scoringCandidatePool[candidateIndex]
	if candidate.mergeAnchor != none {
		return candidate.mergeAnchor
	}
	anchorLoc := candidate.location + genome.Location(fewerEndGenomeLocationOffset)

	for i := candidateIndex - 1; i >= 0; i-- {
		other := &a.scoringCandidatePool[i]
		if !locationIsWithin(other.location, anchorLoc, mergeClusterRadius) ||
			other.whichSetPair != candidate.whichSetPair {
			break
		}
		if other.mergeAnchor != none {
			return other.mergeAnchor
		}
	}
	for i := candidateIndex + 1; i < int32(a.scoringCandidatePoolUsed); i++ {
		other := &a.scoringCandidatePool[i]
		if !locationIsWithin(other.location, anchorLoc, mergeClusterRadius) ||
			other.whichSetPair != candidate.whichSetPair {
			break
		}
		if other.mergeAnchor != none {
			return other.mergeAnchor
		}
	}
	return none
}

// finalizeSecondaryResults prunes and orders the secondary results:
// alignment adjustment, score and status filtering, per-contig caps and
// the final cap on the count.
func (a *Aligner) finalizeSecondaryResults(inputReads [NumReadsPerPair]*Read, result *PairedResult,
	scoreSetToEmit *scoreSet, maxEditDistanceForSecondaryResults int,
	secondaryResults []PairedResult, nSecondaryResults *int, maxSecondaryResultsToReturn int) {

	for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
		result.ScorePriorToClipping[whichRead] = result.Score[whichRead]
	}

	if !a.opts.IgnoreAlignmentAdjustmentsForOm && a.Adjuster != nil {
		a.Adjuster.AdjustAlignments(inputReads, result)
		if result.Status[0] != NotFound && result.Status[1] != NotFound {
			scoreSetToEmit.bestPairScore = result.Score[0] + result.Score[1]
		}
		for i := 0; i < *nSecondaryResults; i++ {
			for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
				secondaryResults[i].ScorePriorToClipping[whichRead] = secondaryResults[i].Score[whichRead]
			}
			a.Adjuster.AdjustAlignments(inputReads, &secondaryResults[i])
			if secondaryResults[i].Status[0] != NotFound && secondaryResults[i].Status[1] != NotFound {
				scoreSetToEmit.bestPairScore = min(scoreSetToEmit.bestPairScore,
					secondaryResults[i].Score[0]+secondaryResults[i].Score[1])
			}
		}
	} else {
		for i := 0; i < *nSecondaryResults; i++ {
			for whichRead := 0; whichRead < NumReadsPerPair; whichRead++ {
				secondaryResults[i].ScorePriorToClipping[whichRead] = secondaryResults[i].Score[whichRead]
			}
		}
	}

	// Drop anything now too far from the best score, or unmapped.
	i := 0
	for i < *nSecondaryResults {
		if secondaryResults[i].Score[0]+secondaryResults[i].Score[1] >
			scoreSetToEmit.bestPairScore+maxEditDistanceForSecondaryResults ||
			secondaryResults[i].Status[0] == NotFound || secondaryResults[i].Status[1] == NotFound {
			secondaryResults[i] = secondaryResults[*nSecondaryResults-1]
			*nSecondaryResults--
		} else {
			i++
		}
	}

	if a.opts.MaxSecondaryAlignmentsPerContig > 0 && result.Status[0] != NotFound {
		a.limitSecondaryResultsPerContig(result, secondaryResults, nSecondaryResults)
	}

	if *nSecondaryResults > maxSecondaryResultsToReturn {
		sec := secondaryResults[:*nSecondaryResults]
		sort.Slice(sec, func(i, j int) bool {
			return sec[i].Score[0]+sec[i].Score[1] < sec[j].Score[0]+sec[j].Score[1]
		})
		*nSecondaryResults = maxSecondaryResultsToReturn
	}
}

// limitSecondaryResultsPerContig drops secondary results beyond the
// per-contig cap. Counts are epoch-stamped so the count array never needs
// an O(contigs) clear.
func (a *Aligner) limitSecondaryResultsPerContig(result *PairedResult, secondaryResults []PairedResult, nSecondaryResults *int) {
	a.contigCountEpoch++

	primaryContigNum := a.genome.ContigNumAt(result.Location[0])
	a.hitsPerContigCounts[primaryContigNum] = hitsPerContigCount{hits: 1, epoch: a.contigCountEpoch}

	anyContigHasTooManyResults := false
	for i := 0; i < *nSecondaryResults; i++ {
		// Both ends share a contig, so either location will do.
		contigNum := a.genome.ContigNumAt(secondaryResults[i].Location[0])
		if a.hitsPerContigCounts[contigNum].epoch != a.contigCountEpoch {
			a.hitsPerContigCounts[contigNum] = hitsPerContigCount{epoch: a.contigCountEpoch}
		}
		a.hitsPerContigCounts[contigNum].hits++
		if a.hitsPerContigCounts[contigNum].hits > a.opts.MaxSecondaryAlignmentsPerContig {
			anyContigHasTooManyResults = true
			break
		}
	}
	if !anyContigHasTooManyResults {
		return
	}

	// Sort by (contig, score) and keep the best per contig. The counting
	// below relies on the sorted order.
	sec := secondaryResults[:*nSecondaryResults]
	sort.Slice(sec, func(i, j int) bool {
		ci := a.genome.ContigNumAt(sec[i].Location[0])
		cj := a.genome.ContigNumAt(sec[j].Location[0])
		if ci != cj {
			return ci < cj
		}
		return sec[i].Score[0]+sec[i].Score[1] < sec[j].Score[0]+sec[j].Score[1]
	})

	currentContigNum := -1
	currentContigCount := 0
	destResult := 0
	for sourceResult := 0; sourceResult < *nSecondaryResults; sourceResult++ {
		contigNum := a.genome.ContigNumAt(sec[sourceResult].Location[0])
		if contigNum != currentContigNum {
			currentContigNum = contigNum
			currentContigCount = 0
			if contigNum == primaryContigNum {
				currentContigCount = 1
			}
		}
		currentContigCount++
		if currentContigCount <= a.opts.MaxSecondaryAlignmentsPerContig {
			sec[destResult] = sec[sourceResult]
			destResult++
		}
	}
	*nSecondaryResults = destResult
}
