package pairedend

import (
	"math"

	"github.com/grailbio/align/affinegap"
	"github.com/grailbio/align/genome"
	"github.com/grailbio/align/landauvishkin"
)

// scoreOutcome is everything scoring one end at one location produces.
type scoreOutcome struct {
	score                int
	matchProbability     float64
	genomeLocationOffset int
	usedAffineGapScoring bool
	basesClippedBefore   int
	basesClippedAfter    int
	agScore              int
}

// scoreLocation scores one read end against the genome at a candidate
// location. The work splits at the seed: an edit-distance pass forward
// from the seed's tail and a second pass backward from its head, each
// capped by what remains of scoreLimit. When affine gap scoring is on,
// alignments whose edit distance exceeds maxKForSameAlignment are
// rescored with affine gap penalties.
func (a *Aligner) scoreLocation(whichRead int, direction Direction, location genome.Location,
	seedOffset int, scoreLimit int) scoreOutcome {

	a.nLocationsScored++

	if a.opts.NoUkkonen { // turn off truncation
		scoreLimit = a.opts.MaxK + a.opts.ExtraSearchDepth
	}

	out := scoreOutcome{score: ScoreAboveLimit, agScore: -1}

	readToScore := &a.reads[whichRead][direction]
	readLen := readToScore.len()
	genomeDataLength := int64(readLen) + landauvishkin.MaxK // extra space in case the read has deletions
	data := a.genome.Substring(location, genomeDataLength)
	if data == nil {
		return out
	}

	seedLen := a.seedLen
	tailStart := seedOffset + seedLen

	// maxKForSameAlignment is the largest edit distance for which edit
	// distance and affine gap scoring pick the same alignment:
	// gapOpen + k*gapExtend >= k*subPenalty.
	maxKForSameAlignment := a.opts.GapOpenPenalty / (a.opts.SubPenalty - a.opts.GapExtendPenalty)

	matchProb1, matchProb2 := 1.0, 1.0
	score1, score2 := 0, 0
	agScore1 := seedLen * a.opts.MatchReward
	agScore2 := 0
	genomeLocationOffset := 0

	// Forward from the seed tail.
	if tailStart < readLen {
		score1, matchProb1, _ = a.lv.ComputeEditDistance(
			data[tailStart:], readToScore.seq[tailStart:], readToScore.qual[tailStart:], scoreLimit)
		agScore1 = (seedLen+readLen-tailStart-score1)*a.opts.MatchReward - score1*a.opts.SubPenalty
	}

	// Backward from the seed head, on reversed bases. The reverse
	// complement's quality string is the forward quality reversed, so the
	// opposite direction's tail supplies the reversed qualities.
	if score1 != landauvishkin.ScoreAboveLimit && seedOffset > 0 {
		limitLeft := scoreLimit - score1
		revText := a.reverseTextScratch[:0]
		backWant := int64(seedOffset) + landauvishkin.MaxK
		start := int64(location) + int64(seedOffset) - backWant
		if start < 0 {
			backWant += start
			start = 0
		}
		backData := a.genome.Substring(genome.Location(start), backWant)
		for i := int64(len(backData)) - 1; i >= 0; i-- {
			revText = append(revText, backData[i])
		}
		var netIndel int
		score2, matchProb2, netIndel = a.reverseLV.ComputeEditDistance(
			revText,
			a.reversedRead[whichRead][direction][readLen-seedOffset:readLen],
			a.reads[whichRead][oppositeDirection(direction)].qual[readLen-seedOffset:],
			limitLeft)
		genomeLocationOffset = -netIndel
		agScore2 = (seedOffset-score2)*a.opts.MatchReward - score2*a.opts.SubPenalty
	} else if score1 == landauvishkin.ScoreAboveLimit {
		return out
	}

	if score2 == landauvishkin.ScoreAboveLimit {
		return out
	}

	if a.opts.UseAffineGap && score1+score2 > maxKForSameAlignment {
		score1, score2 = 0, 0
		agScore1, agScore2 = seedLen*a.opts.MatchReward, 0
		out.usedAffineGapScoring = true
		genomeLocationOffset = 0

		if tailStart != readLen {
			patternLen := readLen - tailStart
			var prob float64
			var clipped int
			// Banded affine gap when the pattern is long and the band
			// needed is small.
			if patternLen >= 3*(2*scoreLimit+1) {
				agScore1, score1, prob, _, clipped = a.ag.ComputeScoreBanded(
					data[tailStart:], readToScore.seq[tailStart:], readToScore.qual[tailStart:], scoreLimit, seedLen)
			} else {
				agScore1, score1, prob, _, clipped = a.ag.ComputeScore(
					data[tailStart:], readToScore.seq[tailStart:], readToScore.qual[tailStart:], scoreLimit, seedLen)
			}
			matchProb1 = prob
			out.basesClippedAfter = clipped
		}
		if score1 == affinegap.ScoreAboveLimit {
			return scoreOutcome{score: ScoreAboveLimit, agScore: -1, usedAffineGapScoring: true}
		}
		if seedOffset != 0 {
			limitLeft := scoreLimit - score1
			patternLen := seedOffset
			revText := a.reverseTextScratch[:0]
			backWant := int64(seedOffset) + int64(limitLeft)
			start := int64(location) + int64(seedOffset) - backWant
			if start < 0 {
				backWant += start
				start = 0
			}
			backData := a.genome.Substring(genome.Location(start), backWant)
			for i := int64(len(backData)) - 1; i >= 0; i-- {
				revText = append(revText, backData[i])
			}
			var prob float64
			var clipped, netIndel int
			if patternLen >= 3*(2*limitLeft+1) {
				agScore2, score2, prob, netIndel, clipped = a.reverseAG.ComputeScoreBanded(
					revText,
					a.reversedRead[whichRead][direction][readLen-seedOffset:readLen],
					a.reads[whichRead][oppositeDirection(direction)].qual[readLen-seedOffset:],
					limitLeft, seedLen)
			} else {
				agScore2, score2, prob, netIndel, clipped = a.reverseAG.ComputeScore(
					revText,
					a.reversedRead[whichRead][direction][readLen-seedOffset:readLen],
					a.reads[whichRead][oppositeDirection(direction)].qual[readLen-seedOffset:],
					limitLeft, seedLen)
			}
			// The reverse half gets the seed reward too; take it back out
			// so it is counted once.
			agScore2 -= seedLen * a.opts.MatchReward
			if score2 == affinegap.ScoreAboveLimit {
				return scoreOutcome{score: ScoreAboveLimit, agScore: -1, usedAffineGapScoring: true}
			}
			matchProb2 = prob
			genomeLocationOffset = -netIndel
			out.basesClippedBefore = clipped
		}
	}

	if score1+score2 > scoreLimit {
		return scoreOutcome{score: ScoreAboveLimit, agScore: -1, usedAffineGapScoring: out.usedAffineGapScoring}
	}

	out.score = score1 + score2
	// Substring probabilities multiply; the seed itself contributes its
	// perfect-match term.
	out.matchProbability = matchProb1 * matchProb2 * math.Pow(1-snpProb, float64(seedLen))
	out.agScore = agScore1 + agScore2
	out.genomeLocationOffset = genomeLocationOffset
	return out
}

const snpProb = 0.001
