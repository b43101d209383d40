package pairedend

import "github.com/grailbio/align/genome"

// Direction distinguishes the forward read from its reverse complement.
type Direction int

const (
	// Forward is the read as sequenced.
	Forward Direction = 0
	// ReverseComplement is the opposite strand.
	ReverseComplement Direction = 1

	numDirections = 2
	// NumReadsPerPair is the number of mates in a pair.
	NumReadsPerPair = 2
	numSetPairs     = 2
)

func oppositeDirection(d Direction) Direction { return 1 - d }

// AlignmentStatus classifies one end of a result.
type AlignmentStatus int

const (
	// NotFound means no alignment within the edit bound exists.
	NotFound AlignmentStatus = iota
	// SingleHit is a confident alignment.
	SingleHit
	// MultipleHits is an alignment with credible competitors.
	MultipleHits
)

// ScoreAboveLimit is the score sentinel for an end that could not be
// aligned within its score limit.
const ScoreAboveLimit = -1

// PairedResult is one candidate placement of a read pair. Indices 0 and 1
// refer to the first and second mate as passed to Align.
type PairedResult struct {
	Status    [NumReadsPerPair]AlignmentStatus
	Location  [NumReadsPerPair]genome.Location
	Direction [NumReadsPerPair]Direction
	Mapq      [NumReadsPerPair]int
	Score     [NumReadsPerPair]int

	// ScorePriorToClipping preserves each end's score before the
	// alignment adjuster ran.
	ScorePriorToClipping      [NumReadsPerPair]int
	ClippingForReadAdjustment [NumReadsPerPair]int
	UsedAffineGapScoring      [NumReadsPerPair]bool
	BasesClippedBefore        [NumReadsPerPair]int
	BasesClippedAfter         [NumReadsPerPair]int
	AGScore                   [NumReadsPerPair]int

	// Supplementary marks the extra ALT result emitted alongside a
	// preferred non-ALT primary.
	Supplementary [NumReadsPerPair]bool

	// AlignedAsPair is true when both ends were placed by the pairwise
	// search (as opposed to single-end rescue, which other aligners may
	// fill in).
	AlignedAsPair bool

	// NumLVCalls counts scorer invocations that went into this result;
	// NumSmallHits is kept for parity with single-end results.
	NumLVCalls   int
	NumSmallHits int
}

// AlignmentAdjuster post-processes results (e.g. re-clipping alignments
// that hang off a contig). Implementations must be re-entrant.
type AlignmentAdjuster interface {
	AdjustAlignments(reads [NumReadsPerPair]*Read, result *PairedResult)
}
