package affinegap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestScorer() *Scorer {
	// bwa-mem style penalties.
	return NewScorer(1, 4, 6, 1, 512)
}

func q40(n int) []byte {
	return []byte(strings.Repeat("I", n))
}

func TestPerfectTail(t *testing.T) {
	s := newTestScorer()
	text := []byte("ACGTACGTACGTACGTACGTACGT")
	pattern := text[:20]
	agScore, score, prob, netIndel, clipped := s.ComputeScore(text, pattern, q40(len(pattern)), 8, 16)

	assert.Equal(t, 0, score)
	assert.Equal(t, 20+16, agScore) // pattern matches plus the seed reward
	assert.Equal(t, 0, netIndel)
	assert.Equal(t, 0, clipped)
	assert.True(t, prob > 0.9)
}

func TestSubstitutionScoring(t *testing.T) {
	s := newTestScorer()
	text := []byte("ACGTACGTACGTACGTACGT")
	pattern := append([]byte(nil), text...)
	pattern[10] = 'A' // G -> A
	agScore, score, _, netIndel, _ := s.ComputeScore(text, pattern, q40(len(pattern)), 8, 0)

	assert.Equal(t, 1, score)
	assert.Equal(t, 19*1-1*4, agScore)
	assert.Equal(t, 0, netIndel)
}

func TestDeletionScoring(t *testing.T) {
	s := newTestScorer()
	text := []byte("ACGTACCAGTTGACCATTGA")
	// Remove two text bases from the pattern: a 2-base deletion.
	pattern := append([]byte(nil), text[:8]...)
	pattern = append(pattern, text[10:]...)
	agScore, score, _, netIndel, _ := s.ComputeScore(text, pattern, q40(len(pattern)), 8, 0)

	assert.Equal(t, 2, score) // two gap columns
	assert.Equal(t, 2, netIndel)
	// 18 matches minus gap open+extend for a 2-column gap.
	assert.Equal(t, 18*1-(6+1)-1, agScore)
}

func TestAboveLimit(t *testing.T) {
	s := newTestScorer()
	text := []byte("AAAAAAAAAAAAAAAA")
	pattern := []byte("CCCCCCCCCCCCCCCC")
	agScore, score, _, _, _ := s.ComputeScore(text, pattern, q40(len(pattern)), 3, 0)
	assert.Equal(t, ScoreAboveLimit, score)
	assert.Equal(t, ScoreAboveLimit, agScore)
}

func TestBandedAgreesWithFull(t *testing.T) {
	s := newTestScorer()
	text := []byte("ACGTACCAGTTGACCATTGACCGTATTGACCA")
	pattern := append([]byte(nil), text[:12]...)
	pattern = append(pattern, text[13:]...) // one-base deletion

	agFull, scoreFull, _, dFull, _ := s.ComputeScore(text, pattern, q40(len(pattern)), 4, 8)
	agBand, scoreBand, _, dBand, _ := s.ComputeScoreBanded(text, pattern, q40(len(pattern)), 4, 8)
	assert.Equal(t, agFull, agBand)
	assert.Equal(t, scoreFull, scoreBand)
	assert.Equal(t, dFull, dBand)
}

func TestEmptyPattern(t *testing.T) {
	s := newTestScorer()
	agScore, score, prob, netIndel, clipped := s.ComputeScore([]byte("ACGT"), nil, nil, 4, 16)
	assert.Equal(t, 16, agScore)
	assert.Equal(t, 0, score)
	assert.Equal(t, 1.0, prob)
	assert.Equal(t, 0, netIndel)
	assert.Equal(t, 0, clipped)
}
