package landauvishkin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func q40(n int) []byte {
	return []byte(strings.Repeat("I", n))
}

func TestExactMatch(t *testing.T) {
	s := NewScorer()
	text := []byte("ACGTACGTACGTACGT")
	score, prob, d := s.ComputeEditDistance(text, text, q40(len(text)), 5)
	assert.Equal(t, 0, score)
	assert.Equal(t, 0, d)
	assert.InDelta(t, 0.984, prob, 0.01) // (1-0.001)^16
}

func TestSubstitution(t *testing.T) {
	s := NewScorer()
	text := []byte("ACGTACGTACGTACGT")
	pattern := []byte("ACGTACGAACGTACGT")
	score, prob, d := s.ComputeEditDistance(text, pattern, q40(len(pattern)), 5)
	assert.Equal(t, 1, score)
	assert.Equal(t, 0, d)
	assert.True(t, prob > 0 && prob < 0.001)
}

func TestDeletionFromPattern(t *testing.T) {
	s := NewScorer()
	// Pattern is the text with one base removed: aligning consumes one
	// extra text base.
	text := []byte("ACGTACCAGTTGACCA")
	pattern := append([]byte(nil), text[:7]...)
	pattern = append(pattern, text[8:]...)
	score, _, d := s.ComputeEditDistance(text, pattern, q40(len(pattern)), 5)
	assert.Equal(t, 1, score)
	assert.Equal(t, 1, d)
}

func TestInsertionIntoPattern(t *testing.T) {
	s := NewScorer()
	text := []byte("ACGTACCAGTTGACCA")
	pattern := append([]byte(nil), text[:7]...)
	pattern = append(pattern, 'T', 'T')
	pattern = append(pattern, text[7:]...)
	score, _, d := s.ComputeEditDistance(text, pattern, q40(len(pattern)), 5)
	assert.Equal(t, 2, score)
	assert.Equal(t, -2, d)
}

func TestLimit(t *testing.T) {
	s := NewScorer()
	text := []byte("AAAAAAAAAAAAAAAA")
	pattern := []byte("AACCAACCAACCAACC")
	score, prob, _ := s.ComputeEditDistance(text, pattern, q40(len(pattern)), 3)
	assert.Equal(t, ScoreAboveLimit, score)
	assert.Equal(t, 0.0, prob)

	score, _, _ = s.ComputeEditDistance(text, pattern, q40(len(pattern)), 8)
	assert.Equal(t, 8, score)
}

func TestEmptyPattern(t *testing.T) {
	s := NewScorer()
	score, prob, d := s.ComputeEditDistance([]byte("ACGT"), nil, nil, 3)
	assert.Equal(t, 0, score)
	assert.Equal(t, 1.0, prob)
	assert.Equal(t, 0, d)
}

func TestProbabilityMonotoneInEdits(t *testing.T) {
	s := NewScorer()
	text := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	one := append([]byte(nil), text...)
	one[10] = 'C'
	two := append([]byte(nil), one...)
	two[20] = 'C'

	_, p0, _ := s.ComputeEditDistance(text, text, q40(len(text)), 8)
	_, p1, _ := s.ComputeEditDistance(text, one, q40(len(one)), 8)
	_, p2, _ := s.ComputeEditDistance(text, two, q40(len(two)), 8)
	assert.True(t, p0 > p1 && p1 > p2)
}

func TestQualityAffectsProbability(t *testing.T) {
	s := NewScorer()
	text := []byte("ACGTACGTACGTACGT")
	pattern := []byte("ACGTACGAACGTACGT")

	lowQ := q40(len(pattern))
	lowQ[7] = '#' // Phred 2 at the mismatch
	_, pLow, _ := s.ComputeEditDistance(text, pattern, lowQ, 5)
	_, pHigh, _ := s.ComputeEditDistance(text, pattern, q40(len(pattern)), 5)
	assert.True(t, pLow > pHigh, "low quality mismatch should be more probable (%g vs %g)", pLow, pHigh)
}
