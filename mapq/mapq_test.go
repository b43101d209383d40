// Copyright 2026 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package mapq

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestCompute(t *testing.T) {
	// Unique alignment: full confidence.
	expect.EQ(t, Compute(0.9, 0.9, 0, 0), Max)

	// Two equally likely placements.
	expect.EQ(t, Compute(1.0, 0.5, 0, 0), 3)

	// Dominated placement.
	expect.EQ(t, Compute(1.0, 0.01, 2, 0), 0)

	// No probability mass at all.
	expect.EQ(t, Compute(0, 0, 0, 0), 0)
}

func TestPopularSeedPenalty(t *testing.T) {
	clean := Compute(0.9, 0.9, 0, 0)
	penalized := Compute(0.9, 0.9, 0, 10)
	expect.True(t, penalized < clean)
	expect.True(t, penalized >= 0)
}

func TestMonotone(t *testing.T) {
	prev := Max + 1
	for _, frac := range []float64{1.0, 0.99, 0.9, 0.7, 0.5, 0.3} {
		m := Compute(1.0, frac, 0, 0)
		expect.True(t, m <= prev, "mapq must not increase as confidence drops")
		prev = m
	}
}
