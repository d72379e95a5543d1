// Copyright © 2023-2024 Chromap contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package rescore is an opt-in recalibration pass over a read's banded
// Myers draft mappings, using gap-affine wavefront alignment instead of
// the banded edit-distance DP. It is wired as a real, opt-in feature
// (the map command's --recalibrate-mapq flag, off by default).
package rescore

import (
	"github.com/shenwei356/wfa"
)

// Recalibrator wraps a wfa.Aligner configured for gap-affine
// semi-global alignment.
type Recalibrator struct {
	aligner *wfa.Aligner
}

// New returns a Recalibrator with the given match/mismatch/gap-open/
// gap-extend penalties. match is unused: the wfa library always scores
// matches as 0.
func New(match, mismatch, gapOpen, gapExtend int) *Recalibrator {
	return &Recalibrator{
		aligner: wfa.New(&wfa.Penalties{
			Mismatch: uint32(mismatch),
			GapOpen:  uint32(gapOpen),
			GapExt:   uint32(gapExtend),
		}, wfa.DefaultOptions),
	}
}

// Refine re-aligns pattern (the reference window) against text (the
// read) with the wavefront aligner and returns the number of edits
// (mismatches + indel bases) its CIGAR reports, so callers can compare
// it against the banded-DP error count and keep whichever alignment is
// tighter.
func (r *Recalibrator) Refine(pattern, text []byte) (numEdits int, cigar string) {
	result, err := r.aligner.Align(text, pattern)
	if err != nil {
		return 0, ""
	}
	c := result.CIGAR()
	return countEdits(c), c
}

// countEdits sums the non-match operation lengths in a CIGAR string
// (X/I/D; M spans are assumed match-only here since the banded DP that
// seeds this recalibration never contributes an ambiguous M run).
func countEdits(cigar string) int {
	edits := 0
	num := 0
	for i := 0; i < len(cigar); i++ {
		c := cigar[i]
		if c >= '0' && c <= '9' {
			num = num*10 + int(c-'0')
			continue
		}
		switch c {
		case 'X', 'I', 'D':
			edits += num
		}
		num = 0
	}
	return edits
}
