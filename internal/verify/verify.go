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

// Package verify scores minimizer candidates with the banded Myers DP
// (internal/align) and tracks the best/second-best error counts for a
// read.
package verify

import (
	"chromap/internal/align"
	"chromap/internal/model"
)

// Reference is the narrow slice of the external Reference collaborator
// the verifier needs.
type Reference interface {
	SequenceAt(refID uint32) []byte
	SequenceLengthAt(refID uint32) uint32
}

// Tracker accumulates the single-pass best/second-best mapping
// statistics a read's candidates are scored against.
type Tracker struct {
	MinErrors          int32
	NumBest            int
	SecondMinErrors    int32
	NumSecondBest      int
}

// Reset reinitializes the tracker for a new read/end, with
// minErrors/secondMinErrors starting one above the threshold so the
// first verified candidate always registers as the new best.
func (t *Tracker) Reset(errorThreshold int) {
	t.MinErrors = int32(errorThreshold) + 1
	t.NumBest = 0
	t.SecondMinErrors = int32(errorThreshold) + 1
	t.NumSecondBest = 0
}

// Observe folds one candidate's verification result into the tracker's
// running min/second-min bookkeeping.
func (t *Tracker) Observe(numErrors int32) {
	switch {
	case numErrors < t.MinErrors:
		t.SecondMinErrors = t.MinErrors
		t.NumSecondBest = t.NumBest
		t.MinErrors = numErrors
		t.NumBest = 1
	case numErrors == t.MinErrors:
		t.NumBest++
	case numErrors == t.SecondMinErrors:
		t.NumSecondBest++
	}
}

// VerifyCandidates verifies every candidate in positive and negative
// against the read (forward orientation) and its precomputed reverse
// complement, appending surviving DraftMappings to outPositive/outNegative
// and folding every verified candidate (even rejected ones contribute to
// the "over-threshold" accounting via OverThreshold, which never equals
// numErrors<=e so never gets Observed) into tracker.
func VerifyCandidates(v *align.Verifier, ref Reference, readLen int, forward, revcomp []byte,
	positive, negative []model.Candidate, tracker *Tracker,
	outPositive, outNegative []model.DraftMapping) ([]model.DraftMapping, []model.DraftMapping) {

	e := v.E
	outPositive = verifyOneDirection(v, ref, readLen, forward, positive, false, tracker, outPositive[:0])
	outNegative = verifyOneDirection(v, ref, readLen, revcomp, negative, true, tracker, outNegative[:0])
	_ = e
	return outPositive, outNegative
}

func verifyOneDirection(v *align.Verifier, ref Reference, readLen int, text []byte,
	candidates []model.Candidate, isNegative bool, tracker *Tracker, out []model.DraftMapping) []model.DraftMapping {

	e := v.E
	for _, c := range candidates {
		refID := c.RefID()
		position := c.RefPos()
		if isNegative {
			if position+1 < uint32(readLen) {
				continue
			}
			position = position - uint32(readLen) + 1
		}

		refLen := ref.SequenceLengthAt(refID)
		if position < uint32(e) || position >= refLen || position+uint32(readLen)+uint32(e) >= refLen {
			continue
		}

		seq := ref.SequenceAt(refID)
		windowStart := position - uint32(e)
		window := seq[windowStart : windowStart+uint32(readLen)+uint32(2*e)]

		numErrors, endPos := v.Align(window, text)
		if numErrors > e {
			continue
		}

		tracker.Observe(int32(numErrors))

		var endRefPos uint32
		if !isNegative {
			endRefPos = c.RefPos() - uint32(e) + uint32(endPos)
		} else {
			endRefPos = c.RefPos() - uint32(readLen) + 1 - uint32(e) + uint32(endPos)
		}

		out = append(out, model.DraftMapping{
			NumErrors:      int32(numErrors),
			PackedPosition: model.PackRefPosition(refID, endRefPos),
		})
	}
	return out
}

// ClampedWindowStart computes the verification-window start position
// for a final (end-position-known) mapping, clamped to the contig
// boundary: when the naive start position position+1-readLen-e would
// be negative it is 0; when the window would run past the contig end,
// it's replaced with contigLen-e-readLen rather than merely clipped.
func ClampedWindowStart(position uint32, readLen, e int, contigLen uint32) uint32 {
	var start uint32
	if position+1 > uint32(readLen+e) {
		start = position + 1 - uint32(readLen) - uint32(e)
	} else {
		start = 0
	}
	if start+uint32(readLen)+uint32(2*e) >= contigLen {
		start = contigLen - uint32(e) - uint32(readLen)
	}
	return start
}
