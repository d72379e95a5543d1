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

// Package pe implements the paired-end candidate reducer and
// best-mapping selector: cross-mate candidate filtering under the
// insert-size constraint, sum-of-errors pairing, MAPQ, and reservoir
// sampling over ties.
package pe

// ReduceOneDirection keeps only the candidates1/candidates2 positions
// (both packed refId<<32|refPos, already sorted ascending — refId
// dominates the high bits so cross-reference-sequence pairs naturally
// fail the distance check below) that have a potential mate within
// maxInsertSize, mirroring
// ReduceCandidatesForPairedEndReadOnOneDirection exactly: a two-pointer
// sweep that, for every candidates1[i1] kept, also keeps every
// candidates2 entry in its insert-size window that hasn't already been
// emitted by an earlier i1.
func ReduceOneDirection(candidates1, candidates2 []uint64, maxInsertSize uint32, outFiltered1, outFiltered2 []uint64) ([]uint64, []uint64) {
	outFiltered1 = outFiltered1[:0]
	outFiltered2 = outFiltered2[:0]

	var i1, i2 uint32
	previousEndI2 := i2
	for i1 < uint32(len(candidates1)) && i2 < uint32(len(candidates2)) {
		switch {
		case candidates1[i1] > candidates2[i2]+uint64(maxInsertSize):
			i2++
		case candidates2[i2] > candidates1[i1]+uint64(maxInsertSize):
			i1++
		default:
			outFiltered1 = append(outFiltered1, candidates1[i1])
			currentI2 := i2
			for currentI2 < uint32(len(candidates2)) && candidates2[currentI2] <= candidates1[i1]+uint64(maxInsertSize) {
				if currentI2 >= previousEndI2 {
					outFiltered2 = append(outFiltered2, candidates2[currentI2])
				}
				currentI2++
			}
			previousEndI2 = currentI2
			i1++
		}
	}
	return outFiltered1, outFiltered2
}

// ReducedCandidates holds the four filtered candidate lists
// ReduceCandidatesForPairedEndRead produces: read 1's candidates
// restricted to those with a plausible mate among read 2's candidates
// on the complementary strand, and vice versa.
type ReducedCandidates struct {
	FilteredPositive1 []uint64
	FilteredNegative1 []uint64
	FilteredPositive2 []uint64
	FilteredNegative2 []uint64
}

// Reduce applies ReduceOneDirection to both strand pairings:
// (positive1, negative2) and (negative1, positive2), exactly as
// ReduceCandidatesForPairedEndRead does — read 1 forward only pairs
// plausibly with read 2 reverse-complement, and vice versa.
func Reduce(positive1, negative1, positive2, negative2 []uint64, maxInsertSize uint32, r *ReducedCandidates) {
	r.FilteredPositive1, r.FilteredNegative2 = ReduceOneDirection(positive1, negative2, maxInsertSize, r.FilteredPositive1, r.FilteredNegative2)
	r.FilteredNegative1, r.FilteredPositive2 = ReduceOneDirection(negative1, positive2, maxInsertSize, r.FilteredNegative1, r.FilteredPositive2)
}
