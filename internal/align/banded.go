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

// Package align implements Myers' bit-parallel edit-distance DP,
// restricted to a fixed diagonal band, plus start/end position
// recovery. It is not safe for concurrent use by multiple goroutines;
// callers keep one Verifier per worker.
package align

import "fmt"

// base-to-index mapping used inside the DP: {A,C,G,T,N}->{0..4}. N
// always mismatches: Peq[baseN] is cleared before every column, so an N
// in either the window or the read never matches anything, not even N.
const (
	baseA = 0
	baseC = 1
	baseG = 2
	baseT = 3
	baseN = 4
)

var baseIndex [256]uint8

func init() {
	for i := range baseIndex {
		baseIndex[i] = baseN
	}
	baseIndex['A'] = baseA
	baseIndex['a'] = baseA
	baseIndex['C'] = baseC
	baseIndex['c'] = baseC
	baseIndex['G'] = baseG
	baseIndex['g'] = baseG
	baseIndex['T'] = baseT
	baseIndex['t'] = baseT
}

// Verifier runs the banded Myers DP for a fixed error threshold e. The
// band width is 2e+1 bits, so 2e+1 must fit in a uint32 (e <= 15);
// CheckErrorThreshold rejects anything wider at configuration time.
type Verifier struct {
	E int
}

// NewVerifier returns a Verifier for the given error threshold.
func NewVerifier(errorThreshold int) (*Verifier, error) {
	if err := CheckErrorThreshold(errorThreshold); err != nil {
		return nil, err
	}
	return &Verifier{E: errorThreshold}, nil
}

// CheckErrorThreshold rejects error thresholds whose band doesn't fit
// in a 32-bit word (2*e+1 <= 31, i.e. e <= 15).
func CheckErrorThreshold(e int) error {
	if e < 0 {
		return fmt.Errorf("error threshold must be >= 0, got %d", e)
	}
	if 2*e+1 > 31 {
		return fmt.Errorf("error threshold %d needs a %d-bit band, which exceeds the 31-bit Myers word capacity", e, 2*e+1)
	}
	return nil
}

// OverThreshold is the sentinel returned by Align when no alignment
// within the band scores <= e.
func (v *Verifier) OverThreshold() int {
	return v.E + 1
}

// Align runs the banded DP of pattern (the reference window, length
// readLen+2e) against text (the read, length readLen). It returns the
// minimum number of errors within the band (or OverThreshold() if none)
// and the end position of the best alignment within pattern.
//
// The band is centered on the diagonal, width 2e+1, with a 3e
// over-threshold shortcut that bails out once every cell in the current
// column exceeds the budget.
func (v *Verifier) Align(pattern, text []byte) (numErrors int, endPosition int) {
	e := v.E
	readLen := len(text)

	var peq [5]uint32
	for i := 0; i < 2*e; i++ {
		b := baseIndex[pattern[i]]
		peq[b] |= 1 << uint(i)
	}

	highestBitInBandMask := uint32(1) << uint(2*e)
	const lowestBitInBandMask = uint32(1)

	var vp, vn, x, d0, hn, hp uint32
	numErrorsAtBandStart := 0

	for i := 0; i < readLen; i++ {
		patternBase := baseIndex[pattern[i+2*e]]
		peq[patternBase] |= highestBitInBandMask
		peq[baseN] = 0

		x = peq[baseIndex[text[i]]] | vn
		d0 = ((vp + (x & vp)) ^ vp) | x
		hn = vp & d0
		hp = vn | ^(vp | d0)
		x = d0 >> 1
		vn = x & hp
		vp = hn | ^(x | hp)

		numErrorsAtBandStart += 1 - int(d0&lowestBitInBandMask)
		if numErrorsAtBandStart > 3*e {
			return v.OverThreshold(), -1
		}

		for ai := range peq {
			peq[ai] >>= 1
		}
	}

	bandStartPosition := readLen - 1
	minErrors := numErrorsAtBandStart
	endPosition = bandStartPosition
	for i := 0; i < 2*e; i++ {
		numErrorsAtBandStart += int((vp >> uint(i)) & 1)
		numErrorsAtBandStart -= int((vn >> uint(i)) & 1)
		if numErrorsAtBandStart < minErrors {
			minErrors = numErrorsAtBandStart
			endPosition = bandStartPosition + 1 + i
		}
	}
	return minErrors, endPosition
}

// Traceback recovers the start position in pattern of the alignment
// with the given minErrors. It first checks whether the plain Hamming
// distance over pattern[e:e+readLen] already equals minErrors (i.e. a
// gap-free alignment) before falling back to running the DP again on
// the reversed pattern/text.
func (v *Verifier) Traceback(minErrors int, pattern, text []byte) int {
	e := v.E
	readLen := len(text)

	if minErrors == 0 {
		return e
	}

	errorCount := 0
	for i := 0; i < readLen; i++ {
		if pattern[i+e] != text[i] || baseIndex[text[i]] == baseN {
			errorCount++
		}
	}
	if errorCount == minErrors {
		return e
	}

	var peq [5]uint32
	for i := 0; i < 2*e; i++ {
		b := baseIndex[pattern[readLen-1+2*e-i]]
		peq[b] |= 1 << uint(i)
	}

	highestBitInBandMask := uint32(1) << uint(2*e)
	const lowestBitInBandMask = uint32(1)

	var vp, vn, x, d0, hn, hp uint32
	numErrorsAtBandStart := 0

	for i := 0; i < readLen; i++ {
		patternBase := baseIndex[pattern[readLen-1-i]]
		peq[patternBase] |= highestBitInBandMask
		peq[baseN] = 0

		x = peq[baseIndex[text[readLen-1-i]]] | vn
		d0 = ((vp + (x & vp)) ^ vp) | x
		hn = vp & d0
		hp = vn | ^(vp | d0)
		x = d0 >> 1
		vn = x & hp
		vp = hn | ^(x | hp)

		numErrorsAtBandStart += 1 - int(d0&lowestBitInBandMask)

		for ai := range peq {
			peq[ai] >>= 1
		}
	}

	startPosition := 2 * e
	for i := 0; i < 2*e; i++ {
		numErrorsAtBandStart += int((vp >> uint(i)) & 1)
		numErrorsAtBandStart -= int((vn >> uint(i)) & 1)
		if numErrorsAtBandStart == minErrors {
			startPosition = 2*e - (1 + i)
		}
	}
	return startPosition
}
