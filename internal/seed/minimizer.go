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

// Package seed extracts minimizer sketches from reads and turns
// minimizer-index hits into clustered candidate positions.
package seed

import (
	"chromap/internal/model"

	"github.com/shenwei356/kmers"
)

// Sketcher extracts a window-minimizer sketch from a sequence: the
// k-mer with the smallest hash in every sliding window of w consecutive
// k-mers, deduplicated against its immediate predecessor.
type Sketcher struct {
	K int
	W int

	// reusable scratch, cleared-not-freed across reads.
	window []windowEntry
}

type windowEntry struct {
	hash   uint64
	offset int
}

// NewSketcher returns a Sketcher for the given k-mer size and window
// size.
func NewSketcher(k, w int) *Sketcher {
	return &Sketcher{K: k, W: w, window: make([]windowEntry, 0, w)}
}

// Sketch appends the minimizer sketch of seq to out and returns the
// extended slice. Each minimizer records the read-offset it was found
// at; its strand is always Positive.
func (s *Sketcher) Sketch(seq []byte, out []model.Minimizer) []model.Minimizer {
	if len(seq) < s.K {
		return out
	}

	s.window = s.window[:0]
	var lastHash uint64
	haveLast := false

	numKmers := len(seq) - s.K + 1
	for i := 0; i < numKmers; i++ {
		code, err := kmers.Encode(seq[i : i+s.K])
		if err != nil {
			continue
		}
		h := splitMix64(code)

		s.window = append(s.window, windowEntry{hash: h, offset: i})
		if len(s.window) > s.W {
			s.window = s.window[1:]
		}
		if len(s.window) < s.W && i != numKmers-1 {
			continue
		}

		best := s.window[0]
		for _, e := range s.window[1:] {
			if e.hash < best.hash {
				best = e
			}
		}

		if !haveLast || best.hash != lastHash {
			strand := model.Positive
			out = append(out, model.Minimizer{
				Hash:                 best.hash,
				PackedPositionStrand: model.PackPositionStrand(uint32(best.offset), strand),
			})
			lastHash = best.hash
			haveLast = true
		}
	}
	return out
}

// splitMix64 is a cheap, well-distributed integer hash used to turn a
// packed k-mer code into a minimizer comparison key.
func splitMix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
