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

// Package barcode implements whitelist-based cell-barcode correction:
// exact lookup, then posterior-weighted substitution correction, then
// drop.
package barcode

import (
	"bufio"
	"fmt"
	"math"
	"strings"

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/xopen"
)

// Status is the outcome of correcting one barcode read.
type Status int

const (
	// Exact means the barcode, as read, was already in the whitelist.
	Exact Status = iota
	// Corrected means a 1- or 2-substitution neighbor in the whitelist
	// won the posterior vote.
	Corrected
	// Dropped means no whitelist candidate cleared
	// correctionProbabilityThreshold (or none existed).
	Dropped
)

const bases = "ACGT"

// Corrector holds a loaded barcode whitelist and its estimated
// per-barcode abundance.
type Corrector struct {
	Length                        int
	CorrectionErrorThreshold      int
	CorrectionProbabilityThreshold float64

	abundance map[uint64]uint64
	total     uint64
}

// Load reads a whitelist file (one barcode sequence per line, or
// tab-separated with the sequence in the first column) via xopen, the
// teacher's streaming-decompression-aware file reader, and returns a
// Corrector with every whitelist entry's abundance initialized to zero
// (EstimateAbundance fills it in from a sample of the actual reads).
func Load(path string, length, correctionErrorThreshold int, correctionProbabilityThreshold float64) (*Corrector, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("opening barcode whitelist %q: %w", path, err)
	}
	defer fh.Close()

	c := &Corrector{
		Length:                         length,
		CorrectionErrorThreshold:       correctionErrorThreshold,
		CorrectionProbabilityThreshold: correctionProbabilityThreshold,
		abundance:                      make(map[uint64]uint64),
	}

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			line = line[:i]
		}
		if len(line) != length {
			continue
		}
		code, err := kmers.Encode([]byte(line))
		if err != nil {
			continue
		}
		c.abundance[code] = 0
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading barcode whitelist %q: %w", path, err)
	}
	return c, nil
}

// EstimateAbundance takes every sampled barcode in samples (as raw 2-bit
// codes, the way ComputeBarcodeAbundance samples actual read barcodes;
// the caller decides how many to sample) and counts exact whitelist hits
// into each entry's abundance. If fewer
// than 5% of samples are exact whitelist hits, the run is presumed
// misconfigured (wrong whitelist, wrong chemistry) and EstimateAbundance
// fails unless skipCheck is set.
func (c *Corrector) EstimateAbundance(samples []uint64, skipCheck bool) error {
	var hits int
	for _, code := range samples {
		if _, ok := c.abundance[code]; ok {
			c.abundance[code]++
			c.total++
			hits++
		}
	}
	if len(samples) > 0 && !skipCheck {
		if float64(hits)/float64(len(samples)) < 0.05 {
			return fmt.Errorf("barcode: only %d/%d (%.1f%%) sampled barcodes matched the whitelist; pass --skip-barcode-check to proceed anyway", hits, len(samples), 100*float64(hits)/float64(len(samples)))
		}
	}
	return nil
}

// Correct decides whether to accept, correct, or drop one barcode read.
// quals holds a Phred-scaled quality value per base, same length as
// barcode; bases read as 'N' are always treated as substitution
// candidates regardless of quals.
func (c *Corrector) Correct(barcodeSeq []byte, quals []byte) (code uint64, status Status) {
	numN := countN(barcodeSeq)
	if exact, err := kmers.Encode(barcodeSeq); err == nil {
		if _, ok := c.abundance[exact]; ok && numN <= c.CorrectionErrorThreshold {
			return exact, Exact
		}
	}

	candidates := c.enumerate(barcodeSeq, quals, numN)
	if len(candidates) == 0 {
		return 0, Dropped
	}

	var totalPosterior float64
	bestCode := candidates[0].code
	bestPosterior := candidates[0].posterior
	for _, cand := range candidates {
		totalPosterior += cand.posterior
		if cand.posterior > bestPosterior {
			bestPosterior = cand.posterior
			bestCode = cand.code
		}
	}

	if len(candidates) == 1 {
		return bestCode, Corrected
	}
	if bestPosterior/totalPosterior > c.CorrectionProbabilityThreshold {
		return bestCode, Corrected
	}
	return 0, Dropped
}

type candidate struct {
	code      uint64
	posterior float64
}

// enumerate lists every whitelist member reachable by substituting the
// N-positions of barcodeSeq (if any), else every position (single-sub
// pass), plus a second nested substitution pass, each weighted by
// abundance(candidate)*10^(-adjustedQuality/10).
func (c *Corrector) enumerate(barcodeSeq, quals []byte, numN int) []candidate {
	positions := make([]int, 0, len(barcodeSeq))
	if numN > 0 {
		for i, b := range barcodeSeq {
			if b == 'N' || b == 'n' {
				positions = append(positions, i)
			}
		}
	} else {
		for i := range barcodeSeq {
			positions = append(positions, i)
		}
	}

	seen := make(map[uint64]bool)
	var out []candidate

	mutated := append([]byte(nil), barcodeSeq...)
	tryCode := func(pos int, original byte) {
		for _, base := range bases {
			if byte(base) == original {
				continue
			}
			mutated[pos] = byte(base)
			code, err := kmers.Encode(mutated)
			mutated[pos] = original
			if err != nil || seen[code] {
				continue
			}
			abund, ok := c.abundance[code]
			if !ok {
				continue
			}
			seen[code] = true
			q := adjustedQuality(quals, pos)
			out = append(out, candidate{code: code, posterior: float64(abund) * math.Pow(10, -float64(q)/10)})
		}
	}

	// single-substitution pass
	for _, pos := range positions {
		original := barcodeSeq[pos]
		tryCode(pos, original)
	}

	// nested double-substitution pass
	for pi, pos1 := range positions {
		orig1 := mutated[pos1]
		for _, base1 := range bases {
			if byte(base1) == orig1 {
				continue
			}
			mutated[pos1] = byte(base1)
			for _, pos2 := range positions[pi+1:] {
				orig2 := mutated[pos2]
				tryCode(pos2, orig2)
			}
			mutated[pos1] = orig1
		}
	}

	return out
}

// adjustedQuality clamps the Phred quality at pos into [3, 40]; a
// missing quals slice (bulk/no-quality input) is treated as the worst
// case, 3.
func adjustedQuality(quals []byte, pos int) int {
	if quals == nil || pos >= len(quals) {
		return 3
	}
	q := int(quals[pos])
	if q < 3 {
		return 3
	}
	if q > 40 {
		return 40
	}
	return q
}

func countN(seq []byte) int {
	n := 0
	for _, b := range seq {
		if b == 'N' || b == 'n' {
			n++
		}
	}
	return n
}
