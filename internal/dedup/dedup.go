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

// Package dedup detects input-level exact-duplicate read pairs before
// mapping: pairs sharing a barcode and both seed hashes are dropped
// rather than mapped twice. It is wired but disabled by default; see
// DESIGN.md's Open Question decision.
package dedup

import (
	"sync"

	"github.com/shenwei356/kmers"
	"github.com/zeebo/wyhash"
)

const (
	prefixLen       = 16 // per read, concatenated to a 32bp combined prefix seed
	continuationLen = 32 // per read, concatenated to a 64bp combined continuation seed
)

// Detector is the two-level barcode→seed hash: a barcode maps to its
// own table, which maps a combined prefix seed to the set of
// continuation seeds already observed under that prefix. A pair is a
// duplicate only when both seeds match an entry already recorded for
// the same barcode.
type Detector struct {
	mu           sync.Mutex
	barcodeIndex map[uint64]int
	tables       []map[uint64]map[uint64]struct{}
}

// New returns an empty Detector.
func New() *Detector {
	return &Detector{barcodeIndex: make(map[uint64]int)}
}

// CheckAndRecord reports whether (barcode, read1, read2) duplicates a
// pair already seen under the same barcode, recording it if not.
func (d *Detector) CheckAndRecord(barcode uint64, read1, read2 []byte) bool {
	prefix := prefixSeed(read1, read2)
	continuation := continuationSeed(read1, read2)

	d.mu.Lock()
	defer d.mu.Unlock()

	idx, ok := d.barcodeIndex[barcode]
	if !ok {
		idx = len(d.tables)
		d.barcodeIndex[barcode] = idx
		d.tables = append(d.tables, make(map[uint64]map[uint64]struct{}))
	}

	table := d.tables[idx]
	seen, ok := table[prefix]
	if !ok {
		table[prefix] = map[uint64]struct{}{continuation: {}}
		return false
	}
	if _, dup := seen[continuation]; dup {
		return true
	}
	seen[continuation] = struct{}{}
	return false
}

// prefixSeed packs the first prefixLen bases of each read into one
// combined 2*prefixLen-bit 2-bit-encoded seed.
func prefixSeed(read1, read2 []byte) uint64 {
	buf := make([]byte, 0, 2*prefixLen)
	buf = appendPadded(buf, read1, prefixLen)
	buf = appendPadded(buf, read2, prefixLen)
	code, err := kmers.Encode(buf)
	if err != nil {
		return 0
	}
	return code
}

// continuationSeed hashes the combined 64bp continuation seed (32bp
// from each read) the way internal/cache's Fingerprint hashes
// variable-length input, via wyhash rather than 2-bit packing, so a
// wider or narrower continuation window never risks overflowing a
// uint64.
func continuationSeed(read1, read2 []byte) uint64 {
	buf := make([]byte, 0, 2*continuationLen)
	buf = appendPadded(buf, read1, continuationLen)
	buf = appendPadded(buf, read2, continuationLen)
	return wyhash.Hash(buf, 0x2545F4914F6CDD1D)
}

func appendPadded(buf, seq []byte, n int) []byte {
	if len(seq) >= n {
		return append(buf, seq[:n]...)
	}
	buf = append(buf, seq...)
	for i := len(seq); i < n; i++ {
		buf = append(buf, 'A')
	}
	return buf
}
