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

// Package memindex provides the concrete, in-process seed.Index that
// cmd/map.go builds and destroys for one run. Since this repository
// does not ship a separate "chromap index" subcommand or persisted
// index file, memindex.Build sketches every reference sequence once at
// startup with the same seed.Sketcher the reads use.
package memindex

import (
	"sync"

	"chromap/internal/model"
	"chromap/internal/refio"
	"chromap/internal/seed"
)

// ReferenceSource is the narrow view of a loaded reference collection
// memindex.Build needs; satisfied by *refio.ReferenceGenome.
type ReferenceSource interface {
	NumReferences() int
	SequenceAt(refID uint32) []byte
}

// Index is a concurrent-safe, read-only hash→hits table built once and
// shared read-only across every mapping worker.
type Index struct {
	hits map[uint64][]model.IndexHit
	freq map[uint64]int
}

// Frequency satisfies seed.Index.
func (idx *Index) Frequency(hash uint64) int { return idx.freq[hash] }

// Lookup satisfies seed.Index.
func (idx *Index) Lookup(hash uint64) []model.IndexHit { return idx.hits[hash] }

// Build sketches every reference sequence in ref with a k/w sketcher
// and returns the resulting Index. Sequences are sketched concurrently
// (one goroutine per reference, bounded by numThreads), then folded
// into a single shared table under a stripe of shard maps to avoid one
// global lock serializing the merge.
func Build(ref ReferenceSource, k, w, numThreads int) *Index {
	if numThreads < 1 {
		numThreads = 1
	}
	const numShards = 64
	shards := make([]struct {
		mu   sync.Mutex
		hits map[uint64][]model.IndexHit
		freq map[uint64]int
	}, numShards)
	for i := range shards {
		shards[i].hits = make(map[uint64][]model.IndexHit)
		shards[i].freq = make(map[uint64]int)
	}

	n := ref.NumReferences()
	tokens := make(chan int, numThreads)
	var wg sync.WaitGroup

	for refID := 0; refID < n; refID++ {
		tokens <- 1
		wg.Add(1)
		go func(refID uint32) {
			defer func() { <-tokens; wg.Done() }()

			forward := ref.SequenceAt(refID)
			add := func(m model.Minimizer, strand model.Strand, refPos uint32) {
				packed := model.PackRefPosition(refID, refPos)
				shardIdx := m.Hash % numShards
				sh := &shards[shardIdx]
				sh.mu.Lock()
				sh.hits[m.Hash] = append(sh.hits[m.Hash], model.IndexHit{Packed: packed, Strand: strand})
				sh.freq[m.Hash]++
				sh.mu.Unlock()
			}

			sk := seed.NewSketcher(k, w)
			for _, m := range sk.Sketch(forward, nil) {
				add(m, model.Positive, m.Offset())
			}

			// A read's forward minimizer only ever matches a literal
			// k-mer database: to let it also find minus-strand loci, the
			// reference's reverse complement is sketched too, with each
			// hit's position translated back to the leftmost forward
			// coordinate of the matching k-mer (the same convention used
			// for Positive hits), so a Candidate's RefPos always means
			// "forward-strand coordinate of the matched k-mer" regardless
			// of which strand it was found on.
			revcomp, err := refio.RevComp(forward)
			if err != nil {
				return
			}
			n := uint32(len(forward))
			for _, m := range sk.Sketch(revcomp, nil) {
				leftmost := n - m.Offset() - uint32(k)
				add(m, model.Negative, leftmost)
			}
		}(uint32(refID))
	}
	wg.Wait()

	idx := &Index{hits: make(map[uint64][]model.IndexHit), freq: make(map[uint64]int)}
	for i := range shards {
		for hash, hits := range shards[i].hits {
			idx.hits[hash] = append(idx.hits[hash], hits...)
		}
		for hash, f := range shards[i].freq {
			idx.freq[hash] += f
		}
	}
	return idx
}
