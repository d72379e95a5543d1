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

// Package post implements the mapping post-processor: per-reference
// sort, PCR duplicate removal, Tn5 shift, and multi-mapping allocation.
package post

import (
	"sync"

	"chromap/internal/model"

	"github.com/twotwotwo/sorts"
)

// records adapts a []*model.MappingRecord to sort.Interface so the
// teacher's parallel sort package can order it with sorts.Quicksort.
type records []*model.MappingRecord

func (r records) Len() int           { return len(r) }
func (r records) Less(i, j int) bool { return model.Less(r[i], r[j]) }
func (r records) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }

// SortPerReference sorts every reference sequence's mapping bucket in
// parallel: chromap parallelizes this stage by reference sequence
// rather than within one giant slice, since buckets are already
// disjoint and independently ordered.
func SortPerReference(mappingsOnDiffRefSeqs [][]*model.MappingRecord, numThreads int) {
	sorts.MaxProcs = numThreads

	var wg sync.WaitGroup
	for i := range mappingsOnDiffRefSeqs {
		bucket := mappingsOnDiffRefSeqs[i]
		if len(bucket) < 2 {
			continue
		}
		wg.Add(1)
		go func(b []*model.MappingRecord) {
			defer wg.Done()
			sorts.Quicksort(records(b))
		}(bucket)
	}
	wg.Wait()
}
