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

// Package cache memoizes minimizer-to-candidates lookups: reads sharing
// a minimizer multiset (chromatin libraries are PCR-amplified, so this
// happens constantly) skip straight to cached candidates instead of
// re-querying the minimizer index.
package cache

import (
	"encoding/binary"

	"chromap/internal/model"

	"github.com/zeebo/wyhash"
)

// Fingerprint computes the commutative key Query/Update share: reads
// whose minimizer multiset and length both match collide intentionally,
// regardless of the order minimizers were sketched in, so the
// combination step is a plain sum rather than a rolling hash.
func Fingerprint(minimizers []model.Minimizer, readLen int) uint64 {
	var buf [8]byte
	var acc uint64
	for _, m := range minimizers {
		binary.LittleEndian.PutUint64(buf[:], m.Hash)
		acc += wyhash.Hash(buf[:], 0)
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(readLen))
	acc += wyhash.Hash(buf[:], 0x9E3779B97F4A7C15)
	return acc
}
