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

// Package twobit packs DNA sequences into 2-bit-per-base binary form,
// for an on-disk reference-sequence cache that lets repeated runs
// against the same genome skip re-parsing and re-uppercasing FASTA.
package twobit

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var be = binary.BigEndian

// Magic identifies the cache file format.
var Magic = [8]byte{'c', 'm', 'a', 'p', '2', 'b', 'i', 't'}

// IndexFileExt is the extension of the companion offset-index file.
const IndexFileExt = ".idx"

// MainVersion is used for checking compatibility.
var MainVersion uint8 = 1

// MinorVersion is less important.
var MinorVersion uint8 = 0

// BufferSize is the size of the reading and writing buffer.
var BufferSize = 65536

// ErrInvalidFileFormat means the magic number didn't match.
var ErrInvalidFileFormat = errors.New("twobit: invalid binary format")

// ErrEmptySeq means the sequence is empty.
var ErrEmptySeq = errors.New("twobit: empty seq")

// ErrInvalidTwoBitData means the 2-bit slice length doesn't match the base count.
var ErrInvalidTwoBitData = errors.New("twobit: invalid two-bit data")

// ErrBrokenFile means the file is truncated.
var ErrBrokenFile = errors.New("twobit: broken file")

// ErrVersionMismatch means the cache was built by an incompatible version.
var ErrVersionMismatch = errors.New("twobit: version mismatch")

// Writer saves a list of DNA sequences into 2-bit-packed form.
// Sequence names are not stored; callers that need them persist a
// parallel name list themselves.
type Writer struct {
	file string
	fh   *os.File
	w    *bufio.Writer

	buf    []byte
	offset int

	// offset, #bytes, #bases
	index [][3]int
}

// NewWriter creates a new Writer over file.
func NewWriter(file string) (*Writer, error) {
	w := &Writer{file: file}
	var err error
	w.fh, err = os.Create(file)
	if err != nil {
		return nil, err
	}
	w.w = bufio.NewWriterSize(w.fh, BufferSize)

	w.buf = make([]byte, 24)

	if err = binary.Write(w.w, be, Magic); err != nil {
		return nil, err
	}
	w.offset += 8

	if err = binary.Write(w.w, be, [8]uint8{MainVersion, MinorVersion}); err != nil {
		return nil, err
	}
	w.offset += 8
	return w, nil
}

// WriteSeq packs and writes one sequence.
func (w *Writer) WriteSeq(s []byte) error {
	b2 := Seq2TwoBit(s)
	err := w.Write2Bit(*b2, len(s))
	RecycleTwoBit(b2)
	return err
}

// Write2Bit writes one already-packed sequence.
func (w *Writer) Write2Bit(b2 []byte, bases int) error {
	if len(b2) == 0 {
		return ErrEmptySeq
	}
	if bases < (len(b2)<<2)-3 || bases > len(b2)<<2 {
		return ErrInvalidTwoBitData
	}

	be.PutUint64(w.buf[:8], uint64(len(b2)))
	be.PutUint64(w.buf[8:16], uint64(bases))
	if _, err := w.w.Write(w.buf[:16]); err != nil {
		return err
	}

	if _, err := w.w.Write(b2); err != nil {
		return err
	}

	w.index = append(w.index, [3]int{w.offset, len(b2), bases})
	w.offset += 16 + len(b2)
	return nil
}

// Close flushes the data file and writes the companion offset index.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.fh.Close(); err != nil {
		return err
	}

	fh, err := os.Create(filepath.Clean(w.file) + IndexFileExt)
	if err != nil {
		return err
	}
	wtr := bufio.NewWriterSize(fh, BufferSize)
	buf := w.buf[:24]

	be.PutUint64(buf[:8], uint64(len(w.index)))
	if _, err = wtr.Write(buf[:8]); err != nil {
		return err
	}

	for _, info := range w.index {
		be.PutUint64(buf[:8], uint64(info[0]))
		be.PutUint64(buf[8:16], uint64(info[1]))
		be.PutUint64(buf[16:24], uint64(info[2]))
		if _, err = wtr.Write(buf); err != nil {
			return err
		}
	}
	if err = wtr.Flush(); err != nil {
		return err
	}
	return fh.Close()
}

// Reader supports fast random-access extraction of any packed sequence.
type Reader struct {
	fh     *os.File
	offset int

	buf []byte

	index [][3]int
}

// NewReader opens a cache previously written by Writer.
func NewReader(file string) (*Reader, error) {
	var err error
	r := &Reader{buf: make([]byte, 24)}

	r.fh, err = os.Open(file)
	if err != nil {
		return nil, err
	}

	buf := r.buf
	n, err := io.ReadFull(r.fh, buf[:8])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, ErrBrokenFile
	}
	for i := 0; i < 8; i++ {
		if Magic[i] != buf[i] {
			return nil, ErrInvalidFileFormat
		}
	}
	r.offset += 8

	n, err = io.ReadFull(r.fh, buf[:8])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, ErrBrokenFile
	}
	r.offset += 8

	if MainVersion != buf[0] {
		return nil, ErrVersionMismatch
	}

	fileIndex := filepath.Clean(file) + IndexFileExt
	rdr, err := os.Open(fileIndex)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	n, err = io.ReadFull(rdr, buf[:8])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, ErrBrokenFile
	}

	r.index = make([][3]int, int(be.Uint64(buf[:8])))
	for i := range r.index {
		n, err = io.ReadFull(rdr, buf[:24])
		if err != nil {
			return nil, err
		}
		if n < 24 {
			return nil, ErrBrokenFile
		}
		r.index[i] = [3]int{
			int(be.Uint64(buf[:8])),
			int(be.Uint64(buf[8:16])),
			int(be.Uint64(buf[16:24])),
		}
	}

	return r, nil
}

// NumSeqs reports how many sequences the cache holds.
func (r *Reader) NumSeqs() int { return len(r.index) }

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.fh.Close()
}

// Seq returns the full, unpacked sequence with index idx (0-based).
func (r *Reader) Seq(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(r.index) {
		return nil, fmt.Errorf("twobit: sequence index (%d) out of range: [0, %d]", idx, len(r.index)-1)
	}
	info := r.index[idx]
	offset := info[0] + 16
	nBytes := info[1]
	bases := info[2]

	if _, err := r.fh.Seek(int64(offset), 0); err != nil {
		return nil, err
	}
	packed := make([]byte, nBytes)
	n, err := io.ReadFull(r.fh, packed)
	if err != nil {
		return nil, err
	}
	if n < nBytes {
		return nil, ErrBrokenFile
	}
	return TwoBit2Seq(packed, bases)
}

var base2bit = [256]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 1, 1, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 0,
	0, 0, 0, 1, 3, 3, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0,
	0, 0, 1, 1, 0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 0,
	0, 0, 0, 1, 3, 3, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// RecycleTwoBit returns a packed-sequence buffer obtained from
// Seq2TwoBit to the pool.
func RecycleTwoBit(b2 *[]byte) {
	poolTwoBit.Put(b2)
}

var poolTwoBit = &sync.Pool{New: func() interface{} {
	tmp := make([]byte, 0, 1<<20)
	return &tmp
}}

// Seq2TwoBit packs an upper-case ACGT sequence into 2 bits per base.
// Other bytes pack as A (0), except B, S and Y (packed as C), K (as G)
// and U (as T), upper- or lower-case; windowed verification never
// reads cache-backed sequences through ambiguity codes, so this lossy
// fold is acceptable for the cache path only.
func Seq2TwoBit(s []byte) *[]byte {
	if s == nil {
		return nil
	}
	if len(s) == 0 {
		empty := []byte{}
		return &empty
	}

	n := len(s) >> 2
	m := len(s) & 3

	codes := poolTwoBit.Get().(*[]byte)
	*codes = (*codes)[:0]

	var j int
	for i := 0; i < n; i++ {
		j = i << 2
		*codes = append(*codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4+base2bit[s[j+2]]<<2+base2bit[s[j+3]])
	}

	if m == 0 {
		tmp := (*codes)[:n]
		return &tmp
	}

	j = n << 2
	switch m {
	case 3:
		*codes = append(*codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4+base2bit[s[j+2]]<<2)
	case 2:
		*codes = append(*codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4)
	case 1:
		*codes = append(*codes, base2bit[s[j]]<<6)
	}
	return codes
}

// TwoBit2Seq unpacks a 2-bit-packed sequence back to ACGT bytes.
func TwoBit2Seq(b2 []byte, bases int) ([]byte, error) {
	if bases < (len(b2)<<2)-3 || bases > len(b2)<<2 {
		return nil, ErrInvalidTwoBitData
	}

	s := make([]byte, bases)
	n := len(s) >> 2
	m := bases & 3
	var b byte
	var j int
	for i := 0; i < n; i++ {
		b = b2[i]
		j = i << 2
		s[j+3] = bit2base[b&3]
		b >>= 2
		s[j+2] = bit2base[b&3]
		b >>= 2
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	}
	if m == 0 {
		return s, nil
	}

	b = b2[n]
	j = n << 2
	switch m {
	case 1:
		s[j] = bit2base[b>>6&3]
	case 2:
		b >>= 4
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	case 3:
		b >>= 2
		s[j+2] = bit2base[b&3]
		b >>= 2
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	}
	return s, nil
}
