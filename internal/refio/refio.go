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

// Package refio implements the default verify.Reference and read-batch
// loader backing the mapping core, wrapping
// github.com/shenwei356/bio/seqio/fastx for FASTA/FASTQ parsing and
// github.com/shenwei356/bio/seq for in-memory reverse-complementing.
package refio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"chromap/internal/twobit"
)

// Genome holds one reference sequence's name and forward-strand bases,
// kept upper-cased and in memory for random-access windowed reads
// during verification.
type Genome struct {
	Name string
	Seq  []byte
}

// ReferenceGenome is the default verify.Reference: a concatenated
// index of reference sequences loaded from one or more FASTA files,
// addressed by the same refID the minimizer index assigns.
type ReferenceGenome struct {
	genomes []Genome
}

// LoadReferenceGenome reads every record in files, in order, assigning
// sequential reference IDs starting at 0 while scanning FASTA input.
func LoadReferenceGenome(files []string) (*ReferenceGenome, error) {
	seq.ValidateSeq = false

	r := &ReferenceGenome{}
	for _, file := range files {
		fastxReader, err := fastx.NewReader(nil, file, "")
		if err != nil {
			return nil, fmt.Errorf("refio: open %s: %w", file, err)
		}

		for {
			record, err := fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				fastxReader.Close()
				return nil, fmt.Errorf("refio: read %s: %w", file, err)
			}

			name := string(record.ID)
			bases := make([]byte, len(record.Seq.Seq))
			copy(bases, record.Seq.Seq)
			upperInPlace(bases)
			r.genomes = append(r.genomes, Genome{Name: name, Seq: bases})
		}
		fastxReader.Close()
	}
	return r, nil
}

// NumReferences reports how many sequences were loaded.
func (r *ReferenceGenome) NumReferences() int { return len(r.genomes) }

// NameAt returns the loaded sequence name for refID.
func (r *ReferenceGenome) NameAt(refID uint32) string { return r.genomes[refID].Name }

// SequenceAt satisfies verify.Reference: the full forward-strand bases
// for refID.
func (r *ReferenceGenome) SequenceAt(refID uint32) []byte { return r.genomes[refID].Seq }

// SequenceLengthAt satisfies verify.Reference.
func (r *ReferenceGenome) SequenceLengthAt(refID uint32) uint32 {
	return uint32(len(r.genomes[refID].Seq))
}

// nameSidecarExt is the extension of the plain-text name list saved
// alongside a twobit-packed cache file; twobit itself never stores
// sequence names.
const nameSidecarExt = ".names"

// SaveCache packs every loaded sequence 2 bits per base and writes it
// to path, plus a companion path+".idx" offset index and a
// path+".names" sidecar, so a later LoadReferenceCache skips
// re-parsing and re-uppercasing the source FASTA files entirely.
func (r *ReferenceGenome) SaveCache(path string) error {
	w, err := twobit.NewWriter(path)
	if err != nil {
		return fmt.Errorf("refio: create cache %s: %w", path, err)
	}
	for _, g := range r.genomes {
		if err := w.WriteSeq(g.Seq); err != nil {
			w.Close()
			return fmt.Errorf("refio: pack %s into cache: %w", g.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("refio: close cache %s: %w", path, err)
	}

	namesFh, err := os.Create(path + nameSidecarExt)
	if err != nil {
		return fmt.Errorf("refio: create cache names %s: %w", path, err)
	}
	bw := bufio.NewWriter(namesFh)
	for _, g := range r.genomes {
		if _, err := bw.WriteString(g.Name); err != nil {
			namesFh.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			namesFh.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		namesFh.Close()
		return err
	}
	return namesFh.Close()
}

// LoadReferenceCache reconstructs a ReferenceGenome from a cache
// previously written by SaveCache, without touching the original
// FASTA files.
func LoadReferenceCache(path string) (*ReferenceGenome, error) {
	names, err := readNameSidecar(path + nameSidecarExt)
	if err != nil {
		return nil, fmt.Errorf("refio: read cache names %s: %w", path, err)
	}

	rdr, err := twobit.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("refio: open cache %s: %w", path, err)
	}
	defer rdr.Close()

	if rdr.NumSeqs() != len(names) {
		return nil, fmt.Errorf("refio: cache %s has %d sequences but %d names", path, rdr.NumSeqs(), len(names))
	}

	r := &ReferenceGenome{genomes: make([]Genome, rdr.NumSeqs())}
	for i := range r.genomes {
		bases, err := rdr.Seq(i)
		if err != nil {
			return nil, fmt.Errorf("refio: unpack cache %s record %d: %w", path, i, err)
		}
		r.genomes[i] = Genome{Name: names[i], Seq: bases}
	}
	return r, nil
}

func readNameSidecar(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var names []string
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func upperInPlace(b []byte) {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
}

// RevComp returns the reverse complement of bases, built on
// seq.NewSeq/RevComInplace so reverse-strand candidate verification
// shares the same base-complementing table as the rest of the
// ecosystem rather than a hand-rolled switch.
func RevComp(bases []byte) ([]byte, error) {
	s, err := seq.NewSeq(seq.DNAredundant, bases)
	if err != nil {
		return nil, fmt.Errorf("refio: revcomp: %w", err)
	}
	s.RevComInplace()
	out := make([]byte, len(s.Seq))
	copy(out, s.Seq)
	return out, nil
}

// Read is one parsed query record: a read ID, its forward-strand
// bases, and its per-base quality string (empty for FASTA input).
type Read struct {
	ID   []byte
	Seq  []byte
	Qual []byte
}

// Reset clears a Read for reuse from a sync.Pool.
func (r *Read) Reset() {
	r.ID = r.ID[:0]
	r.Seq = r.Seq[:0]
	r.Qual = r.Qual[:0]
}

// ReadSource streams Read records from one or more FASTA/FASTQ files
// (optionally gzipped), opening each with fastx.NewReader(nil, file, "").
type ReadSource struct {
	files   []string
	fileIdx int
	reader  *fastx.Reader
}

// NewReadSource opens a streaming source over files, lazily opening
// each file in turn as the previous one is exhausted.
func NewReadSource(files []string) *ReadSource {
	seq.ValidateSeq = false
	return &ReadSource{files: files}
}

// Next fills out with the next record's ID/Seq/Qual, returning false
// once every file is exhausted.
func (s *ReadSource) Next(out *Read) (bool, error) {
	for {
		if s.reader == nil {
			if s.fileIdx >= len(s.files) {
				return false, nil
			}
			r, err := fastx.NewReader(nil, s.files[s.fileIdx], "")
			if err != nil {
				return false, fmt.Errorf("refio: open %s: %w", s.files[s.fileIdx], err)
			}
			s.reader = r
		}

		record, err := s.reader.Read()
		if err != nil {
			s.reader.Close()
			s.reader = nil
			s.fileIdx++
			if err == io.EOF {
				continue
			}
			return false, fmt.Errorf("refio: read %s: %w", s.files[s.fileIdx-1], err)
		}

		out.ID = append(out.ID, record.ID...)
		out.Seq = append(out.Seq, record.Seq.Seq...)
		if record.Seq.Qual != nil {
			out.Qual = append(out.Qual, record.Seq.Qual...)
		}
		return true, nil
	}
}

// Close releases the currently open underlying file, if any.
func (s *ReadSource) Close() error {
	if s.reader != nil {
		s.reader.Close()
	}
	return nil
}
