package pipeline

import (
	"testing"

	"chromap/internal/model"
	"chromap/internal/seed"
)

type fakeIndex struct {
	freq map[uint64]int
	hits map[uint64][]model.IndexHit
}

func (f *fakeIndex) Frequency(hash uint64) int         { return f.freq[hash] }
func (f *fakeIndex) Lookup(hash uint64) []model.IndexHit { return f.hits[hash] }

type fakeRef struct {
	seqs [][]byte
}

func (f *fakeRef) SequenceAt(refID uint32) []byte        { return f.seqs[refID] }
func (f *fakeRef) SequenceLengthAt(refID uint32) uint32  { return uint32(len(f.seqs[refID])) }

// buildIndexFromSketch derives a fakeIndex whose hits make every
// minimizer of seq anchor to trueStart on refID 0 — it reuses the real
// Sketcher so the test never needs to hand-compute minimizer hashes.
func buildIndexFromSketch(t *testing.T, sk *seed.Sketcher, seq []byte, refID uint32, trueStart uint32) *fakeIndex {
	t.Helper()
	ms := sk.Sketch(seq, nil)
	if len(ms) == 0 {
		t.Fatalf("sketch produced no minimizers for %q", seq)
	}
	idx := &fakeIndex{freq: map[uint64]int{}, hits: map[uint64][]model.IndexHit{}}
	for _, m := range ms {
		idx.freq[m.Hash] = 1
		idx.hits[m.Hash] = append(idx.hits[m.Hash], model.IndexHit{
			Packed: model.PackRefPosition(refID, trueStart+m.Offset()),
			Strand: model.Positive,
		})
	}
	return idx
}

func TestRunSingleExactMatch(t *testing.T) {
	const e = 3
	read := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT") // 32bp
	leftFlank := []byte("GGGGG")                       // 5bp, >= e
	rightFlank := []byte("TTTTT")                       // 5bp, > e

	ref := append(append(append([]byte{}, leftFlank...), read...), rightFlank...)
	trueStart := uint32(len(leftFlank))

	sk := seed.NewSketcher(12, 3)
	idx := buildIndexFromSketch(t, sk, read, 0, trueStart)

	runner := NewRunner(Options{
		K: 12, W: 3,
		ErrorThreshold:      e,
		MinNumSeedsRequired: 1,
		MaxSeedFrequency:    1000,
		MaxNumBestMappings:  10,
		NumThreads:          2,
		NumReferences:       1,
	}, Collaborators{Index: idx, Ref: &fakeRef{seqs: [][]byte{ref}}})

	reads := []SingleRead{{ID: 0, Forward: read, Revcomp: read}}
	out := NewBuckets(1)
	runner.RunSingle(reads, out)

	if len(out[0]) != 1 {
		t.Fatalf("expected exactly one mapping record, got %d: %+v", len(out[0]), out[0])
	}
	rec := out[0][0]
	if rec.FragLen != uint32(len(read)) {
		t.Fatalf("FragLen = %d, want %d", rec.FragLen, len(read))
	}
	if rec.MapqValue() != 60 {
		t.Fatalf("MapqValue() = %d, want 60 for an unambiguous exact match", rec.MapqValue())
	}
	if rec.Mapq&1 != 1 {
		t.Fatalf("Mapq low bit = %d, want 1 (forward-strand match)", rec.Mapq&1)
	}
	if rec.PairedEnd {
		t.Fatalf("single-end record should not set PairedEnd")
	}
}

func TestRunSingleDropsWhenNoCandidates(t *testing.T) {
	idx := &fakeIndex{freq: map[uint64]int{}, hits: map[uint64][]model.IndexHit{}}
	ref := &fakeRef{seqs: [][]byte{[]byte("ACGTACGTACGTACGTACGTACGTACGTACGT")}}

	runner := NewRunner(Options{
		K: 12, W: 3,
		ErrorThreshold:      3,
		MinNumSeedsRequired: 1,
		MaxSeedFrequency:    1000,
		MaxNumBestMappings:  10,
		NumThreads:          1,
		NumReferences:       1,
	}, Collaborators{Index: idx, Ref: ref})

	reads := []SingleRead{{ID: 0, Forward: []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")}}
	out := NewBuckets(1)
	stats := runner.RunSingle(reads, out)

	if len(out[0]) != 0 {
		t.Fatalf("expected no mapping records when the index has no hits, got %+v", out[0])
	}
	if stats.NumReads != 1 {
		t.Fatalf("NumReads = %d, want 1", stats.NumReads)
	}
	if stats.NumMapped != 0 {
		t.Fatalf("NumMapped = %d, want 0", stats.NumMapped)
	}
}
