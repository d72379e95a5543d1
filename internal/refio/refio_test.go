package refio

import (
	"path/filepath"
	"testing"
)

func TestUpperInPlace(t *testing.T) {
	b := []byte("acgtACGT")
	upperInPlace(b)
	if string(b) != "ACGTACGT" {
		t.Fatalf("upperInPlace: got %q", b)
	}
}

func TestRevComp(t *testing.T) {
	rc, err := RevComp([]byte("ACGTN"))
	if err != nil {
		t.Fatalf("RevComp: %v", err)
	}
	want := "NACGT"
	if string(rc) != want {
		t.Fatalf("RevComp(ACGTN) = %q, want %q", rc, want)
	}
}

func TestReadReset(t *testing.T) {
	r := &Read{ID: []byte("x"), Seq: []byte("ACGT"), Qual: []byte("IIII")}
	r.Reset()
	if len(r.ID) != 0 || len(r.Seq) != 0 || len(r.Qual) != 0 {
		t.Fatalf("Reset did not clear Read: %+v", r)
	}
}

func TestReferenceGenomeAccessors(t *testing.T) {
	r := &ReferenceGenome{genomes: []Genome{
		{Name: "chr1", Seq: []byte("ACGTACGT")},
		{Name: "chr2", Seq: []byte("TTTT")},
	}}
	if r.NumReferences() != 2 {
		t.Fatalf("NumReferences = %d, want 2", r.NumReferences())
	}
	if r.NameAt(1) != "chr2" {
		t.Fatalf("NameAt(1) = %q, want chr2", r.NameAt(1))
	}
	if r.SequenceLengthAt(0) != 8 {
		t.Fatalf("SequenceLengthAt(0) = %d, want 8", r.SequenceLengthAt(0))
	}
	if string(r.SequenceAt(0)) != "ACGTACGT" {
		t.Fatalf("SequenceAt(0) = %q", r.SequenceAt(0))
	}
}

func TestSaveLoadCacheRoundTrip(t *testing.T) {
	r := &ReferenceGenome{genomes: []Genome{
		{Name: "chr1", Seq: []byte("ACGTACGTACGTACGT")},
		{Name: "chr2", Seq: []byte("TTTTGGGGCCCCAAAA")},
	}}

	path := filepath.Join(t.TempDir(), "ref.2bit")
	if err := r.SaveCache(path); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	loaded, err := LoadReferenceCache(path)
	if err != nil {
		t.Fatalf("LoadReferenceCache: %v", err)
	}
	if loaded.NumReferences() != r.NumReferences() {
		t.Fatalf("NumReferences() = %d, want %d", loaded.NumReferences(), r.NumReferences())
	}
	for i := range r.genomes {
		if loaded.NameAt(uint32(i)) != r.genomes[i].Name {
			t.Fatalf("NameAt(%d) = %q, want %q", i, loaded.NameAt(uint32(i)), r.genomes[i].Name)
		}
		if string(loaded.SequenceAt(uint32(i))) != string(r.genomes[i].Seq) {
			t.Fatalf("SequenceAt(%d) = %q, want %q", i, loaded.SequenceAt(uint32(i)), r.genomes[i].Seq)
		}
	}
}
