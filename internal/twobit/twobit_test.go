package twobit

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSeq2TwoBitRoundTrip(t *testing.T) {
	cases := []string{
		"ACGT",
		"ACGTA",
		"ACGTAC",
		"ACGTACG",
		"A",
		"ACGTACGTACGTACGTACGT",
	}
	for _, s := range cases {
		b2 := Seq2TwoBit([]byte(s))
		got, err := TwoBit2Seq(*b2, len(s))
		if err != nil {
			t.Fatalf("TwoBit2Seq(%q): %v", s, err)
		}
		if !bytes.Equal(got, []byte(s)) {
			t.Fatalf("round trip %q: got %q", s, got)
		}
		RecycleTwoBit(b2)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.2bit")

	seqs := [][]byte{
		[]byte("ACGTACGTACGTACGT"),
		[]byte("TTTTGGGGCCCCAAAA"),
		[]byte("A"),
	}

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, s := range seqs {
		if err := w.WriteSeq(s); err != nil {
			t.Fatalf("WriteSeq: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if r.NumSeqs() != len(seqs) {
		t.Fatalf("NumSeqs() = %d, want %d", r.NumSeqs(), len(seqs))
	}
	for i, want := range seqs {
		got, err := r.Seq(i)
		if err != nil {
			t.Fatalf("Seq(%d): %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Seq(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestReaderRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.2bit")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteSeq([]byte("ACGT")); err != nil {
		t.Fatalf("WriteSeq: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	original := Magic[0]
	Magic[0] ^= 0xFF
	defer func() { Magic[0] = original }()

	if _, err := NewReader(path); err == nil {
		t.Fatalf("expected NewReader to reject mismatched magic")
	}
}
