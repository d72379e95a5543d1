package post

import (
	"testing"

	"chromap/internal/model"
)

func TestSortPerReferenceOrdersByModelLess(t *testing.T) {
	buckets := [][]*model.MappingRecord{
		{
			{RefID: 0, FragStart: 300, FragLen: 50},
			{RefID: 0, FragStart: 100, FragLen: 50},
			{RefID: 0, FragStart: 200, FragLen: 50},
		},
	}
	SortPerReference(buckets, 2)

	got := buckets[0]
	for i := 1; i < len(got); i++ {
		if !model.Less(got[i-1], got[i]) {
			t.Fatalf("bucket not sorted at index %d: %+v then %+v", i, got[i-1], got[i])
		}
	}
}

func TestDedupeCollapsesEqualRuns(t *testing.T) {
	bucket := []*model.MappingRecord{
		{RefID: 0, FragStart: 10, FragLen: 50, Mapq: 60, ReadID: 1},
		{RefID: 0, FragStart: 10, FragLen: 50, Mapq: 40, ReadID: 2}, // PCR dup of above
		{RefID: 0, FragStart: 20, FragLen: 50, Mapq: 60, ReadID: 3},
	}
	deduped, removed := Dedupe(bucket)
	if removed != 1 {
		t.Fatalf("expected 1 duplicate removed, got %d", removed)
	}
	if len(deduped) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(deduped))
	}
}

func TestApplyTn5ShiftPairedEnd(t *testing.T) {
	bucket := [][]*model.MappingRecord{{{FragStart: 100, FragLen: 200, PosAlnLen: 50, NegAlnLen: 50}}}
	ApplyTn5ShiftPairedEnd(bucket)
	m := bucket[0][0]
	if m.FragStart != 104 || m.FragLen != 191 || m.PosAlnLen != 46 || m.NegAlnLen != 45 {
		t.Fatalf("unexpected paired-end Tn5 shift result: %+v", m)
	}
}

func TestApplyTn5ShiftSingleEndByStrand(t *testing.T) {
	pos := [][]*model.MappingRecord{{{FragStart: 100, FragLen: 50, Mapq: 0}}} // strand bit 0: positive
	ApplyTn5ShiftSingleEnd(pos)
	if pos[0][0].FragStart != 100 || pos[0][0].FragLen != 45 {
		t.Fatalf("positive-strand single-end shift wrong: %+v", pos[0][0])
	}

	neg := [][]*model.MappingRecord{{{FragStart: 100, FragLen: 50, Mapq: 1}}} // strand bit 1: negative
	ApplyTn5ShiftSingleEnd(neg)
	if neg[0][0].FragStart != 104 || neg[0][0].FragLen != 46 {
		t.Fatalf("negative-strand single-end shift wrong: %+v", neg[0][0])
	}
}

func TestAllocatorCountOverlaps(t *testing.T) {
	unique := []*model.MappingRecord{
		{FragStart: 1000, FragLen: 100, Mapq: 120},
		{FragStart: 1050, FragLen: 100, Mapq: 120},
		{FragStart: 5000, FragLen: 100, Mapq: 120},
	}
	a := NewAllocator(unique, 42)

	if got := a.CountOverlaps(1000, 100, 0); got != 2 {
		t.Fatalf("expected 2 overlaps near 1000-1100, got %d", got)
	}
	if got := a.CountOverlaps(9000, 100, 0); got != 0 {
		t.Fatalf("expected 0 overlaps far from any unique mapping, got %d", got)
	}
}

func TestAllocatorDropsWhenNoOverlap(t *testing.T) {
	a := NewAllocator(nil, 1)
	candidates := []*model.MappingRecord{
		{FragStart: 10, FragLen: 50},
		{FragStart: 2000, FragLen: 50},
	}
	if _, ok := a.Allocate(candidates, 0); ok {
		t.Fatalf("expected allocation to fail with an empty unique-mapping background")
	}
}

func TestIsMultiMapped(t *testing.T) {
	if IsMultiMapped(&model.MappingRecord{Mapq: 60 << 1}) {
		t.Fatalf("mapq 60 should not be considered multi-mapped")
	}
	if !IsMultiMapped(&model.MappingRecord{Mapq: 10 << 1}) {
		t.Fatalf("mapq 10 should be considered multi-mapped")
	}
}
