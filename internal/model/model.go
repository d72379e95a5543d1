// Package model holds the shared record types that flow through the
// mapping core: minimizers, candidates, draft mappings, and the
// MappingRecord variants emitted to the writer.
package model

// Strand is the orientation of a minimizer or alignment on the reference.
type Strand uint8

const (
	// Positive is the forward strand.
	Positive Strand = 0
	// Negative is the reverse-complement strand.
	Negative Strand = 1
)

// Minimizer is a sketch element: a hashed k-mer and a packed field
// carrying the read offset (high bits) and strand (low bit).
type Minimizer struct {
	Hash                 uint64
	PackedPositionStrand uint64
}

// Offset returns the read offset the minimizer was sampled at.
func (m Minimizer) Offset() uint32 {
	return uint32(m.PackedPositionStrand >> 1)
}

// Strand returns the strand the minimizer was sampled on.
func (m Minimizer) Strand() Strand {
	return Strand(m.PackedPositionStrand & 1)
}

// PackPositionStrand packs a read offset and strand into the field
// used by Minimizer.PackedPositionStrand.
func PackPositionStrand(offset uint32, strand Strand) uint64 {
	return uint64(offset)<<1 | uint64(strand&1)
}

// PackRefPosition packs a reference id and position the way IndexHit
// and Candidate do: (refId<<32)|refPos.
func PackRefPosition(refID, refPos uint32) uint64 {
	return uint64(refID)<<32 | uint64(refPos)
}

// UnpackRefPosition is the inverse of PackRefPosition.
func UnpackRefPosition(packed uint64) (refID, refPos uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// IndexHit is a single minimizer occurrence reported by the external
// minimizer index: a packed (referenceId, referencePosition) plus the
// strand the hit was found on.
type IndexHit struct {
	Packed uint64
	Strand Strand
}

// RefID returns the reference sequence id encoded in the hit.
func (h IndexHit) RefID() uint32 {
	id, _ := UnpackRefPosition(h.Packed)
	return id
}

// RefPos returns the reference position encoded in the hit.
func (h IndexHit) RefPos() uint32 {
	_, pos := UnpackRefPosition(h.Packed)
	return pos
}

// Candidate is a clustered reference anchor position supported by one
// or more minimizer hits.
type Candidate struct {
	Position uint64 // packed refId<<32 | refPos
	Count    uint32 // number of supporting minimizers
}

// RefID returns the reference sequence id of the candidate.
func (c Candidate) RefID() uint32 {
	id, _ := UnpackRefPosition(c.Position)
	return id
}

// RefPos returns the reference anchor position of the candidate.
func (c Candidate) RefPos() uint32 {
	_, pos := UnpackRefPosition(c.Position)
	return pos
}

// DraftMapping is a verified candidate: the number of edit-distance
// errors found, and the alignment's *end* position on the reference
// (packed refId<<32|refPos).
type DraftMapping struct {
	NumErrors      int32
	PackedPosition uint64
}

// RefID returns the reference sequence id of the draft mapping.
func (d DraftMapping) RefID() uint32 {
	id, _ := UnpackRefPosition(d.PackedPosition)
	return id
}

// RefPos returns the end position of the draft mapping on the reference.
func (d DraftMapping) RefPos() uint32 {
	_, pos := UnpackRefPosition(d.PackedPosition)
	return pos
}

// Orientation of a paired-end mapping, encoded in MappingRecord.Mapq's
// low bit.
const (
	OrientationF2R1 = 0
	OrientationF1R2 = 1
)

// MappingRecord is the single-end/paired-end output record. Barcode is
// the zero value (0) when the run carries no barcodes.
//
// Sort order is (RefID, FragStart, FragLen, Barcode, ReadID); dedupe
// equality is (RefID, FragStart, FragLen, Barcode, PairedEnd). Callers
// compare via Less/EqualForDedupe rather than struct equality so that
// Mapq/ReadID can vary between PCR duplicates.
type MappingRecord struct {
	RefID       uint32
	ReadID      uint32
	Barcode     uint64
	FragStart   uint32
	FragLen     uint32
	Mapq        uint8
	PosAlnLen   uint16 // paired-end only
	NegAlnLen   uint16 // paired-end only
	PairedEnd   bool
	ReadName    string // only populated for PAF/SAM-style output
	Read2Name   string
	ReadLength  uint32
	Read2Length uint32
	Cigar       string // only populated when --recalibrate-mapq is set
}

// Strand returns the strand bit for a single-end record (Mapq low bit).
func (r *MappingRecord) Strand() Strand {
	return Strand(r.Mapq & 1)
}

// Orientation returns the orientation bit for a paired-end record
// (Mapq low bit): OrientationF1R2 or OrientationF2R1.
func (r *MappingRecord) Orientation() int {
	return int(r.Mapq & 1)
}

// MapqValue returns the Phred-like mapping quality, excluding the
// strand/orientation bit packed into the low bit.
func (r *MappingRecord) MapqValue() uint8 {
	return r.Mapq >> 1
}

// Less orders two records by (RefID, FragStart, FragLen, Barcode, ReadID),
// the sort order required before PCR dedupe.
func Less(a, b *MappingRecord) bool {
	if a.RefID != b.RefID {
		return a.RefID < b.RefID
	}
	if a.FragStart != b.FragStart {
		return a.FragStart < b.FragStart
	}
	if a.FragLen != b.FragLen {
		return a.FragLen < b.FragLen
	}
	if a.Barcode != b.Barcode {
		return a.Barcode < b.Barcode
	}
	return a.ReadID < b.ReadID
}

// EqualForDedupe reports whether a and b are PCR-duplicate equal: same
// position/length and, when barcodes are in use, same barcode. Mapq and
// ReadID never participate.
func EqualForDedupe(a, b *MappingRecord) bool {
	return a.RefID == b.RefID &&
		a.FragStart == b.FragStart &&
		a.FragLen == b.FragLen &&
		a.Barcode == b.Barcode &&
		a.PairedEnd == b.PairedEnd
}

// Stats accumulates per-thread run statistics, reduced at the end of
// each parallel region.
type Stats struct {
	NumReads               uint64
	NumMapped               uint64
	NumUniquelyMapped       uint64
	NumDuplicates           uint64
	NumDroppedShort         uint64
	NumDroppedRepetitive    uint64
	NumBarcodesCorrected    uint64
	NumBarcodesDropped      uint64
	NumMultiMappingAllocated uint64
	NumMultiMappingDropped   uint64
}

// Add merges o into s, field by field.
func (s *Stats) Add(o *Stats) {
	s.NumReads += o.NumReads
	s.NumMapped += o.NumMapped
	s.NumUniquelyMapped += o.NumUniquelyMapped
	s.NumDuplicates += o.NumDuplicates
	s.NumDroppedShort += o.NumDroppedShort
	s.NumDroppedRepetitive += o.NumDroppedRepetitive
	s.NumBarcodesCorrected += o.NumBarcodesCorrected
	s.NumBarcodesDropped += o.NumBarcodesDropped
	s.NumMultiMappingAllocated += o.NumMultiMappingAllocated
	s.NumMultiMappingDropped += o.NumMultiMappingDropped
}
