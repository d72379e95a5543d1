package pe

import (
	"math/rand"
	"sort"

	"chromap/internal/align"
	"chromap/internal/model"
	"chromap/internal/rescore"
	"chromap/internal/verify"
)

// Direction is which strand read 1 of a pair was verified on; read 2's
// complementary strand is implied (F1R2 for Positive, F2R1 for Negative).
type Direction int

const (
	Positive Direction = iota
	Negative
)

// PairIndex references one candidate pairing: mappings1[I1] paired
// with mappings2[I2].
type PairIndex struct {
	I1, I2 uint32
}

// GenerateOneDirection pairs every mappings1 entry with the mappings2
// entries within the insert-size/min-overlap window, folding the
// sum-of-errors of each pair into minSumErrors/numBestMappings/
// secondMinSumErrors/numSecondBestMappings and appending every pair
// tied for the current minimum to bestMappings. This is an exact port
// of GenerateBestMappingsForPairedEndReadOnOneDirection: mappings1 and
// mappings2 must already be sorted ascending by PackedPosition (refID
// dominates the high bits, so cross-reference-sequence pairs always
// fail the window test and are skipped automatically).
func GenerateOneDirection(dir Direction, read1Length, read2Length, minOverlapLength, maxInsertSize uint32,
	mappings1, mappings2 []model.DraftMapping, bestMappings []PairIndex,
	minSumErrors, numBestMappings, secondMinSumErrors, numSecondBestMappings *int) []PairIndex {

	var i1, i2 uint32
	for i1 < uint32(len(mappings1)) && i2 < uint32(len(mappings2)) {
		p1 := mappings1[i1].PackedPosition
		p2 := mappings2[i2].PackedPosition

		switch {
		case (dir == Negative && p1 > p2+uint64(maxInsertSize)-uint64(read1Length)) ||
			(dir == Positive && p1 > p2+uint64(read2Length)-uint64(minOverlapLength)):
			i2++
		case (dir == Positive && p2 > p1+uint64(maxInsertSize)-uint64(read2Length)) ||
			(dir == Negative && p2 > p1+uint64(read1Length)-uint64(minOverlapLength)):
			i1++
		default:
			currentI2 := i2
			for currentI2 < uint32(len(mappings2)) &&
				((dir == Positive && mappings2[currentI2].PackedPosition <= p1+uint64(maxInsertSize)-uint64(read2Length)) ||
					(dir == Negative && mappings2[currentI2].PackedPosition <= p1+uint64(read1Length)-uint64(minOverlapLength))) {

				currentSumErrors := int(mappings1[i1].NumErrors) + int(mappings2[currentI2].NumErrors)
				switch {
				case currentSumErrors < *minSumErrors:
					*secondMinSumErrors = *minSumErrors
					*numSecondBestMappings = *numBestMappings
					*minSumErrors = currentSumErrors
					*numBestMappings = 1
					bestMappings = append(bestMappings, PairIndex{i1, currentI2})
				case currentSumErrors == *minSumErrors:
					*numBestMappings++
					bestMappings = append(bestMappings, PairIndex{i1, currentI2})
				case currentSumErrors == *secondMinSumErrors:
					*numSecondBestMappings++
				}
				currentI2++
			}
			i1++
		}
	}
	return bestMappings
}

// PairedBest accumulates GenerateOneDirection's two passes (F1R2 over
// positive1/negative2, F2R1 over negative1/positive2), reused across
// reads via Reset.
type PairedBest struct {
	F1R2                   []PairIndex
	F2R1                   []PairIndex
	MinSumErrors           int
	NumBestMappings        int
	SecondMinSumErrors     int
	NumSecondBestMappings  int
}

// Reset reinitializes pb for a new read pair, per
// GenerateBestMappingsForPairedEndRead's setup.
func (pb *PairedBest) Reset(errorThreshold int) {
	pb.MinSumErrors = 2*errorThreshold + 1
	pb.NumBestMappings = 0
	pb.SecondMinSumErrors = pb.MinSumErrors
	pb.NumSecondBestMappings = 0
	pb.F1R2 = pb.F1R2[:0]
	pb.F2R1 = pb.F2R1[:0]
}

// Generate runs both direction passes of GenerateOneDirection into pb.
func Generate(read1Length, read2Length, minOverlapLength, maxInsertSize uint32,
	positive1, negative1, positive2, negative2 []model.DraftMapping, pb *PairedBest) {

	pb.F1R2 = GenerateOneDirection(Positive, read1Length, read2Length, minOverlapLength, maxInsertSize,
		positive1, negative2, pb.F1R2, &pb.MinSumErrors, &pb.NumBestMappings, &pb.SecondMinSumErrors, &pb.NumSecondBestMappings)
	pb.F2R1 = GenerateOneDirection(Negative, read1Length, read2Length, minOverlapLength, maxInsertSize,
		negative1, positive2, pb.F2R1, &pb.MinSumErrors, &pb.NumBestMappings, &pb.SecondMinSumErrors, &pb.NumSecondBestMappings)
}

// SelectReportIndices fills out (resizing/reusing its backing array to
// maxNumBestMappings) with 0..maxNumBestMappings-1, then — if
// numBestMappings exceeds maxNumBestMappings — runs the same
// reservoir-sampling loop chromap uses so that every tied best mapping
// has an equal chance of being among the ones actually reported, and
// returns the result sorted ascending. rng must be seeded
// deterministically per read pair so reruns are reproducible.
func SelectReportIndices(numBestMappings, maxNumBestMappings int, rng *rand.Rand, out []int) []int {
	if cap(out) < maxNumBestMappings {
		out = make([]int, maxNumBestMappings)
	} else {
		out = out[:maxNumBestMappings]
	}
	for i := range out {
		out[i] = i
	}
	if numBestMappings > maxNumBestMappings {
		for i := maxNumBestMappings; i < numBestMappings; i++ {
			j := rng.Intn(i + 1) // inclusive [0,i]
			if j < maxNumBestMappings {
				out[j] = i
			}
		}
	}
	sort.Ints(out)
	return out
}

// EmitFunc receives one finished paired-end mapping record, keyed by
// the reference sequence read 1 landed on.
type EmitFunc func(refID uint32, rec model.MappingRecord)

// PairInputs bundles everything ProcessOneDirection needs about one
// read pair that doesn't change between the positive-direction and
// negative-direction reporting passes.
type PairInputs struct {
	Verifier  *align.Verifier
	Ref       verify.Reference
	ErrorThreshold int

	ReadID               uint32
	Read1Name, Read2Name string
	Read1Length, Read2Length uint32
	Forward1, Revcomp1   []byte
	Forward2, Revcomp2   []byte
	Barcode              uint64

	MaxNumBestMappings int
	OutputPAF          bool

	Recalibrator *rescore.Recalibrator // opt-in gap-affine CIGAR recalibration, nil when disabled
}

// ProcessOneDirection walks bestMappings (already filtered to pairs
// tied for the global minimum sum of errors), reconstructs each pair's
// fragment boundaries via banded traceback, scores it with GetMAPQ, and
// emits a MappingRecord for every index selected by reservoir sampling
// (bestMappingIndices), stopping once maxNumBestMappings/numBestMappings
// reports have been produced. bestMappingIndex and numBestMappingsReported
// are shared across the positive- and negative-direction calls for one
// read pair, exactly as in ProcessBestMappingsForPairedEndReadOnOneDirection.
func ProcessOneDirection(in *PairInputs, dir Direction,
	numCandidates1, numCandidates2 int,
	mappings1, mappings2 []model.DraftMapping,
	bestMappings []PairIndex,
	minSumErrors, numBestMappingsTotal, secondMinSumErrors, numSecondBestMappingsTotal int,
	bestMappingIndices []int,
	bestMappingIndex, numBestMappingsReported *int,
	emit EmitFunc) {

	e := in.ErrorThreshold
	for _, pair := range bestMappings {
		d1 := mappings1[pair.I1]
		d2 := mappings2[pair.I2]
		currentSumErrors := int(d1.NumErrors) + int(d2.NumErrors)
		if currentSumErrors != minSumErrors {
			continue
		}
		if *bestMappingIndex != bestMappingIndices[*numBestMappingsReported] {
			(*bestMappingIndex)++
			continue
		}

		rid1, position1 := d1.RefID(), d1.RefPos()
		rid2, position2 := d2.RefID(), d2.RefPos()

		windowStart1 := verify.ClampedWindowStart(position1, int(in.Read1Length), e, in.Ref.SequenceLengthAt(rid1))
		windowStart2 := verify.ClampedWindowStart(position2, int(in.Read2Length), e, in.Ref.SequenceLengthAt(rid2))

		window1 := in.Ref.SequenceAt(rid1)[windowStart1 : windowStart1+in.Read1Length+uint32(2*e)]
		window2 := in.Ref.SequenceAt(rid2)[windowStart2 : windowStart2+in.Read2Length+uint32(2*e)]

		var fragStart uint32
		var fragLen, posAlnLen, negAlnLen uint16
		var mapq uint8

		if dir == Positive {
			mappingStart1 := in.Verifier.Traceback(int(d1.NumErrors), window1, in.Forward1)
			mappingStart2 := in.Verifier.Traceback(int(d2.NumErrors), window2, in.Revcomp2)
			fragStart = windowStart1 + uint32(mappingStart1)
			fragLen = uint16(position2 - fragStart + 1)
			posAlnLen = uint16(position1 + 1 - fragStart)
			negAlnLen = uint16(position2 + 1 - (windowStart2 + uint32(mappingStart2)))
			mapq = GetMAPQ(numCandidates1, numCandidates2, posAlnLen+negAlnLen, minSumErrors, numBestMappingsTotal, secondMinSumErrors, numSecondBestMappingsTotal, e)
			mapq |= 1
		} else {
			mappingStart1 := in.Verifier.Traceback(int(d1.NumErrors), window1, in.Revcomp1)
			mappingStart2 := in.Verifier.Traceback(int(d2.NumErrors), window2, in.Forward2)
			fragStart = windowStart2 + uint32(mappingStart2)
			fragLen = uint16(position1 - fragStart + 1)
			posAlnLen = uint16(position2 + 1 - fragStart)
			negAlnLen = uint16(position1 + 1 - (windowStart1 + uint32(mappingStart1)))
			mapq = GetMAPQ(numCandidates1, numCandidates2, posAlnLen+negAlnLen, minSumErrors, numBestMappingsTotal, secondMinSumErrors, numSecondBestMappingsTotal, e)
		}

		rec := model.MappingRecord{
			RefID:     rid1,
			ReadID:    in.ReadID,
			Barcode:   in.Barcode,
			FragStart: fragStart,
			FragLen:   uint32(fragLen),
			Mapq:      mapq,
			PosAlnLen: posAlnLen,
			NegAlnLen: negAlnLen,
			PairedEnd: true,
		}
		if in.OutputPAF {
			rec.ReadName = in.Read1Name
			rec.Read2Name = in.Read2Name
			rec.ReadLength = in.Read1Length
			rec.Read2Length = in.Read2Length
		}
		if in.Recalibrator != nil {
			var text1, text2 []byte
			if dir == Positive {
				text1, text2 = in.Forward1, in.Revcomp2
			} else {
				text1, text2 = in.Revcomp1, in.Forward2
			}
			_, cigar1 := in.Recalibrator.Refine(window1, text1)
			_, cigar2 := in.Recalibrator.Refine(window2, text2)
			rec.Cigar = cigar1 + ";" + cigar2
		}
		emit(rid1, rec)

		(*numBestMappingsReported)++
		if *numBestMappingsReported == min(in.MaxNumBestMappings, numBestMappingsTotal) {
			return
		}
		(*bestMappingIndex)++
	}
}

// Report drives both direction passes the way
// GenerateBestMappingsForPairedEndRead's tail end does: a positive pass
// first, and a negative pass only if the positive pass didn't already
// satisfy the report quota.
func Report(in *PairInputs, pb *PairedBest,
	numPositiveCandidates1, numNegativeCandidates1, numPositiveCandidates2, numNegativeCandidates2 int,
	positive1, negative1, positive2, negative2 []model.DraftMapping,
	bestMappingIndices []int, emit EmitFunc) {

	bestMappingIndex := 0
	numBestMappingsReported := 0

	ProcessOneDirection(in, Positive, numPositiveCandidates1, numNegativeCandidates2,
		positive1, negative2, pb.F1R2,
		pb.MinSumErrors, pb.NumBestMappings, pb.SecondMinSumErrors, pb.NumSecondBestMappings,
		bestMappingIndices, &bestMappingIndex, &numBestMappingsReported, emit)

	if numBestMappingsReported != min(in.MaxNumBestMappings, pb.NumBestMappings) {
		ProcessOneDirection(in, Negative, numNegativeCandidates1, numPositiveCandidates2,
			negative1, positive2, pb.F2R1,
			pb.MinSumErrors, pb.NumBestMappings, pb.SecondMinSumErrors, pb.NumSecondBestMappings,
			bestMappingIndices, &bestMappingIndex, &numBestMappingsReported, emit)
	}
}
