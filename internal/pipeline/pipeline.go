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

// Package pipeline is the concurrent batch orchestrator: per-batch it
// runs a token-channel-bounded worker pool (tokens chan int,
// sync.WaitGroup, thread-local accumulation merged after Wait) over
// the read batch, applied to a per-read flow: barcode correction,
// minimizer sketching, cache lookup, candidate generation, paired-end
// reduction, banded-DP verification, best-mapping selection and MAPQ.
package pipeline

import (
	"math/rand"
	"sync"

	"chromap/internal/align"
	"chromap/internal/barcode"
	"chromap/internal/cache"
	"chromap/internal/dedup"
	"chromap/internal/model"
	"chromap/internal/pe"
	"chromap/internal/rescore"
	"chromap/internal/seed"
	"chromap/internal/verify"
)

// Options bundles the run-level thresholds the per-read flow needs.
type Options struct {
	K, W                 int
	ErrorThreshold       int
	MinNumSeedsRequired  int
	MaxSeedFrequency     int
	MaxSeedFrequencyMate int // relaxed seed-frequency cap used only for mate supplementation
	MinOverlapLength     uint32
	MaxInsertSize        uint32
	MaxNumBestMappings   int
	DropRepetitiveReads  int
	NumThreads           int
	NumReferences        int
	CacheTuningParam     float64
	RunSeed              uint64 // base seed for per-read-pair deterministic PRNGs
	OutputPAF            bool
}

// Collaborators bundles the external, run-scoped dependencies a worker
// needs: the minimizer index and reference, plus the optional cache,
// barcode corrector and duplicate detector.
type Collaborators struct {
	Index      seed.Index
	Ref        verify.Reference
	Cache      *cache.Cache
	Corrector  *barcode.Corrector
	Dedup      *dedup.Detector
	Recalibrator *rescore.Recalibrator // opt-in gap-affine CIGAR recalibration, nil when disabled
}

// Buckets is the per-reference-sequence mapping output, indexed by
// RefID: the thread-local per-ref buckets each worker accumulates into.
type Buckets [][]model.MappingRecord

// NewBuckets allocates an empty Buckets sized to numReferences.
func NewBuckets(numReferences int) Buckets { return make(Buckets, numReferences) }

// Merge appends src's per-reference records onto dst in place, the
// single-writer bucket merge at the batch barrier; callers must not
// call Merge concurrently on the same dst.
func (dst Buckets) Merge(src Buckets) {
	for i := range src {
		if len(src[i]) == 0 {
			continue
		}
		dst[i] = append(dst[i], src[i]...)
	}
}

// PairedRead is one read pair pulled off the loader, with both mates'
// forward sequences plus their
// precomputed reverse complements (callers — refio.ReadSource plus
// refio.RevComp — produce these; the pipeline never revcomps itself so
// the same buffer can be reused across the worker pool without a
// shared mutable scratch).
type PairedRead struct {
	ID                   uint32
	Name1, Name2         string
	Forward1, Revcomp1   []byte
	Forward2, Revcomp2   []byte
	BarcodeSeq, BarcodeQual []byte
	HasBarcode           bool
}

// SingleRead is the single-end analogue of PairedRead.
type SingleRead struct {
	ID                   uint32
	Name                 string
	Forward, Revcomp     []byte
	BarcodeSeq, BarcodeQual []byte
	HasBarcode           bool
}

// workerState is the scratch one read's (or read pair's) processing
// uses. RunPaired and RunSingle create a fresh one for every read, so
// nothing in it is reused from one read to the next.
type workerState struct {
	sketcher1, sketcher2 *seed.Sketcher
	verifier             *align.Verifier
	minimizers1, minimizers2 []model.Minimizer
	candResult1, candResult2 seed.Result
	tracker1, tracker2       verify.Tracker
	draftPos1, draftNeg1     []model.DraftMapping
	draftPos2, draftNeg2     []model.DraftMapping
	reduced                  pe.ReducedCandidates
	pairedBest               pe.PairedBest
	bestMappingIndices       []int
	buckets                  Buckets
	rng                      *rand.Rand
	stats                    model.Stats
	// mmHistory records, for cache-missed reads in this batch, the
	// minimizers and resulting candidates so the post-batch update
	// phase can fold an update-threshold-sized prefix into the cache.
	mmHistory []missHistoryEntry
}

type missHistoryEntry struct {
	key                  uint64
	positive, negative   []model.Candidate
	repetitiveSeedLength int
}

func newWorkerState(opt *Options, numReferences int) *workerState {
	v, _ := align.NewVerifier(opt.ErrorThreshold)
	return &workerState{
		sketcher1: seed.NewSketcher(opt.K, opt.W),
		sketcher2: seed.NewSketcher(opt.K, opt.W),
		verifier:  v,
		buckets:   NewBuckets(numReferences),
	}
}

// Runner drives batches of reads through the mapping flow.
type Runner struct {
	Opt  Options
	Col  Collaborators

	mu              sync.Mutex
	totalReadsSeen  uint64
}

// NewRunner returns a Runner ready to process batches.
func NewRunner(opt Options, col Collaborators) *Runner {
	return &Runner{Opt: opt, Col: col}
}

// RunPaired processes one batch of paired-end reads concurrently,
// merging every worker's thread-local buckets into out and returning
// the batch's aggregate statistics. Workers are bounded by a
// token-channel rather than a fixed-size goroutine slice, so a batch
// smaller than NumThreads never over-allocates idle workers.
func (r *Runner) RunPaired(reads []PairedRead, out Buckets) model.Stats {
	numWorkers := r.Opt.NumThreads
	if numWorkers < 1 {
		numWorkers = 1
	}

	tokens := make(chan int, numWorkers)
	var wg sync.WaitGroup
	states := make([]*workerState, len(reads))

	for i := range reads {
		tokens <- 1
		wg.Add(1)
		go func(i int) {
			defer func() { <-tokens; wg.Done() }()
			st := newWorkerState(&r.Opt, r.Opt.NumReferences)
			st.rng = rand.New(rand.NewSource(int64(r.Opt.RunSeed ^ uint64(reads[i].ID))))
			r.processPair(st, &reads[i])
			states[i] = st
		}(i)
	}
	wg.Wait()

	var total model.Stats
	var history []missHistoryEntry
	for _, st := range states {
		out.Merge(st.buckets)
		total.Add(&st.stats)
		history = append(history, st.mmHistory...)
	}

	r.updateCache(history, len(reads), true)
	return total
}

// RunSingle is the single-end analogue of RunPaired.
func (r *Runner) RunSingle(reads []SingleRead, out Buckets) model.Stats {
	numWorkers := r.Opt.NumThreads
	if numWorkers < 1 {
		numWorkers = 1
	}

	tokens := make(chan int, numWorkers)
	var wg sync.WaitGroup
	states := make([]*workerState, len(reads))

	for i := range reads {
		tokens <- 1
		wg.Add(1)
		go func(i int) {
			defer func() { <-tokens; wg.Done() }()
			st := newWorkerState(&r.Opt, r.Opt.NumReferences)
			st.rng = rand.New(rand.NewSource(int64(r.Opt.RunSeed ^ uint64(reads[i].ID))))
			r.processSingle(st, &reads[i])
			states[i] = st
		}(i)
	}
	wg.Wait()

	var total model.Stats
	var history []missHistoryEntry
	for _, st := range states {
		out.Merge(st.buckets)
		total.Add(&st.stats)
		history = append(history, st.mmHistory...)
	}

	r.updateCache(history, len(reads), false)
	return total
}

// updateCache folds an update-threshold-sized prefix of history into
// the shared cache, sequentially: the update-threshold formula already
// keeps this cheap relative to the mapping phase, so a dedicated
// parallel update-phase worker pool is not needed here.
func (r *Runner) updateCache(history []missHistoryEntry, batchSize int, pairedEnd bool) {
	if r.Col.Cache == nil || len(history) == 0 {
		return
	}
	r.mu.Lock()
	r.totalReadsSeen += uint64(batchSize)
	seen := r.totalReadsSeen
	r.mu.Unlock()

	threshold := r.Col.Cache.GetUpdateThreshold(batchSize, seen, pairedEnd, r.Opt.CacheTuningParam)
	n := int(threshold)
	if n > len(history) {
		n = len(history)
	}
	for i := 0; i < n; i++ {
		h := history[i]
		r.Col.Cache.Update(h.key, h.positive, h.negative, h.repetitiveSeedLength)
	}
}

// candidatesFor sketches seq, consults the cache, and on a miss
// generates candidates from the index, recording the miss in
// st.mmHistory for the later cache-update phase. It returns the
// sketched minimizers so the caller can keep them for mate
// supplementation.
func candidatesFor(st *workerState, col Collaborators, opt *Options, sketcher *seed.Sketcher,
	minimizers []model.Minimizer, result *seed.Result, seq []byte) []model.Minimizer {

	minimizers = sketcher.Sketch(seq, minimizers[:0])
	result.Reset()

	var key uint64
	var hit bool
	if col.Cache != nil {
		key = cache.Fingerprint(minimizers, len(seq))
		var slotID uint64
		slotID, result.RepetitiveSeedLength, result.Positive, result.Negative, hit =
			col.Cache.Query(key, result.Positive[:0], result.Negative[:0])
		_ = slotID
	}
	if hit {
		return minimizers
	}

	seed.Generate(col.Index, minimizers, seed.Options{
		MinNumSeedsRequired: opt.MinNumSeedsRequired,
		MaxSeedFrequency:    opt.MaxSeedFrequency,
		ErrorThreshold:      opt.ErrorThreshold,
	}, result)

	if col.Cache != nil {
		st.mmHistory = append(st.mmHistory, missHistoryEntry{
			key:                  key,
			positive:             append([]model.Candidate(nil), result.Positive...),
			negative:             append([]model.Candidate(nil), result.Negative...),
			repetitiveSeedLength: result.RepetitiveSeedLength,
		})
	}
	return minimizers
}

// applyRepetitivePenalty folds the repetitiveSeedLength/readLength
// penalty into an already-computed mapq: pe.GetMAPQ only reproduces the
// banded-DP MAPQ arithmetic, so the read-level repetitive-seed penalty
// is applied here at the orchestration layer where repetitiveSeedLength
// is known.
func applyRepetitivePenalty(mapq uint8, repetitiveSeedLength int, readLength uint32) uint8 {
	if repetitiveSeedLength == 0 || readLength == 0 {
		return mapq
	}
	orientationBit := mapq & 1
	value := int(mapq >> 1)
	penalty := int(float64(value) * float64(repetitiveSeedLength) / float64(readLength))
	value -= penalty
	if value < 0 {
		value = 0
	}
	return uint8(value)<<1 | orientationBit
}

// correctBarcode runs the barcode corrector, if configured, returning
// the corrected 2-bit code and whether the read should be dropped.
// quals are FASTQ quality characters (Phred+33); they are converted to
// Phred values before the corrector sees them.
func correctBarcode(col Collaborators, st *workerState, seqBases, quals []byte) (code uint64, drop bool) {
	if col.Corrector == nil {
		return 0, false
	}
	var phred []byte
	if len(quals) > 0 {
		phred = make([]byte, len(quals))
		for i, q := range quals {
			phred[i] = q - 33
		}
	}
	code, status := col.Corrector.Correct(seqBases, phred)
	switch status {
	case barcode.Dropped:
		st.stats.NumBarcodesDropped++
		return 0, true
	case barcode.Corrected:
		st.stats.NumBarcodesCorrected++
	}
	return code, false
}

func (r *Runner) processSingle(st *workerState, read *SingleRead) {
	st.stats.NumReads++

	var barcodeCode uint64
	if read.HasBarcode {
		var drop bool
		barcodeCode, drop = correctBarcode(r.Col, st, read.BarcodeSeq, read.BarcodeQual)
		if drop {
			return
		}
	}

	st.minimizers1 = candidatesFor(st, r.Col, &r.Opt, st.sketcher1, st.minimizers1, &st.candResult1, read.Forward)

	st.tracker1.Reset(r.Opt.ErrorThreshold)
	readLen := len(read.Forward)
	st.draftPos1, st.draftNeg1 = verify.VerifyCandidates(st.verifier, r.Col.Ref, readLen,
		read.Forward, read.Revcomp, st.candResult1.Positive, st.candResult1.Negative, &st.tracker1,
		st.draftPos1, st.draftNeg1)

	numBest := st.tracker1.NumBest
	if numBest == 0 {
		return
	}
	if r.Opt.DropRepetitiveReads > 0 && numBest > r.Opt.DropRepetitiveReads {
		return
	}

	st.bestMappingIndices = pe.SelectReportIndices(numBest, r.Opt.MaxNumBestMappings, st.rng, st.bestMappingIndices)

	e := r.Opt.ErrorThreshold
	minErrors := int(st.tracker1.MinErrors)
	secondMinErrors := int(st.tracker1.SecondMinErrors)
	numReported := 0
	reportIdx := 0

	emit := func(dm model.DraftMapping, text []byte, strandBit uint8) {
		refID, endPos := dm.RefID(), dm.RefPos()
		windowStart := verify.ClampedWindowStart(endPos, readLen, e, r.Col.Ref.SequenceLengthAt(refID))
		window := r.Col.Ref.SequenceAt(refID)[windowStart : windowStart+uint32(readLen)+uint32(2*e)]
		mappingStart := st.verifier.Traceback(int(dm.NumErrors), window, text)
		fragStart := windowStart + uint32(mappingStart)
		fragLen := endPos - fragStart + 1

		mapq := pe.GetMAPQ(0, 0, uint16(fragLen), minErrors, numBest, secondMinErrors,
			st.tracker1.NumSecondBest, e)
		mapq = applyRepetitivePenalty(mapq, st.candResult1.RepetitiveSeedLength, uint32(readLen))
		mapq |= strandBit

		rec := model.MappingRecord{
			RefID:     refID,
			ReadID:    read.ID,
			Barcode:   barcodeCode,
			FragStart: fragStart,
			FragLen:   fragLen,
			Mapq:      mapq,
			PairedEnd: false,
		}
		if r.Opt.OutputPAF {
			rec.ReadName = read.Name
			rec.ReadLength = uint32(readLen)
		}
		if r.Col.Recalibrator != nil {
			fragment := r.Col.Ref.SequenceAt(refID)[fragStart : fragStart+fragLen]
			_, rec.Cigar = r.Col.Recalibrator.Refine(fragment, text)
		}
		st.buckets[refID] = append(st.buckets[refID], rec)
		numReported++
	}

	for _, dm := range st.draftPos1 {
		if int(dm.NumErrors) != minErrors {
			continue
		}
		if reportIdx != st.bestMappingIndices[numReported] {
			reportIdx++
			continue
		}
		emit(dm, read.Forward, 1)
		reportIdx++
		if numReported == min(r.Opt.MaxNumBestMappings, numBest) {
			goto done
		}
	}
	for _, dm := range st.draftNeg1 {
		if int(dm.NumErrors) != minErrors {
			continue
		}
		if reportIdx != st.bestMappingIndices[numReported] {
			reportIdx++
			continue
		}
		emit(dm, read.Revcomp, 0)
		reportIdx++
		if numReported == min(r.Opt.MaxNumBestMappings, numBest) {
			goto done
		}
	}
done:
	st.stats.NumMapped++
	if numBest == 1 {
		st.stats.NumUniquelyMapped++
	}
}

func (r *Runner) processPair(st *workerState, read *PairedRead) {
	st.stats.NumReads += 2

	var barcodeCode uint64
	if read.HasBarcode {
		var drop bool
		barcodeCode, drop = correctBarcode(r.Col, st, read.BarcodeSeq, read.BarcodeQual)
		if drop {
			return
		}
	}

	if r.Col.Dedup != nil && read.HasBarcode {
		if r.Col.Dedup.CheckAndRecord(barcodeCode, read.Forward1, read.Forward2) {
			st.stats.NumDuplicates++
			return
		}
	}

	st.minimizers1 = candidatesFor(st, r.Col, &r.Opt, st.sketcher1, st.minimizers1, &st.candResult1, read.Forward1)
	st.minimizers2 = candidatesFor(st, r.Col, &r.Opt, st.sketcher2, st.minimizers2, &st.candResult2, read.Forward2)

	forcedLowMapq := supplementMate(st, r.Col, &r.Opt)

	pe.Reduce(
		candidatePositions(st.candResult1.Positive), candidatePositions(st.candResult1.Negative),
		candidatePositions(st.candResult2.Positive), candidatePositions(st.candResult2.Negative),
		r.Opt.MaxInsertSize, &st.reduced)

	st.tracker1.Reset(r.Opt.ErrorThreshold)
	st.tracker2.Reset(r.Opt.ErrorThreshold)

	readLen1 := len(read.Forward1)
	readLen2 := len(read.Forward2)

	st.draftPos1, st.draftNeg1 = verify.VerifyCandidates(st.verifier, r.Col.Ref, readLen1,
		read.Forward1, read.Revcomp1,
		filterByPosition(st.candResult1.Positive, st.reduced.FilteredPositive1),
		filterByPosition(st.candResult1.Negative, st.reduced.FilteredNegative1),
		&st.tracker1, st.draftPos1, st.draftNeg1)

	st.draftPos2, st.draftNeg2 = verify.VerifyCandidates(st.verifier, r.Col.Ref, readLen2,
		read.Forward2, read.Revcomp2,
		filterByPosition(st.candResult2.Positive, st.reduced.FilteredPositive2),
		filterByPosition(st.candResult2.Negative, st.reduced.FilteredNegative2),
		&st.tracker2, st.draftPos2, st.draftNeg2)

	// draftPos/draftNeg are already ascending by PackedPosition: they
	// come from verify.VerifyCandidates scanning position-sorted
	// candidates (seed.cluster) in order, and end-position offsets are
	// monotonic in the candidate's own position, so pe.Generate's
	// two-pointer sweep can consume them directly.
	st.pairedBest.Reset(r.Opt.ErrorThreshold)
	pe.Generate(uint32(readLen1), uint32(readLen2), r.Opt.MinOverlapLength, r.Opt.MaxInsertSize,
		st.draftPos1, st.draftNeg1, st.draftPos2, st.draftNeg2, &st.pairedBest)

	if st.pairedBest.NumBestMappings == 0 {
		return
	}
	if r.Opt.DropRepetitiveReads > 0 && st.pairedBest.NumBestMappings > r.Opt.DropRepetitiveReads {
		return
	}

	st.bestMappingIndices = pe.SelectReportIndices(st.pairedBest.NumBestMappings, r.Opt.MaxNumBestMappings,
		st.rng, st.bestMappingIndices)

	repPenaltyLen := st.candResult1.RepetitiveSeedLength + st.candResult2.RepetitiveSeedLength
	readLenTotal := uint32(readLen1 + readLen2)

	emitted := 0
	emit := func(refID uint32, rec model.MappingRecord) {
		rec.Mapq = applyRepetitivePenalty(rec.Mapq, repPenaltyLen, readLenTotal)
		if forcedLowMapq {
			rec.Mapq = forceLowMapq(rec.Mapq)
		}
		st.buckets[refID] = append(st.buckets[refID], rec)
		emitted++
	}

	in := &pe.PairInputs{
		Verifier:                 st.verifier,
		Ref:                      r.Col.Ref,
		ErrorThreshold:           r.Opt.ErrorThreshold,
		ReadID:                   read.ID,
		Read1Name:                read.Name1,
		Read2Name:                read.Name2,
		Read1Length:              uint32(readLen1),
		Read2Length:              uint32(readLen2),
		Forward1:                 read.Forward1,
		Revcomp1:                 read.Revcomp1,
		Forward2:                 read.Forward2,
		Revcomp2:                 read.Revcomp2,
		Barcode:                  barcodeCode,
		MaxNumBestMappings:       r.Opt.MaxNumBestMappings,
		OutputPAF:                r.Opt.OutputPAF,
		Recalibrator:             r.Col.Recalibrator,
	}

	pe.Report(in, &st.pairedBest,
		len(st.candResult1.Positive), len(st.candResult1.Negative),
		len(st.candResult2.Positive), len(st.candResult2.Negative),
		st.draftPos1, st.draftNeg1, st.draftPos2, st.draftNeg2,
		st.bestMappingIndices, emit)

	if emitted > 0 {
		st.stats.NumMapped += 2
		if st.pairedBest.NumBestMappings == 1 {
			st.stats.NumUniquelyMapped += 2
		}
	}
}

// supplementMate implements paired-end mate supplementation: if one end
// produced no candidates at all and the
// other did, the empty end's minimizers are re-searched with the
// larger MaxSeedFrequencyMate cap, and any resulting candidate is kept
// only if it falls within 2*maxInsertSize of some candidate the other
// end already found — a forced-low-MAPQ signal downstream, since a
// supplemented mapping was never independently corroborated by its own
// seed evidence.
func supplementMate(st *workerState, col Collaborators, opt *Options) bool {
	if opt.MaxSeedFrequencyMate <= opt.MaxSeedFrequency {
		return false
	}

	empty1 := len(st.candResult1.Positive) == 0 && len(st.candResult1.Negative) == 0
	empty2 := len(st.candResult2.Positive) == 0 && len(st.candResult2.Negative) == 0
	if empty1 == empty2 {
		return false // both or neither empty: nothing to supplement
	}

	var target, anchorResult *seed.Result
	var minimizers []model.Minimizer
	if empty1 {
		target, minimizers, anchorResult = &st.candResult1, st.minimizers1, &st.candResult2
	} else {
		target, minimizers, anchorResult = &st.candResult2, st.minimizers2, &st.candResult1
	}

	target.Reset()
	seed.Generate(col.Index, minimizers, seed.Options{
		MinNumSeedsRequired: opt.MinNumSeedsRequired,
		MaxSeedFrequency:    opt.MaxSeedFrequencyMate,
		ErrorThreshold:      opt.ErrorThreshold,
	}, target)

	window := 2 * uint64(opt.MaxInsertSize)
	target.Positive = filterNearAnchor(target.Positive, anchorResult, window)
	target.Negative = filterNearAnchor(target.Negative, anchorResult, window)

	return len(target.Positive) > 0 || len(target.Negative) > 0
}

// filterNearAnchor keeps only the candidates within window of some
// candidate in anchor's Positive or Negative lists.
func filterNearAnchor(cands []model.Candidate, anchor *seed.Result, window uint64) []model.Candidate {
	near := func(pos uint64) bool {
		for _, a := range anchor.Positive {
			if diffWithin(pos, a.Position, window) {
				return true
			}
		}
		for _, a := range anchor.Negative {
			if diffWithin(pos, a.Position, window) {
				return true
			}
		}
		return false
	}
	out := cands[:0]
	for _, c := range cands {
		if near(c.Position) {
			out = append(out, c)
		}
	}
	return out
}

func diffWithin(a, b, window uint64) bool {
	if a > b {
		return a-b <= window
	}
	return b-a <= window
}

// forceLowMapq overrides a record's confidence bits to the minimum
// while preserving its strand/orientation bit, for the mate-
// supplementation case.
func forceLowMapq(mapq uint8) uint8 {
	return mapq & 1
}

// candidatePositions extracts a model.Candidate slice's packed
// positions, the uint64 view pe.ReduceOneDirection operates on.
func candidatePositions(cands []model.Candidate) []uint64 {
	out := make([]uint64, len(cands))
	for i, c := range cands {
		out[i] = c.Position
	}
	return out
}

// filterByPosition keeps only the candidates in all whose packed
// position appears in kept (both already ascending-sorted, produced
// from the same all slice by pe.ReduceOneDirection, so a single linear
// merge suffices).
func filterByPosition(all []model.Candidate, kept []uint64) []model.Candidate {
	if len(kept) == len(all) {
		return all
	}
	out := make([]model.Candidate, 0, len(kept))
	j := 0
	for _, c := range all {
		if j < len(kept) && kept[j] == c.Position {
			out = append(out, c)
			j++
		}
	}
	return out
}
