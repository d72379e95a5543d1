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

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shenwei356/kmers"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"chromap/internal/align"
	"chromap/internal/barcode"
	"chromap/internal/cache"
	"chromap/internal/dedup"
	"chromap/internal/memindex"
	"chromap/internal/model"
	"chromap/internal/pipeline"
	"chromap/internal/post"
	"chromap/internal/refio"
	"chromap/internal/rescore"
)

var refFastaPattern = regexp.MustCompile(`(?i)\.(fa|fasta|fa\.gz|fasta\.gz)$`)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "map chromatin-assay reads against a reference genome",
	Long: `map chromatin-assay reads against a reference genome

Maps single-end or paired-end ATAC-seq/ChIP-seq/Hi-C/scATAC-seq reads
against one or more reference FASTA files: minimizer seeding, banded
edit-distance verification, paired-end reduction, MAPQ, PCR
deduplication, Tn5 shift correction and multi-mapping allocation.

`,
	Run: runMap,
}

func init() {
	RootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringSlice("ref", nil, formatFlagUsage("Reference FASTA file(s)."))
	mapCmd.Flags().String("ref-dir", "", formatFlagUsage("Directory to scan recursively for reference FASTA files."))
	mapCmd.Flags().String("ref-cache", "", formatFlagUsage("Path to a packed reference cache. Read from it instead of --ref/--ref-dir if present; written to it after loading FASTA otherwise."))
	mapCmd.Flags().StringSliceP("read1", "1", nil, formatFlagUsage("Read 1 (or single-end read) FASTQ/FASTA file(s)."))
	mapCmd.Flags().StringSliceP("read2", "2", nil, formatFlagUsage("Read 2 FASTQ/FASTA file(s); presence enables paired-end mode."))
	mapCmd.Flags().StringSlice("barcode", nil, formatFlagUsage("Barcode FASTQ file(s), one per --read1 file, for single-cell input."))
	mapCmd.Flags().String("barcode-whitelist", "", formatFlagUsage("Barcode whitelist file, one sequence per line."))
	mapCmd.Flags().StringP("out-file", "o", "-", formatFlagUsage(`Output file, a ".gz" suffix gzips it ("-" for stdout).`))
	mapCmd.Flags().Int("compression-level", -1, formatFlagUsage("gzip compression level for a .gz output file (-1: library default)."))
	mapCmd.Flags().Bool("output-paf", false, formatFlagUsage("Include read names/lengths in the output, PAF-style."))
	mapCmd.Flags().String("config", "", formatFlagUsage("TOML parameter file overlaid onto the built-in defaults."))

	mapCmd.Flags().Int("kmer-size", 0, formatFlagUsage("Minimizer k-mer size (0: use the default/config value)."))
	mapCmd.Flags().Int("window-size", 0, formatFlagUsage("Minimizer window size (0: use the default/config value)."))
	mapCmd.Flags().Int("error-threshold", 0, formatFlagUsage("Max edit distance tolerated during verification (0: use the default/config value)."))
	mapCmd.Flags().Int("min-num-seeds", 0, formatFlagUsage("Minimum number of seeds required to keep a candidate window (0: default)."))
	mapCmd.Flags().Int("max-seed-frequency", 0, formatFlagUsage("Drop minimizers occurring more than this many times in the index (0: default)."))
	mapCmd.Flags().Int("max-seed-frequency-mate", 0, formatFlagUsage("Relaxed frequency cap used only for mate supplementation (0: default)."))
	mapCmd.Flags().Int("min-overlap-length", 0, formatFlagUsage("Minimum fragment overlap required to pair two mates (0: default)."))
	mapCmd.Flags().Int("max-insert-size", 0, formatFlagUsage("Maximum paired-end insert size (0: default)."))
	mapCmd.Flags().Int("max-num-best-mappings", 0, formatFlagUsage("Cap on reported best mappings per read (0: default)."))
	mapCmd.Flags().Int("drop-repetitive-reads", 0, formatFlagUsage("Drop reads with more than this many equally-best mappings (0: use the default/config value)."))
	mapCmd.Flags().Int("min-read-length", 0, formatFlagUsage("Drop reads shorter than this many bases (0: default)."))
	mapCmd.Flags().Int("multi-map-allocation-distance", 0, formatFlagUsage("Window, in bp, used to count unique-mapping overlaps for multi-mapping allocation."))
	mapCmd.Flags().Uint64("multi-map-allocation-seed", 0, formatFlagUsage("PRNG seed for multi-mapping allocation (0: default)."))
	mapCmd.Flags().Int("cache-shards", 0, formatFlagUsage("Number of candidate-cache shards (0: default)."))
	mapCmd.Flags().Int("cache-capacity-per-shard", 0, formatFlagUsage("Per-shard candidate-cache capacity (0: default)."))
	mapCmd.Flags().Float64("cache-tuning-param", -1, formatFlagUsage("Cache update-prefix tuning parameter (negative: use the default/config value)."))
	mapCmd.Flags().Bool("no-cache", false, formatFlagUsage("Disable the candidate cache entirely."))
	mapCmd.Flags().Int("barcode-length", 0, formatFlagUsage("Expected barcode length (0: default)."))
	mapCmd.Flags().Int("barcode-correction-error-threshold", 0, formatFlagUsage("Max Ns tolerated in an otherwise-exact barcode match (0: default)."))
	mapCmd.Flags().Float64("barcode-correction-probability-threshold", -1, formatFlagUsage("Posterior-probability floor to accept a corrected barcode (negative: default)."))
	mapCmd.Flags().Bool("skip-barcode-check", false, formatFlagUsage("Skip the sampled-barcode whitelist-match sanity check."))
	mapCmd.Flags().Int("read-batch-size", 0, formatFlagUsage("Reads per concurrently-processed batch (0: default)."))
	mapCmd.Flags().Uint64("run-seed", 0, formatFlagUsage("Base PRNG seed for per-read tie-breaking (0: default)."))
	mapCmd.Flags().Bool("dedup-reads", false, formatFlagUsage("Drop input read pairs that exactly duplicate an earlier pair under the same barcode."))
	mapCmd.Flags().Bool("tn5-shift", false, formatFlagUsage("Apply the Tn5 insertion-site shift to reported fragments."))
	mapCmd.Flags().Bool("recalibrate-mapq", false, formatFlagUsage("Recalibrate each best mapping's CIGAR with gap-affine wavefront alignment."))
	mapCmd.Flags().Int("match-score", 1, formatFlagUsage("Match score for --recalibrate-mapq."))
	mapCmd.Flags().Int("mismatch-penalty", 4, formatFlagUsage("Mismatch penalty for --recalibrate-mapq."))
	mapCmd.Flags().Int("gap-open", 6, formatFlagUsage("Gap-open penalty for --recalibrate-mapq."))
	mapCmd.Flags().Int("gap-extend", 1, formatFlagUsage("Gap-extend penalty for --recalibrate-mapq."))

	mapCmd.SetUsageTemplate(usageTemplate("--ref ref.fa -1 r1.fq.gz -2 r2.fq.gz -o out.tsv.gz"))
}

func runMap(cmd *cobra.Command, args []string) {
	opt := getOptions(cmd)

	var fhLog *os.File
	if opt.Log2File {
		fhLog = addLog(opt.LogFile, opt.Verbose)
	}
	outputLog := opt.Verbose || opt.Log2File

	timeStart := time.Now()
	defer func() {
		if outputLog {
			log.Info()
			log.Infof("elapsed time: %s", time.Since(timeStart))
		}
		if opt.Log2File {
			fhLog.Close()
		}
	}()

	params := buildParameters(cmd)

	refCachePath := getFlagString(cmd, "ref-cache")

	refFiles := getFlagStringSlice(cmd, "ref")
	if dir := getFlagString(cmd, "ref-dir"); dir != "" {
		found, err := getFileListFromDir(dir, refFastaPattern, opt.NumCPUs)
		checkError(err)
		refFiles = append(refFiles, found...)
	}
	haveCache := refCachePath != "" && fileExists(refCachePath)
	if len(refFiles) == 0 && !haveCache {
		checkError(fmt.Errorf("flag --ref or --ref-dir is required (unless --ref-cache points at an existing cache)"))
	}

	read1Files := parseStrandedFileList(getFlagStringSlice(cmd, "read1"))
	if len(read1Files) == 0 {
		checkError(fmt.Errorf("flag -1/--read1 is required"))
	}
	read2Files := parseStrandedFileList(getFlagStringSlice(cmd, "read2"))
	pairedEnd := len(read2Files) > 0
	if pairedEnd && len(read2Files) != len(read1Files) {
		checkError(fmt.Errorf("--read2 must list the same number of files as --read1"))
	}

	barcodeFiles := parseStrandedFileList(getFlagStringSlice(cmd, "barcode"))
	whitelistPath := getFlagString(cmd, "barcode-whitelist")
	hasBarcode := whitelistPath != "" && len(barcodeFiles) > 0
	if hasBarcode && len(barcodeFiles) != len(read1Files) {
		checkError(fmt.Errorf("--barcode must list the same number of files as --read1"))
	}

	outFile := getFlagString(cmd, "out-file")
	outFileClean := filepath.Clean(outFile)
	for _, f := range append(append([]string{}, read1Files...), read2Files...) {
		if !isStdin(f) && filepath.Clean(f) == outFileClean {
			checkError(fmt.Errorf("out file should not be one of the input files"))
		}
	}
	outputPAF := getFlagBool(cmd, "output-paf")
	recalibrate := getFlagBool(cmd, "recalibrate-mapq")
	tn5Shift := getFlagBool(cmd, "tn5-shift")
	dedupReads := getFlagBool(cmd, "dedup-reads")
	noCache := getFlagBool(cmd, "no-cache")

	if outputLog {
		log.Infof("chromap v%s", VERSION)
		log.Info()
	}

	var ref *refio.ReferenceGenome
	var err error
	if haveCache {
		if outputLog {
			log.Infof("loading reference cache %s...", refCachePath)
		}
		ref, err = refio.LoadReferenceCache(refCachePath)
		checkError(err)
	} else {
		if outputLog {
			log.Infof("loading %d reference file(s)...", len(refFiles))
		}
		ref, err = refio.LoadReferenceGenome(refFiles)
		checkError(err)
		if refCachePath != "" {
			if outputLog {
				log.Infof("writing reference cache %s...", refCachePath)
			}
			checkError(ref.SaveCache(refCachePath))
		}
	}
	if outputLog {
		log.Infof("  %d reference sequence(s) loaded", ref.NumReferences())
	}

	checkError(align.CheckErrorThreshold(params.ErrorThreshold))

	if outputLog {
		log.Info("building minimizer index...")
	}
	idx := memindex.Build(ref, params.KmerSize, params.WindowSize, opt.NumCPUs)

	col := pipeline.Collaborators{Index: idx, Ref: ref}
	if !noCache {
		col.Cache = cache.New(params.CacheShards, params.CacheCapacityPerShard)
	}
	if dedupReads {
		col.Dedup = dedup.New()
	}
	if recalibrate {
		col.Recalibrator = rescore.New(
			getFlagInt(cmd, "match-score"), getFlagInt(cmd, "mismatch-penalty"),
			getFlagInt(cmd, "gap-open"), getFlagInt(cmd, "gap-extend"))
	}
	if hasBarcode {
		corrector, err := barcode.Load(whitelistPath, params.BarcodeLength,
			params.BarcodeCorrectionErrorThreshold, params.BarcodeCorrectionProbThreshold)
		checkError(err)

		if outputLog {
			log.Info("estimating barcode abundance...")
		}
		samples := sampleBarcodeCodes(barcodeFiles, params.BarcodeLength, 200000)
		checkError(corrector.EstimateAbundance(samples, params.SkipBarcodeCheck))
		col.Corrector = corrector
	}

	popts := pipeline.Options{
		K: params.KmerSize, W: params.WindowSize,
		ErrorThreshold:       params.ErrorThreshold,
		MinNumSeedsRequired:  params.MinNumSeeds,
		MaxSeedFrequency:     params.MaxSeedFrequency,
		MaxSeedFrequencyMate: params.MaxSeedFrequencyMate,
		MinOverlapLength:     params.MinOverlapLength,
		MaxInsertSize:        params.MaxInsertSize,
		MaxNumBestMappings:   params.MaxNumBestMappings,
		DropRepetitiveReads:  params.DropRepetitiveReads,
		NumThreads:           opt.NumCPUs,
		NumReferences:        ref.NumReferences(),
		CacheTuningParam:     params.CacheTuningParam,
		RunSeed:              params.RunSeed,
		OutputPAF:            outputPAF,
	}
	runner := pipeline.NewRunner(popts, col)

	if outputLog {
		log.Info("mapping reads...")
	}

	var pbs *mpb.Progress
	var bar *mpb.Bar
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(read1Files)),
			mpb.PrependDecorators(
				decor.Name("input files: ", decor.WC{W: len("input files: "), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: "),
				decor.EwmaETA(decor.ET_STYLE_GO, 20),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	total := pipeline.NewBuckets(ref.NumReferences())
	var stats model.Stats
	var nextReadID uint32

	for fi := range read1Files {
		fileStart := time.Now()

		r1 := refio.NewReadSource([]string{read1Files[fi]})
		var bcSrc *refio.ReadSource
		if hasBarcode {
			bcSrc = refio.NewReadSource([]string{barcodeFiles[fi]})
		}

		if pairedEnd {
			r2 := refio.NewReadSource([]string{read2Files[fi]})
			processPairedFile(runner, r1, r2, bcSrc, &params, total, &stats, &nextReadID)
			r2.Close()
		} else {
			processSingleFile(runner, r1, bcSrc, &params, total, &stats, &nextReadID)
		}
		r1.Close()
		if bcSrc != nil {
			bcSrc.Close()
		}

		if bar != nil {
			bar.EwmaIncrBy(1, time.Since(fileStart))
		}
	}
	if pbs != nil {
		pbs.Wait()
	}

	if outputLog {
		log.Info("post-processing mappings...")
	}

	buckets := toPointerBuckets(total)
	post.SortPerReference(buckets, opt.NumCPUs)
	if tn5Shift {
		if pairedEnd {
			post.ApplyTn5ShiftPairedEnd(buckets)
		} else {
			post.ApplyTn5ShiftSingleEnd(buckets)
		}
	}
	stats.NumDuplicates += post.DedupeAll(buckets)
	buckets = allocateMultiMapped(buckets, &params, &stats)

	outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), getFlagInt(cmd, "compression-level"))
	checkError(err)
	defer func() {
		outfh.Flush()
		if gw != nil {
			gw.Close()
		}
		w.Close()
	}()
	writeRecords(outfh, ref, buckets, outputPAF)

	if outputLog {
		log.Info()
		log.Infof("reads: %d, mapped: %d, uniquely mapped: %d", stats.NumReads, stats.NumMapped, stats.NumUniquelyMapped)
		log.Infof("duplicates removed: %d, multi-mapping allocated: %d, dropped: %d",
			stats.NumDuplicates, stats.NumMultiMappingAllocated, stats.NumMultiMappingDropped)
		if outFile != "-" {
			log.Infof("mappings saved to: %s", outFile)
		}
	}
}

// buildParameters loads the TOML config (if any) and overlays every
// mapping-relevant flag the user actually set on top of its defaults.
func buildParameters(cmd *cobra.Command) Parameters {
	p, err := loadParametersFile(getFlagString(cmd, "config"))
	checkError(err)

	changed := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	changed("kmer-size", func() { p.KmerSize = getFlagPositiveInt(cmd, "kmer-size") })
	changed("window-size", func() { p.WindowSize = getFlagPositiveInt(cmd, "window-size") })
	changed("error-threshold", func() { p.ErrorThreshold = getFlagNonNegativeInt(cmd, "error-threshold") })
	changed("min-num-seeds", func() { p.MinNumSeeds = getFlagPositiveInt(cmd, "min-num-seeds") })
	changed("max-seed-frequency", func() { p.MaxSeedFrequency = getFlagPositiveInt(cmd, "max-seed-frequency") })
	changed("max-seed-frequency-mate", func() { p.MaxSeedFrequencyMate = getFlagPositiveInt(cmd, "max-seed-frequency-mate") })
	changed("min-overlap-length", func() { p.MinOverlapLength = uint32(getFlagNonNegativeInt(cmd, "min-overlap-length")) })
	changed("max-insert-size", func() { p.MaxInsertSize = uint32(getFlagNonNegativeInt(cmd, "max-insert-size")) })
	changed("max-num-best-mappings", func() { p.MaxNumBestMappings = getFlagPositiveInt(cmd, "max-num-best-mappings") })
	changed("drop-repetitive-reads", func() { p.DropRepetitiveReads = getFlagInt(cmd, "drop-repetitive-reads") })
	changed("min-read-length", func() { p.MinReadLength = getFlagNonNegativeInt(cmd, "min-read-length") })
	changed("multi-map-allocation-distance", func() {
		p.MultiMapAllocationDistance = int32(getFlagInt(cmd, "multi-map-allocation-distance"))
	})
	changed("multi-map-allocation-seed", func() {
		v, err := cmd.Flags().GetUint64("multi-map-allocation-seed")
		checkError(err)
		p.MultiMapAllocationSeed = v
	})
	changed("cache-shards", func() { p.CacheShards = getFlagPositiveInt(cmd, "cache-shards") })
	changed("cache-capacity-per-shard", func() { p.CacheCapacityPerShard = getFlagPositiveInt(cmd, "cache-capacity-per-shard") })
	changed("cache-tuning-param", func() { p.CacheTuningParam = getFlagNonNegativeFloat64(cmd, "cache-tuning-param") })
	changed("barcode-length", func() { p.BarcodeLength = getFlagPositiveInt(cmd, "barcode-length") })
	changed("barcode-correction-error-threshold", func() {
		p.BarcodeCorrectionErrorThreshold = getFlagNonNegativeInt(cmd, "barcode-correction-error-threshold")
	})
	changed("barcode-correction-probability-threshold", func() {
		p.BarcodeCorrectionProbThreshold = getFlagNonNegativeFloat64(cmd, "barcode-correction-probability-threshold")
	})
	changed("skip-barcode-check", func() { p.SkipBarcodeCheck = getFlagBool(cmd, "skip-barcode-check") })
	changed("read-batch-size", func() { p.ReadBatchSize = getFlagPositiveInt(cmd, "read-batch-size") })
	changed("run-seed", func() {
		v, err := cmd.Flags().GetUint64("run-seed")
		checkError(err)
		p.RunSeed = v
	})
	return p
}

// sampleBarcodeCodes reads up to maxSamples exact 2-bit-encoded barcode
// codes from files, for Corrector.EstimateAbundance's sampled
// whitelist-match sanity check.
func sampleBarcodeCodes(files []string, length, maxSamples int) []uint64 {
	src := refio.NewReadSource(files)
	defer src.Close()

	samples := make([]uint64, 0, maxSamples)
	var rd refio.Read
	for len(samples) < maxSamples {
		ok, err := src.Next(&rd)
		checkError(err)
		if !ok {
			break
		}
		if len(rd.Seq) == length {
			if code, err := kmers.Encode(rd.Seq); err == nil {
				samples = append(samples, code)
			}
		}
		rd.Reset()
	}
	return samples
}

// processPairedFile streams read pairs from r1/r2 (and bc, if barcoded)
// in params.ReadBatchSize-sized batches through runner, merging each
// batch's per-reference buckets into total and its stats into stats.
func processPairedFile(runner *pipeline.Runner, r1, r2, bc *refio.ReadSource, params *Parameters,
	total pipeline.Buckets, stats *model.Stats, nextReadID *uint32) {

	batch := make([]pipeline.PairedRead, 0, params.ReadBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		batchBuckets := pipeline.NewBuckets(len(total))
		batchStats := runner.RunPaired(batch, batchBuckets)
		total.Merge(batchBuckets)
		stats.Add(&batchStats)
		batch = batch[:0]
	}

	var rd1, rd2, bcRd refio.Read
	for {
		ok1, err := r1.Next(&rd1)
		checkError(err)
		if !ok1 {
			break
		}
		ok2, err := r2.Next(&rd2)
		checkError(err)
		if !ok2 {
			checkError(fmt.Errorf("read1 and read2 files have different record counts"))
		}

		var barcodeSeq, barcodeQual []byte
		hasBarcode := false
		if bc != nil {
			okb, err := bc.Next(&bcRd)
			checkError(err)
			if okb {
				barcodeSeq = append([]byte(nil), bcRd.Seq...)
				barcodeQual = append([]byte(nil), bcRd.Qual...)
				hasBarcode = true
			}
			bcRd.Reset()
		}

		if len(rd1.Seq) < params.MinReadLength || len(rd2.Seq) < params.MinReadLength {
			stats.NumDroppedShort++
			rd1.Reset()
			rd2.Reset()
			continue
		}

		rc1, err := refio.RevComp(rd1.Seq)
		checkError(err)
		rc2, err := refio.RevComp(rd2.Seq)
		checkError(err)

		batch = append(batch, pipeline.PairedRead{
			ID:         *nextReadID,
			Name1:      string(rd1.ID),
			Name2:      string(rd2.ID),
			Forward1:   append([]byte(nil), rd1.Seq...),
			Revcomp1:   rc1,
			Forward2:   append([]byte(nil), rd2.Seq...),
			Revcomp2:   rc2,
			BarcodeSeq: barcodeSeq,
			BarcodeQual: barcodeQual,
			HasBarcode: hasBarcode,
		})
		*nextReadID++
		rd1.Reset()
		rd2.Reset()

		if len(batch) >= params.ReadBatchSize {
			flush()
		}
	}
	flush()
}

// processSingleFile is the single-end analogue of processPairedFile.
func processSingleFile(runner *pipeline.Runner, r1, bc *refio.ReadSource, params *Parameters,
	total pipeline.Buckets, stats *model.Stats, nextReadID *uint32) {

	batch := make([]pipeline.SingleRead, 0, params.ReadBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		batchBuckets := pipeline.NewBuckets(len(total))
		batchStats := runner.RunSingle(batch, batchBuckets)
		total.Merge(batchBuckets)
		stats.Add(&batchStats)
		batch = batch[:0]
	}

	var rd, bcRd refio.Read
	for {
		ok, err := r1.Next(&rd)
		checkError(err)
		if !ok {
			break
		}

		var barcodeSeq, barcodeQual []byte
		hasBarcode := false
		if bc != nil {
			okb, err := bc.Next(&bcRd)
			checkError(err)
			if okb {
				barcodeSeq = append([]byte(nil), bcRd.Seq...)
				barcodeQual = append([]byte(nil), bcRd.Qual...)
				hasBarcode = true
			}
			bcRd.Reset()
		}

		if len(rd.Seq) < params.MinReadLength {
			stats.NumDroppedShort++
			rd.Reset()
			continue
		}

		rc, err := refio.RevComp(rd.Seq)
		checkError(err)

		batch = append(batch, pipeline.SingleRead{
			ID:          *nextReadID,
			Name:        string(rd.ID),
			Forward:     append([]byte(nil), rd.Seq...),
			Revcomp:     rc,
			BarcodeSeq:  barcodeSeq,
			BarcodeQual: barcodeQual,
			HasBarcode:  hasBarcode,
		})
		*nextReadID++
		rd.Reset()

		if len(batch) >= params.ReadBatchSize {
			flush()
		}
	}
	flush()
}

// toPointerBuckets bridges pipeline.Buckets's value-slice representation
// onto internal/post's pointer-slice API, aliasing the same backing
// arrays so post's in-place sort/dedupe mutate the originals.
func toPointerBuckets(buckets pipeline.Buckets) [][]*model.MappingRecord {
	out := make([][]*model.MappingRecord, len(buckets))
	for i := range buckets {
		bucket := buckets[i]
		p := make([]*model.MappingRecord, len(bucket))
		for j := range bucket {
			p[j] = &bucket[j]
		}
		out[i] = p
	}
	return out
}

// allocateMultiMapped resolves every multi-mapped read's placement
// candidates (grouped by ReadID within each reference's bucket) against
// an Allocator built from that bucket's uniquely-mapped background,
// keeping one allocated placement per read or dropping it if nothing
// overlapped the unique-mapping background.
func allocateMultiMapped(buckets [][]*model.MappingRecord, params *Parameters, stats *model.Stats) [][]*model.MappingRecord {
	out := make([][]*model.MappingRecord, len(buckets))
	for i, bucket := range buckets {
		var unique []*model.MappingRecord
		groups := make(map[uint32][]*model.MappingRecord)
		var order []uint32
		for _, rec := range bucket {
			if post.IsMultiMapped(rec) {
				if _, ok := groups[rec.ReadID]; !ok {
					order = append(order, rec.ReadID)
				}
				groups[rec.ReadID] = append(groups[rec.ReadID], rec)
			} else {
				unique = append(unique, rec)
			}
		}

		alloc := post.NewAllocator(unique, params.MultiMapAllocationSeed)
		kept := append([]*model.MappingRecord(nil), unique...)
		for _, rid := range order {
			cands := groups[rid]
			idx, ok := alloc.Allocate(cands, params.MultiMapAllocationDistance)
			if !ok {
				stats.NumMultiMappingDropped += uint64(len(cands))
				continue
			}
			kept = append(kept, cands[idx])
			stats.NumMultiMappingAllocated++
		}

		sort.Slice(kept, func(a, b int) bool { return model.Less(kept[a], kept[b]) })
		out[i] = kept
	}
	return out
}

// writeRecords writes buckets as tab-separated fragment records:
// reference name, fragment start/end, MAPQ, strand, barcode, and
// (with --output-paf) the originating read name(s), plus a trailing
// CIGAR column when --recalibrate-mapq populated one.
func writeRecords(w *bufio.Writer, ref *refio.ReferenceGenome, buckets [][]*model.MappingRecord, outputPAF bool) {
	for refID, bucket := range buckets {
		name := ref.NameAt(uint32(refID))
		for _, rec := range bucket {
			strandByte := byte('+')
			if rec.PairedEnd {
				if rec.Orientation() == model.OrientationF2R1 {
					strandByte = '-'
				}
			} else if rec.Strand() == model.Negative {
				strandByte = '-'
			}

			if outputPAF && rec.ReadName != "" {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%c\t%d",
					rec.ReadName, rec.Read2Name, name, rec.FragStart, rec.FragStart+rec.FragLen,
					rec.MapqValue(), strandByte, rec.Barcode)
			} else {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%c\t%d",
					name, rec.FragStart, rec.FragStart+rec.FragLen, rec.MapqValue(), strandByte, rec.Barcode)
			}
			if rec.Cigar != "" {
				fmt.Fprintf(w, "\t%s", rec.Cigar)
			}
			fmt.Fprintln(w)
		}
	}
}
