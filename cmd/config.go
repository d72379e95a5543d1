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
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Parameters collects every mapping parameter the core needs. This
// struct, not a pile of loose flag lookups, is what cmd/map.go builds
// from the built-in defaults plus an optional TOML config file and
// hands to internal/pipeline.
type Parameters struct {
	KmerSize   int `toml:"kmer_size"`
	WindowSize int `toml:"window_size"`

	ErrorThreshold      int `toml:"error_threshold"`
	MinNumSeeds         int `toml:"min_num_seeds"`
	MaxSeedFrequency    int `toml:"max_seed_frequency"`
	MaxSeedFrequencyMate int `toml:"max_seed_frequency_mate"`

	MinOverlapLength uint32 `toml:"min_overlap_length"`
	MaxInsertSize    uint32 `toml:"max_insert_size"`

	MaxNumBestMappings  int `toml:"max_num_best_mappings"`
	DropRepetitiveReads int `toml:"drop_repetitive_reads"`
	MinReadLength       int `toml:"min_read_length"`

	MultiMapAllocationDistance int32  `toml:"multi_map_allocation_distance"`
	MultiMapAllocationSeed     uint64 `toml:"multi_map_allocation_seed"`

	CacheShards          int     `toml:"cache_shards"`
	CacheCapacityPerShard int    `toml:"cache_capacity_per_shard"`
	CacheTuningParam     float64 `toml:"cache_tuning_param"`

	BarcodeLength                  int     `toml:"barcode_length"`
	BarcodeCorrectionErrorThreshold int    `toml:"barcode_correction_error_threshold"`
	BarcodeCorrectionProbThreshold float64 `toml:"barcode_correction_probability_threshold"`
	SkipBarcodeCheck               bool    `toml:"skip_barcode_check"`

	ReadBatchSize    int   `toml:"read_batch_size"`
	MaxMappingsInMem int64 `toml:"max_mappings_in_mem"`

	RunSeed uint64 `toml:"run_seed"`
}

// defaultParameters holds the documented defaults:
// errorThreshold=3, matchScore=1, mismatchPenalty=4, gapOpen=[6,6],
// gapExtend=[1,1], minNumSeeds=2, maxSeedFreq=[1000,5000],
// maxNumBestMappings=10, maxInsertSize=400, minReadLen=30,
// multiMapAllocDist=0, multiMapAllocSeed=11, dropRepetitiveReads=500000.
func defaultParameters() Parameters {
	return Parameters{
		KmerSize:   17,
		WindowSize: 7,

		ErrorThreshold:       3,
		MinNumSeeds:          2,
		MaxSeedFrequency:     1000,
		MaxSeedFrequencyMate: 5000,

		MinOverlapLength: 30,
		MaxInsertSize:    400,

		MaxNumBestMappings:  10,
		DropRepetitiveReads: 500000,
		MinReadLength:       30,

		MultiMapAllocationDistance: 0,
		MultiMapAllocationSeed:     11,

		CacheShards:           64,
		CacheCapacityPerShard: 1 << 16,
		CacheTuningParam:      0.1,

		BarcodeLength:                   16,
		BarcodeCorrectionErrorThreshold: 1,
		BarcodeCorrectionProbThreshold:  0.9,

		ReadBatchSize:    1 << 17,
		MaxMappingsInMem: 1 << 30,

		RunSeed: 11,
	}
}

// loadParametersFile overlays a TOML config file (resolved relative to
// $HOME when it starts with "~") onto the defaults, using go-homedir
// to resolve user-supplied paths before reading them. Missing optional
// files are not an error; a malformed file is.
func loadParametersFile(path string) (Parameters, error) {
	p := defaultParameters()
	if path == "" {
		return p, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return p, errors.Wrapf(err, "expanding config path %q", path)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, errors.Wrapf(err, "reading config file %q", expanded)
	}

	if err := toml.Unmarshal(data, &p); err != nil {
		return p, errors.Wrapf(err, "parsing config file %q", expanded)
	}
	return p, nil
}
