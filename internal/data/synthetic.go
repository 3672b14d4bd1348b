package data

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/arches-ml/arches/internal/parallel"
	"github.com/arches-ml/arches/internal/tensor"
)

// Negative-binomial parameters of the synthetic counts, expressed as
// the Gamma-Poisson mixture: per-cell rates drawn from
// Gamma(nbShape, nbRate), counts from Poisson at that rate. Matches
// NB(r=5, p=0.3), mean around 11.7 counts per gene.
const (
	nbShape = 5.0
	nbRate  = 0.3 / 0.7

	// Multiplicative library-size shift applied per batch, the batch
	// effect adaptation is supposed to absorb.
	batchLibraryShift = 0.15

	// Rows per RNG stream. Fixed so generation is deterministic for a
	// given seed no matter how many workers run.
	syntheticBlock = 256
)

// SyntheticOptions sizes the generated dataset. Dropout is the
// zero-inflation probability applied entrywise; 0 disables it.
type SyntheticOptions struct {
	Cells   int
	Genes   int
	Batches int
	Labels  int
	Dropout float64
	Seed    uint64
}

// DefaultSyntheticOptions mirrors the classic simulation: two batches
// of 200 cells, 100 genes, three labels, 30% dropout.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Cells:   400,
		Genes:   100,
		Batches: 2,
		Labels:  3,
		Dropout: 0.3,
		Seed:    0,
	}
}

// Synthetic generates a zero-inflated negative-binomial count dataset
// with per-batch library-size shifts and uniform random labels.
//
// Cells are assigned to batches in contiguous equal blocks. Obs
// columns "batch" and "labels" hold the category names; gene and cell
// names are filled in. The result is deterministic for a given
// options value. Invalid sizes panic; start from
// DefaultSyntheticOptions and override.
func Synthetic(opts SyntheticOptions) *Dataset {
	if opts.Cells < 1 || opts.Genes < 1 {
		panic(fmt.Sprintf("data: Synthetic needs positive dimensions, got %d cells x %d genes", opts.Cells, opts.Genes))
	}
	if opts.Batches < 1 || opts.Labels < 1 {
		panic(fmt.Sprintf("data: Synthetic needs at least one batch and one label, got %d batches, %d labels", opts.Batches, opts.Labels))
	}
	if opts.Dropout < 0 || opts.Dropout >= 1 {
		panic(fmt.Sprintf("data: Synthetic dropout must be in [0, 1), got %g", opts.Dropout))
	}

	x, err := tensor.NewRaw(tensor.Shape{opts.Cells, opts.Genes}, tensor.Float32, tensor.CPU)
	if err != nil {
		panic(fmt.Sprintf("data: Synthetic: %v", err))
	}
	counts := x.AsFloat32()
	labels := make([]string, opts.Cells)
	batches := make([]string, opts.Cells)

	nBlocks := (opts.Cells + syntheticBlock - 1) / syntheticBlock
	parallel.For(nBlocks, func(block int) {
		start := block * syntheticBlock
		end := min(start+syntheticBlock, opts.Cells)

		// One stream per fixed-size row block keeps the output
		// independent of the worker count.
		src := rand.NewSource(opts.Seed + 0x9E3779B97F4A7C15*uint64(block+1))
		rng := rand.New(src)
		gamma := distuv.Gamma{Alpha: nbShape, Beta: nbRate, Src: rng}
		pois := distuv.Poisson{Lambda: 1, Src: rng}
		keep := distuv.Bernoulli{P: 1 - opts.Dropout, Src: rng}

		for cell := start; cell < end; cell++ {
			batch := cell * opts.Batches / opts.Cells
			scale := 1 + batchLibraryShift*float64(batch)
			batches[cell] = fmt.Sprintf("batch_%d", batch)
			labels[cell] = fmt.Sprintf("label_%d", rng.Intn(opts.Labels))

			row := counts[cell*opts.Genes : (cell+1)*opts.Genes]
			for g := range row {
				pois.Lambda = gamma.Rand() * scale
				c := pois.Rand()
				if opts.Dropout > 0 && keep.Rand() == 0 {
					c = 0
				}
				row[g] = float32(c)
			}
		}
	}, parallel.DefaultConfig())

	ds := &Dataset{
		X:        x,
		ObsNames: make([]string, opts.Cells),
		VarNames: make([]string, opts.Genes),
		Obs: map[string][]string{
			"batch":  batches,
			"labels": labels,
		},
		ObsNum: make(map[string][]float64),
		Codes:  make(map[string][]int64),
		Layers: make(map[string]*tensor.RawTensor),
		Uns:    make(map[string]any),
	}
	for i := range ds.ObsNames {
		ds.ObsNames[i] = fmt.Sprintf("cell_%d", i)
	}
	for i := range ds.VarNames {
		ds.VarNames[i] = fmt.Sprintf("gene_%d", i)
	}
	return ds
}
