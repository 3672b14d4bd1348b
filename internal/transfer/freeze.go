package transfer

import (
	"sort"
	"strings"

	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/tensor"
	"github.com/arches-ml/arches/internal/vae"
)

// Decision says how a parameter may move during fine-tuning.
type Decision int

const (
	// Trainable parameters receive full gradients.
	Trainable Decision = iota

	// Frozen parameters receive no gradients.
	Frozen

	// NewColumnsOnly parameters train only the input columns appended
	// for the query's new categories; columns carrying reference
	// weights receive zero gradient.
	NewColumnsOnly
)

func (d Decision) String() string {
	switch d {
	case Trainable:
		return "trainable"
	case Frozen:
		return "frozen"
	case NewColumnsOnly:
		return "new-columns-only"
	}
	return "unknown"
}

// FreezeConfig selects which parts of an adapted model stay trainable.
// The zero value still freezes everything beyond first layers, since
// the structural rule always applies, but exempts first layers from
// gradient masking and leaves batch normalization live. Use
// DefaultFreezeConfig for the standard surgery.
type FreezeConfig struct {
	// FreezeDropout zeroes every dropout rate.
	FreezeDropout bool

	// FreezeExpression restricts first-layer gradients of
	// encoder-tagged modules to the input columns appended for new
	// categories.
	FreezeExpression bool

	// FreezeDecoderFirstLayer applies the same restriction to the
	// decoder's first layer.
	FreezeDecoderFirstLayer bool

	// FreezeBatchNormEncoder stops running-statistic updates in
	// encoder batch normalization.
	FreezeBatchNormEncoder bool

	// FreezeBatchNormDecoder stops running-statistic updates in
	// decoder batch normalization.
	FreezeBatchNormDecoder bool

	// FreezeClassifier keeps classifier modules frozen.
	FreezeClassifier bool

	// Unfrozen lists top-level modules exempt from every rule; their
	// parameters train with full gradients and their dropout and
	// batch-norm behavior is left alone.
	Unfrozen []string
}

// DefaultFreezeConfig returns the standard surgery: expression
// programs frozen, the library encoder and dispersion parameters
// trainable, and covariate columns open for the new categories.
func DefaultFreezeConfig() FreezeConfig {
	return FreezeConfig{
		FreezeExpression:        true,
		FreezeDecoderFirstLayer: true,
		FreezeBatchNormEncoder:  true,
		FreezeClassifier:        true,
	}
}

// Latent-bridge modules map between latent spaces. Their inputs gain
// no new columns, so their first layers stay frozen with the rest.
var latentBridges = map[string]bool{
	"encoder_z2_z1": true,
	"decoder_z1_z2": true,
}

// Parameters whose path contains one of these substrings adapt
// globally no matter where they live: dispersion and background rates
// must be free to absorb the query's technical effects.
var alwaysTrainable = []string{
	"px_r",
	"background_pro_alpha",
	"background_pro_log_beta",
}

const (
	libraryEncoder   = "l_encoder"
	classifierModule = "classifier"
)

// Classify maps a parameter's dotted path to its fine-tuning decision.
// The decision depends only on the path and the config, so every
// parameter classifies the same way on every run.
//
// Precedence, first match wins:
//
//  1. modules listed in Unfrozen train fully
//  2. dispersion and background parameters train fully
//  3. the library encoder, and the classifier unless frozen, train
//     fully
//  4. latent-bridge modules freeze
//  5. first-layer linear weights train their appended columns only
//     and first-layer biases freeze, unless the owning module's side
//     is exempted by FreezeExpression or FreezeDecoderFirstLayer, in
//     which case both train fully
//  6. everything else freezes
func Classify(path string, cfg FreezeConfig) Decision {
	top := topModule(path)
	for _, m := range cfg.Unfrozen {
		if top == m {
			return Trainable
		}
	}
	for _, sub := range alwaysTrainable {
		if strings.Contains(path, sub) {
			return Trainable
		}
	}
	if top == libraryEncoder || (top == classifierModule && !cfg.FreezeClassifier) {
		return Trainable
	}
	if latentBridges[top] {
		return Frozen
	}
	if strings.Contains(path, "fc_layers.0.linear.") {
		if firstLayerOpen(path, cfg) {
			return Trainable
		}
		if strings.HasSuffix(path, ".weight") {
			return NewColumnsOnly
		}
		return Frozen
	}
	return Frozen
}

// firstLayerOpen reports whether the module owning path is exempt from
// first-layer gradient masking.
func firstLayerOpen(path string, cfg FreezeConfig) bool {
	if !cfg.FreezeExpression && strings.Contains(path, "encoder") {
		return true
	}
	if !cfg.FreezeDecoderFirstLayer && strings.Contains(path, "px_decoder") {
		return true
	}
	return false
}

func topModule(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// ParamState records the decision applied to one parameter. MaskFrom
// is the first trainable last-dim column for NewColumnsOnly parameters
// and -1 otherwise.
type ParamState struct {
	Name     string
	Decision Decision
	MaskFrom int
}

// Apply puts every parameter of the network into the state Classify
// assigns it, using the grown report from Reconcile to place gradient
// masks at the boundary between reference and appended columns. A
// grown weight trains only its appended columns; an ungrown
// NewColumnsOnly weight has nothing appended and trains nothing.
//
// After the parameter pass the module toggles run: dropout rates and
// batch-norm statistics freeze per config, skipping modules the
// parameter rules leave fully trainable.
//
// The returned states are sorted by name and cover every parameter
// exactly once.
func Apply[B tensor.Backend](v *vae.VAE[B], cfg FreezeConfig, grown []Grown) []ParamState {
	oldWidth := make(map[string]int, len(grown))
	for _, g := range grown {
		oldWidth[g.Name] = g.OldWidth
	}

	named := v.NamedParameters()
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	states := make([]ParamState, 0, len(names))
	for _, name := range names {
		p := named[name]
		state := ParamState{Name: name, Decision: Classify(name, cfg), MaskFrom: -1}
		switch state.Decision {
		case Trainable:
			p.FreezeColumnsBefore(0)
			p.SetTrainable(true)
		case Frozen:
			p.FreezeColumnsBefore(0)
			p.SetTrainable(false)
		case NewColumnsOnly:
			shape := p.Tensor().Shape()
			from := shape[len(shape)-1]
			if w, ok := oldWidth[name]; ok {
				from = w
			}
			p.FreezeColumnsBefore(from)
			state.MaskFrom = from
		}
		states = append(states, state)
	}

	freezeModules(v, cfg)
	return states
}

// freezeModules applies the dropout and batch-norm toggles. Modules
// exempted from the parameter rules keep their stochastic behavior
// too.
func freezeModules[B tensor.Backend](v *vae.VAE[B], cfg FreezeConfig) {
	skip := make(map[string]bool, len(cfg.Unfrozen)+2)
	skip[libraryEncoder] = true
	if !cfg.FreezeClassifier {
		skip[classifierModule] = true
	}
	for _, m := range cfg.Unfrozen {
		skip[m] = true
	}

	blocks := []struct {
		top    string
		fc     *nn.FCBlock[B]
		freeze bool
	}{
		{"z_encoder", v.ZEncoder().FC(), cfg.FreezeBatchNormEncoder},
		{"l_encoder", v.LEncoder().FC(), cfg.FreezeBatchNormEncoder},
		{"decoder", v.Decoder().PxDecoder(), cfg.FreezeBatchNormDecoder},
	}
	for _, b := range blocks {
		if skip[b.top] {
			continue
		}
		for i := 0; i < b.fc.NumLayers(); i++ {
			if cfg.FreezeDropout {
				if d := b.fc.DropoutAt(i); d != nil {
					d.SetRate(0)
				}
			}
			if b.freeze {
				if bn := b.fc.BatchNormAt(i); bn != nil {
					bn.FreezeStats()
				}
			}
		}
	}
}
