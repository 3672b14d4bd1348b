// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"github.com/arches-ml/arches/data"
	"github.com/arches-ml/arches/internal/model"
	"github.com/arches-ml/arches/internal/tensor"
	"github.com/arches-ml/arches/internal/vae"
)

// ----------------------------------------------------------------------------
// Configuration
// ----------------------------------------------------------------------------

// Dispersion selects how the negative-binomial dispersion is shared.
type Dispersion = vae.Dispersion

// Dispersion modes. The mode decides the shape of the px_r parameter,
// so it belongs to the saved constructor arguments.
const (
	// DispersionGene shares one dispersion per gene, px_r [genes].
	DispersionGene = vae.DispersionGene

	// DispersionGeneBatch keeps a dispersion per gene and batch,
	// px_r [genes, batches]. The batch axis is last so a grown batch
	// vocabulary extends it by appended columns.
	DispersionGeneBatch = vae.DispersionGeneBatch

	// DispersionGeneLabel keeps a dispersion per gene and label,
	// px_r [genes, labels].
	DispersionGeneLabel = vae.DispersionGeneLabel

	// DispersionGeneCell predicts a dispersion per cell and gene from
	// the decoder; there is no px_r parameter.
	DispersionGeneCell = vae.DispersionGeneCell
)

// Likelihood selects the count likelihood the decoder parameterizes.
type Likelihood = vae.Likelihood

// Count likelihoods.
const (
	LikelihoodZINB    = vae.LikelihoodZINB
	LikelihoodNB      = vae.LikelihoodNB
	LikelihoodPoisson = vae.LikelihoodPoisson
)

// Config holds the constructor arguments of the network. It is
// persisted as the init-params payload of saved artifacts, so every
// field that affects the parameter set lives here.
//
// Methods: Validate.
type Config = vae.Config

// DefaultConfig returns the standard architecture sized for a registry:
// gene, batch, and label counts come from the registry's summary, with
// one hidden layer of 128 units, a 10-dimensional latent space, 10%
// dropout, per-gene dispersion, and a ZINB likelihood.
//
// Example:
//
//	cfg := model.DefaultConfig(reg)
//	cfg.Latent = 20
//	cfg.EncodeCovariates = true
//	m, err := model.New(cfg, reg, backend)
func DefaultConfig(registry *data.Registry) Config {
	return model.DefaultConfig(registry)
}

// ----------------------------------------------------------------------------
// Model
// ----------------------------------------------------------------------------

// Model is a VAE bound to the registry describing its training data.
//
// Methods: VAE, Registry, Config, Backend, IsTrained, SetTrained,
// LatentRepresentation, Save.
//
// Note: Model is implemented as a type alias so values returned by New,
// Load, and LoadQuery are interchangeable with the internal
// implementation the rest of the toolkit operates on.
type Model[B tensor.Backend] = model.Model[B]

// VAE is the underlying network of a Model: two encoders, a decoder,
// and the dispersion parameter, conditioned on batch and label codes.
//
// Methods: Forward, Latent, Config, ZEncoder, LEncoder, Decoder, PxR,
// Backend, Parameters, NamedParameters, SetTraining, StateDict,
// LoadStateDict.
type VAE[B tensor.Backend] = vae.VAE[B]

// Outputs bundles one forward pass of the network: the latent samples,
// their posterior parameters, and the likelihood parameters of the
// reconstruction.
type Outputs[B tensor.Backend] = vae.Outputs[B]

// New builds a model from a configuration and the registry of its
// reference data. The configuration's dimensions must agree with the
// registry summary; a mismatch means the caller is wiring a model to
// data it was not set up for.
//
// Example:
//
//	reg, _ := data.Setup(ds, data.SetupOptions{BatchKey: "batch"})
//	m, err := model.New(model.DefaultConfig(reg), reg, cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
func New[B tensor.Backend](cfg Config, registry *data.Registry, backend B) (*Model[B], error) {
	return model.New(cfg, registry, backend)
}

// ----------------------------------------------------------------------------
// Persistence
// ----------------------------------------------------------------------------

// Artifact gate errors. Load and LoadQuery reject an artifact from its
// header alone, before reading any tensor data.
var (
	// ErrMissingInitParams marks an artifact whose header lacks the
	// constructor parameters. Such a file was not written through Save
	// and cannot be rebuilt.
	ErrMissingInitParams = model.ErrMissingInitParams

	// ErrMissingRegistry marks an artifact whose header lacks the data
	// registry, leaving no record of how training data mapped to
	// tensors.
	ErrMissingRegistry = model.ErrMissingRegistry
)

// Load rebuilds a model from an artifact written by Model.Save.
//
// The header is parsed and vetted first: an artifact without init
// params or registry is rejected before any tensor data is read. The
// payload checksum is then verified and the weights loaded.
//
// Example:
//
//	m, err := model.Load("reference.arcv", cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("trained: %v, genes: %d\n", m.IsTrained(), m.Config().Genes)
func Load[B tensor.Backend](path string, backend B) (*Model[B], error) {
	return model.Load(path, backend)
}

// ----------------------------------------------------------------------------
// Device selection
// ----------------------------------------------------------------------------

// Device request strings accepted by SelectBackend.
const (
	DeviceAuto = model.DeviceAuto
	DeviceCPU  = model.DeviceCPU
	DeviceGPU  = model.DeviceGPU
)

// SelectBackend returns the compute backend for a device request.
// "gpu" and "auto" use the WebGPU backend when the platform provides
// one; "cpu" and anything unrecognized use the CPU backend.
//
// A GPU request on a machine without a usable adapter degrades to CPU
// without error. Callers that care which device they got can check
// the returned backend's Device.
func SelectBackend(device string) tensor.Backend {
	return model.SelectBackend(device)
}
