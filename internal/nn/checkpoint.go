package nn

import (
	"fmt"
	"strings"
	"time"

	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
)

// StatefulModel is anything whose parameters travel through a state
// dictionary: every Module, but also the composite models (encoders,
// decoders, variational models) whose forward signatures take
// covariates and therefore do not fit the Module interface.
type StatefulModel interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Model parameters (weights, biases, normalization buffers)
//   - Optimizer state (momentum buffers, Adam moments, etc.)
//   - Training metadata (epoch, step, loss)
//   - Custom metadata
//
// Checkpoints let fine-tuning resume from a specific point. Adaptation
// runs checkpoint after every few epochs so an interrupted query
// fine-tune does not restart from the reconciled initial state.
//
// Example:
//
//	checkpoint := &nn.Checkpoint[cpu.Backend]{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Step:      5000,
//	    Loss:      0.123,
//	    Metadata:  map[string]any{"lr": 0.001, "batch_size": 32},
//	}
//	err := checkpoint.Save("checkpoint_epoch_10.arcv")
//
// Type parameter B must satisfy the tensor.Backend interface.
type Checkpoint[B tensor.Backend] struct {
	Model     StatefulModel  // The model whose parameters are snapshotted
	Optimizer OptimizerState // The optimizer with its state
	Epoch     int            // Training epoch number
	Step      int64          // Training step number
	Loss      float64        // Loss value at this checkpoint
	Metadata  map[string]any // Additional training metadata
	CreatedAt time.Time      // When the checkpoint was created
}

// Save saves the checkpoint to a .arcv file.
//
// This writes the model parameters via StateDict, the optimizer state
// under an "optimizer." prefix, and the training metadata. The
// resulting file can be loaded with LoadCheckpoint to resume training.
func (c *Checkpoint[B]) Save(path string) error {
	modelStateDict := c.Model.StateDict()
	optimizerStateDict := c.Optimizer.StateDict()

	// Combine model and optimizer state; the "optimizer." prefix keeps
	// the namespaces apart.
	combinedStateDict := make(map[string]*tensor.RawTensor)

	for name, raw := range modelStateDict {
		combinedStateDict[name] = raw
	}

	for name, raw := range optimizerStateDict {
		combinedStateDict["optimizer."+name] = raw
	}

	checkpointMeta := &serialization.CheckpointMeta{
		IsCheckpoint:    true,
		Epoch:           c.Epoch,
		Step:            c.Step,
		Loss:            c.Loss,
		OptimizerType:   getOptimizerType(c.Optimizer),
		OptimizerConfig: getOptimizerConfig(c.Optimizer),
		TrainingMeta:    c.Metadata,
	}

	writer, err := serialization.NewArcvWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := serialization.Header{
		FormatVersion:  serialization.FormatVersionV2,
		ArchesVersion:  serialization.Version,
		ModelType:      "Checkpoint",
		CreatedAt:      time.Now().UTC(),
		Metadata:       make(map[string]string),
		CheckpointMeta: checkpointMeta,
	}

	if err := writer.WriteStateDictWithHeader(combinedStateDict, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return nil
}

// LoadCheckpoint loads a checkpoint from a .arcv file.
//
// The model and optimizer must be pre-constructed with the same
// architecture and configuration as when the checkpoint was saved;
// their state is restored in place.
//
// Example:
//
//	model := nn.NewLinear(10, 5, backend)
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
//
//	checkpoint, err := nn.LoadCheckpoint("checkpoint.arcv", backend, model, optimizer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Resume training from checkpoint.Epoch + 1.
func LoadCheckpoint[B tensor.Backend](
	path string,
	backend B,
	model StatefulModel,
	optimizer OptimizerState,
) (*Checkpoint[B], error) {
	reader, err := serialization.NewArcvReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := reader.Header()

	if header.CheckpointMeta == nil || !header.CheckpointMeta.IsCheckpoint {
		return nil, fmt.Errorf("file is not a checkpoint")
	}

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to read state dict: %w", err)
	}

	// Split model and optimizer state.
	modelStateDict := make(map[string]*tensor.RawTensor)
	optimizerStateDict := make(map[string]*tensor.RawTensor)

	for name, raw := range stateDict {
		if strings.HasPrefix(name, "optimizer.") {
			optimizerStateDict[strings.TrimPrefix(name, "optimizer.")] = raw
		} else {
			modelStateDict[name] = raw
		}
	}

	if err := model.LoadStateDict(modelStateDict); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}

	if err := optimizer.LoadStateDict(optimizerStateDict); err != nil {
		return nil, fmt.Errorf("failed to load optimizer state: %w", err)
	}

	checkpoint := &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     header.CheckpointMeta.Epoch,
		Step:      header.CheckpointMeta.Step,
		Loss:      header.CheckpointMeta.Loss,
		Metadata:  header.CheckpointMeta.TrainingMeta,
		CreatedAt: header.CreatedAt,
	}

	return checkpoint, nil
}

// SaveCheckpoint is a convenience function to save a checkpoint.
//
// This is equivalent to creating a Checkpoint struct and calling
// Save(), but with a simpler API for common use cases.
//
// Example:
//
//	err := nn.SaveCheckpoint[cpu.Backend]("checkpoint.arcv", model, optimizer, epoch)
func SaveCheckpoint[B tensor.Backend](
	path string,
	model StatefulModel,
	optimizer OptimizerState,
	epoch int,
) error {
	checkpoint := &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     epoch,
		Step:      0,
		Loss:      0.0,
		Metadata:  nil,
		CreatedAt: time.Now().UTC(),
	}
	return checkpoint.Save(path)
}

// getOptimizerType returns a string identifier for the optimizer type.
func getOptimizerType(_ OptimizerState) string {
	// The concrete type lives in optim, which this package cannot
	// import without a cycle.
	return "Optimizer"
}

// getOptimizerConfig extracts optimizer configuration.
func getOptimizerConfig(opt OptimizerState) map[string]any {
	config := make(map[string]any)
	config["lr"] = opt.GetLR()
	return config
}
