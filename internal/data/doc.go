// Package data holds the dataset container and the setup descriptor
// that binds a model to it.
//
// A Dataset is a dense cells-by-genes count matrix plus per-cell
// annotation columns. Setup encodes the categorical columns (batch,
// labels) into integer codes, computes per-batch library-size
// statistics, and records where every model input lives in a Registry.
// The Registry travels inside saved model artifacts, so a query dataset
// can be validated against the exact layout the reference model was
// trained on.
//
// Example:
//
//	ds := data.Synthetic(data.DefaultSyntheticOptions())
//	reg, err := data.Setup(ds, data.SetupOptions{BatchKey: "batch", LabelsKey: "labels"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	batches, err := data.GetFromRegistry(ds, reg, data.FieldBatch)
//
// Category mappings are append-only: TransferSetup with extension
// enabled grows a vocabulary by appending the query's unseen categories
// after the reference ones, never reordering what a trained model has
// already bound one-hot columns to.
package data
