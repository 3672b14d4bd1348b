// Package main provides the Arches command-line interface.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arches-ml/arches/backend/cpu"
	"github.com/arches-ml/arches/data"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/loader"
	"github.com/arches-ml/arches/model"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "info":
		err = runInfo(os.Args[2:])
	case "synth":
		err = runSynth(os.Args[2:])
	case "adapt":
		err = runAdapt(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "version":
		fmt.Printf("Arches %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "arches: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "arches %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Arches - Single-Cell Probabilistic Modeling for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  info      Show artifact contents without reading tensor data")
	fmt.Println("  synth     Generate a synthetic count dataset")
	fmt.Println("  adapt     Adapt a saved model to a query dataset")
	fmt.Println("  import    Convert a safetensors checkpoint to a native artifact")
	fmt.Println("  export    Convert a native artifact to safetensors")
	fmt.Println("  version   Show version")
	fmt.Println("")
	fmt.Println("Run 'arches <command> -h' for command flags.")
}

// runInfo dumps an artifact's header. The tensor payload is never read
// unless -verify asks for the checksum walk.
func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	listTensors := fs.Bool("tensors", false, "list every tensor with dtype and shape")
	verify := fs.Bool("verify", false, "verify the payload checksum (reads the payload)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: arches info [-tensors] [-verify] <artifact>")
	}
	path := fs.Arg(0)

	if filepath.Ext(path) != ".arcv" {
		return infoForeign(path)
	}

	r, err := serialization.NewMmapReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	fmt.Println(path)
	fmt.Printf("  format:     arcv v%d\n", r.Version())
	if h.ArchesVersion != "" {
		fmt.Printf("  toolkit:    %s\n", h.ArchesVersion)
	}
	fmt.Printf("  model type: %s\n", h.ModelType)
	if !h.CreatedAt.IsZero() {
		fmt.Printf("  created:    %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}

	var total int64
	for _, t := range h.Tensors {
		total += t.Size
	}
	fmt.Printf("  tensors:    %d (%s)\n", len(h.Tensors), formatBytes(total))

	for _, k := range sortedKeys(h.Metadata) {
		fmt.Printf("  %s: %s\n", k, h.Metadata[k])
	}

	if meta := r.ModelMeta(); meta != nil {
		fmt.Printf("  trained:    %v\n", meta.IsTrained)
		if len(meta.InitParams) > 0 {
			fmt.Printf("  init params:\n%s\n", indentJSON(meta.InitParams, "    "))
		}
		if len(meta.Registry) > 0 {
			reg, err := data.ParseRegistry(meta.Registry)
			if err != nil {
				return fmt.Errorf("artifact registry: %w", err)
			}
			printRegistry(reg)
		}
	}

	if *listTensors {
		fmt.Println("  tensor list:")
		for _, t := range h.Tensors {
			fmt.Printf("    %-55s %-8s %v\n", t.Name, t.DType, t.Shape)
		}
	}

	if *verify {
		if err := r.VerifyChecksum(); err != nil {
			return err
		}
		fmt.Println("  checksum:   ok")
	}
	return nil
}

// infoForeign summarizes a non-native checkpoint through the loader.
func infoForeign(path string) error {
	m, err := loader.OpenModel(path)
	if err != nil {
		return err
	}
	defer m.Close()

	names := m.TensorNames()
	fmt.Println(path)
	fmt.Printf("  format:  %s\n", m.Format())
	fmt.Printf("  source:  %s\n", m.Source())
	fmt.Printf("  tensors: %d\n", len(names))
	meta := m.Metadata()
	for _, k := range sortedKeys(meta) {
		fmt.Printf("  %s: %s\n", k, meta[k])
	}
	return nil
}

func runSynth(args []string) error {
	defaults := data.DefaultSyntheticOptions()
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	cells := fs.Int("cells", defaults.Cells, "number of cells")
	genes := fs.Int("genes", defaults.Genes, "number of genes")
	batches := fs.Int("batches", defaults.Batches, "number of batches")
	labels := fs.Int("labels", defaults.Labels, "number of labels")
	dropout := fs.Float64("dropout", defaults.Dropout, "zero-inflation probability")
	seed := fs.Uint64("seed", defaults.Seed, "random seed")
	out := fs.String("o", "synthetic.csv", "output count matrix")
	obs := fs.String("obs", "", "output annotation sidecar (omit to skip)")
	fs.Parse(args)

	ds := data.Synthetic(data.SyntheticOptions{
		Cells:   *cells,
		Genes:   *genes,
		Batches: *batches,
		Labels:  *labels,
		Dropout: *dropout,
		Seed:    *seed,
	})
	if err := data.SaveCSV(*out, ds); err != nil {
		return err
	}
	fmt.Printf("wrote %d cells x %d genes to %s\n", ds.NumCells(), ds.NumGenes(), *out)

	if *obs != "" {
		f, err := os.Create(*obs)
		if err != nil {
			return err
		}
		if err := data.WriteObsCSV(f, ds, []string{"batch", "labels"}); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("wrote batch and label annotations to %s\n", *obs)
	}
	return nil
}

func runAdapt(args []string) error {
	fs := flag.NewFlagSet("adapt", flag.ExitOnError)
	ref := fs.String("ref", "", "reference model artifact (.arcv)")
	queryPath := fs.String("query", "", "query count matrix (.csv)")
	obsPath := fs.String("obs", "", "query annotation sidecar (.csv)")
	out := fs.String("o", "adapted.arcv", "output artifact")
	device := fs.String("device", model.DeviceAuto, "compute device: auto, cpu, gpu")
	unfrozen := fs.String("unfrozen", "", "comma-separated top-level modules to leave fully trainable")
	fs.Parse(args)
	if *ref == "" || *queryPath == "" {
		return fmt.Errorf("usage: arches adapt -ref <model.arcv> -query <counts.csv> [-obs <obs.csv>] [-o <out.arcv>]")
	}

	query, err := data.LoadCSV(*queryPath, *obsPath)
	if err != nil {
		return err
	}

	opts := model.Options{Device: *device}
	if *unfrozen != "" {
		freeze := model.DefaultFreezeConfig()
		freeze.Unfrozen = strings.Split(*unfrozen, ",")
		opts.Freeze = &freeze
	}

	adapted, report, err := model.LoadQuery(query, *ref, opts)
	if err != nil {
		return err
	}

	fmt.Printf("adapted %s to %d cells x %d genes\n", *ref, query.NumCells(), query.NumGenes())
	for _, g := range report.Grown {
		fmt.Printf("  grown  %s: %d -> %d columns\n", g.Name, g.OldWidth, g.NewWidth)
	}
	tally := make(map[model.Decision]int)
	for _, s := range report.Params {
		tally[s.Decision]++
	}
	fmt.Printf("  freeze %d trainable, %d frozen, %d new-columns-only\n",
		tally[model.Trainable], tally[model.Frozen], tally[model.NewColumnsOnly])

	if err := adapted.Save(*out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	out := fs.String("o", "", "output artifact (.arcv)")
	configPath := fs.String("config", "", "constructor parameters JSON (defaults to checkpoint metadata)")
	registryPath := fs.String("registry", "", "setup registry JSON (defaults to checkpoint metadata)")
	trained := fs.Bool("trained", true, "mark the imported weights as trained")
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		return fmt.Errorf("usage: arches import -o <out.arcv> [-config cfg.json] [-registry reg.json] <model.safetensors>")
	}
	path := fs.Arg(0)

	m, err := loader.OpenModel(path)
	if err != nil {
		return err
	}
	defer m.Close()

	backend := cpu.New()
	mapper := loader.GetMapper(m.Source())
	stateDict, err := loader.ReadMappedStateDict(m, mapper, backend)
	if err != nil {
		return err
	}
	skipped := len(m.TensorNames()) - len(stateDict)

	initParams, err := readOrDefault(*configPath, m.Metadata()["init_params"])
	if err != nil {
		return err
	}
	registry, err := readOrDefault(*registryPath, m.Metadata()["registry"])
	if err != nil {
		return err
	}
	if len(initParams) > 0 {
		var cfg model.Config
		if err := json.Unmarshal(initParams, &cfg); err != nil {
			return fmt.Errorf("init params: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if len(registry) > 0 {
		if _, err := data.ParseRegistry(registry); err != nil {
			return err
		}
	}

	header := serialization.Header{
		FormatVersion: serialization.FormatVersionV2,
		ModelType:     "VAE",
		Metadata:      map[string]string{"source": m.Source()},
	}
	if len(initParams) > 0 || len(registry) > 0 {
		header.Model = &serialization.ModelMeta{
			InitParams: initParams,
			Registry:   registry,
			IsTrained:  *trained,
		}
	}

	w, err := serialization.NewArcvWriter(*out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteStateDictWithHeader(stateDict, header); err != nil {
		return err
	}

	fmt.Printf("imported %d tensors from %s (%d skipped)\n", len(stateDict), path, skipped)
	if len(initParams) == 0 || len(registry) == 0 {
		fmt.Println("note: no init params or registry; the artifact holds weights only and cannot be loaded as a model until both are supplied")
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "", "output checkpoint (.safetensors)")
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		return fmt.Errorf("usage: arches export -o <out.safetensors> <model.arcv>")
	}
	path := fs.Arg(0)

	r, err := serialization.NewMmapReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.VerifyChecksum(); err != nil {
		return err
	}
	stateDict, err := r.ReadStateDict(cpu.New())
	if err != nil {
		return err
	}

	h := r.Header()
	metadata := map[string]string{
		"model_type":     h.ModelType,
		"arches_version": serialization.Version,
	}
	if meta := r.ModelMeta(); meta != nil {
		metadata["is_trained"] = fmt.Sprintf("%v", meta.IsTrained)
		if len(meta.InitParams) > 0 {
			metadata["init_params"] = string(meta.InitParams)
		}
		if len(meta.Registry) > 0 {
			metadata["registry"] = string(meta.Registry)
		}
	}

	if err := serialization.WriteSafeTensors(*out, stateDict, metadata); err != nil {
		return err
	}
	fmt.Printf("exported %d tensors to %s\n", len(stateDict), *out)
	return nil
}

// readOrDefault reads a JSON file when path is set, otherwise falls
// back to the inline value.
func readOrDefault(path, inline string) (json.RawMessage, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
	if inline != "" {
		return json.RawMessage(inline), nil
	}
	return nil, nil
}

func printRegistry(reg *data.Registry) {
	s := reg.Summary
	fmt.Printf("  registry:   %d cells, %d genes, %d batches, %d labels\n",
		s.Cells, s.Genes, s.Batches, s.Labels)
	for _, m := range reg.Categoricals {
		fmt.Printf("    %-14s %s\n", m.Field+":", formatCategories(m.Categories))
	}
}

// formatCategories renders a vocabulary, eliding long ones.
func formatCategories(categories []string) string {
	const show = 6
	if len(categories) <= show {
		return strings.Join(categories, ", ")
	}
	return fmt.Sprintf("%s, ... (%d total)", strings.Join(categories[:show], ", "), len(categories))
}

func indentJSON(raw json.RawMessage, prefix string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, prefix, "  "); err != nil {
		return prefix + string(raw)
	}
	return prefix + buf.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
