package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"vbp_instances/src/batch"
	"vbp_instances/src/logger"
	"vbp_instances/src/vbp"
)

type app struct {
	fs       afero.Fs
	log      *charmlog.Logger
	logLevel string
	logJSON  bool
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}
	root := &cobra.Command{
		Use:           "vbpgen",
		Short:         "Generate vector bin packing benchmark instances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg := logger.DefaultConfig()
			cfg.Level = logger.LogLevel(a.logLevel)
			cfg.JSON = a.logJSON
			cfg.Output = cmd.ErrOrStderr()
			a.log = logger.NewLogger(cfg)
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", string(logger.InfoLevel), "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Emit logs as JSON")

	root.AddCommand(
		a.newInstanceCmd(vbp.Uniform, "Draw every item size uniformly from [1, capacity]"),
		a.newInstanceCmd(vbp.Triplet, "Build groups of three items that exactly fill one bin in every dimension"),
		a.newBatchCmd(),
		a.newInspectCmd(),
	)
	return root
}

type instanceFlags struct {
	items      int
	dims       int
	capacities []int
	seed       uint64
	out        string
}

func (a *app) newInstanceCmd(dist vbp.Distribution, short string) *cobra.Command {
	f := new(instanceFlags)
	cmd := &cobra.Command{
		Use:   string(dist),
		Short: short,
		Example: fmt.Sprintf("  vbpgen %s --items 120 --capacities 100,200 --seed 7\n"+
			"  vbpgen %s --items 249 --capacities 100,200 --out data/%s.vbp", dist, dist, dist),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seed") {
				f.seed = uint64(time.Now().UnixNano())
			}
			return a.runInstance(cmd, dist, f)
		},
	}
	cmd.Flags().IntVarP(&f.items, "items", "n", 0, "Number of items to generate")
	cmd.Flags().IntVarP(&f.dims, "dims", "d", 0, "Number of dimensions (defaults to the number of capacities)")
	cmd.Flags().IntSliceVarP(&f.capacities, "capacities", "c", []int{100, 200}, "Bin capacity per dimension")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Random seed (drawn from the clock when omitted)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file (defaults to the conventional name in the current directory)")
	cmd.MarkFlagRequired("items")
	return cmd
}

func (a *app) runInstance(cmd *cobra.Command, dist vbp.Distribution, f *instanceFlags) error {
	if f.dims != 0 && f.dims != len(f.capacities) {
		return fmt.Errorf("%w: --dims %d does not match %d capacities", vbp.ErrInvalidArgument, f.dims, len(f.capacities))
	}
	gen, err := vbp.GeneratorFor(dist)
	if err != nil {
		return err
	}
	inst, err := gen.Generate(batch.TaskRand(f.seed, 0), f.items, f.capacities)
	if err != nil {
		return err
	}

	out := f.out
	if out == "" {
		out = vbp.FileName(dist, f.items, len(f.capacities), -1)
	}
	if err := vbp.NewWriter(a.fs).Write(inst, out); err != nil {
		return err
	}
	a.log.Info("Instance written", "file", out, "distribution", dist, "requested", f.items, "items", inst.NumItems(), "seed", f.seed)
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func (a *app) newBatchCmd() *cobra.Command {
	var (
		configPath string
		outDir     string
		seed       uint64
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate a sweep of instances described by a YAML config",
		Long: `Generates every combination of distribution, item count and repetition
listed in the config, writes them under <output_dir>/{u,t}/ and records the
run in a manifest. Without --config the historical sweep is produced:
120, 249 and 501 items, capacities 100 and 200, five repetitions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := batch.LoadConfig(a.fs, configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputDir = outDir
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			manifest, err := batch.NewRunner(a.fs, a.log).Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d instances in %s\n", manifest.RunID, len(manifest.Entries), cfg.OutputDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the sweep config (YAML)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Override the output directory")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Override the sweep seed")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override the number of parallel workers")
	return cmd
}

func (a *app) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print statistics of existing instance files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				inst, err := vbp.LoadInstance(a.fs, path)
				if err != nil {
					a.log.Error("Skipping instance", "file", path, "err", err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", filepath.Base(path), strings.TrimRight(vbp.Summarize(inst).String(), "\n"))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d instances could not be read", failed, len(args))
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
