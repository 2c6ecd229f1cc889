package batch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"vbp_instances/src/vbp"
)

type Task struct {
	Index        int
	Distribution vbp.Distribution
	ItemCount    int
	// Repetition is -1 when the sweep has a single repetition, in which case
	// the file name carries no repetition suffix.
	Repetition int
	File       string
}

// Tasks enumerates the sweep in a fixed order. Task indices seed the random
// streams, so the order is part of the reproducibility contract.
func (c *Config) Tasks() []Task {
	dims := len(c.Capacities)
	tasks := make([]Task, 0, len(c.Distributions)*len(c.ItemCounts)*c.Repetitions)
	for _, name := range c.Distributions {
		dist := vbp.Distribution(name)
		for _, n := range c.ItemCounts {
			for rep := range c.Repetitions {
				if c.Repetitions == 1 {
					rep = -1
				}
				tasks = append(tasks, Task{
					Index:        len(tasks),
					Distribution: dist,
					ItemCount:    n,
					Repetition:   rep,
					File:         filepath.Join(dist.Dir(), vbp.FileName(dist, n, dims, rep)),
				})
			}
		}
	}
	return tasks
}

// TaskRand returns the random stream of one task. Streams only depend on the
// sweep seed and the task index.
func TaskRand(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)))
}

type Runner struct {
	Fs     afero.Fs
	Log    *charmlog.Logger
	writer *vbp.Writer
}

func NewRunner(fs afero.Fs, log *charmlog.Logger) *Runner {
	return &Runner{
		Fs:     fs,
		Log:    log,
		writer: vbp.NewWriter(fs),
	}
}

// Run generates and writes every task of cfg, then writes the manifest. The
// first failing task cancels the tasks not yet started.
func (r *Runner) Run(ctx context.Context, cfg *Config) (*Manifest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, name := range cfg.Distributions {
		dir := filepath.Join(cfg.OutputDir, vbp.Distribution(name).Dir())
		if err := r.Fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", vbp.ErrIO, dir, err)
		}
	}

	tasks := cfg.Tasks()
	entries := make([]Entry, len(tasks))
	start := time.Now()
	r.Log.Info("Generating instances", "tasks", len(tasks), "workers", cfg.Workers, "seed", cfg.Seed, "out", cfg.OutputDir)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Workers)
	for _, task := range tasks {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := r.runTask(cfg, task)
			if err != nil {
				return fmt.Errorf("task %d (%s): %w", task.Index, task.File, err)
			}
			entries[task.Index] = *entry
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		r.Log.Error("Batch failed", "err", err)
		return nil, err
	}

	manifest := &Manifest{
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Seed:       cfg.Seed,
		Capacities: cfg.Capacities,
		Config:     cfg,
		Entries:    entries,
	}
	path := filepath.Join(cfg.OutputDir, cfg.manifestName())
	if err := manifest.Save(r.Fs, path); err != nil {
		return nil, err
	}
	r.Log.Info("Batch complete", "files", len(entries), "manifest", path, "elapsed", time.Since(start))
	return manifest, nil
}

func (r *Runner) runTask(cfg *Config, task Task) (*Entry, error) {
	gen, err := vbp.GeneratorFor(task.Distribution)
	if err != nil {
		return nil, err
	}
	inst, err := gen.Generate(TaskRand(cfg.Seed, task.Index), task.ItemCount, cfg.Capacities)
	if err != nil {
		return nil, err
	}
	if err := r.writer.Write(inst, filepath.Join(cfg.OutputDir, task.File)); err != nil {
		return nil, err
	}
	if inst.NumItems() != task.ItemCount {
		r.Log.Debug("Item count truncated to whole triples", "file", task.File, "requested", task.ItemCount, "written", inst.NumItems())
	}
	r.Log.Debug("Instance written", "file", task.File, "items", inst.NumItems())
	return &Entry{
		File:           task.File,
		Distribution:   string(task.Distribution),
		RequestedItems: task.ItemCount,
		Repetition:     task.Repetition,
		Stream:         task.Index,
		Summary:        vbp.Summarize(inst),
	}, nil
}

type Entry struct {
	File           string       `yaml:"file"`
	Distribution   string       `yaml:"distribution"`
	RequestedItems int          `yaml:"requested_items"`
	Repetition     int          `yaml:"repetition"`
	Stream         int          `yaml:"stream"`
	Summary        *vbp.Summary `yaml:"summary"`
}

// Manifest records what a batch run wrote. File paths are relative to the
// output directory; the written item count is Summary.NumItems.
type Manifest struct {
	RunID      string    `yaml:"run_id"`
	CreatedAt  time.Time `yaml:"created_at"`
	Seed       uint64    `yaml:"seed"`
	Capacities []int     `yaml:"capacities"`
	Config     *Config   `yaml:"config"`
	Entries    []Entry   `yaml:"entries"`
}

func (m *Manifest) Save(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing manifest %s: %v", vbp.ErrIO, path, err)
	}
	return nil
}

func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest %s: %v", vbp.ErrIO, path, err)
	}
	m := new(Manifest)
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return m, nil
}
