package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbp_instances/src/logger"
	"vbp_instances/src/vbp"
)

// noCreateFs allows directories but refuses to open files.
type noCreateFs struct {
	afero.Fs
}

func (noCreateFs) OpenFile(string, int, os.FileMode) (afero.File, error) {
	return nil, os.ErrPermission
}

func smallConfig() *Config {
	return &Config{
		OutputDir:     "out",
		Capacities:    []int{100, 200},
		ItemCounts:    []int{7, 12},
		Repetitions:   2,
		Distributions: []string{"uniform", "triplet"},
		Seed:          42,
		Workers:       3,
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Should merge file values over defaults", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "sweep.yaml", []byte(`
output_dir: gen
capacities: [10, 20, 30]
item_counts: [30]
repetitions: 1
distributions: [triplet]
seed: 9
`), 0o644))

		cfg, err := LoadConfig(fs, "sweep.yaml")
		require.NoError(t, err)
		assert.Equal(t, "gen", cfg.OutputDir)
		assert.Equal(t, []int{10, 20, 30}, cfg.Capacities)
		assert.Equal(t, []int{30}, cfg.ItemCounts)
		assert.Equal(t, []string{"triplet"}, cfg.Distributions)
		assert.Equal(t, uint64(9), cfg.Seed)
		assert.Equal(t, DefaultManifestName, cfg.Manifest)
		assert.Positive(t, cfg.Workers)
	})

	t.Run("Should return the historical sweep without a file", func(t *testing.T) {
		cfg, err := LoadConfig(afero.NewMemMapFs(), "")
		require.NoError(t, err)
		def := DefaultConfig()
		assert.Equal(t, def.Capacities, cfg.Capacities)
		assert.Equal(t, def.ItemCounts, cfg.ItemCounts)
		assert.Equal(t, 5, cfg.Repetitions)
	})

	t.Run("Should apply environment overrides", func(t *testing.T) {
		t.Setenv("VBPGEN_SEED", "1234")
		t.Setenv("VBPGEN_OUTPUT_DIR", "elsewhere")
		cfg, err := LoadConfig(afero.NewMemMapFs(), "")
		require.NoError(t, err)
		assert.Equal(t, uint64(1234), cfg.Seed)
		assert.Equal(t, "elsewhere", cfg.OutputDir)
	})

	t.Run("Should fail for a missing file", func(t *testing.T) {
		_, err := LoadConfig(afero.NewMemMapFs(), "absent.yaml")
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(c *Config){
		"no output dir":          func(c *Config) { c.OutputDir = "" },
		"no capacities":          func(c *Config) { c.Capacities = nil },
		"zero capacity":          func(c *Config) { c.Capacities = []int{0, 10} },
		"negative item count":    func(c *Config) { c.ItemCounts = []int{-1} },
		"unknown distribution":   func(c *Config) { c.Distributions = []string{"normal"} },
		"no repetitions":         func(c *Config) { c.Repetitions = 0 },
		"no workers":             func(c *Config) { c.Workers = 0 },
		"dimension mismatch":     func(c *Config) { c.Dimensions = 3 },
		"triplet small capacity": func(c *Config) { c.Capacities = []int{2, 200} },
		"duplicate distribution": func(c *Config) { c.Distributions = []string{"triplet", "triplet"} },
		"duplicate item count":   func(c *Config) { c.ItemCounts = []int{7, 12, 7} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), vbp.ErrInvalidArgument)
		})
	}

	t.Run("Should accept small capacities for uniform only sweeps", func(t *testing.T) {
		cfg := smallConfig()
		cfg.Distributions = []string{"uniform"}
		cfg.Capacities = []int{1, 2}
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Tasks(t *testing.T) {
	t.Run("Should cross distributions, item counts and repetitions", func(t *testing.T) {
		tasks := smallConfig().Tasks()
		require.Len(t, tasks, 8)
		assert.Equal(t, filepath.Join("u", "uniform_instance_7_2_0.vbp"), tasks[0].File)
		assert.Equal(t, filepath.Join("t", "triplet_instance_12_2_1.vbp"), tasks[7].File)
		for i, task := range tasks {
			assert.Equal(t, i, task.Index)
		}
	})

	t.Run("Should omit the repetition suffix for single runs", func(t *testing.T) {
		cfg := smallConfig()
		cfg.Repetitions = 1
		tasks := cfg.Tasks()
		require.Len(t, tasks, 4)
		assert.Equal(t, filepath.Join("u", "uniform_instance_7_2.vbp"), tasks[0].File)
		assert.Equal(t, -1, tasks[0].Repetition)
	})
}

func TestRunner_Run(t *testing.T) {
	log := logger.NewLogger(logger.TestConfig())

	t.Run("Should write every instance and a manifest", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cfg := smallConfig()
		manifest, err := NewRunner(fs, log).Run(t.Context(), cfg)
		require.NoError(t, err)
		require.Len(t, manifest.Entries, 8)
		assert.NotEmpty(t, manifest.RunID)

		for _, e := range manifest.Entries {
			inst, err := vbp.LoadInstance(fs, filepath.Join(cfg.OutputDir, e.File))
			require.NoError(t, err)
			assert.Equal(t, e.Summary.NumItems, inst.NumItems())
			switch e.Distribution {
			case "triplet":
				assert.Equal(t, vbp.TripletItemCount(e.RequestedItems), inst.NumItems())
				assert.True(t, inst.IsTripletTight())
			case "uniform":
				assert.Equal(t, e.RequestedItems, inst.NumItems())
			}
		}

		loaded, err := LoadManifest(fs, filepath.Join("out", DefaultManifestName))
		require.NoError(t, err)
		assert.Equal(t, manifest.RunID, loaded.RunID)
		assert.Equal(t, manifest.Entries, loaded.Entries)
		assert.Equal(t, cfg, loaded.Config)
	})

	t.Run("Should produce identical files regardless of worker count", func(t *testing.T) {
		fsA, fsB := afero.NewMemMapFs(), afero.NewMemMapFs()
		cfgA, cfgB := smallConfig(), smallConfig()
		cfgA.Workers, cfgB.Workers = 1, 8

		_, err := NewRunner(fsA, log).Run(t.Context(), cfgA)
		require.NoError(t, err)
		_, err = NewRunner(fsB, log).Run(t.Context(), cfgB)
		require.NoError(t, err)

		for _, task := range cfgA.Tasks() {
			path := filepath.Join("out", task.File)
			a, err := afero.ReadFile(fsA, path)
			require.NoError(t, err)
			b, err := afero.ReadFile(fsB, path)
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b), path)
		}
	})

	t.Run("Should change output with the seed", func(t *testing.T) {
		fsA, fsB := afero.NewMemMapFs(), afero.NewMemMapFs()
		cfgA, cfgB := smallConfig(), smallConfig()
		cfgB.Seed = 43

		_, err := NewRunner(fsA, log).Run(t.Context(), cfgA)
		require.NoError(t, err)
		_, err = NewRunner(fsB, log).Run(t.Context(), cfgB)
		require.NoError(t, err)

		path := filepath.Join("out", cfgA.Tasks()[0].File)
		a, _ := afero.ReadFile(fsA, path)
		b, _ := afero.ReadFile(fsB, path)
		assert.NotEqual(t, string(a), string(b))
	})

	t.Run("Should reject an invalid config before touching the filesystem", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cfg := smallConfig()
		cfg.Workers = 0
		_, err := NewRunner(fs, log).Run(t.Context(), cfg)
		require.ErrorIs(t, err, vbp.ErrInvalidArgument)
		exists, _ := afero.DirExists(fs, "out")
		assert.False(t, exists)
	})

	t.Run("Should stop on a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := NewRunner(afero.NewMemMapFs(), log).Run(ctx, smallConfig())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should report instance write failures", func(t *testing.T) {
		fs := noCreateFs{afero.NewMemMapFs()}
		_, err := NewRunner(fs, log).Run(t.Context(), smallConfig())
		require.ErrorIs(t, err, vbp.ErrIO)
		assert.ErrorContains(t, err, "creating temporary file")
		exists, _ := afero.Exists(fs, filepath.Join("out", DefaultManifestName))
		assert.False(t, exists)
	})
}
