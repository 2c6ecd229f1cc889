package batch

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"vbp_instances/src/vbp"
)

const DefaultManifestName = "manifest.yaml"

// Config describes a sweep of generated instances: every distribution crossed
// with every item count, Repetitions times.
type Config struct {
	OutputDir     string   `mapstructure:"output_dir"    yaml:"output_dir"    validate:"required"`
	Dimensions    int      `mapstructure:"dimensions"    yaml:"dimensions"    validate:"min=0"`
	Capacities    []int    `mapstructure:"capacities"    yaml:"capacities"    validate:"required,min=1,dive,min=1"`
	ItemCounts    []int    `mapstructure:"item_counts"   yaml:"item_counts"   validate:"required,min=1,unique,dive,min=0"`
	Repetitions   int      `mapstructure:"repetitions"   yaml:"repetitions"   validate:"min=1"`
	Distributions []string `mapstructure:"distributions" yaml:"distributions" validate:"required,min=1,unique,dive,oneof=uniform triplet"`
	Seed          uint64   `mapstructure:"seed"          yaml:"seed"`
	Workers       int      `mapstructure:"workers"       yaml:"workers"       validate:"min=1"`
	Manifest      string   `mapstructure:"manifest"      yaml:"manifest"`
}

// DefaultConfig is the historical benchmark sweep: 120, 249 and 501 items in
// two dimensions of capacity 100 and 200, five repetitions of each.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:     "data/Multidim",
		Dimensions:    2,
		Capacities:    []int{100, 200},
		ItemCounts:    []int{120, 249, 501},
		Repetitions:   5,
		Distributions: []string{string(vbp.Uniform), string(vbp.Triplet)},
		Workers:       runtime.GOMAXPROCS(0),
		Manifest:      DefaultManifestName,
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("dimensions", 0)
	v.SetDefault("capacities", def.Capacities)
	v.SetDefault("item_counts", def.ItemCounts)
	v.SetDefault("repetitions", def.Repetitions)
	v.SetDefault("distributions", def.Distributions)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("manifest", def.Manifest)
}

// LoadConfig reads a YAML sweep description from fs. Keys missing from the
// file take their DefaultConfig value; VBPGEN_* environment variables
// override both. An empty path yields defaults plus environment.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	v.SetEnvPrefix("VBPGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", vbp.ErrInvalidArgument, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", vbp.ErrInvalidArgument, err)
	}
	if c.Dimensions != 0 && c.Dimensions != len(c.Capacities) {
		return fmt.Errorf("%w: %d dimensions but %d capacities", vbp.ErrInvalidArgument, c.Dimensions, len(c.Capacities))
	}
	if slices.Contains(c.Distributions, string(vbp.Triplet)) && slices.Min(c.Capacities) < 3 {
		return fmt.Errorf("%w: triplet instances need every capacity to be at least 3", vbp.ErrInvalidArgument)
	}
	return nil
}

func (c *Config) manifestName() string {
	if c.Manifest == "" {
		return DefaultManifestName
	}
	return c.Manifest
}
