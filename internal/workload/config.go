// Package workload drives pooled containers with seeded random
// operations and checks them against native reference models.
package workload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"jsouthworth.net/go/pooled"
	"jsouthworth.net/go/pooled/hashmap"
)

// Config describes a workload.
type Config struct {
	Seed          uint64 `yaml:"seed"`
	Ops           int    `yaml:"ops"`
	Workers       int    `yaml:"workers"`
	ValidateEvery int    `yaml:"validate_every"`
	// KeySpace bounds map keys and the length the sequences are
	// allowed to reach.
	KeySpace int `yaml:"key_space"`

	Vector VectorConfig `yaml:"vector"`
	List   ListConfig   `yaml:"list"`
	Map    MapConfig    `yaml:"map"`
	Mix    Mix          `yaml:"mix"`
}

// VectorConfig configures the vector of each worker.
type VectorConfig struct {
	GrowBy      int `yaml:"grow_by"`
	MaxCapacity int `yaml:"max_capacity"`
}

// ListConfig configures the list of each worker.
type ListConfig struct {
	BlockSize int `yaml:"block_size"`
	Limit     int `yaml:"limit"`
}

// MapConfig configures the map of each worker.
type MapConfig struct {
	Bins        int     `yaml:"bins"`
	BlockSize   int     `yaml:"block_size"`
	Limit       int     `yaml:"limit"`
	OptimalLoad float64 `yaml:"optimal_load"`
	LoThreshold float64 `yaml:"lo_threshold"`
	HiThreshold float64 `yaml:"hi_threshold"`
}

// Mix weighs how often each container is picked for an operation.
type Mix struct {
	Vector int `yaml:"vector"`
	List   int `yaml:"list"`
	Map    int `yaml:"map"`
}

func (m Mix) total() int {
	return m.Vector + m.List + m.Map
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Seed:          1,
		Ops:           100000,
		Workers:       4,
		ValidateEvery: 1000,
		KeySpace:      1024,
		List: ListConfig{
			BlockSize: 10,
		},
		Map: MapConfig{
			Bins:        hashmap.DefaultBins,
			BlockSize:   hashmap.DefaultBlockSize,
			OptimalLoad: hashmap.DefaultOptimalLoad,
			LoThreshold: hashmap.DefaultLoThreshold,
			HiThreshold: hashmap.DefaultHiThreshold,
		},
		Mix: Mix{Vector: 1, List: 1, Map: 1},
	}
}

// Load reads a YAML configuration from path. Fields missing from the
// file keep their default values.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a YAML configuration from r on top of the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: decoding workload: %w",
			pooled.ErrInvalidArgument, err)
	}
	return cfg, cfg.Validate()
}

// Encode renders cfg as YAML.
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Ops < 0:
		return invalid("ops", c.Ops)
	case c.Workers <= 0:
		return invalid("workers", c.Workers)
	case c.ValidateEvery < 0:
		return invalid("validate_every", c.ValidateEvery)
	case c.KeySpace <= 0:
		return invalid("key_space", c.KeySpace)
	case c.Vector.GrowBy < 0:
		return invalid("vector.grow_by", c.Vector.GrowBy)
	case c.Vector.MaxCapacity < 0:
		return invalid("vector.max_capacity", c.Vector.MaxCapacity)
	case c.List.BlockSize <= 0:
		return invalid("list.block_size", c.List.BlockSize)
	case c.List.Limit < 0:
		return invalid("list.limit", c.List.Limit)
	case c.Map.Bins <= 0:
		return invalid("map.bins", c.Map.Bins)
	case c.Map.BlockSize <= 0:
		return invalid("map.block_size", c.Map.BlockSize)
	case c.Map.Limit < 0:
		return invalid("map.limit", c.Map.Limit)
	case c.Mix.Vector < 0 || c.Mix.List < 0 || c.Mix.Map < 0 || c.Mix.total() == 0:
		return invalid("mix", c.Mix)
	}
	return nil
}

func invalid(field string, v any) error {
	return fmt.Errorf("%w: workload %s: %v", pooled.ErrInvalidArgument, field, v)
}
