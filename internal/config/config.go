// Package config loads run configuration from YAML files.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/nncnn/internal/model"
	"github.com/born-ml/nncnn/internal/train"
)

// Config is the content of a configuration file. Missing keys keep their defaults.
//
//	model:
//	  word_dim: 50
//	  word_poolings: [max, avg]
//	train:
//	  optimizer: adam
//	  learning_rate: 0.001
type Config struct {
	Model model.HyperParams `yaml:"model"`
	Train train.Options     `yaml:"train"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Model: model.DefaultHyperParams(),
		Train: train.DefaultOptions(),
	}
}

// Load reads and validates the configuration at path. An empty path returns
// the validated defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	return errors.Wrap(model.ValidateStruct(c), "invalid config")
}

// Write encodes c as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return errors.Wrap(enc.Close(), "failed to encode config")
}
