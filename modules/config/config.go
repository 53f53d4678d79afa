// Package config loads settings from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// FromYamlFile decodes the YAML document at path into conf. Fields missing
// from the document keep their current values.
func FromYamlFile(path string, conf any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// FromOptionalYamlFile is FromYamlFile but treats a missing file as empty.
func FromOptionalYamlFile(path string, conf any) error {
	err := FromYamlFile(path, conf)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// FromEnv overlays environment variables named PREFIX_FIELD onto conf.
// Unset variables leave fields untouched.
func FromEnv(prefix string, conf any) error {
	if err := envconfig.Process(prefix, conf); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	return nil
}
