package schema

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a definition from a YAML file.
func ParseFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read file %s: %w", path, err)
	}

	def, err := Parse(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse parses and compiles a definition from YAML bytes.
// Unknown keys are rejected so typos in column options surface early.
func Parse(data []byte) (Definition, error) {
	var def Definition

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := def.Compile(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// ParseDir parses all definitions from a directory, including subdirectories.
func ParseDir(dir string) ([]Definition, error) {
	var defs []Definition

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			defs = append(defs, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		def, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	return defs, nil
}
