package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load decodes a YAML schema definition from r and builds it.
func Load(r io.Reader) (*Snapshot, error) {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	var def Def
	if err := d.Decode(&def); err != nil && err != io.EOF {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return Build(def.Modules...)
}

// LoadFile loads a YAML schema definition from path.
func LoadFile(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Load(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
