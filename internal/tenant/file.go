package tenant

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout of a tenants file.
type fileDocument struct {
	Default *Config  `yaml:"default"`
	Tenants []Config `yaml:"tenants"`
}

// LoadFile reads a YAML tenants file. When the file omits the default
// section, DefaultConfig is used.
func LoadFile(path string) (Config, *Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, nil, fmt.Errorf("tenant: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// LoadYAML decodes a tenants document from r.
func LoadYAML(r io.Reader) (Config, *Registry, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return Config{}, nil, fmt.Errorf("tenant: decode yaml: %w", err)
	}

	def := DefaultConfig()
	if doc.Default != nil {
		def = Merge(def, *doc.Default)
		def.Slug = ""
		if err := def.Validate(); err != nil {
			return Config{}, nil, err
		}
	}

	reg, err := NewRegistry(doc.Tenants...)
	if err != nil {
		return Config{}, nil, err
	}
	return def, reg, nil
}
