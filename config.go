package mesa

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// LoadConfig decodes YAML from r into v, which should be a pointer to one
// of the driver Config structs (sqlite.Config, mysql.Config) or a small
// wrapper struct embedding one. This is additive sugar over constructing a
// Config literal in code per spec §6 — every driver constructor still
// takes its Config directly; hosts that prefer a config file over a Go
// literal have one documented path here instead of each host reinventing
// its own YAML loader.
func LoadConfig(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("mesa: load config: %w", err)
	}
	return nil
}
