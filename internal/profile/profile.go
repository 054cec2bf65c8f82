// Package profile loads default run settings from a YAML or TOML file so
// that long checksum and apply commands need not be repeated on every
// invocation. Command-line flags always win over profile values.
//
// Example (YAML):
//
//	checksum_command: "find /etc/app -type f -print0 | sort -z | xargs -0 sha256sum | sha256sum"
//	apply_command: "/usr/local/bin/app-config apply --file {config_file}"
//	num_iterations: 3
//	timeout: 2m
//	validate: true
//	linters:
//	  .yaml: [yamllint, -d, relaxed, "{config_file}"]
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Profile holds optional defaults. Pointer fields distinguish "unset"
// from the zero value.
type Profile struct {
	ChecksumCommand string              `yaml:"checksum_command" toml:"checksum_command"`
	ApplyCommand    string              `yaml:"apply_command" toml:"apply_command"`
	NumIterations   *int                `yaml:"num_iterations" toml:"num_iterations"`
	TempDir         string              `yaml:"temp_dir" toml:"temp_dir"`
	Validate        *bool               `yaml:"validate" toml:"validate"`
	BuiltinLint     *bool               `yaml:"builtin_lint" toml:"builtin_lint"`
	Timeout         string              `yaml:"timeout" toml:"timeout"`
	Shell           string              `yaml:"shell" toml:"shell"`
	Record          string              `yaml:"record" toml:"record"`
	Linters         map[string][]string `yaml:"linters" toml:"linters"`
}

// Load reads a profile, choosing the decoder by extension. Unknown keys
// are rejected so that typos do not silently fall back to defaults.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML profile: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML profile: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("failed to parse TOML profile: unknown keys %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("unsupported profile format %q: use .yaml, .yml or .toml", ext)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (p *Profile) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %s", p.Timeout)
	}
	return d, nil
}

func (p *Profile) validate() error {
	if _, err := p.TimeoutDuration(); err != nil {
		return err
	}
	for ext, argv := range p.Linters {
		if ext == "" {
			return fmt.Errorf("linters: empty extension key")
		}
		if len(argv) == 0 {
			return fmt.Errorf("linters[%s]: argv must be non-empty", ext)
		}
	}
	return nil
}
