package lint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// ParseFunc checks the contents of a file and returns a syntax error.
type ParseFunc func(path string, data []byte) error

// Builtin lints a file with an in-process parser.
type Builtin struct {
	name  string
	parse ParseFunc
}

// NewBuiltin wraps a parse function as a linter.
func NewBuiltin(name string, parse ParseFunc) *Builtin {
	return &Builtin{name: name, parse: parse}
}

// Name returns the parser name.
func (b *Builtin) Name() string {
	return b.name
}

// Lint reads the file and parses it.
func (b *Builtin) Lint(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ValidationError{Path: path, Linter: b.name, Diagnostic: err.Error(), Err: err}
	}
	if err := b.parse(path, data); err != nil {
		return &ValidationError{Path: path, Linter: b.name, Diagnostic: err.Error(), Err: err}
	}
	return nil
}

// DefaultBuiltin returns in-process parsers for every supported format.
func DefaultBuiltin() map[string]Linter {
	yamlLinter := NewBuiltin("builtin-yaml", ParseYAML)
	hclLinter := NewBuiltin("builtin-hcl", ParseHCL)
	return map[string]Linter{
		".yaml": yamlLinter,
		".yml":  yamlLinter,
		".json": NewBuiltin("builtin-json", ParseJSON),
		".toml": NewBuiltin("builtin-toml", ParseTOML),
		".cue":  NewBuiltin("builtin-cue", ParseCUE),
		".hcl":  hclLinter,
		".tf":   hclLinter,
	}
}

// ParseYAML accepts a stream of one or more YAML documents.
func ParseYAML(path string, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for doc := 0; ; doc++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("document %d: %w", doc, err)
		}
	}
}

// ParseJSON accepts exactly one JSON value.
func ParseJSON(path string, data []byte) error {
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line := 1 + bytes.Count(data[:syntaxErr.Offset], []byte("\n"))
		return fmt.Errorf("line %d: %w", line, err)
	}
	return err
}

// ParseTOML accepts a TOML document.
func ParseTOML(path string, data []byte) error {
	var v map[string]any
	if _, err := toml.Decode(string(data), &v); err != nil {
		return err
	}
	return nil
}

// ParseCUE compiles a CUE file and checks it for conflicts.
func ParseCUE(path string, data []byte) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}
	if err := v.Validate(); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}
	return nil
}

// ParseHCL parses HCL native syntax (.hcl, .tf).
func ParseHCL(path string, data []byte) error {
	_, diags := hclparse.NewParser().ParseHCL(data, path)
	if diags.HasErrors() {
		return errors.New(diags.Error())
	}
	return nil
}
