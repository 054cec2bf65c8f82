package lint

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idemcheck/internal/shell"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newValidator(linters map[string]Linter) *Validator {
	return NewValidator(linters, slog.New(slog.DiscardHandler))
}

func TestValidateUnknownExtensionPasses(t *testing.T) {
	v := newValidator(DefaultExternal(&shell.Runner{}))
	path := writeFile(t, "config.ini", "[section]\nkey=value\n")

	assert.NoError(t, v.Validate(context.Background(), path))
}

func TestValidateExternalSuccess(t *testing.T) {
	r := &shell.Runner{}
	v := newValidator(map[string]Linter{".yaml": NewExternal(r, "true")})

	assert.NoError(t, v.Validate(context.Background(), writeFile(t, "c.yaml", "a: 1\n")))
}

func TestValidateExternalFailureCapturesDiagnostic(t *testing.T) {
	r := &shell.Runner{}
	linter := NewExternal(r, "sh", "-c", "echo 'line 1: bad indentation' >&2; exit 1", "lint")
	v := newValidator(map[string]Linter{".yml": linter})

	err := v.Validate(context.Background(), writeFile(t, "c.yml", "a: 1\n"))
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.False(t, vErr.Missing)
	assert.Equal(t, "sh", vErr.Linter)
	assert.Equal(t, "line 1: bad indentation", vErr.Diagnostic)
}

func TestValidateMissingLinterIsFailure(t *testing.T) {
	r := &shell.Runner{}
	v := newValidator(map[string]Linter{".json": NewExternal(r, "idemcheck-no-such-jsonlint", "-q")})

	err := v.Validate(context.Background(), writeFile(t, "c.json", "{}"))
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.True(t, vErr.Missing)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateExtensionIsCaseInsensitive(t *testing.T) {
	r := &shell.Runner{}
	v := newValidator(map[string]Linter{".YAML": NewExternal(r, "false")})

	assert.Error(t, v.Validate(context.Background(), writeFile(t, "C.Yaml", "a: 1\n")))
}

func TestExternalCommand(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want []string
	}{
		{"appends path", []string{"yamllint", "-s"}, []string{"yamllint", "-s", "/tmp/c.yaml"}},
		{"substitutes placeholder", []string{"jsonlint", "-q", PathPlaceholder}, []string{"jsonlint", "-q", "/tmp/c.yaml"}},
		{"substitutes inside argument", []string{"tool", "--file=" + PathPlaceholder}, []string{"tool", "--file=/tmp/c.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewExternal(nil, tt.argv...)
			assert.Equal(t, tt.want, l.Command("/tmp/c.yaml"))
		})
	}
}

func TestDefaultExternal(t *testing.T) {
	linters := DefaultExternal(&shell.Runner{})

	require.Contains(t, linters, ".yaml")
	require.Contains(t, linters, ".yml")
	require.Contains(t, linters, ".json")
	assert.Equal(t, "yamllint", linters[".yaml"].Name())
	assert.Equal(t, "yamllint", linters[".yml"].Name())
	assert.Equal(t, "jsonlint", linters[".json"].Name())

	jsonlint := linters[".json"].(*External)
	assert.Equal(t, []string{"jsonlint", "-q", "c.json"}, jsonlint.Command("c.json"))
}

func TestWithOverrides(t *testing.T) {
	r := &shell.Runner{}
	linters := WithOverrides(DefaultExternal(r), r, map[string][]string{
		"yaml":  {"yamllint", "-d", "relaxed"},
		".TOML": {"taplo", "check"},
		".json": nil,
	})

	assert.Equal(t, []string{"yamllint", "-d", "relaxed", "x.yaml"}, linters[".yaml"].(*External).Command("x.yaml"))
	assert.Equal(t, "taplo", linters[".toml"].Name())
	assert.Equal(t, "jsonlint", linters[".json"].Name(), "empty override keeps the default")
	assert.Equal(t, "yamllint", linters[".yml"].Name())
}

func TestBuiltinParsers(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"yaml ok", "c.yaml", "a: 1\nb:\n  - x\n", ""},
		{"yaml multi document", "c.yml", "a: 1\n---\nb: 2\n", ""},
		{"yaml empty", "c.yaml", "", ""},
		{"yaml bad", "c.yaml", "a: [1, 2\n", "document 0"},
		{"yaml bad second document", "c.yaml", "a: 1\n---\nb: [unclosed\n", "document 1"},
		{"json ok", "c.json", `{"a": [1, 2]}`, ""},
		{"json bad", "c.json", "{\n  \"a\": 1,\n}", "line 3"},
		{"json trailing data", "c.json", `{} {}`, "invalid character"},
		{"toml ok", "c.toml", "[server]\nport = 8080\n", ""},
		{"toml bad", "c.toml", "[server\nport = 8080\n", "toml"},
		{"cue ok", "c.cue", "port: 8080\nname: \"web\"\n", ""},
		{"cue conflict", "c.cue", "port: 8080\nport: 9090\n", "conflicting values"},
		{"hcl ok", "main.tf", "resource \"null_resource\" \"x\" {\n  count = 1\n}\n", ""},
		{"hcl bad", "c.hcl", "block {\n  a = \n", "c.hcl"},
	}

	v := newValidator(DefaultBuiltin())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			err := v.Validate(context.Background(), path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Diagnostic, tt.wantErr)
		})
	}
}

func TestBuiltinMissingFile(t *testing.T) {
	l := NewBuiltin("builtin-yaml", ParseYAML)

	err := l.Lint(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLinterFor(t *testing.T) {
	v := newValidator(DefaultBuiltin())

	l, ok := v.LinterFor("/etc/app/config.YML")
	require.True(t, ok)
	assert.Equal(t, "builtin-yaml", l.Name())

	_, ok = v.LinterFor("/etc/app/config")
	assert.False(t, ok)
}

func TestValidatorNilLogger(t *testing.T) {
	v := NewValidator(DefaultBuiltin(), nil)

	assert.NoError(t, v.Validate(context.Background(), writeFile(t, "c.json", `{"a": 1}`)))
	assert.Error(t, v.Validate(context.Background(), writeFile(t, "c.json", `{"a": 1,`)))
	assert.NoError(t, v.Validate(context.Background(), writeFile(t, "c.ini", "a=1\n")))
}
