package apply

import (
	"bytes"
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

func TestRenderSubstitutesPath(t *testing.T) {
	tmpl, err := ParseTemplate("echo {config_file}")
	require.NoError(t, err)

	assert.Equal(t, "echo /tmp/c.yaml", tmpl.Render("/tmp/c.yaml"))
	assert.True(t, tmpl.HasPlaceholder())
}

func TestRenderCases(t *testing.T) {
	tests := []struct {
		name     string
		template string
		path     string
		want     string
	}{
		{"no placeholder", "true", "/etc/app.yaml", "true"},
		{"repeated placeholder", "cp {config_file} {config_file}.bak", "a.json", "cp a.json a.json.bak"},
		{"escaped braces", "jq '{{.}}' {config_file}", "x.json", "jq '{.}' x.json"},
		{"placeholder at start", "{config_file}", "/bin/apply", "/bin/apply"},
		{"path with spaces is inserted verbatim", "cat {config_file}", "my file.yaml", "cat my file.yaml"},
		{"braces in path are not reinterpreted", "cat {config_file}", "{weird}.yaml", "cat {weird}.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tmpl.Render(tt.path))
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		offset   int
		reason   string
	}{
		{"unknown placeholder", "apply --config {config}", 15, "unknown placeholder {config}"},
		{"empty placeholder", "apply {}", 6, "empty placeholder"},
		{"unclosed brace", "apply {config_file", 6, "unclosed"},
		{"stray closing brace", "apply }", 6, "single '}'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.template)
			require.Error(t, err)

			var tmplErr *TemplateError
			require.True(t, errors.As(err, &tmplErr))
			assert.Equal(t, tt.offset, tmplErr.Offset)
			assert.Contains(t, tmplErr.Reason, tt.reason)
			assert.Equal(t, tt.template, tmplErr.Template)
		})
	}
}

func TestExecutorApplySuccess(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "applied")
	e := NewExecutor("cp {config_file} "+out, &shell.Runner{}, slog.New(slog.DiscardHandler))

	src := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(src, []byte("key: value\n"), 0644))

	res, err := e.Apply(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "key: value\n", string(data))
}

func TestExecutorApplyRunsRenderedCommand(t *testing.T) {
	e := NewExecutor("echo {config_file}", &shell.Runner{}, slog.New(slog.DiscardHandler))

	res, err := e.Apply(context.Background(), "/tmp/c.yaml")
	require.NoError(t, err)
	assert.Equal(t, "echo /tmp/c.yaml", res.Command)
	assert.Equal(t, "/tmp/c.yaml\n", res.Stdout)
}

func TestExecutorApplyFailure(t *testing.T) {
	e := NewExecutor("echo nope >&2; exit 4", &shell.Runner{}, slog.New(slog.DiscardHandler))

	res, err := e.Apply(context.Background(), "c.yaml")
	require.Error(t, err)
	assert.Equal(t, 4, res.ExitCode)

	var cmdErr *shell.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, shell.KindExit, cmdErr.Kind)
	assert.Equal(t, "nope", cmdErr.Diagnostic())
}

func TestExecutorApplyMalformedTemplate(t *testing.T) {
	e := NewExecutor("apply {path}", &shell.Runner{}, slog.New(slog.DiscardHandler))

	_, err := e.Apply(context.Background(), "c.yaml")
	require.Error(t, err)

	var tmplErr *TemplateError
	assert.True(t, errors.As(err, &tmplErr))
}

func TestExecutorLogsMissingPlaceholder(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := NewExecutor("true", &shell.Runner{}, logger).Apply(context.Background(), "c.yaml")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "apply command does not reference {config_file}")

	buf.Reset()
	_, err = NewExecutor("test -n {config_file}", &shell.Runner{}, logger).Apply(context.Background(), "c.yaml")
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "does not reference")
}

func TestExecutorNilLogger(t *testing.T) {
	e := NewExecutor("echo {config_file}", &shell.Runner{}, nil)

	res, err := e.Apply(context.Background(), "c.yaml")
	require.NoError(t, err)
	assert.Equal(t, "c.yaml\n", res.Stdout)

	_, err = NewExecutor("apply {path}", &shell.Runner{}, nil).Apply(context.Background(), "c.yaml")
	assert.Error(t, err)
}
