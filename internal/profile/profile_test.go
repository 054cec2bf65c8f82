package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeProfile(t, "idemcheck.yaml", `
checksum_command: "sha256sum /etc/app.conf"
apply_command: "app-config apply {config_file}"
num_iterations: 4
temp_dir: /var/tmp/idem
validate: true
builtin_lint: false
timeout: 90s
shell: /bin/bash
record: history.db
linters:
  .yaml: [yamllint, -d, relaxed]
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sha256sum /etc/app.conf", p.ChecksumCommand)
	assert.Equal(t, "app-config apply {config_file}", p.ApplyCommand)
	require.NotNil(t, p.NumIterations)
	assert.Equal(t, 4, *p.NumIterations)
	assert.Equal(t, "/var/tmp/idem", p.TempDir)
	require.NotNil(t, p.Validate)
	assert.True(t, *p.Validate)
	require.NotNil(t, p.BuiltinLint)
	assert.False(t, *p.BuiltinLint)
	assert.Equal(t, "/bin/bash", p.Shell)
	assert.Equal(t, "history.db", p.Record)
	assert.Equal(t, []string{"yamllint", "-d", "relaxed"}, p.Linters[".yaml"])

	d, err := p.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestLoadTOML(t *testing.T) {
	path := writeProfile(t, "idemcheck.toml", `
checksum_command = "echo stable"
apply_command = "true"
num_iterations = 3
timeout = "5m"

[linters]
".json" = ["jq", "empty"]
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "echo stable", p.ChecksumCommand)
	assert.Equal(t, "true", p.ApplyCommand)
	require.NotNil(t, p.NumIterations)
	assert.Equal(t, 3, *p.NumIterations)
	assert.Nil(t, p.Validate)
	assert.Equal(t, []string{"jq", "empty"}, p.Linters[".json"])

	d, err := p.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}

func TestLoadEmptyYAML(t *testing.T) {
	p, err := Load(writeProfile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Nil(t, p.NumIterations)
	assert.Empty(t, p.ChecksumCommand)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		_, err := Load(writeProfile(t, "p.yaml", "checksum_cmd: echo\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum_cmd")
	})

	t.Run("toml", func(t *testing.T) {
		_, err := Load(writeProfile(t, "p.toml", "apply = \"true\"\niterations = 2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown keys apply, iterations")
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad timeout", "p.yaml", "timeout: soon\n", "timeout"},
		{"negative timeout", "p.yaml", "timeout: -1s\n", "must not be negative"},
		{"empty linter argv", "p.yaml", "linters:\n  .yaml: []\n", "argv must be non-empty"},
		{"malformed yaml", "p.yaml", "checksum_command: [\n", "failed to parse YAML profile"},
		{"malformed toml", "p.toml", "checksum_command = \n", "failed to parse TOML profile"},
		{"unsupported format", "p.json", "{}", "unsupported profile format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeProfile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
