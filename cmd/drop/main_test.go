package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("DISPLAY", ":99999")
}

func TestRunUsage(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no paths", nil, exitFailure, "USAGE:"},
		{"help", []string{"-h"}, exitOK, "EXIT STATUS:"},
		{"unknown flag", []string{"-bogus", "a"}, exitFailure, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			assert.Equal(t, tt.code, run(tt.args, &stderr))
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestRunRejectsMissingPath(t *testing.T) {
	isolate(t)

	var stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.txt")
	assert.Equal(t, exitFailure, run([]string{missing}, &stderr))
	assert.Contains(t, stderr.String(), "invalid file path")
	assert.Contains(t, stderr.String(), "missing.txt")
}

func TestRunRejectsBadMode(t *testing.T) {
	isolate(t)

	var stderr bytes.Buffer
	assert.Equal(t, exitFailure, run([]string{"-mode", "hover", "/"}, &stderr))
	assert.Contains(t, stderr.String(), "tracking.mode")
}

func TestRunRejectsBadConfig(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tracking]\nmode = \"hover\"\n"), 0o644))

	var stderr bytes.Buffer
	assert.Equal(t, exitFailure, run([]string{"-config", path, "/"}, &stderr))
	assert.Contains(t, stderr.String(), "schema validation")
}

func TestRunRejectsMissingConfig(t *testing.T) {
	isolate(t)

	var stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "xdrop.toml")
	assert.Equal(t, exitFailure, run([]string{"-config", missing, "/"}, &stderr))
	assert.Contains(t, stderr.String(), "read config")
	assert.NotContains(t, stderr.String(), "invalid file path")
}

func TestRunReportsDisplayFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the X server socket")
	}
	isolate(t)

	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	var stderr bytes.Buffer
	assert.Equal(t, exitFailure, run([]string{"-stats", file}, &stderr))
	assert.Contains(t, stderr.String(), "connect to display")
	assert.Contains(t, stderr.String(), "# TYPE xdrop_negotiation_state gauge")
}
