package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		args    []string
		wantOut []string
		wantErr bool
	}{
		{
			name:    "default version",
			version: "0.1.0",
			wantOut: []string{"cssdedupe v0.1.0", "split bundles"},
		},
		{
			name:    "custom version",
			version: "1.2.3",
			wantOut: []string{"cssdedupe v1.2.3"},
		},
		{
			name:    "dev version",
			version: "dev",
			wantOut: []string{"cssdedupe vdev"},
		},
		{
			name:    "text output",
			version: "0.1.0",
			args:    []string{"--output", "text"},
			wantOut: []string{"cssdedupe v0.1.0", "Ancestor-aware CSS dedupe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			cmd.Flags().String("output", "", "output format")
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{}, tt.args...))

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	cmd.Flags().String("output", "", "output format")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--output", "json"})

	require.NoError(t, cmd.Execute())

	var got VersionOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, VersionOutput{
		Name:        "cssdedupe",
		Version:     "1.2.3",
		Description: "Ancestor-aware CSS dedupe for split bundles",
	}, got)
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test")

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}
