package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMCPConfigWritesCommandAndSocket(t *testing.T) {
	dir := t.TempDir()
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "permissions-mcp"), []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	path, err := writeMCPConfig(dir, "/tmp/broker.sock")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mcp-config.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg mcpConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	entry, ok := cfg.MCPServers["permissions"]
	require.True(t, ok)
	assert.Equal(t, "stdio", entry.Type)
	assert.Equal(t, filepath.Join(binDir, "permissions-mcp"), entry.Command)
	assert.Equal(t, []string{"/tmp/broker.sock"}, entry.Args)
}

func TestResolvePermissionsMCPBinaryFallsBackToPath(t *testing.T) {
	binDir := t.TempDir()
	target := filepath.Join(binDir, "permissions-mcp")
	require.NoError(t, os.WriteFile(target, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	resolved, err := resolvePermissionsMCPBinary()
	require.NoError(t, err)
	assert.Equal(t, target, resolved)
}

func TestResolvePermissionsMCPBinaryMissingReturnsError(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := resolvePermissionsMCPBinary()
	assert.Error(t, err)
}
