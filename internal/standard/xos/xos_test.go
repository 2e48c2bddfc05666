// Copyright 2026 Peter Edge
//
// All rights reserved.

package xos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()
	dirPath := t.TempDir()
	filePath := filepath.Join(dirPath, "out", "data.json")

	// First write creates the parent directory and the file.
	require.NoError(t, WriteFileAtomic(filePath, []byte("one"), 0644))
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	require.Equal(t, "one", string(data))

	// Second write replaces the content.
	require.NoError(t, WriteFileAtomic(filePath, []byte("two"), 0644))
	data, err = os.ReadFile(filePath)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(filePath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestExpandHome(t *testing.T) {
	t.Parallel()
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := ExpandHome("~/x/y")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(homeDir, "x", "y"), expanded)

	// Paths without a leading ~ pass through unchanged.
	expanded, err = ExpandHome("/a/b")
	require.NoError(t, err)
	require.Equal(t, "/a/b", expanded)
}
