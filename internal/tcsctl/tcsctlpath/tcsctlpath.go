// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctlpath derives file paths from the tcsctl data directory.
// The data directory layout is defined here so callers don't duplicate
// path construction logic.
//
// The data directory (~/.local/share/tcsctl or $TCSCTL_DATA_DIR) contains:
//
//	v1/operations.json    Collected operations document
package tcsctlpath

import "path/filepath"

// DocumentFileName is the well-known operations document file name within the
// versioned data directory.
const DocumentFileName = "operations.json"

// DataDirV1Path returns the versioned data directory path within the given data directory.
func DataDirV1Path(dataDirPath string) string {
	return filepath.Join(dataDirPath, "v1")
}

// DefaultDocumentPath returns the default operations document path within the
// given data directory. collect writes here, and export and report read from
// here, unless overridden by flags.
func DefaultDocumentPath(dataDirPath string) string {
	return filepath.Join(DataDirV1Path(dataDirPath), DocumentFileName)
}
