// Package resources provides the hierarchical resource namespaces that entry
// scripts are resolved from.
//
// Paths are absolute and slash separated ("/app/config.js"). Directory paths
// end in "/", and List reports child directories with a trailing "/" so
// callers can tell them apart from files without another lookup.
package resources

import (
	"fmt"
	"io"
)

// Namespace is a read-only hierarchical resource tree.
type Namespace interface {
	// List returns the full paths of the direct children of dir. The second
	// result is false when dir does not exist.
	List(dir string) ([]string, bool)

	// Open opens the resource at path for reading.
	Open(path string) (io.ReadCloser, error)

	// RealPath maps path to a display location. The second result reports
	// whether the location is a path on the local filesystem.
	RealPath(path string) (string, bool)
}

// ReadString reads the whole resource at path.
func ReadString(ns Namespace, path string) (string, error) {
	rc, err := ns.Open(path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
