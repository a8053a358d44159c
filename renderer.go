package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
	"github.com/AllTales-Labs/getmyancestors/internal/output"
	"github.com/AllTales-Labs/getmyancestors/internal/tree"
)

// Render serializes t under h. It returns the document and the content hash
// written into its header note.
func Render(t *tree.Tree, h gedcom.Header) ([]byte, string, error) {
	hash, err := t.ContentHash()
	if err != nil {
		return nil, "", fmt.Errorf("hash records: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Serialize(&buf, h); err != nil {
		return nil, "", fmt.Errorf("serialize: %w", err)
	}
	return buf.Bytes(), hash, nil
}

// EnsureUpToDate writes doc to path unless the file there already carries
// the same content hash. It reports whether anything was written.
func EnsureUpToDate(path string, doc []byte, hash string, stdout io.Writer) (bool, error) {
	stale, err := IsStale(path, hash)
	if err != nil {
		return false, fmt.Errorf("read existing output: %w", err)
	}
	if !stale {
		return false, nil
	}
	if err := Generate(path, doc, stdout); err != nil {
		return false, err
	}
	return true, nil
}

// Generate writes doc to path (always regenerates).
func Generate(path string, doc []byte, stdout io.Writer) error {
	if err := output.Write(path, doc, stdout); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
