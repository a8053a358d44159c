package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/AllTales-Labs/getmyancestors/internal/output"
	"github.com/AllTales-Labs/getmyancestors/internal/tree"
)

// hashScanLines bounds how far into a file the header note is looked for.
const hashScanLines = 20

// ReadExistingHash returns the content hash recorded in the header of the
// GEDCOM file at path. A missing file, or one without a hash note, yields
// an empty hash and no error.
func ReadExistingHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	linesChecked := 0
	for scanner.Scan() {
		linesChecked++
		if hash := parseHashLine(scanner.Text()); hash != "" {
			return hash, nil
		}
		if linesChecked >= hashScanLines {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", nil
}

// parseHashLine extracts the hash from a "1 NOTE content-hash: <hex>" line.
func parseHashLine(line string) string {
	s := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	const note = "1 NOTE "
	if !strings.HasPrefix(s, note) {
		return ""
	}
	s = strings.TrimSpace(s[len(note):])

	prefix := strings.TrimSpace(tree.ContentHashPrefix)
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	fields := strings.Fields(s[len(prefix):])
	if len(fields) == 0 {
		return ""
	}
	hash := fields[0]
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}
	return hash
}

// IsStale reports whether the output at path differs from a document with
// the given content hash. Standard output is always stale.
func IsStale(path, hash string) (bool, error) {
	if output.IsStdout(path) {
		return true, nil
	}
	existing, err := ReadExistingHash(path)
	if err != nil {
		return false, err
	}
	return existing == "" || existing != hash, nil
}
