package tree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
)

// ContentHashPrefix starts the header note that carries the record hash.
const ContentHashPrefix = "content-hash: "

// Serialize numbers the graph and writes the complete document: header,
// persons by ordinal, families by ordinal, trailer. The header note is set
// to the hash of the records so an unchanged tree yields an unchanged note.
func (t *Tree) Serialize(w io.Writer, h gedcom.Header) error {
	records, err := t.records()
	if err != nil {
		return err
	}
	h.Note = ContentHashPrefix + hashRecords(records)

	var buf bytes.Buffer
	gw := gedcom.NewWriter(&buf)
	gw.Header(h)
	if err := gw.Flush(); err != nil {
		return fmt.Errorf("render header: %w", err)
	}
	buf.Write(records)
	gw = gedcom.NewWriter(&buf)
	gw.Trailer()
	if err := gw.Flush(); err != nil {
		return fmt.Errorf("render trailer: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// ContentHash numbers the graph and returns the hash Serialize would put in
// the header note.
func (t *Tree) ContentHash() (string, error) {
	records, err := t.records()
	if err != nil {
		return "", err
	}
	return hashRecords(records), nil
}

func (t *Tree) records() ([]byte, error) {
	t.AssignOrdinals()

	var buf bytes.Buffer
	gw := gedcom.NewWriter(&buf)
	for _, id := range t.personOrder {
		t.persons[id].Serialize(gw)
	}
	for _, key := range t.familyOrder {
		t.families[key].Serialize(gw)
	}
	if err := gw.Flush(); err != nil {
		return nil, fmt.Errorf("render records: %w", err)
	}
	return buf.Bytes(), nil
}

func hashRecords(records []byte) string {
	sum := sha256.Sum256(records)
	return hex.EncodeToString(sum[:])
}
