package gedcom

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterHeaderAndTrailer(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Header(Header{
		Source:    "getmyancestors",
		Version:   "1.2.3",
		Date:      time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC),
		Submitter: "Jane Doe",
		Language:  "English",
	})
	w.Trailer()
	require.NoError(t, w.Flush())

	want := "0 HEAD\n" +
		"1 CHAR UTF-8\n" +
		"1 GEDC\n" +
		"2 VERS 5.5.1\n" +
		"2 FORM LINEAGE-LINKED\n" +
		"1 SOUR getmyancestors\n" +
		"2 VERS 1.2.3\n" +
		"2 NAME getmyancestors\n" +
		"1 DATE 05 Mar 2024\n" +
		"2 TIME 07:08:09\n" +
		"1 SUBM @SUBM@\n" +
		"0 @SUBM@ SUBM\n" +
		"1 NAME Jane Doe\n" +
		"1 LANG English\n" +
		"0 TRLR\n"
	assert.Equal(t, want, buf.String())
}

func TestWriterHeaderNote(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Header(Header{Source: "s", Version: "v", Note: "content-hash: abc"})
	require.NoError(t, w.Flush())

	assert.Contains(t, buf.String(), "2 TIME 00:00:00\n1 NOTE content-hash: abc\n1 SUBM @SUBM@\n")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterKeepsFirstError(t *testing.T) {
	w := NewWriter(failingWriter{})
	for i := 0; i < 5000; i++ {
		w.Linef("1 NOTE line %d", i)
	}
	assert.EqualError(t, w.Flush(), "disk full")
	assert.EqualError(t, w.Err(), "disk full")
}

func TestRefs(t *testing.T) {
	assert.Equal(t, "@I12@", IndiRef(12))
	assert.Equal(t, "@F3@", FamRef(3))
}
