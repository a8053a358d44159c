// Package gedcom writes lineage-linked GEDCOM 5.5.1 documents.
package gedcom

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// FirstLineMax is the byte budget of the first physical line of a value.
	FirstLineMax = 255
	// ContinuationMax is the byte budget of every CONC/CONT line after it.
	ContinuationMax = 248
)

// Cont formats one logical GEDCOM line, terminating it with a newline.
//
// The line must start with its level digit. Embedded line breaks become
// "CONT" lines one level deeper; physical lines longer than the byte budget
// are split into "CONC" lines, moving the split point off whitespace so no
// continuation starts or ends with a blank.
func Cont(line string) string {
	level := 1
	if line != "" && line[0] >= '0' && line[0] <= '9' {
		level = int(line[0]-'0') + 1
	}
	concSep := "\n" + strconv.Itoa(level) + " CONC "
	contSep := "\n" + strconv.Itoa(level) + " CONT "

	var sb strings.Builder
	maxLen := FirstLineMax
	for i, logical := range splitLines(line) {
		if i > 0 {
			sb.WriteString(contSep)
		}
		rs := []rune(logical)
		var parts []string
		for runesLen(rs) > maxLen {
			index := min(maxLen, len(rs)-2)
			for index > 1 && (runesLen(rs[:index]) > maxLen || isWrapSpace(rs[index-1]) || isWrapSpace(rs[index])) {
				index--
			}
			if index < 1 {
				index = 1
			}
			parts = append(parts, string(rs[:index]))
			rs = rs[index:]
			maxLen = ContinuationMax
		}
		parts = append(parts, string(rs))
		sb.WriteString(strings.Join(parts, concSep))
		maxLen = ContinuationMax
	}
	sb.WriteByte('\n')
	return sb.String()
}

func runesLen(rs []rune) int {
	n := 0
	for _, r := range rs {
		n += utf8.RuneLen(r)
	}
	return n
}

func isWrapSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\v'
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// splitLines breaks s on line boundaries. A trailing boundary does not
// produce a final empty line and "\r\n" counts as one boundary.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
