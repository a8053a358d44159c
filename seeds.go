package main

import (
	"fmt"
	"strings"

	"github.com/AllTales-Labs/getmyancestors/internal/config"
)

// NormalizeSeeds trims the seed ids, drops blanks and duplicates, and keeps
// the first occurrence order. Any id that is not a tree person id is an
// error.
func NormalizeSeeds(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var invalid []string
	for _, raw := range ids {
		// Flags may carry several ids in one argument.
		for _, id := range strings.FieldsFunc(raw, isSeparator) {
			if !config.ValidID(id) {
				invalid = append(invalid, id)
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid FamilySearch id: %s", strings.Join(invalid, ", "))
	}
	return out, nil
}

func isSeparator(r rune) bool {
	return r == ',' || r == ' ' || r == '\t' || r == '\n'
}
