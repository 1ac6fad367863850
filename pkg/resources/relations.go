package resources

import (
	"slices"
	"strings"

	"github.com/diwise/halgraph/pkg/hal"
)

// CompareRelations orders standard relations alphabetically before custom
// (namespaced) relations, which are ordered alphabetically among themselves.
func CompareRelations(a, b string) int {
	customA, customB := hal.IsCustomRelation(a), hal.IsCustomRelation(b)

	if customA != customB {
		if customA {
			return 1
		}
		return -1
	}

	return strings.Compare(a, b)
}

func SortRelations(rels []string) []string {
	sorted := slices.Clone(rels)
	slices.SortStableFunc(sorted, CompareRelations)
	return sorted
}
