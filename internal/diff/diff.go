// Package diff classifies operations by comparing a prior snapshot against
// freshly computed fingerprints.
package diff

import (
	"sort"

	"specdrift/internal/models"
)

// Detect partitions operation identities into four disjoint sets: unchanged
// (present in both with equal fingerprint), modified (present in both with
// differing fingerprint), added (only in fresh) and removed (only in old).
// A nil or empty old snapshot classifies every operation as added. The four
// sets are pairwise disjoint and their union covers every identity in either
// input. Output slices are sorted for stable display.
func Detect(old, fresh map[models.OperationKey]models.Fingerprint) models.ChangeSet {
	var cs models.ChangeSet

	for key, fp := range fresh {
		oldFp, ok := old[key]
		switch {
		case !ok:
			cs.Added = append(cs.Added, key)
		case oldFp == fp:
			cs.Unchanged = append(cs.Unchanged, key)
		default:
			cs.Modified = append(cs.Modified, key)
		}
	}

	for key := range old {
		if _, ok := fresh[key]; !ok {
			cs.Removed = append(cs.Removed, key)
		}
	}

	sortKeys(cs.Unchanged)
	sortKeys(cs.Modified)
	sortKeys(cs.Added)
	sortKeys(cs.Removed)

	return cs
}

func sortKeys(keys []models.OperationKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
