package models

// ChangeSet partitions operation identities into four disjoint sets by
// comparing the prior snapshot with freshly computed fingerprints.
type ChangeSet struct {
	Unchanged []OperationKey
	Modified  []OperationKey
	Added     []OperationKey
	Removed   []OperationKey
}

// HasChanges reports whether anything needs regeneration or cleanup.
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Modified) > 0 || len(cs.Added) > 0 || len(cs.Removed) > 0
}

// TotalChanged returns the count of operations needing fresh test cases.
func (cs *ChangeSet) TotalChanged() int {
	return len(cs.Modified) + len(cs.Added)
}
