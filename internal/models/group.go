package models

// DuplicateGroup is a set of files sharing both size and content hash.
// Files is sorted; Original is Files[0] and Duplicates is Files[1:].
type DuplicateGroup struct {
	Hash        string   `json:"hash"`
	SizeBytes   int64    `json:"size_bytes"`
	Files       []string `json:"files"`
	Original    string   `json:"original"`
	Duplicates  []string `json:"duplicates"`
	WastedBytes int64    `json:"wasted_bytes"`
}

// Count returns the number of files in the group.
func (g DuplicateGroup) Count() int {
	return len(g.Files)
}
