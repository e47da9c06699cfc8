package docquery

// SortField orders documents by one top-level field.
type SortField struct {
	Field string
	Desc  bool
}
