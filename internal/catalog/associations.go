package catalog

// AssociationMapper answers which entity type a relation column of a
// value-bearing type points at. Lookups are side-effect free; a miss is a
// normal outcome.
type AssociationMapper interface {
	AssociationTarget(valueType, databaseType string) (string, bool)
}

// StaticAssociations is an in-memory mapper keyed by value type, then by raw
// database type identifier.
type StaticAssociations map[string]map[string]string

// AssociationTarget implements AssociationMapper.
func (s StaticAssociations) AssociationTarget(valueType, databaseType string) (string, bool) {
	byColumn, ok := s[valueType]
	if !ok {
		return "", false
	}
	target, ok := byColumn[databaseType]
	return target, ok
}

// Add records a mapping and returns the receiver for chaining. s must not be nil.
func (s StaticAssociations) Add(valueType, databaseType, target string) StaticAssociations {
	byColumn, ok := s[valueType]
	if !ok {
		byColumn = make(map[string]string)
		s[valueType] = byColumn
	}
	byColumn[databaseType] = target
	return s
}
