package rollup

import (
	"genorollup/pkg/domain"
)

// KeyMap caches one key to display-value lookup table. It is filled once
// when a run starts and only read afterwards.
type KeyMap map[domain.Key]string

// Get returns the value cached for key.
func (m KeyMap) Get(key domain.Key) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Lookups are the attribute caches the materializer translates keys with.
type Lookups struct {
	// Terms maps vocabulary term keys to their preferred accession IDs.
	Terms KeyMap

	// Targets maps marker or allele keys to their MGI IDs.
	Targets KeyMap

	// References maps reference keys to J: numbers.
	References KeyMap

	// EvidenceCodes maps evidence terms to their abbreviations.
	EvidenceCodes KeyMap

	// Qualifiers maps qualifier terms to their text. An unknown qualifier
	// renders as empty.
	Qualifiers KeyMap

	// Users maps user keys to logins.
	Users KeyMap

	// PropertyNames maps evidence property terms to their names.
	PropertyNames KeyMap
}

// NewLookups returns Lookups with every table allocated.
func NewLookups() *Lookups {
	return &Lookups{
		Terms:         KeyMap{},
		Targets:       KeyMap{},
		References:    KeyMap{},
		EvidenceCodes: KeyMap{},
		Qualifiers:    KeyMap{},
		Users:         KeyMap{},
		PropertyNames: KeyMap{},
	}
}

func (l *Lookups) require(m KeyMap, relation string, key domain.Key) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", integrityf(relation, key, "no %s lookup entry", relation)
	}
	return v, nil
}
