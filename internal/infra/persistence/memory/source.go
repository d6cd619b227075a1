// Package memory provides an in-memory rollup relation source backed by a
// JSON snapshot. It serves tests and offline runs against exported data.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

var _ rollup.Source = (*Source)(nil)

// Snapshot is the serialized relation set of one annotation type. It holds
// only annotations of that type.
type Snapshot struct {
	Genotypes     []domain.Genotype       `json:"genotypes"`
	Links         []domain.AllelePairLink `json:"links"`
	Alleles       []domain.Allele         `json:"alleles"`
	Markers       []domain.Marker         `json:"markers"`
	Relationships []domain.Relationship   `json:"relationships"`

	Annotations []domain.Annotation `json:"annotations"`
	Evidence    []domain.Evidence   `json:"evidence"`
	Properties  []domain.Property   `json:"properties"`
	Notes       []domain.Note       `json:"notes"`

	Terms         rollup.KeyMap `json:"terms"`
	MarkerIDs     rollup.KeyMap `json:"marker_ids"`
	AlleleIDs     rollup.KeyMap `json:"allele_ids"`
	References    rollup.KeyMap `json:"references"`
	EvidenceCodes rollup.KeyMap `json:"evidence_codes"`
	Qualifiers    rollup.KeyMap `json:"qualifiers"`
	Users         rollup.KeyMap `json:"users"`
	PropertyNames rollup.KeyMap `json:"property_names"`
}

// LoadSnapshot reads a snapshot from a JSON file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied snapshot path
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", path)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", path)
	}
	return &s, nil
}

// WriteSnapshot writes s to path as indented JSON.
func WriteSnapshot(path string, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "create snapshot dir")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write snapshot %s", path)
	}
	return nil
}

// Source serves rollup relations from a snapshot.
type Source struct {
	mu       sync.RWMutex
	snap     Snapshot
	sentinel domain.Key

	annotationsByGenotype map[domain.Key][]domain.Annotation
	evidenceByAnnotation  map[domain.Key][]domain.Evidence
	propertiesByEvidence  map[domain.Key][]domain.Property
	notesByEvidence       map[domain.Key][]domain.Note
}

// NewSource indexes snapshot. Annotations to sentinel are never served.
func NewSource(snapshot *Snapshot, sentinel domain.Key) *Source {
	s := &Source{sentinel: sentinel}
	if snapshot != nil {
		s.Import(*snapshot)
	} else {
		s.Import(Snapshot{})
	}
	return s
}

// Open loads the snapshot at path into a new Source.
func Open(path string, sentinel domain.Key) (*Source, error) {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return NewSource(snap, sentinel), nil
}

// Import replaces the served relations.
func (s *Source) Import(snapshot Snapshot) {
	annotations := make(map[domain.Key][]domain.Annotation)
	for _, a := range snapshot.Annotations {
		if a.Term == s.sentinel {
			continue
		}
		annotations[a.Genotype] = append(annotations[a.Genotype], a)
	}
	evidence := make(map[domain.Key][]domain.Evidence)
	for _, e := range snapshot.Evidence {
		evidence[e.Annotation] = append(evidence[e.Annotation], e)
	}
	properties := make(map[domain.Key][]domain.Property)
	for _, p := range snapshot.Properties {
		properties[p.Evidence] = append(properties[p.Evidence], p)
	}
	notes := make(map[domain.Key][]domain.Note)
	for _, n := range snapshot.Notes {
		notes[n.Evidence] = append(notes[n.Evidence], n)
	}
	for _, ps := range properties {
		sort.SliceStable(ps, func(i, j int) bool {
			if ps[i].Stanza != ps[j].Stanza {
				return ps[i].Stanza < ps[j].Stanza
			}
			return ps[i].Sequence < ps[j].Sequence
		})
	}
	for _, ns := range notes {
		sort.SliceStable(ns, func(i, j int) bool { return ns[i].Key < ns[j].Key })
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snapshot
	s.annotationsByGenotype = annotations
	s.evidenceByAnnotation = evidence
	s.propertiesByEvidence = properties
	s.notesByEvidence = notes
}

// Facts returns the genotypes with qualifying annotations and the full
// allele, marker and relationship sets of the snapshot.
func (s *Source) Facts(_ context.Context) (*rollup.Facts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := &rollup.Facts{
		Alleles:          append([]domain.Allele(nil), s.snap.Alleles...),
		Markers:          append([]domain.Marker(nil), s.snap.Markers...),
		Relationships:    append([]domain.Relationship(nil), s.snap.Relationships...),
		AnnotationCounts: make(map[domain.Key]int),
	}
	for _, g := range s.snap.Genotypes {
		n := len(s.annotationsByGenotype[g.Key])
		if n == 0 {
			continue
		}
		f.Genotypes = append(f.Genotypes, g)
		f.AnnotationCounts[g.Key] = n
	}
	for _, l := range s.snap.Links {
		if _, ok := f.AnnotationCounts[l.Genotype]; ok {
			f.Links = append(f.Links, l)
		}
	}
	return f, nil
}

// Lookups returns copies of the snapshot's translation tables. Target IDs
// come from the marker or allele table according to kind.
func (s *Source) Lookups(_ context.Context, kind domain.TargetKind, targets []domain.Key) (*rollup.Lookups, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.snap.MarkerIDs
	if kind == domain.TargetAllele {
		ids = s.snap.AlleleIDs
	}
	l := rollup.NewLookups()
	for _, t := range targets {
		if id, ok := ids.Get(t); ok {
			l.Targets[t] = id
		}
	}
	copyInto(l.Terms, s.snap.Terms)
	copyInto(l.References, s.snap.References)
	copyInto(l.EvidenceCodes, s.snap.EvidenceCodes)
	copyInto(l.Qualifiers, s.snap.Qualifiers)
	copyInto(l.Users, s.snap.Users)
	copyInto(l.PropertyNames, s.snap.PropertyNames)
	return l, nil
}

func copyInto(dst, src rollup.KeyMap) {
	for k, v := range src {
		dst[k] = v
	}
}

// Annotations returns the qualifying rows of genotypes.
func (s *Source) Annotations(_ context.Context, genotypes []domain.Key) (*rollup.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := &rollup.Bundle{}
	seen := make(map[domain.Key]bool, len(genotypes))
	for _, g := range genotypes {
		if seen[g] {
			continue
		}
		seen[g] = true
		for _, a := range s.annotationsByGenotype[g] {
			b.Annotations = append(b.Annotations, a)
			for _, e := range s.evidenceByAnnotation[a.Key] {
				b.Evidence = append(b.Evidence, e)
				b.Properties = append(b.Properties, s.propertiesByEvidence[e.Key]...)
				b.Notes = append(b.Notes, s.notesByEvidence[e.Key]...)
			}
		}
	}
	return b, nil
}

// Close is a no-op; it lets a Source stand in for the SQL stores.
func (s *Source) Close() error { return nil }
