package rollup

import (
	"sort"
	"strconv"
	"strings"

	"genorollup/pkg/domain"
)

// Property string separators understood by the annotation loader.
const (
	clauseSep = "&=&"
	withinSep = "&==&"
	stanzaSep = "&===&"
)

// bundleIndex is a Bundle keyed for per-genotype projection.
type bundleIndex struct {
	annotations map[domain.Key][]domain.Annotation
	evidence    map[domain.Key][]domain.Evidence
	properties  map[domain.Key][]domain.Property
	notes       map[domain.Key][]domain.Note
}

func indexBundle(b *Bundle) (*bundleIndex, error) {
	ix := &bundleIndex{
		annotations: make(map[domain.Key][]domain.Annotation),
		evidence:    make(map[domain.Key][]domain.Evidence),
		properties:  make(map[domain.Key][]domain.Property),
		notes:       make(map[domain.Key][]domain.Note),
	}
	if b == nil {
		return ix, nil
	}
	known := make(map[domain.Key]bool, len(b.Annotations))
	for _, a := range b.Annotations {
		if known[a.Key] {
			continue
		}
		known[a.Key] = true
		ix.annotations[a.Genotype] = append(ix.annotations[a.Genotype], a)
	}
	for _, e := range b.Evidence {
		if !known[e.Annotation] {
			return nil, integrityf("annotation", e.Annotation, "referenced by evidence %d but absent from bundle", e.Key)
		}
		ix.evidence[e.Annotation] = append(ix.evidence[e.Annotation], e)
	}
	for _, p := range b.Properties {
		ix.properties[p.Evidence] = append(ix.properties[p.Evidence], p)
	}
	for _, n := range b.Notes {
		ix.notes[n.Evidence] = append(ix.notes[n.Evidence], n)
	}
	for g, as := range ix.annotations {
		sort.Slice(as, func(i, j int) bool { return as[i].Key < as[j].Key })
		ix.annotations[g] = as
	}
	for a, es := range ix.evidence {
		sort.Slice(es, func(i, j int) bool { return es[i].Key < es[j].Key })
		ix.evidence[a] = es
	}
	for e, ns := range ix.notes {
		sort.SliceStable(ns, func(i, j int) bool { return ns[i].Key < ns[j].Key })
		ix.notes[e] = ns
	}
	return ix, nil
}

// Materializer projects genotype annotation bundles onto resolved targets.
type Materializer struct {
	settings Settings
	lookups  *Lookups
}

// NewMaterializer returns a materializer translating keys through lookups.
func NewMaterializer(settings Settings, lookups *Lookups) *Materializer {
	if lookups == nil {
		lookups = NewLookups()
	}
	return &Materializer{settings: settings, lookups: lookups}
}

// Materialize builds the record for target from the annotations of
// genotypes found in bundle.
func (m *Materializer) Materialize(target domain.Key, bundle *Bundle, genotypes []domain.Key) (TargetRecord, error) {
	ix, err := indexBundle(bundle)
	if err != nil {
		return TargetRecord{}, err
	}
	return m.materialize(target, ix, genotypes)
}

func (m *Materializer) materialize(target domain.Key, ix *bundleIndex, genotypes []domain.Key) (TargetRecord, error) {
	// A missing target ID is not fatal; an empty ID tells writers to skip.
	targetID, _ := m.lookups.Targets.Get(target)
	b := newTargetBuilder(m.settings.Target(), target, targetID)

	ordered := domain.SortKeys(append([]domain.Key(nil), genotypes...))
	for _, g := range ordered {
		if err := b.addGenotype(g); err != nil {
			return TargetRecord{}, err
		}
		for _, a := range ix.annotations[g] {
			if a.Term == m.settings.SentinelTerm() {
				continue
			}
			if err := m.project(b, targetID, a, ix); err != nil {
				return TargetRecord{}, err
			}
		}
	}
	return b.Build(), nil
}

func (m *Materializer) project(b *targetBuilder, targetID string, a domain.Annotation, ix *bundleIndex) error {
	termID, err := m.lookups.require(m.lookups.Terms, "term", a.Term)
	if err != nil {
		return err
	}
	qualifier := ""
	if !a.Qualifier.IsNull() {
		qualifier, _ = m.lookups.Qualifiers.Get(a.Qualifier)
	}

	for _, ev := range ix.evidence[a.Key] {
		jnum, err := m.lookups.require(m.lookups.References, "reference", ev.Reference)
		if err != nil {
			return err
		}
		code, err := m.lookups.require(m.lookups.EvidenceCodes, "evidence term", ev.EvidenceTerm)
		if err != nil {
			return err
		}
		user, err := m.lookups.require(m.lookups.Users, "user", ev.ModifiedBy)
		if err != nil {
			return err
		}
		inferred := ""
		if ev.InferredFrom != nil {
			inferred = *ev.InferredFrom
		}

		source, provenance := m.stamp(a, ev, ix.properties[ev.Key])
		encoded, err := m.encodeProperties(append(append([]domain.Property(nil), source...), provenance))
		if err != nil {
			return err
		}

		if _, err := b.add(domain.DerivedAnnotation{
			TermID:           termID,
			TargetID:         targetID,
			ReferenceID:      jnum,
			EvidenceCode:     code,
			InferredFrom:     inferred,
			Qualifier:        qualifier,
			User:             user,
			Notes:            concatNotes(ix.notes[ev.Key]),
			Properties:       encoded,
			Source:           a.Key,
			Evidence:         ev.Key,
			SourceProperties: source,
			Provenance:       provenance,
		}); err != nil {
			return err
		}
	}
	return nil
}

// stamp returns the evidence's own properties, without any earlier
// provenance rows, and the provenance property pointing at annotation a.
// The provenance row joins the first stanza after the highest sequence of
// any stored row, earlier provenance rows included; evidence without
// properties gets a fresh stanza 1, sequence 1 row.
func (m *Materializer) stamp(a domain.Annotation, ev domain.Evidence, props []domain.Property) ([]domain.Property, domain.Property) {
	provTerm := m.settings.ProvenanceTerm()
	var source []domain.Property
	for _, p := range props {
		if p.Term != provTerm {
			source = append(source, p)
		}
	}

	prov := domain.Property{
		Evidence:   ev.Key,
		Term:       provTerm,
		Stanza:     1,
		Sequence:   1,
		Value:      strconv.FormatInt(int64(a.Key), 10),
		CreatedBy:  ev.CreatedBy,
		ModifiedBy: ev.ModifiedBy,
	}
	if len(props) > 0 {
		anchor := props[0]
		if len(source) > 0 {
			anchor = source[0]
		}
		maxSeq := 0
		for _, p := range props {
			if p.Sequence > maxSeq {
				maxSeq = p.Sequence
			}
		}
		prov.Stanza = anchor.Stanza
		prov.Sequence = maxSeq + 1
		prov.CreatedBy = anchor.CreatedBy
		prov.ModifiedBy = anchor.ModifiedBy
	}
	return source, prov
}

// encodeProperties renders rows as name&=&value clauses. Consecutive rows
// with the same stanza are joined by &==&, stanzas by &===&.
func (m *Materializer) encodeProperties(rows []domain.Property) (string, error) {
	var (
		stanzas [][]string
		last    int
	)
	for i, p := range rows {
		name, err := m.lookups.require(m.lookups.PropertyNames, "property term", p.Term)
		if err != nil {
			return "", err
		}
		if i == 0 || p.Stanza != last {
			last = p.Stanza
			stanzas = append(stanzas, nil)
		}
		stanzas[len(stanzas)-1] = append(stanzas[len(stanzas)-1], name+clauseSep+p.Value)
	}
	parts := make([]string, len(stanzas))
	for i, s := range stanzas {
		parts[i] = strings.Join(s, withinSep)
	}
	return strings.Join(parts, stanzaSep), nil
}

var noteSpace = strings.NewReplacer("\n", " ", "\t", " ")

// concatNotes joins notes in stored order into one line.
func concatNotes(notes []domain.Note) string {
	out := ""
	for _, n := range notes {
		if out != "" {
			out = strings.TrimSpace(out) + " "
		}
		out += n.Text
	}
	return strings.TrimSpace(noteSpace.Replace(out))
}
