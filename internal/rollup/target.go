package rollup

import (
	"github.com/cockroachdb/errors"

	"genorollup/pkg/domain"
)

// TargetRecord is one fully assembled target with its derived annotations.
// It is immutable; accessors return copies.
type TargetRecord struct {
	key         domain.Key
	id          string
	kind        domain.TargetKind
	genotypes   []domain.Key
	annotations []domain.DerivedAnnotation
}

func (t TargetRecord) Key() domain.Key         { return t.key }
func (t TargetRecord) ID() string              { return t.id }
func (t TargetRecord) Kind() domain.TargetKind { return t.kind }
func (t TargetRecord) Len() int                { return len(t.annotations) }
func (t TargetRecord) Genotypes() []domain.Key { return append([]domain.Key(nil), t.genotypes...) }

// Annotations returns a copy of the derived annotations in emission order.
func (t TargetRecord) Annotations() []domain.DerivedAnnotation {
	out := make([]domain.DerivedAnnotation, len(t.annotations))
	for i, d := range t.annotations {
		d.SourceProperties = append([]domain.Property(nil), d.SourceProperties...)
		out[i] = d
	}
	return out
}

var errBuilderSealed = errors.New("target builder already built")

// targetBuilder accumulates a target's derived annotations. Build seals it.
type targetBuilder struct {
	rec    TargetRecord
	stamps map[domain.Key]bool
	sealed bool
}

func newTargetBuilder(kind domain.TargetKind, key domain.Key, id string) *targetBuilder {
	return &targetBuilder{
		rec:    TargetRecord{key: key, id: id, kind: kind},
		stamps: make(map[domain.Key]bool),
	}
}

func (b *targetBuilder) addGenotype(g domain.Key) error {
	if b.sealed {
		return errBuilderSealed
	}
	b.rec.genotypes = append(b.rec.genotypes, g)
	return nil
}

// add appends d unless its evidence already carries a provenance stamp for
// this target. It reports whether d was added.
func (b *targetBuilder) add(d domain.DerivedAnnotation) (bool, error) {
	if b.sealed {
		return false, errBuilderSealed
	}
	if b.stamps[d.Evidence] {
		return false, nil
	}
	b.stamps[d.Evidence] = true
	b.rec.annotations = append(b.rec.annotations, d)
	return true, nil
}

// Build seals the builder and returns the record.
func (b *targetBuilder) Build() TargetRecord {
	b.sealed = true
	return b.rec
}
