package rollup

import (
	"genorollup/pkg/domain"
)

// naturallySimple claims genotypes with one link, not conditional, whose
// allele is not wild type. The marker variant also rejects alleles with a
// mutation-involves edge or an inserted expressed sequence.
func (e *Engine) naturallySimple(ix *factIndex, s state) state {
	next := s.clone()
	v := e.settings.variant
	for _, g := range s.remaining.keys() {
		links := ix.links[g]
		if len(links) != 1 || ix.genotypes[g].Conditional {
			continue
		}
		l := links[0]
		a := ix.allele(l.Allele)
		if a.WildType {
			continue
		}
		if v.SimpleExcludesInsertions && (ix.hasEdge(a.Key, domain.MutationInvolves) || a.Has(domain.AttributeInsertedExpressedSequence)) {
			continue
		}
		target := e.targetOf(l)
		if target.IsNull() {
			continue
		}
		next.keep(g, target, domain.RuleNaturallySimple, v.SimpleTag)
	}
	return next
}

func (e *Engine) targetOf(l domain.AllelePairLink) domain.Key {
	if e.settings.variant.Target == domain.TargetAllele {
		return l.Allele
	}
	return l.Marker
}

func (e *Engine) buildWorkingSet(_ *factIndex, s state) state {
	next := s.clone()
	for g, ls := range s.remaining {
		if s.claimed[g] {
			delete(next.remaining, g)
			continue
		}
		if !e.settings.variant.DropNullMarkerLinks {
			continue
		}
		var kept []domain.AllelePairLink
		for _, l := range ls {
			if !l.Marker.IsNull() {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			delete(next.remaining, g)
		} else {
			next.remaining[g] = kept
		}
	}
	return next
}
