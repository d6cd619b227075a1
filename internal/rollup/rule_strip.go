package rollup

import (
	"genorollup/pkg/domain"
)

// strip removes links matching drop. Genotypes left without links become
// unresolved.
func strip(ix *factIndex, s state, drop func(g domain.Genotype, a domain.Allele) bool) state {
	next := s.clone()
	for g, ls := range s.remaining {
		geno := ix.genotypes[g]
		var kept []domain.AllelePairLink
		for _, l := range ls {
			if !drop(geno, ix.allele(l.Allele)) {
				kept = append(kept, l)
			}
		}
		switch {
		case len(kept) == 0:
			delete(next.remaining, g)
		case len(kept) != len(ls):
			next.remaining[g] = kept
		}
	}
	return next
}

func (e *Engine) exempt(ix *factIndex, g domain.Key) bool {
	return e.settings.variant.ExemptExpressing && ix.expressing[g]
}

func (e *Engine) stripReporters(ix *factIndex, s state) state {
	return strip(ix, s, func(g domain.Genotype, a domain.Allele) bool {
		return !e.exempt(ix, g.Key) && a.Transgenic && a.HasOnly(domain.AttributeReporter)
	})
}

func (e *Engine) stripRecombinase(ix *factIndex, s state) state {
	return strip(ix, s, func(g domain.Genotype, a domain.Allele) bool {
		return g.Conditional && !e.exempt(ix, g.Key) &&
			a.Has(domain.AttributeRecombinase) && !a.Has(domain.AttributeInsertedExpressedSequence)
	})
}

func (e *Engine) stripConditionalWildType(ix *factIndex, s state) state {
	return strip(ix, s, func(g domain.Genotype, a domain.Allele) bool {
		return g.Conditional && a.WildType
	})
}

func (e *Engine) stripTransactivators(ix *factIndex, s state) state {
	return strip(ix, s, func(g domain.Genotype, a domain.Allele) bool {
		return !e.exempt(ix, g.Key) && a.Transgenic &&
			a.Has(domain.AttributeTransactivator) && !a.Has(domain.AttributeInsertedExpressedSequence)
	})
}

func (e *Engine) stripWildType(ix *factIndex, s state) state {
	return strip(ix, s, func(_ domain.Genotype, a domain.Allele) bool {
		return a.WildType
	})
}
