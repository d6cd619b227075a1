package rollup

import (
	"genorollup/pkg/domain"
)

// collectReach computes the reachability sets the marker-only stages read.
func (e *Engine) collectReach(ix *factIndex, s state) state {
	next := s.clone()
	next.reach = make(map[domain.Key]reach, len(s.remaining))
	for g, ls := range s.remaining {
		next.reach[g] = computeReach(ix, ls)
	}
	return next
}

// twoMarkerTransgene keeps both markers of a genotype with no
// mutation-involves marker and exactly one transgene and one other marker,
// where the transgene expresses only the other marker. Every genotype with
// more than one traditional marker then leaves the working set.
func (e *Engine) twoMarkerTransgene(ix *factIndex, s state) state {
	next := s.clone()
	for _, g := range s.remaining.keys() {
		r := s.reach[g]
		if len(r.Traditional) < 2 {
			continue
		}
		next.release(g)
		if len(r.Traditional) != 2 || len(r.Mutation) != 0 {
			continue
		}
		tg, other, ok := e.splitTransgene(ix, r.Traditional[0], r.Traditional[1])
		if !ok || !ix.expressesOnly(tg, other) {
			continue
		}
		next.keep(g, tg, domain.RuleTwoMarkerTransgene, tagTwoMarker)
		next.keep(g, other, domain.RuleTwoMarkerTransgene, tagTwoMarker)
	}
	return next
}

func (e *Engine) splitTransgene(ix *factIndex, a, b domain.Key) (tg, other domain.Key, ok bool) {
	ma, _ := ix.marker(a)
	mb, _ := ix.marker(b)
	switch {
	case ma.Kind == domain.MarkerTransgene && mb.Kind != domain.MarkerTransgene:
		return a, b, true
	case mb.Kind == domain.MarkerTransgene && ma.Kind != domain.MarkerTransgene:
		return b, a, true
	default:
		return 0, 0, false
	}
}

// mutationInvolves applies the non-transgene, transgene and docking-site
// clauses to single-marker genotypes, then releases every genotype with a
// mutation-involves marker.
func (e *Engine) mutationInvolves(ix *factIndex, s state) state {
	next := s.clone()
	for _, g := range s.remaining.keys() {
		r := s.reach[g]
		if len(r.Mutation) == 0 {
			continue
		}
		next.release(g)
		if len(r.Traditional) != 1 {
			continue
		}
		m, _ := ix.marker(r.Traditional[0])
		_, docking := e.settings.DockingSite(m.Key)
		switch {
		case m.HeritablePhenotypic || m.Kind == domain.MarkerComplexClusterRegion || m.Kind == domain.MarkerCytogenetic:
			next.keep(g, m.Key, domain.RuleMutationInvolves, tagMINonTransgene)
		case m.Kind == domain.MarkerTransgene && len(r.Mutation) == 1:
			next.keep(g, r.Mutation[0], domain.RuleMutationInvolves, tagMITransgene)
		case docking && len(r.Mutation) == 1:
			next.keep(g, r.Mutation[0], domain.RuleMutationInvolves, tagMIDockingSite)
		}
	}
	return next
}

// transgenes keeps transgene markers, plus the expressed marker when the
// genotype has one "expresses mouse gene" edge, and releases them all.
func (e *Engine) transgenes(ix *factIndex, s state) state {
	next := s.clone()
	for _, g := range s.remaining.keys() {
		r := s.reach[g]
		m, _ := ix.marker(r.Traditional[0])
		if m.Kind != domain.MarkerTransgene {
			continue
		}
		next.release(g)
		next.keep(g, m.Key, domain.RuleTransgene, tagTransgene)
		if expressed, ok := r.soleMouseGene(); ok {
			next.keep(g, expressed, domain.RuleTransgeneExpressed, tagTransgeneEC)
		}
	}
	return next
}

// dockingSites keeps the expressed marker of docking-site genotypes with one
// "expresses mouse gene" edge, and the site itself for intrinsic-phenotype
// sites whose allele has no inserted expressed sequence.
func (e *Engine) dockingSites(ix *factIndex, s state) state {
	next := s.clone()
	for _, g := range s.remaining.keys() {
		r := s.reach[g]
		site, ok := e.settings.DockingSite(r.Traditional[0])
		if !ok {
			continue
		}
		next.release(g)
		if expressed, ok := r.soleMouseGene(); ok {
			next.keep(g, expressed, domain.RuleDockingSiteExpress, tagDockingSiteEC)
		}
		if !site.IntrinsicPhenotype {
			continue
		}
		for _, l := range s.remaining[g] {
			if !ix.allele(l.Allele).Has(domain.AttributeInsertedExpressedSequence) {
				next.keep(g, site.Marker, domain.RuleDockingSiteIntrinsic, tagDockingIntrinsic)
				break
			}
		}
	}
	return next
}

// remainingSingles keeps the traditional marker of genotypes with no
// expresses-component edge at all, or whose sole "expresses mouse gene"
// edge points back at that marker.
func (e *Engine) remainingSingles(ix *factIndex, s state) state {
	next := s.clone()
	for _, g := range s.remaining.keys() {
		r := s.reach[g]
		m := r.Traditional[0]
		expressed, sole := r.soleMouseGene()
		switch {
		case !ix.expressing[g]:
			next.keep(g, m, domain.RuleSingleNoExpression, tagSinglesNoEC)
			next.release(g)
		case sole && expressed == m:
			next.keep(g, m, domain.RuleSelfExpressing, tagSelfExpressing)
			next.release(g)
		}
	}
	return next
}
