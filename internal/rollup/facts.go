package rollup

import (
	"sort"

	"genorollup/pkg/domain"
)

// factIndex is the hash-indexed, read-only view of Facts the rule stages
// query.
type factIndex struct {
	genotypes       map[domain.Key]domain.Genotype
	order           []domain.Key
	links           map[domain.Key][]domain.AllelePairLink
	alleles         map[domain.Key]domain.Allele
	markers         map[domain.Key]domain.Marker
	edges           map[domain.Key][]domain.Relationship
	allelesByMarker map[domain.Key][]domain.Key

	// expressing holds genotypes with an expresses-component edge on any
	// linked allele, before any strip.
	expressing map[domain.Key]bool
}

func indexFacts(f *Facts) (*factIndex, error) {
	ix := &factIndex{
		genotypes:       make(map[domain.Key]domain.Genotype, len(f.Genotypes)),
		links:           make(map[domain.Key][]domain.AllelePairLink, len(f.Genotypes)),
		alleles:         make(map[domain.Key]domain.Allele, len(f.Alleles)),
		markers:         make(map[domain.Key]domain.Marker, len(f.Markers)),
		edges:           make(map[domain.Key][]domain.Relationship),
		allelesByMarker: make(map[domain.Key][]domain.Key),
		expressing:      make(map[domain.Key]bool),
	}
	for _, g := range f.Genotypes {
		if _, dup := ix.genotypes[g.Key]; dup {
			continue
		}
		ix.genotypes[g.Key] = g
		ix.order = append(ix.order, g.Key)
	}
	domain.SortKeys(ix.order)

	for _, a := range f.Alleles {
		ix.alleles[a.Key] = a
		if !a.Marker.IsNull() {
			ix.allelesByMarker[a.Marker] = append(ix.allelesByMarker[a.Marker], a.Key)
		}
	}
	for _, m := range f.Markers {
		ix.markers[m.Key] = m
	}
	for _, r := range f.Relationships {
		ix.edges[r.Allele] = append(ix.edges[r.Allele], r)
	}

	seen := make(map[domain.AllelePairLink]bool, len(f.Links))
	for _, l := range f.Links {
		if _, ok := ix.genotypes[l.Genotype]; !ok || seen[l] {
			continue
		}
		seen[l] = true
		if _, ok := ix.alleles[l.Allele]; !ok {
			return nil, integrityf("allele", l.Allele, "linked from genotype %d but not loaded", l.Genotype)
		}
		if !l.Marker.IsNull() {
			if _, ok := ix.markers[l.Marker]; !ok {
				return nil, integrityf("marker", l.Marker, "linked from genotype %d but not loaded", l.Genotype)
			}
		}
		ix.links[l.Genotype] = append(ix.links[l.Genotype], l)
		for _, e := range ix.edges[l.Allele] {
			if e.Category == domain.ExpressesComponent {
				ix.expressing[l.Genotype] = true
			}
		}
	}
	for g, ls := range ix.links {
		sort.Slice(ls, func(i, j int) bool {
			if ls[i].Allele != ls[j].Allele {
				return ls[i].Allele < ls[j].Allele
			}
			return ls[i].Marker < ls[j].Marker
		})
		ix.links[g] = ls
	}
	return ix, nil
}

func (ix *factIndex) allele(key domain.Key) domain.Allele { return ix.alleles[key] }

func (ix *factIndex) marker(key domain.Key) (domain.Marker, bool) {
	m, ok := ix.markers[key]
	return m, ok
}

func (ix *factIndex) hasEdge(allele domain.Key, category domain.RelationshipCategory) bool {
	for _, e := range ix.edges[allele] {
		if e.Category == category {
			return true
		}
	}
	return false
}

// expressesOnly reports whether the alleles of transgene marker tg express
// target through an "expresses mouse gene" edge and express no other marker.
func (ix *factIndex) expressesOnly(tg, target domain.Key) bool {
	found := false
	for _, a := range ix.allelesByMarker[tg] {
		for _, e := range ix.edges[a] {
			if e.Category != domain.ExpressesComponent {
				continue
			}
			if e.Marker != target {
				return false
			}
			if e.ExpressesMouseGene {
				found = true
			}
		}
	}
	return found
}

// workingSet maps each unresolved genotype to its surviving links.
type workingSet map[domain.Key][]domain.AllelePairLink

func (w workingSet) keys() []domain.Key {
	out := make([]domain.Key, 0, len(w))
	for k := range w {
		out = append(out, k)
	}
	return domain.SortKeys(out)
}

func (w workingSet) rows() int {
	n := 0
	for _, ls := range w {
		n += len(ls)
	}
	return n
}

// ecEdge is one distinct expresses-component target of a genotype. Organism
// is part of the identity, so one marker reached for two organisms counts
// as two edges.
type ecEdge struct {
	Marker    domain.Key
	MouseGene bool
	Organism  domain.Key
}

// reach holds the three marker reachability sets of a genotype, computed
// from its surviving links.
type reach struct {
	Traditional []domain.Key
	Mutation    []domain.Key
	Expressed   []ecEdge
}

// soleMouseGene returns the expressed marker when the genotype has exactly
// one expresses-component edge and it is an "expresses mouse gene" edge.
func (r reach) soleMouseGene() (domain.Key, bool) {
	if len(r.Expressed) != 1 || !r.Expressed[0].MouseGene {
		return 0, false
	}
	return r.Expressed[0].Marker, true
}

func computeReach(ix *factIndex, links []domain.AllelePairLink) reach {
	trad := map[domain.Key]bool{}
	mi := map[domain.Key]bool{}
	ec := map[ecEdge]bool{}
	var r reach
	for _, l := range links {
		if !trad[l.Marker] {
			trad[l.Marker] = true
			r.Traditional = append(r.Traditional, l.Marker)
		}
		for _, e := range ix.edges[l.Allele] {
			switch e.Category {
			case domain.MutationInvolves:
				if !mi[e.Marker] {
					mi[e.Marker] = true
					r.Mutation = append(r.Mutation, e.Marker)
				}
			case domain.ExpressesComponent:
				edge := ecEdge{Marker: e.Marker, MouseGene: e.ExpressesMouseGene, Organism: e.TargetOrganism}
				if !ec[edge] {
					ec[edge] = true
					r.Expressed = append(r.Expressed, edge)
				}
			}
		}
	}
	domain.SortKeys(r.Traditional)
	domain.SortKeys(r.Mutation)
	sort.Slice(r.Expressed, func(i, j int) bool {
		a, b := r.Expressed[i], r.Expressed[j]
		if a.Marker != b.Marker {
			return a.Marker < b.Marker
		}
		if a.MouseGene != b.MouseGene {
			return b.MouseGene
		}
		return a.Organism < b.Organism
	})
	return r
}
