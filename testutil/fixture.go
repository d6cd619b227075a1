package testutil

import (
	"strconv"

	"genorollup/internal/infra/persistence/memory"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

// Keys shared by the scenario fixture.
const (
	SentinelTerm   domain.Key = 293594
	ProvenanceTerm domain.Key = 13576001
	RosaMarker     domain.Key = 37270
	HprtMarker     domain.Key = 9936
	SexProperty    domain.Key = 601
)

// ScenarioCounts is the number of qualifying annotations per scenario genotype.
var ScenarioCounts = map[domain.Key]int{1: 2, 2: 3, 3: 1, 4: 4}

// ScenarioSnapshot returns a small store with four annotated genotypes:
//
//	1  one gene allele, rolls up to marker 11 (allele 101)
//	2  transgene 21 expressing mouse gene 22, rolls up to both
//	3  conditional Hprt docking allele plus a wild type, rolls up to Hprt
//	4  three gene markers, unresolved
//
// Genotype 5 carries only a sentinel annotation and never qualifies.
// Annotation keys are genotype*100+i and evidence keys annotation*10.
func ScenarioSnapshot() *memory.Snapshot {
	s := &memory.Snapshot{
		Genotypes: []domain.Genotype{
			{Key: 1}, {Key: 2}, {Key: 3, Conditional: true}, {Key: 4}, {Key: 5},
		},
		Links: []domain.AllelePairLink{
			{Genotype: 1, Allele: 101, Marker: 11},
			{Genotype: 2, Allele: 201, Marker: 21},
			{Genotype: 2, Allele: 202, Marker: 22},
			{Genotype: 3, Allele: 301, Marker: HprtMarker},
			{Genotype: 3, Allele: 302, Marker: 31},
			{Genotype: 4, Allele: 401, Marker: 41},
			{Genotype: 4, Allele: 402, Marker: 42},
			{Genotype: 4, Allele: 403, Marker: 43},
			{Genotype: 5, Allele: 101, Marker: 11},
		},
		Alleles: []domain.Allele{
			{Key: 101, Symbol: "Pax6<sey>", Marker: 11},
			{Key: 201, Symbol: "Tg(Pax6)1Abc", Marker: 21, Transgenic: true},
			{Key: 202, Symbol: "Kit<W>", Marker: 22},
			{Key: 301, Symbol: "Hprt<tm1(Xyz)>", Marker: HprtMarker},
			{Key: 302, Symbol: "Shh<+>", Marker: 31, WildType: true},
			{Key: 401, Symbol: "A<m1>", Marker: 41},
			{Key: 402, Symbol: "B<m1>", Marker: 42},
			{Key: 403, Symbol: "C<m1>", Marker: 43},
		},
		Markers: []domain.Marker{
			{Key: 11, Symbol: "Pax6", Kind: domain.MarkerGene, Organism: 1},
			{Key: 21, Symbol: "Tg(Pax6)1Abc", Kind: domain.MarkerTransgene, Organism: 1},
			{Key: 22, Symbol: "Kit", Kind: domain.MarkerGene, Organism: 1},
			{Key: HprtMarker, Symbol: "Hprt", Kind: domain.MarkerGene, Organism: 1},
			{Key: 31, Symbol: "Shh", Kind: domain.MarkerGene, Organism: 1},
			{Key: 41, Symbol: "A", Kind: domain.MarkerGene, Organism: 1},
			{Key: 42, Symbol: "B", Kind: domain.MarkerGene, Organism: 1},
			{Key: 43, Symbol: "C", Kind: domain.MarkerGene, Organism: 1},
		},
		Relationships: []domain.Relationship{
			{Allele: 201, Marker: 22, Category: domain.ExpressesComponent, ExpressesMouseGene: true, TargetOrganism: 1},
		},

		Terms:         rollup.KeyMap{500: "MP:0000500", 501: "MP:0000501"},
		MarkerIDs:     rollup.KeyMap{},
		AlleleIDs:     rollup.KeyMap{},
		References:    rollup.KeyMap{700: "J:100"},
		EvidenceCodes: rollup.KeyMap{800: "EXP"},
		Qualifiers:    rollup.KeyMap{900: "NOT"},
		Users:         rollup.KeyMap{9: "curator"},
		PropertyNames: rollup.KeyMap{SexProperty: "sex", ProvenanceTerm: "_SourceAnnot_key"},
	}
	for _, m := range s.Markers {
		s.MarkerIDs[m.Key] = "MGI:" + strconv.FormatInt(int64(m.Key), 10)
	}
	for _, a := range s.Alleles {
		s.AlleleIDs[a.Key] = "MGI:" + strconv.FormatInt(int64(a.Key), 10)
	}

	for _, g := range domain.SortKeys([]domain.Key{1, 2, 3, 4}) {
		for i := 0; i < ScenarioCounts[g]; i++ {
			key := g*100 + domain.Key(i)
			a := domain.Annotation{Key: key, Genotype: g, Term: 500 + domain.Key(i%2)}
			if g == 2 && i == 0 {
				a.Qualifier = 900
			}
			s.Annotations = append(s.Annotations, a)
			s.Evidence = append(s.Evidence, domain.Evidence{
				Key: key * 10, Annotation: key, EvidenceTerm: 800, Reference: 700, CreatedBy: 9, ModifiedBy: 9,
			})
		}
	}
	// sentinel rows
	s.Annotations = append(s.Annotations,
		domain.Annotation{Key: 199, Genotype: 1, Term: SentinelTerm},
		domain.Annotation{Key: 500, Genotype: 5, Term: SentinelTerm},
	)
	s.Evidence = append(s.Evidence,
		domain.Evidence{Key: 1990, Annotation: 199, EvidenceTerm: 800, Reference: 700, CreatedBy: 9, ModifiedBy: 9},
		domain.Evidence{Key: 5000, Annotation: 500, EvidenceTerm: 800, Reference: 700, CreatedBy: 9, ModifiedBy: 9},
	)

	s.Properties = []domain.Property{
		{Evidence: 1000, Term: SexProperty, Stanza: 1, Sequence: 1, Value: "M", CreatedBy: 9, ModifiedBy: 9},
	}
	s.Notes = []domain.Note{
		{Evidence: 1000, Key: 1, Type: domain.NoteGeneral, Text: "seen in\thomozygotes"},
	}
	return s
}

// ScenarioSettings returns rollup settings matching the scenario store.
func ScenarioSettings(kind domain.TargetKind) (rollup.Settings, error) {
	v, _ := rollup.VariantFor(kind)
	return rollup.NewSettings(rollup.SettingsInput{
		Variant:             v,
		SentinelTerm:        SentinelTerm,
		ProvenanceTerm:      ProvenanceTerm,
		MaxBatchAnnotations: 5000,
		DockingSites: []domain.DockingSite{
			{Marker: RosaMarker, Symbol: "Gt(ROSA)26Sor", Permissive: true},
			{Marker: HprtMarker, Symbol: "Hprt", IntrinsicPhenotype: true},
		},
	})
}
