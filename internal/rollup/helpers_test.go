package rollup

import (
	"context"
	"sync"
	"testing"
	"time"

	"genorollup/pkg/domain"
)

const (
	testSentinel   domain.Key = 293594
	testProvenance domain.Key = 13576001
	rosaKey        domain.Key = 37270
	hprtKey        domain.Key = 9936
)

func testSettings(t *testing.T, v Variant) Settings {
	t.Helper()
	return testSettingsBatch(t, v, 5000)
}

func testSettingsBatch(t *testing.T, v Variant, maxBatch int) Settings {
	t.Helper()
	s, err := NewSettings(SettingsInput{
		Variant:             v,
		SentinelTerm:        testSentinel,
		ProvenanceTerm:      testProvenance,
		MaxBatchAnnotations: maxBatch,
		DockingSites: []domain.DockingSite{
			{Marker: rosaKey, Symbol: "Gt(ROSA)26Sor", Permissive: true},
			{Marker: hprtKey, Symbol: "Hprt", IntrinsicPhenotype: true},
		},
	})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	return s
}

// factsBuilder assembles Facts fixtures.
type factsBuilder struct {
	f Facts
}

func newFacts() *factsBuilder {
	return &factsBuilder{f: Facts{AnnotationCounts: map[domain.Key]int{}}}
}

func (b *factsBuilder) genotype(key domain.Key, conditional bool, annotations int) *factsBuilder {
	b.f.Genotypes = append(b.f.Genotypes, domain.Genotype{Key: key, Conditional: conditional})
	b.f.AnnotationCounts[key] = annotations
	return b
}

func (b *factsBuilder) link(g, allele, marker domain.Key) *factsBuilder {
	b.f.Links = append(b.f.Links, domain.AllelePairLink{Genotype: g, Allele: allele, Marker: marker})
	return b
}

func (b *factsBuilder) allele(a domain.Allele) *factsBuilder {
	b.f.Alleles = append(b.f.Alleles, a)
	return b
}

func (b *factsBuilder) gene(key domain.Key) *factsBuilder {
	return b.marker(domain.Marker{Key: key, Kind: domain.MarkerGene})
}

func (b *factsBuilder) transgene(key domain.Key) *factsBuilder {
	return b.marker(domain.Marker{Key: key, Kind: domain.MarkerTransgene})
}

func (b *factsBuilder) marker(m domain.Marker) *factsBuilder {
	b.f.Markers = append(b.f.Markers, m)
	return b
}

func (b *factsBuilder) expresses(allele, marker domain.Key, mouseGene bool) *factsBuilder {
	b.f.Relationships = append(b.f.Relationships, domain.Relationship{
		Allele: allele, Marker: marker, Category: domain.ExpressesComponent, ExpressesMouseGene: mouseGene,
	})
	return b
}

func (b *factsBuilder) involves(allele, marker domain.Key) *factsBuilder {
	b.f.Relationships = append(b.f.Relationships, domain.Relationship{
		Allele: allele, Marker: marker, Category: domain.MutationInvolves,
	})
	return b
}

func (b *factsBuilder) build() *Facts {
	f := b.f
	return &f
}

// scenarioFacts holds four genotypes: one naturally simple, one two-marker
// transgene, one intrinsic docking site and one with three markers.
func scenarioFacts() *factsBuilder {
	return newFacts().
		// G1
		genotype(1, false, 2).
		gene(11).
		allele(domain.Allele{Key: 101, Marker: 11}).
		link(1, 101, 11).
		// G2
		genotype(2, false, 3).
		transgene(21).
		gene(22).
		allele(domain.Allele{Key: 201, Marker: 21, Transgenic: true}).
		allele(domain.Allele{Key: 202, Marker: 22}).
		link(2, 201, 21).
		link(2, 202, 22).
		expresses(201, 22, true).
		// G3
		genotype(3, true, 1).
		gene(hprtKey).
		gene(31).
		allele(domain.Allele{Key: 301, Marker: hprtKey}).
		allele(domain.Allele{Key: 302, Marker: 31, WildType: true}).
		link(3, 301, hprtKey).
		link(3, 302, 31).
		// G4
		genotype(4, false, 4).
		gene(41).
		gene(42).
		gene(43).
		allele(domain.Allele{Key: 401, Marker: 41}).
		allele(domain.Allele{Key: 402, Marker: 42}).
		allele(domain.Allele{Key: 403, Marker: 43}).
		link(4, 401, 41).
		link(4, 402, 42).
		link(4, 403, 43)
}

// recordingObserver captures observations for assertions.
type recordingObserver struct {
	mu          sync.Mutex
	operations  map[string]int
	failures    map[string]int
	claimed     map[domain.RuleID]int
	unresolved  int
	batches     int
	annotations []int
	rows        int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		operations: map[string]int{},
		failures:   map[string]int{},
		claimed:    map[domain.RuleID]int{},
	}
}

func (o *recordingObserver) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations[op]++
	if !success {
		o.failures[op]++
	}
}

func (o *recordingObserver) KeepersClaimed(rule domain.RuleID, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claimed[rule] += n
}

func (o *recordingObserver) GenotypesUnresolved(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unresolved = n
}

func (o *recordingObserver) BatchLoaded(_ int, annotations int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches++
	o.annotations = append(o.annotations, annotations)
}

func (o *recordingObserver) RowsDerived(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rows += n
}
