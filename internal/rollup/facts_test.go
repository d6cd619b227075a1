package rollup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genorollup/pkg/domain"
)

func TestIndexFacts(t *testing.T) {
	facts := scenarioFacts().
		genotype(1, false, 2).
		link(99, 101, 11).
		build()

	ix, err := indexFacts(facts)
	require.NoError(t, err)
	assert.Equal(t, []domain.Key{1, 2, 3, 4}, ix.order, "duplicate genotype collapses")
	assert.Len(t, ix.links[1], 1)
	assert.Empty(t, ix.links[99], "link to unknown genotype ignored")
	assert.True(t, ix.expressing[2])
	assert.False(t, ix.expressing[1])
	assert.Equal(t, []domain.Key{201}, ix.allelesByMarker[21])
}

func TestComputeReach(t *testing.T) {
	facts := newFacts().
		genotype(1, false, 1).
		gene(11).
		gene(12).
		gene(13).
		gene(14).
		allele(domain.Allele{Key: 101, Marker: 11}).
		allele(domain.Allele{Key: 102, Marker: 11}).
		link(1, 101, 11).
		link(1, 102, 11).
		involves(101, 12).
		involves(102, 12).
		expresses(101, 14, true).
		expresses(102, 13, false).
		expresses(102, 14, true).
		build()

	ix, err := indexFacts(facts)
	require.NoError(t, err)
	r := computeReach(ix, ix.links[1])

	assert.Equal(t, []domain.Key{11}, r.Traditional)
	assert.Equal(t, []domain.Key{12}, r.Mutation)
	assert.Equal(t, []ecEdge{{Marker: 13}, {Marker: 14, MouseGene: true}}, r.Expressed)

	_, sole := r.soleMouseGene()
	assert.False(t, sole, "two distinct expressed markers")
}

func TestExpressesOnly(t *testing.T) {
	facts := newFacts().
		transgene(21).
		gene(22).
		gene(23).
		allele(domain.Allele{Key: 201, Marker: 21}).
		allele(domain.Allele{Key: 202, Marker: 21}).
		expresses(201, 22, false).
		expresses(202, 22, true).
		build()
	ix, err := indexFacts(facts)
	require.NoError(t, err)
	assert.True(t, ix.expressesOnly(21, 22))
	assert.False(t, ix.expressesOnly(21, 23))

	facts.Relationships = append(facts.Relationships, domain.Relationship{Allele: 202, Marker: 23, Category: domain.ExpressesComponent})
	ix, err = indexFacts(facts)
	require.NoError(t, err)
	assert.False(t, ix.expressesOnly(21, 22))
}
