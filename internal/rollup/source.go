package rollup

import (
	"context"

	"genorollup/pkg/domain"
)

// Source exposes the relations the rollup reads from the annotation store.
// Implementations must be safe to call sequentially from one goroutine; the
// rollup never calls a Source concurrently.
type Source interface {
	// Facts returns every genotype that carries at least one qualifying
	// annotation together with the links, alleles, markers and relationships
	// the cascade inspects. Alleles of transgene markers referenced by links
	// are included even when no genotype link points at them.
	Facts(ctx context.Context) (*Facts, error)
	// Lookups returns the key to display-value tables for one run.
	Lookups(ctx context.Context, kind domain.TargetKind, targets []domain.Key) (*Lookups, error)
	// Annotations returns the qualifying annotation bundle of genotypes.
	Annotations(ctx context.Context, genotypes []domain.Key) (*Bundle, error)
}

// Facts is the genotype fact set the cascade resolves.
type Facts struct {
	Genotypes     []domain.Genotype       `json:"genotypes"`
	Links         []domain.AllelePairLink `json:"links"`
	Alleles       []domain.Allele         `json:"alleles"`
	Markers       []domain.Marker         `json:"markers"`
	Relationships []domain.Relationship   `json:"relationships"`

	// AnnotationCounts holds the number of qualifying annotations per genotype.
	AnnotationCounts map[domain.Key]int `json:"annotation_counts"`
}

// Bundle holds the raw annotation rows of a set of genotypes. Properties are
// ordered by evidence, stanza and sequence; notes by evidence and note key.
type Bundle struct {
	Annotations []domain.Annotation `json:"annotations"`
	Evidence    []domain.Evidence   `json:"evidence"`
	Properties  []domain.Property   `json:"properties"`
	Notes       []domain.Note       `json:"notes"`
}
