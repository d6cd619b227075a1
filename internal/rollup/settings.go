package rollup

import (
	"genorollup/pkg/domain"
)

// Variant parameterizes the cascade for a target kind. The marker and allele
// rollups share the strip steps but differ in rule 1, in which later rules
// run, and in whether expresses-component genotypes are exempt from strips.
type Variant struct {
	Name   string
	Target domain.TargetKind

	// SimpleTag is the keeper tag for naturally simple genotypes.
	SimpleTag string

	// SimpleExcludesInsertions makes rule 1 reject alleles with a
	// mutation-involves edge or an inserted expressed sequence.
	SimpleExcludesInsertions bool

	// ExemptExpressing spares genotypes with any expresses-component edge
	// from the reporter, recombinase and transactivator strips.
	ExemptExpressing bool

	// DropNullMarkerLinks removes links without a marker from the working set.
	DropNullMarkerLinks bool

	// MarkerRules enables rules 2 through 9.
	MarkerRules bool

	// DropPermissiveSites removes keepers that target a permissive docking site.
	DropPermissiveSites bool
}

// MarkerVariant rolls genotype annotations up to markers.
var MarkerVariant = Variant{
	Name:                     "marker",
	Target:                   domain.TargetMarker,
	SimpleTag:                "rule #1 : one marker genotype",
	SimpleExcludesInsertions: true,
	ExemptExpressing:         true,
	DropNullMarkerLinks:      true,
	MarkerRules:              true,
	DropPermissiveSites:      true,
}

// AlleleVariant rolls genotype annotations up to alleles. Only naturally
// simple genotypes resolve.
var AlleleVariant = Variant{
	Name:      "allele",
	Target:    domain.TargetAllele,
	SimpleTag: "rule #1 : one allele genotype",
}

// VariantFor returns the built-in variant for a target kind.
func VariantFor(kind domain.TargetKind) (Variant, bool) {
	switch kind {
	case domain.TargetMarker:
		return MarkerVariant, true
	case domain.TargetAllele:
		return AlleleVariant, true
	default:
		return Variant{}, false
	}
}

// SettingsInput carries the values NewSettings validates.
type SettingsInput struct {
	Variant             Variant
	SentinelTerm        domain.Key
	ProvenanceTerm      domain.Key
	MaxBatchAnnotations int
	DockingSites        []domain.DockingSite
}

// Settings is the immutable run configuration shared by the engine, the
// materializer and the cursor.
type Settings struct {
	variant        Variant
	sentinel       domain.Key
	provenanceTerm domain.Key
	maxBatch       int
	docking        map[domain.Key]domain.DockingSite
}

// NewSettings validates in and returns the frozen settings.
func NewSettings(in SettingsInput) (Settings, error) {
	if in.Variant.Target != domain.TargetMarker && in.Variant.Target != domain.TargetAllele {
		return Settings{}, &ConfigError{Field: "variant.target", Reason: "must be marker or allele"}
	}
	if in.SentinelTerm.IsNull() {
		return Settings{}, &ConfigError{Field: "sentinel_term_key", Reason: "required"}
	}
	if in.ProvenanceTerm.IsNull() {
		return Settings{}, &ConfigError{Field: "provenance_term_key", Reason: "required"}
	}
	if in.MaxBatchAnnotations <= 0 {
		return Settings{}, &ConfigError{Field: "max_batch_annotations", Reason: "must be positive"}
	}
	docking := make(map[domain.Key]domain.DockingSite, len(in.DockingSites))
	for _, site := range in.DockingSites {
		if site.Marker.IsNull() {
			return Settings{}, &ConfigError{Field: "docking_sites", Reason: "marker key required for " + site.Symbol}
		}
		if _, dup := docking[site.Marker]; dup {
			return Settings{}, &ConfigError{Field: "docking_sites", Reason: "duplicate site " + site.Symbol}
		}
		docking[site.Marker] = site
	}
	return Settings{
		variant:        in.Variant,
		sentinel:       in.SentinelTerm,
		provenanceTerm: in.ProvenanceTerm,
		maxBatch:       in.MaxBatchAnnotations,
		docking:        docking,
	}, nil
}

func (s Settings) Variant() Variant           { return s.variant }
func (s Settings) SentinelTerm() domain.Key   { return s.sentinel }
func (s Settings) ProvenanceTerm() domain.Key { return s.provenanceTerm }
func (s Settings) MaxBatchAnnotations() int   { return s.maxBatch }
func (s Settings) Target() domain.TargetKind  { return s.variant.Target }

// DockingSite returns the configured docking site at marker.
func (s Settings) DockingSite(marker domain.Key) (domain.DockingSite, bool) {
	site, ok := s.docking[marker]
	return site, ok
}
