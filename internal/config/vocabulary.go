package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Vocabulary holds the store keys the SQL source translates into typed
// records. Defaults match the production annotation database.
type Vocabulary struct {
	MutationInvolvesCategory   int64 `yaml:"mutation_involves_category"`
	ExpressesComponentCategory int64 `yaml:"expresses_component_category"`
	ExpressesMouseGeneTerm     int64 `yaml:"expresses_mouse_gene_term"`

	TransgenicAlleleType int64 `yaml:"transgenic_allele_type"`
	SubtypeAnnotType     int64 `yaml:"subtype_annot_type"`
	ReporterTerm         int64 `yaml:"reporter_term"`
	TransactivatorTerm   int64 `yaml:"transactivator_term"`
	RecombinaseTerm      int64 `yaml:"recombinase_term"`
	InsertedExprSeqTerm  int64 `yaml:"inserted_expressed_sequence_term"`

	GeneMarkerType                 int64   `yaml:"gene_marker_type"`
	TransgeneMarkerType            int64   `yaml:"transgene_marker_type"`
	ComplexClusterRegionMarkerType int64   `yaml:"complex_cluster_region_marker_type"`
	CytogeneticMarkerType          int64   `yaml:"cytogenetic_marker_type"`
	FeatureTypeAnnotType           int64   `yaml:"feature_type_annot_type"`
	HeritablePhenotypicFeatures    []int64 `yaml:"heritable_phenotypic_features"`

	GeneralNoteType               int64 `yaml:"general_note_type"`
	BackgroundSensitivityNoteType int64 `yaml:"background_sensitivity_note_type"`

	MarkerMGIType int64 `yaml:"marker_mgi_type"`
	AlleleMGIType int64 `yaml:"allele_mgi_type"`
	TermMGIType   int64 `yaml:"term_mgi_type"`
	MGILogicalDB  int64 `yaml:"mgi_logical_db"`

	// PropertyVocab is the evidence property vocabulary key. It has no
	// default and must come from configuration or ANNOTPROPERTY.
	PropertyVocab int64 `yaml:"property_vocab" env:"ANNOTPROPERTY"`
}

// DefaultVocabulary returns the production store keys.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		MutationInvolvesCategory:   1003,
		ExpressesComponentCategory: 1004,
		ExpressesMouseGeneTerm:     12965808,

		TransgenicAlleleType: 847126,
		SubtypeAnnotType:     1014,
		ReporterTerm:         11025589,
		TransactivatorTerm:   13289567,
		RecombinaseTerm:      11025588,
		InsertedExprSeqTerm:  11025597,

		GeneMarkerType:                 1,
		TransgeneMarkerType:            12,
		ComplexClusterRegionMarkerType: 10,
		CytogeneticMarkerType:          3,
		FeatureTypeAnnotType:           1011,
		// heritable phenotypic marker and its regulatory region subtypes
		HeritablePhenotypicFeatures: []int64{6238170, 97015607, 103059157, 103059158, 103059155, 15406207},

		GeneralNoteType:               1008,
		BackgroundSensitivityNoteType: 1015,

		MarkerMGIType: 2,
		AlleleMGIType: 11,
		TermMGIType:   13,
		MGILogicalDB:  1,
	}
}

// Validate validates the vocabulary section.
func (v *Vocabulary) Validate() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.MutationInvolvesCategory, validation.Required),
		validation.Field(&v.ExpressesComponentCategory, validation.Required),
		validation.Field(&v.TransgenicAlleleType, validation.Required),
		validation.Field(&v.SubtypeAnnotType, validation.Required),
		validation.Field(&v.TransgeneMarkerType, validation.Required),
		validation.Field(&v.MarkerMGIType, validation.Required),
		validation.Field(&v.AlleleMGIType, validation.Required),
		validation.Field(&v.TermMGIType, validation.Required),
		validation.Field(&v.PropertyVocab, validation.Required),
	)
}
