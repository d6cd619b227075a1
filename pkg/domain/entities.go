// Package domain defines the typed fact records read from the annotation
// store and the derived records produced by the rollup.
package domain

import "sort"

// Key is a store primary key. The zero value stands for a null reference.
type Key int64

// IsNull reports whether the key is the null reference.
func (k Key) IsNull() bool { return k == 0 }

// SortKeys sorts keys ascending in place and returns the slice.
func SortKeys(keys []Key) []Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// TargetKind identifies what a genotype annotation is rolled up to.
type TargetKind string

const (
	// TargetMarker rolls annotations up to markers (genes, transgenes).
	TargetMarker TargetKind = "marker"

	// TargetAllele rolls annotations up to alleles.
	TargetAllele TargetKind = "allele"
)

// Genotype is a laboratory genotype carrying qualifying annotations.
type Genotype struct {
	Key         Key  `json:"key"`
	Conditional bool `json:"conditional"`
}

// AllelePairLink ties one contributing allele (and its marker) to a genotype.
type AllelePairLink struct {
	Genotype Key `json:"genotype"`
	Allele   Key `json:"allele"`
	Marker   Key `json:"marker,omitempty"`
}

// AlleleAttribute is an allele subtype attribute. An allele may carry several.
type AlleleAttribute string

// Allele subtype attributes relevant to the rollup rules. Any subtype not
// listed here is recorded as AttributeOther.
const (
	AttributeReporter                  AlleleAttribute = "reporter"
	AttributeTransactivator            AlleleAttribute = "transactivator"
	AttributeRecombinase               AlleleAttribute = "recombinase"
	AttributeInsertedExpressedSequence AlleleAttribute = "inserted_expressed_sequence"
	AttributeOther                     AlleleAttribute = "other"
)

// Allele is a single allele with the attributes the rules inspect.
type Allele struct {
	Key        Key               `json:"key"`
	Symbol     string            `json:"symbol,omitempty"`
	Marker     Key               `json:"marker,omitempty"`
	WildType   bool              `json:"wild_type"`
	Transgenic bool              `json:"transgenic"`
	Attributes []AlleleAttribute `json:"attributes,omitempty"`
}

// Has reports whether the allele carries the attribute.
func (a Allele) Has(attr AlleleAttribute) bool {
	for _, have := range a.Attributes {
		if have == attr {
			return true
		}
	}
	return false
}

// HasOnly reports whether attr is the only attribute the allele carries.
func (a Allele) HasOnly(attr AlleleAttribute) bool {
	if !a.Has(attr) {
		return false
	}
	for _, have := range a.Attributes {
		if have != attr {
			return false
		}
	}
	return true
}

// MarkerKind classifies markers for the rollup rules.
type MarkerKind string

const (
	MarkerGene                 MarkerKind = "gene"
	MarkerTransgene            MarkerKind = "transgene"
	MarkerComplexClusterRegion MarkerKind = "complex_cluster_region"
	MarkerCytogenetic          MarkerKind = "cytogenetic"
	MarkerOther                MarkerKind = "other"
)

// Marker is a genetic locus.
type Marker struct {
	Key      Key        `json:"key"`
	Symbol   string     `json:"symbol,omitempty"`
	Kind     MarkerKind `json:"kind"`
	Organism Key        `json:"organism,omitempty"`

	// HeritablePhenotypic is set when the marker's feature type belongs to the
	// heritable phenotypic marker class (including regulatory regions).
	HeritablePhenotypic bool `json:"heritable_phenotypic"`
}

// RelationshipCategory is the category of an allele to marker relationship.
type RelationshipCategory string

const (
	MutationInvolves   RelationshipCategory = "mutation_involves"
	ExpressesComponent RelationshipCategory = "expresses_component"
)

// Relationship is a directed allele -> marker edge.
type Relationship struct {
	Allele   Key                  `json:"allele"`
	Marker   Key                  `json:"marker"`
	Category RelationshipCategory `json:"category"`

	// ExpressesMouseGene is set for expresses-component edges whose
	// relationship term is "expresses mouse gene".
	ExpressesMouseGene bool `json:"expresses_mouse_gene,omitempty"`
	TargetOrganism     Key  `json:"target_organism,omitempty"`
}

// DockingSite is a locus used as a generic insertion point.
type DockingSite struct {
	Marker Key    `json:"marker_key" yaml:"marker_key"`
	Symbol string `json:"symbol" yaml:"symbol"`

	// Permissive sites never receive rolled-up annotations.
	Permissive bool `json:"permissive" yaml:"permissive"`

	// IntrinsicPhenotype sites can cause a phenotype by themselves when the
	// inserted allele expresses no foreign sequence.
	IntrinsicPhenotype bool `json:"intrinsic_phenotype" yaml:"intrinsic_phenotype"`
}

// RuleID identifies the cascade rule that claimed a genotype. Values follow
// the historical rule numbering used in keeper tags, which is not the
// evaluation order.
type RuleID int

const (
	RuleNaturallySimple      RuleID = 1
	RuleTwoMarkerTransgene   RuleID = 2
	RuleMutationInvolves     RuleID = 3
	RuleTransgene            RuleID = 4
	RuleTransgeneExpressed   RuleID = 5
	RuleDockingSiteExpress   RuleID = 6
	RuleSingleNoExpression   RuleID = 7
	RuleSelfExpressing       RuleID = 8
	RuleDockingSiteIntrinsic RuleID = 9
)

var ruleNames = map[RuleID]string{
	RuleNaturallySimple:      "naturally_simple",
	RuleTwoMarkerTransgene:   "two_marker_transgene",
	RuleMutationInvolves:     "mutation_involves",
	RuleTransgene:            "transgene",
	RuleTransgeneExpressed:   "transgene_expressed",
	RuleDockingSiteExpress:   "docking_site_expressed",
	RuleSingleNoExpression:   "single_no_expression",
	RuleSelfExpressing:       "self_expressing",
	RuleDockingSiteIntrinsic: "docking_site_intrinsic",
}

func (r RuleID) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Keeper records that a genotype's annotations roll up to Target.
type Keeper struct {
	Genotype Key    `json:"genotype"`
	Target   Key    `json:"target"`
	Rule     RuleID `json:"rule"`
	Tag      string `json:"tag"`
}
