package domain

// Annotation is a genotype-level vocabulary annotation.
type Annotation struct {
	Key       Key `json:"key"`
	Genotype  Key `json:"genotype"`
	Term      Key `json:"term"`
	Qualifier Key `json:"qualifier,omitempty"`
}

// Evidence supports an annotation with a reference and evidence code.
type Evidence struct {
	Key          Key     `json:"key"`
	Annotation   Key     `json:"annotation"`
	EvidenceTerm Key     `json:"evidence_term"`
	Reference    Key     `json:"reference"`
	InferredFrom *string `json:"inferred_from,omitempty"`
	CreatedBy    Key     `json:"created_by"`
	ModifiedBy   Key     `json:"modified_by"`
}

// Property is one clause of an evidence property stanza.
type Property struct {
	Evidence Key    `json:"evidence"`
	Term     Key    `json:"term"`
	Stanza   int    `json:"stanza"`
	Sequence int    `json:"sequence"`
	Value    string `json:"value"`

	// CreatedBy and ModifiedBy record who wrote the property row.
	CreatedBy  Key `json:"created_by,omitempty"`
	ModifiedBy Key `json:"modified_by,omitempty"`
}

// NoteType distinguishes the evidence notes carried into derived annotations.
type NoteType string

const (
	NoteGeneral               NoteType = "general"
	NoteBackgroundSensitivity NoteType = "background_sensitivity"
)

// Note is a free-text evidence note.
type Note struct {
	Evidence Key      `json:"evidence"`
	Key      Key      `json:"key"`
	Type     NoteType `json:"type"`
	Text     string   `json:"text"`
}

// DerivedAnnotation is one rolled-up annotation row, ready for the load file.
type DerivedAnnotation struct {
	TermID       string `json:"term_id"`
	TargetID     string `json:"target_id"`
	ReferenceID  string `json:"reference_id"`
	EvidenceCode string `json:"evidence_code"`
	InferredFrom string `json:"inferred_from"`
	Qualifier    string `json:"qualifier"`
	User         string `json:"user"`
	Notes        string `json:"notes"`
	Properties   string `json:"properties"`

	// Source is the genotype annotation this row was derived from.
	Source           Key        `json:"source"`
	Evidence         Key        `json:"evidence"`
	SourceProperties []Property `json:"source_properties,omitempty"`
	Provenance       Property   `json:"provenance"`
}
