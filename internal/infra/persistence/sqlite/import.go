package sqlite

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"genorollup/internal/config"
	"genorollup/internal/infra/persistence/memory"
	"genorollup/internal/infra/persistence/sqlstore"
	"genorollup/pkg/domain"
)

// Vocabulary keys the import assigns to rows the snapshot carries only as
// lookup values.
const (
	evidenceVocab  int64 = 3
	qualifierVocab int64 = 53

	// otherSubtypeTerm is any subtype term the rules do not inspect.
	otherSubtypeTerm int64 = 11025600
)

// ImportSnapshot writes snap into the schema as annotations of
// opts.AnnotationType, translating typed records back to the vocabulary keys
// in opts.Vocabulary. It runs in one transaction.
func ImportSnapshot(ctx context.Context, db *sql.DB, snap *memory.Snapshot, opts sqlstore.Options) (err error) {
	if snap == nil {
		return errors.New("sqlite: nil snapshot")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin import")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	w := &importer{ctx: ctx, tx: tx, vocab: opts.Vocabulary, annotType: int64(opts.AnnotationType)}
	// Keyed annotations go first so generated subtype rows never collide.
	w.annotations(snap)
	w.genotypes(snap)
	w.alleles(snap)
	w.markers(snap)
	w.lookups(snap)
	if w.err != nil {
		return w.err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit import")
	}
	return nil
}

// importer stops at the first failed statement.
type importer struct {
	ctx       context.Context
	tx        *sql.Tx
	vocab     config.Vocabulary
	annotType int64
	err       error
}

func (w *importer) exec(table, stmt string, args ...any) {
	if w.err != nil {
		return
	}
	if _, err := w.tx.ExecContext(w.ctx, stmt, args...); err != nil {
		w.err = errors.Wrapf(err, "insert %s", table)
	}
}

func nullable(k domain.Key) any {
	if k.IsNull() {
		return nil
	}
	return int64(k)
}

func (w *importer) genotypes(snap *memory.Snapshot) {
	for _, g := range snap.Genotypes {
		w.exec("GXD_Genotype", `INSERT INTO GXD_Genotype (_Genotype_key, isConditional) VALUES (?, ?)`,
			int64(g.Key), g.Conditional)
	}
	for _, l := range snap.Links {
		w.exec("GXD_AlleleGenotype", `INSERT INTO GXD_AlleleGenotype (_Genotype_key, _Allele_key, _Marker_key) VALUES (?, ?, ?)`,
			int64(l.Genotype), int64(l.Allele), nullable(l.Marker))
	}
}

func (w *importer) alleles(snap *memory.Snapshot) {
	v := w.vocab
	for _, a := range snap.Alleles {
		var alleleType int64
		if a.Transgenic {
			alleleType = v.TransgenicAlleleType
		}
		w.exec("ALL_Allele", `INSERT INTO ALL_Allele (_Allele_key, symbol, _Marker_key, isWildType, _Allele_Type_key) VALUES (?, ?, ?, ?, ?)`,
			int64(a.Key), a.Symbol, nullable(a.Marker), a.WildType, alleleType)
		for _, attr := range a.Attributes {
			w.exec("VOC_Annot", `INSERT INTO VOC_Annot (_AnnotType_key, _Object_key, _Term_key) VALUES (?, ?, ?)`,
				v.SubtypeAnnotType, int64(a.Key), w.subtypeTerm(attr))
		}
	}
	for _, r := range snap.Relationships {
		category := v.MutationInvolvesCategory
		var term int64
		if r.Category == domain.ExpressesComponent {
			category = v.ExpressesComponentCategory
			if r.ExpressesMouseGene {
				term = v.ExpressesMouseGeneTerm
			}
		}
		w.exec("MGI_Relationship", `INSERT INTO MGI_Relationship (_Category_key, _Object_key_1, _Object_key_2, _RelationshipTerm_key) VALUES (?, ?, ?, ?)`,
			category, int64(r.Allele), int64(r.Marker), term)
	}
}

func (w *importer) subtypeTerm(attr domain.AlleleAttribute) int64 {
	switch attr {
	case domain.AttributeReporter:
		return w.vocab.ReporterTerm
	case domain.AttributeTransactivator:
		return w.vocab.TransactivatorTerm
	case domain.AttributeRecombinase:
		return w.vocab.RecombinaseTerm
	case domain.AttributeInsertedExpressedSequence:
		return w.vocab.InsertedExprSeqTerm
	default:
		return otherSubtypeTerm
	}
}

func (w *importer) markers(snap *memory.Snapshot) {
	v := w.vocab
	kinds := map[domain.MarkerKind]int64{
		domain.MarkerGene:                 v.GeneMarkerType,
		domain.MarkerTransgene:            v.TransgeneMarkerType,
		domain.MarkerComplexClusterRegion: v.ComplexClusterRegionMarkerType,
		domain.MarkerCytogenetic:          v.CytogeneticMarkerType,
	}
	for _, m := range snap.Markers {
		organism := int64(m.Organism)
		if organism == 0 {
			organism = 1
		}
		w.exec("MRK_Marker", `INSERT INTO MRK_Marker (_Marker_key, symbol, _Marker_Type_key, _Organism_key) VALUES (?, ?, ?, ?)`,
			int64(m.Key), m.Symbol, kinds[m.Kind], organism)
		if m.HeritablePhenotypic && len(v.HeritablePhenotypicFeatures) > 0 {
			w.exec("VOC_Annot", `INSERT INTO VOC_Annot (_AnnotType_key, _Object_key, _Term_key) VALUES (?, ?, ?)`,
				v.FeatureTypeAnnotType, int64(m.Key), v.HeritablePhenotypicFeatures[0])
		}
	}
}

func (w *importer) annotations(snap *memory.Snapshot) {
	for _, a := range snap.Annotations {
		w.exec("VOC_Annot", `INSERT INTO VOC_Annot (_Annot_key, _AnnotType_key, _Object_key, _Term_key, _Qualifier_key) VALUES (?, ?, ?, ?, ?)`,
			int64(a.Key), w.annotType, int64(a.Genotype), int64(a.Term), nullable(a.Qualifier))
	}
	for _, e := range snap.Evidence {
		var inferred any
		if e.InferredFrom != nil {
			inferred = *e.InferredFrom
		}
		w.exec("VOC_Evidence", `INSERT INTO VOC_Evidence (_AnnotEvidence_key, _Annot_key, _EvidenceTerm_key, _Refs_key, inferredFrom, _CreatedBy_key, _ModifiedBy_key) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(e.Key), int64(e.Annotation), int64(e.EvidenceTerm), int64(e.Reference), inferred, int64(e.CreatedBy), int64(e.ModifiedBy))
	}
	for _, p := range snap.Properties {
		w.exec("VOC_Evidence_Property", `INSERT INTO VOC_Evidence_Property (_AnnotEvidence_key, _PropertyTerm_key, stanza, sequenceNum, value, _CreatedBy_key, _ModifiedBy_key) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(p.Evidence), int64(p.Term), p.Stanza, p.Sequence, p.Value, int64(p.CreatedBy), int64(p.ModifiedBy))
	}
	for _, n := range snap.Notes {
		noteType := w.vocab.GeneralNoteType
		if n.Type == domain.NoteBackgroundSensitivity {
			noteType = w.vocab.BackgroundSensitivityNoteType
		}
		w.exec("MGI_Note", `INSERT INTO MGI_Note (_Note_key, _Object_key, _NoteType_key, note) VALUES (?, ?, ?, ?)`,
			int64(n.Key), int64(n.Evidence), noteType, n.Text)
	}
}

func (w *importer) lookups(snap *memory.Snapshot) {
	v := w.vocab
	accession := func(mgiType int64, key domain.Key, id string) {
		w.exec("ACC_Accession", `INSERT INTO ACC_Accession (accID, _LogicalDB_key, _Object_key, _MGIType_key, private, preferred) VALUES (?, ?, ?, ?, 0, 1)`,
			id, v.MGILogicalDB, int64(key), mgiType)
	}
	for k, id := range snap.Terms {
		accession(v.TermMGIType, k, id)
	}
	for k, id := range snap.MarkerIDs {
		accession(v.MarkerMGIType, k, id)
	}
	for k, id := range snap.AlleleIDs {
		accession(v.AlleleMGIType, k, id)
	}
	for k, jnum := range snap.References {
		w.exec("BIB_Citation_Cache", `INSERT INTO BIB_Citation_Cache (_Refs_key, jnumID) VALUES (?, ?)`, int64(k), jnum)
	}

	w.exec("VOC_AnnotType", `INSERT OR IGNORE INTO VOC_AnnotType (_AnnotType_key, _EvidenceVocab_key, _QualifierVocab_key) VALUES (?, ?, ?)`,
		w.annotType, evidenceVocab, qualifierVocab)
	term := func(vocab int64, key domain.Key, name, abbreviation string) {
		w.exec("VOC_Term", `INSERT INTO VOC_Term (_Term_key, _Vocab_key, term, abbreviation) VALUES (?, ?, ?, ?)`,
			int64(key), vocab, name, abbreviation)
	}
	for k, code := range snap.EvidenceCodes {
		term(evidenceVocab, k, code, code)
	}
	for k, q := range snap.Qualifiers {
		term(qualifierVocab, k, q, q)
	}
	for k, name := range snap.PropertyNames {
		term(v.PropertyVocab, k, name, name)
	}
	for k, login := range snap.Users {
		w.exec("MGI_User", `INSERT INTO MGI_User (_User_key, login) VALUES (?, ?)`, int64(k), login)
	}
}
