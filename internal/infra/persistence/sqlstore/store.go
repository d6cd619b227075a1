// Package sqlstore reads the rollup relations from the MGI relational schema
// over database/sql. The postgres and sqlite packages open the connection
// and pick the dialect.
package sqlstore

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"genorollup/internal/config"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

var _ rollup.Source = (*Store)(nil)

const defaultChunkSize = 500

// Options configure a Store.
type Options struct {
	// AnnotationType is the genotype annotation type being rolled up.
	AnnotationType domain.Key
	SentinelTerm   domain.Key
	Vocabulary     config.Vocabulary

	// ChunkSize bounds the keys bound in one IN list.
	ChunkSize int
	Logger    *zap.SugaredLogger
}

// Store implements rollup.Source over an MGI schema.
type Store struct {
	db        *sql.DB
	dialect   Dialect
	opts      Options
	vocab     config.Vocabulary
	chunkSize int
	log       *zap.SugaredLogger
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil database handle")
	}
	if opts.AnnotationType.IsNull() {
		return nil, errors.New("sqlstore: annotation type required")
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		db:        db,
		dialect:   dialect,
		opts:      opts,
		vocab:     opts.Vocabulary,
		chunkSize: chunk,
		log:       log,
	}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Facts loads the genotypes carrying qualifying annotations and everything
// the cascade inspects about them.
func (s *Store) Facts(ctx context.Context) (*rollup.Facts, error) {
	f := &rollup.Facts{AnnotationCounts: make(map[domain.Key]int)}

	if err := s.loadGenotypes(ctx, f); err != nil {
		return nil, err
	}
	genotypes := make([]domain.Key, len(f.Genotypes))
	for i, g := range f.Genotypes {
		genotypes[i] = g.Key
	}

	linked := keySet{}
	linkMarkers := keySet{}
	if err := s.queryIn(ctx, "allele pairs", `
		SELECT _Genotype_key, _Allele_key, _Marker_key
		FROM GXD_AlleleGenotype
		WHERE _Genotype_key IN (%s)
		ORDER BY _Genotype_key, _Allele_key`, nil, genotypes, func(rows *sql.Rows) error {
		var l domain.AllelePairLink
		var marker sql.NullInt64
		if err := rows.Scan(&l.Genotype, &l.Allele, &marker); err != nil {
			return err
		}
		l.Marker = nullKey(marker)
		f.Links = append(f.Links, l)
		linked.add(l.Allele)
		linkMarkers.add(l.Marker)
		return nil
	}); err != nil {
		return nil, err
	}

	markerKeys := keySet{}
	for k := range linkMarkers {
		markerKeys.add(k)
	}
	if err := s.loadRelationships(ctx, f, linked.sorted(), markerKeys); err != nil {
		return nil, err
	}
	if err := s.loadMarkers(ctx, f, markerKeys.sorted()); err != nil {
		return nil, err
	}

	// Alleles of linked transgene markers decide whether a transgene
	// expresses only one marker.
	transgenes := keySet{}
	for _, m := range f.Markers {
		if _, ok := linkMarkers[m.Key]; ok && m.Kind == domain.MarkerTransgene {
			transgenes.add(m.Key)
		}
	}
	alleleKeys := keySet{}
	for k := range linked {
		alleleKeys.add(k)
	}
	extra := keySet{}
	if err := s.queryIn(ctx, "transgene alleles", `
		SELECT _Allele_key
		FROM ALL_Allele
		WHERE _Marker_key IN (%s)`, nil, transgenes.sorted(), func(rows *sql.Rows) error {
		var k domain.Key
		if err := rows.Scan(&k); err != nil {
			return err
		}
		if _, ok := alleleKeys[k]; !ok {
			extra.add(k)
			alleleKeys.add(k)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.loadRelationships(ctx, f, extra.sorted(), nil); err != nil {
		return nil, err
	}
	if err := s.loadAlleles(ctx, f, alleleKeys.sorted()); err != nil {
		return nil, err
	}

	organisms := make(map[domain.Key]domain.Key, len(f.Markers))
	for _, m := range f.Markers {
		organisms[m.Key] = m.Organism
	}
	for i := range f.Relationships {
		f.Relationships[i].TargetOrganism = organisms[f.Relationships[i].Marker]
	}

	s.log.Infow("facts loaded",
		"genotypes", len(f.Genotypes),
		"links", len(f.Links),
		"alleles", len(f.Alleles),
		"markers", len(f.Markers),
		"relationships", len(f.Relationships),
	)
	return f, nil
}

func (s *Store) loadGenotypes(ctx context.Context, f *rollup.Facts) error {
	return s.query(ctx, "genotypes", `
		SELECT g._Genotype_key, g.isConditional, COUNT(a._Annot_key)
		FROM GXD_Genotype g
		JOIN VOC_Annot a ON a._Object_key = g._Genotype_key
		WHERE a._AnnotType_key = ? AND a._Term_key != ?
		GROUP BY g._Genotype_key, g.isConditional
		ORDER BY g._Genotype_key`,
		[]any{int64(s.opts.AnnotationType), int64(s.opts.SentinelTerm)},
		func(rows *sql.Rows) error {
			var g domain.Genotype
			var n int
			if err := rows.Scan(&g.Key, &g.Conditional, &n); err != nil {
				return err
			}
			f.Genotypes = append(f.Genotypes, g)
			f.AnnotationCounts[g.Key] = n
			return nil
		})
}

// loadRelationships appends the mutation-involves and expresses-component
// edges of alleles. Target markers are added to markers when it is not nil.
func (s *Store) loadRelationships(ctx context.Context, f *rollup.Facts, alleles []domain.Key, markers keySet) error {
	v := s.vocab
	return s.queryIn(ctx, "relationships", `
		SELECT _Object_key_1, _Object_key_2, _Category_key, _RelationshipTerm_key
		FROM MGI_Relationship
		WHERE _Category_key IN (?, ?) AND _Object_key_1 IN (%s)
		ORDER BY _Object_key_1, _Object_key_2`,
		[]any{v.MutationInvolvesCategory, v.ExpressesComponentCategory}, alleles,
		func(rows *sql.Rows) error {
			var r domain.Relationship
			var category, term int64
			if err := rows.Scan(&r.Allele, &r.Marker, &category, &term); err != nil {
				return err
			}
			switch category {
			case v.MutationInvolvesCategory:
				r.Category = domain.MutationInvolves
			case v.ExpressesComponentCategory:
				r.Category = domain.ExpressesComponent
				r.ExpressesMouseGene = term == v.ExpressesMouseGeneTerm
			}
			f.Relationships = append(f.Relationships, r)
			if markers != nil {
				markers.add(r.Marker)
			}
			return nil
		})
}

func (s *Store) loadMarkers(ctx context.Context, f *rollup.Facts, keys []domain.Key) error {
	v := s.vocab
	index := make(map[domain.Key]int, len(keys))
	if err := s.queryIn(ctx, "markers", `
		SELECT _Marker_key, symbol, _Marker_Type_key, _Organism_key
		FROM MRK_Marker
		WHERE _Marker_key IN (%s)
		ORDER BY _Marker_key`, nil, keys, func(rows *sql.Rows) error {
		var m domain.Marker
		var kind int64
		if err := rows.Scan(&m.Key, &m.Symbol, &kind, &m.Organism); err != nil {
			return err
		}
		switch kind {
		case v.GeneMarkerType:
			m.Kind = domain.MarkerGene
		case v.TransgeneMarkerType:
			m.Kind = domain.MarkerTransgene
		case v.ComplexClusterRegionMarkerType:
			m.Kind = domain.MarkerComplexClusterRegion
		case v.CytogeneticMarkerType:
			m.Kind = domain.MarkerCytogenetic
		default:
			m.Kind = domain.MarkerOther
		}
		index[m.Key] = len(f.Markers)
		f.Markers = append(f.Markers, m)
		return nil
	}); err != nil {
		return err
	}

	heritable := make(map[int64]bool, len(v.HeritablePhenotypicFeatures))
	for _, t := range v.HeritablePhenotypicFeatures {
		heritable[t] = true
	}
	return s.queryIn(ctx, "marker feature types", `
		SELECT _Object_key, _Term_key
		FROM VOC_Annot
		WHERE _AnnotType_key = ? AND _Object_key IN (%s)`,
		[]any{v.FeatureTypeAnnotType}, keys,
		func(rows *sql.Rows) error {
			var key domain.Key
			var term int64
			if err := rows.Scan(&key, &term); err != nil {
				return err
			}
			if i, ok := index[key]; ok && heritable[term] {
				f.Markers[i].HeritablePhenotypic = true
			}
			return nil
		})
}

func (s *Store) loadAlleles(ctx context.Context, f *rollup.Facts, keys []domain.Key) error {
	v := s.vocab
	index := make(map[domain.Key]int, len(keys))
	if err := s.queryIn(ctx, "alleles", `
		SELECT _Allele_key, symbol, _Marker_key, isWildType, _Allele_Type_key
		FROM ALL_Allele
		WHERE _Allele_key IN (%s)
		ORDER BY _Allele_key`, nil, keys, func(rows *sql.Rows) error {
		var a domain.Allele
		var marker sql.NullInt64
		var alleleType int64
		if err := rows.Scan(&a.Key, &a.Symbol, &marker, &a.WildType, &alleleType); err != nil {
			return err
		}
		a.Marker = nullKey(marker)
		a.Transgenic = alleleType == v.TransgenicAlleleType
		index[a.Key] = len(f.Alleles)
		f.Alleles = append(f.Alleles, a)
		return nil
	}); err != nil {
		return err
	}

	return s.queryIn(ctx, "allele subtypes", `
		SELECT _Object_key, _Term_key
		FROM VOC_Annot
		WHERE _AnnotType_key = ? AND _Object_key IN (%s)
		ORDER BY _Object_key, _Term_key`,
		[]any{v.SubtypeAnnotType}, keys,
		func(rows *sql.Rows) error {
			var key domain.Key
			var term int64
			if err := rows.Scan(&key, &term); err != nil {
				return err
			}
			i, ok := index[key]
			if !ok {
				return nil
			}
			attr := s.attribute(term)
			if !f.Alleles[i].Has(attr) {
				f.Alleles[i].Attributes = append(f.Alleles[i].Attributes, attr)
			}
			return nil
		})
}

func (s *Store) attribute(term int64) domain.AlleleAttribute {
	switch term {
	case s.vocab.ReporterTerm:
		return domain.AttributeReporter
	case s.vocab.TransactivatorTerm:
		return domain.AttributeTransactivator
	case s.vocab.RecombinaseTerm:
		return domain.AttributeRecombinase
	case s.vocab.InsertedExprSeqTerm:
		return domain.AttributeInsertedExpressedSequence
	default:
		return domain.AttributeOther
	}
}

// Lookups loads the seven translation tables concurrently. Each goroutine
// fills its own map.
func (s *Store) Lookups(ctx context.Context, kind domain.TargetKind, targets []domain.Key) (*rollup.Lookups, error) {
	l := rollup.NewLookups()
	v := s.vocab
	annotType := int64(s.opts.AnnotationType)

	targetType := v.MarkerMGIType
	if kind == domain.TargetAllele {
		targetType = v.AlleleMGIType
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.query(ctx, "term ids", `
			SELECT DISTINCT aa._Object_key, aa.accID
			FROM VOC_Annot va
			JOIN ACC_Accession aa ON aa._Object_key = va._Term_key
			WHERE va._AnnotType_key = ? AND aa._MGIType_key = ?
				AND aa.private = 0 AND aa.preferred = 1`,
			[]any{annotType, v.TermMGIType}, fill(l.Terms))
	})
	g.Go(func() error {
		return s.queryIn(ctx, "target ids", `
			SELECT _Object_key, accID
			FROM ACC_Accession
			WHERE _MGIType_key = ? AND _LogicalDB_key = ?
				AND private = 0 AND preferred = 1
				AND _Object_key IN (%s)`,
			[]any{targetType, v.MGILogicalDB}, targets, fill(l.Targets))
	})
	g.Go(func() error {
		return s.query(ctx, "references", `
			SELECT DISTINCT r._Refs_key, r.jnumID
			FROM VOC_Annot va
			JOIN VOC_Evidence ve ON ve._Annot_key = va._Annot_key
			JOIN BIB_Citation_Cache r ON r._Refs_key = ve._Refs_key
			WHERE va._AnnotType_key = ?`,
			[]any{annotType}, fill(l.References))
	})
	g.Go(func() error {
		return s.query(ctx, "evidence codes", `
			SELECT DISTINCT vt._Term_key, vt.abbreviation
			FROM VOC_AnnotType vat
			JOIN VOC_Term vt ON vt._Vocab_key = vat._EvidenceVocab_key
			WHERE vat._AnnotType_key = ?`,
			[]any{annotType}, fill(l.EvidenceCodes))
	})
	g.Go(func() error {
		return s.query(ctx, "qualifiers", `
			SELECT DISTINCT vt._Term_key, vt.term
			FROM VOC_AnnotType vat
			JOIN VOC_Term vt ON vt._Vocab_key = vat._QualifierVocab_key
			WHERE vat._AnnotType_key = ?`,
			[]any{annotType}, fill(l.Qualifiers))
	})
	g.Go(func() error {
		return s.query(ctx, "users", `SELECT _User_key, login FROM MGI_User`, nil, fill(l.Users))
	})
	g.Go(func() error {
		return s.query(ctx, "property names", `
			SELECT _Term_key, term
			FROM VOC_Term
			WHERE _Vocab_key = ?`,
			[]any{v.PropertyVocab}, fill(l.PropertyNames))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Infow("lookups loaded",
		"terms", len(l.Terms),
		"targets", len(l.Targets),
		"references", len(l.References),
		"users", len(l.Users),
		"property_names", len(l.PropertyNames),
	)
	return l, nil
}

// fill scans (key, value) rows into m.
func fill(m rollup.KeyMap) scanFunc {
	return func(rows *sql.Rows) error {
		var k domain.Key
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		m[k] = v.String
		return nil
	}
}

// Annotations loads the qualifying annotation rows of genotypes with their
// evidence, properties and notes.
func (s *Store) Annotations(ctx context.Context, genotypes []domain.Key) (*rollup.Bundle, error) {
	b := &rollup.Bundle{}
	v := s.vocab
	scope := []any{int64(s.opts.AnnotationType), int64(s.opts.SentinelTerm)}

	if err := s.queryIn(ctx, "annotations", `
		SELECT _Annot_key, _Object_key, _Term_key, _Qualifier_key
		FROM VOC_Annot
		WHERE _AnnotType_key = ? AND _Term_key != ? AND _Object_key IN (%s)
		ORDER BY _Annot_key`, scope, genotypes, func(rows *sql.Rows) error {
		var a domain.Annotation
		var qualifier sql.NullInt64
		if err := rows.Scan(&a.Key, &a.Genotype, &a.Term, &qualifier); err != nil {
			return err
		}
		a.Qualifier = nullKey(qualifier)
		b.Annotations = append(b.Annotations, a)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.queryIn(ctx, "evidence", `
		SELECT e._AnnotEvidence_key, e._Annot_key, e._EvidenceTerm_key, e._Refs_key,
			e.inferredFrom, e._CreatedBy_key, e._ModifiedBy_key
		FROM VOC_Evidence e
		JOIN VOC_Annot a ON a._Annot_key = e._Annot_key
		WHERE a._AnnotType_key = ? AND a._Term_key != ? AND a._Object_key IN (%s)
		ORDER BY e._AnnotEvidence_key`, scope, genotypes, func(rows *sql.Rows) error {
		var e domain.Evidence
		var inferred sql.NullString
		if err := rows.Scan(&e.Key, &e.Annotation, &e.EvidenceTerm, &e.Reference,
			&inferred, &e.CreatedBy, &e.ModifiedBy); err != nil {
			return err
		}
		if inferred.Valid {
			e.InferredFrom = &inferred.String
		}
		b.Evidence = append(b.Evidence, e)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.queryIn(ctx, "evidence properties", `
		SELECT p._AnnotEvidence_key, p._PropertyTerm_key, p.stanza, p.sequenceNum,
			p.value, p._CreatedBy_key, p._ModifiedBy_key
		FROM VOC_Evidence_Property p
		JOIN VOC_Evidence e ON e._AnnotEvidence_key = p._AnnotEvidence_key
		JOIN VOC_Annot a ON a._Annot_key = e._Annot_key
		WHERE a._AnnotType_key = ? AND a._Term_key != ? AND a._Object_key IN (%s)
		ORDER BY p._AnnotEvidence_key, p.stanza, p.sequenceNum`, scope, genotypes, func(rows *sql.Rows) error {
		var p domain.Property
		var value sql.NullString
		if err := rows.Scan(&p.Evidence, &p.Term, &p.Stanza, &p.Sequence,
			&value, &p.CreatedBy, &p.ModifiedBy); err != nil {
			return err
		}
		p.Value = value.String
		b.Properties = append(b.Properties, p)
		return nil
	}); err != nil {
		return nil, err
	}

	noteScope := append([]any{v.GeneralNoteType, v.BackgroundSensitivityNoteType}, scope...)
	if err := s.queryIn(ctx, "evidence notes", `
		SELECT n._Object_key, n._Note_key, n._NoteType_key, n.note
		FROM MGI_Note n
		JOIN VOC_Evidence e ON e._AnnotEvidence_key = n._Object_key
		JOIN VOC_Annot a ON a._Annot_key = e._Annot_key
		WHERE n._NoteType_key IN (?, ?)
			AND a._AnnotType_key = ? AND a._Term_key != ? AND a._Object_key IN (%s)
		ORDER BY n._Object_key, n._Note_key`, noteScope, genotypes, func(rows *sql.Rows) error {
		var n domain.Note
		var noteType int64
		var text sql.NullString
		if err := rows.Scan(&n.Evidence, &n.Key, &noteType, &text); err != nil {
			return err
		}
		n.Type = domain.NoteGeneral
		if noteType == v.BackgroundSensitivityNoteType {
			n.Type = domain.NoteBackgroundSensitivity
		}
		n.Text = text.String
		b.Notes = append(b.Notes, n)
		return nil
	}); err != nil {
		return nil, err
	}

	s.log.Debugw("annotations loaded",
		"genotypes", len(genotypes),
		"annotations", len(b.Annotations),
		"evidence", len(b.Evidence),
		"properties", len(b.Properties),
		"notes", len(b.Notes),
	)
	return b, nil
}
