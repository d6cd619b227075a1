package sqlstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genorollup/internal/config"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

func newMockStore(t *testing.T, dialect Dialect, chunk int) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	vocab := config.DefaultVocabulary()
	vocab.PropertyVocab = 86
	s, err := New(db, dialect, Options{
		AnnotationType: 1002,
		SentinelTerm:   293594,
		Vocabulary:     vocab,
		ChunkSize:      chunk,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return s, mock
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, DialectSQLite, Options{AnnotationType: 1002})
	assert.ErrorContains(t, err, "nil database handle")

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = New(db, DialectSQLite, Options{})
	assert.ErrorContains(t, err, "annotation type required")

	s, err := New(db, DialectSQLite, Options{AnnotationType: 1002})
	require.NoError(t, err)
	assert.Equal(t, defaultChunkSize, s.chunkSize)
	assert.Same(t, db, s.db)
}

func TestAnnotationsChunksGenotypes(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres, 2)

	annotCols := []string{"_Annot_key", "_Object_key", "_Term_key", "_Qualifier_key"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM VOC_Annot\n")).
		WithArgs(int64(1002), int64(293594), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(annotCols).
			AddRow(int64(100), int64(1), int64(500), nil).
			AddRow(int64(200), int64(2), int64(501), int64(900)))
	mock.ExpectQuery(regexp.QuoteMeta("_Object_key IN ($3)")).
		WithArgs(int64(1002), int64(293594), int64(3)).
		WillReturnRows(sqlmock.NewRows(annotCols).AddRow(int64(300), int64(3), int64(500), nil))

	evCols := []string{"_AnnotEvidence_key", "_Annot_key", "_EvidenceTerm_key", "_Refs_key", "inferredFrom", "_CreatedBy_key", "_ModifiedBy_key"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM VOC_Evidence e")).
		WithArgs(int64(1002), int64(293594), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(evCols).
			AddRow(int64(1000), int64(100), int64(800), int64(700), "MGI:1", int64(9), int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM VOC_Evidence e")).
		WithArgs(int64(1002), int64(293594), int64(3)).
		WillReturnRows(sqlmock.NewRows(evCols).
			AddRow(int64(3000), int64(300), int64(800), int64(700), nil, int64(9), int64(9)))

	propCols := []string{"_AnnotEvidence_key", "_PropertyTerm_key", "stanza", "sequenceNum", "value", "_CreatedBy_key", "_ModifiedBy_key"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM VOC_Evidence_Property p")).
		WithArgs(int64(1002), int64(293594), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(propCols).
			AddRow(int64(1000), int64(601), 1, 1, "M", int64(9), int64(9)).
			AddRow(int64(1000), int64(602), 1, 2, nil, int64(9), int64(9)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM VOC_Evidence_Property p")).
		WithArgs(int64(1002), int64(293594), int64(3)).
		WillReturnRows(sqlmock.NewRows(propCols))

	noteCols := []string{"_Object_key", "_Note_key", "_NoteType_key", "note"}
	mock.ExpectQuery(regexp.QuoteMeta("n._NoteType_key IN ($1, $2)")).
		WithArgs(int64(1008), int64(1015), int64(1002), int64(293594), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(noteCols).
			AddRow(int64(1000), int64(5), int64(1015), "background"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM MGI_Note n")).
		WithArgs(int64(1008), int64(1015), int64(1002), int64(293594), int64(3)).
		WillReturnRows(sqlmock.NewRows(noteCols))

	b, err := s.Annotations(context.Background(), []domain.Key{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []domain.Annotation{
		{Key: 100, Genotype: 1, Term: 500},
		{Key: 200, Genotype: 2, Term: 501, Qualifier: 900},
		{Key: 300, Genotype: 3, Term: 500},
	}, b.Annotations)
	require.Len(t, b.Evidence, 2)
	require.NotNil(t, b.Evidence[0].InferredFrom)
	assert.Equal(t, "MGI:1", *b.Evidence[0].InferredFrom)
	assert.Nil(t, b.Evidence[1].InferredFrom)
	assert.Equal(t, domain.Key(10), b.Evidence[0].ModifiedBy)
	require.Len(t, b.Properties, 2)
	assert.Equal(t, "", b.Properties[1].Value)
	assert.Equal(t, []domain.Note{
		{Evidence: 1000, Key: 5, Type: domain.NoteBackgroundSensitivity, Text: "background"},
	}, b.Notes)
}

func TestAnnotationsWrapQueryErrors(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite, 10)
	mock.ExpectQuery("FROM VOC_Annot").WillReturnError(errors.New("relation does not exist"))

	_, err := s.Annotations(context.Background(), []domain.Key{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query annotations")
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestAnnotationsWrapScanErrors(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite, 10)
	mock.ExpectQuery("FROM VOC_Annot").
		WillReturnRows(sqlmock.NewRows([]string{"_Annot_key", "_Object_key", "_Term_key", "_Qualifier_key"}).
			AddRow("not-a-key", int64(1), int64(500), nil))

	_, err := s.Annotations(context.Background(), []domain.Key{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan annotations")
}

func TestLookupsLoadEveryTable(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite, 10)
	mock.MatchExpectationsInOrder(false)
	kv := func() *sqlmock.Rows { return sqlmock.NewRows([]string{"k", "v"}) }

	mock.ExpectQuery(regexp.QuoteMeta("aa._MGIType_key = ?")).
		WithArgs(int64(1002), int64(13)).
		WillReturnRows(kv().AddRow(int64(500), "MP:0000500"))
	mock.ExpectQuery(regexp.QuoteMeta("_Object_key IN (?, ?)")).
		WithArgs(int64(11), int64(1), int64(101), int64(201)).
		WillReturnRows(kv().AddRow(int64(101), "MGI:101"))
	mock.ExpectQuery("BIB_Citation_Cache").
		WithArgs(int64(1002)).
		WillReturnRows(kv().AddRow(int64(700), "J:100"))
	mock.ExpectQuery("_EvidenceVocab_key").
		WithArgs(int64(1002)).
		WillReturnRows(kv().AddRow(int64(800), "EXP"))
	mock.ExpectQuery("_QualifierVocab_key").
		WithArgs(int64(1002)).
		WillReturnRows(kv().AddRow(int64(900), nil))
	mock.ExpectQuery("FROM MGI_User").
		WillReturnRows(kv().AddRow(int64(9), "curator"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE _Vocab_key = ?")).
		WithArgs(int64(86)).
		WillReturnRows(kv().AddRow(int64(601), "sex"))

	l, err := s.Lookups(context.Background(), domain.TargetAllele, []domain.Key{101, 201})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, rollup.KeyMap{500: "MP:0000500"}, l.Terms)
	assert.Equal(t, rollup.KeyMap{101: "MGI:101"}, l.Targets)
	assert.Equal(t, rollup.KeyMap{700: "J:100"}, l.References)
	assert.Equal(t, rollup.KeyMap{800: "EXP"}, l.EvidenceCodes)
	assert.Equal(t, rollup.KeyMap{900: ""}, l.Qualifiers)
	assert.Equal(t, rollup.KeyMap{9: "curator"}, l.Users)
	assert.Equal(t, rollup.KeyMap{601: "sex"}, l.PropertyNames)
}

func TestFactsResolvesTransgeneAlleles(t *testing.T) {
	s, mock := newMockStore(t, DialectSQLite, 10)
	v := config.DefaultVocabulary()

	mock.ExpectQuery("FROM GXD_Genotype g").
		WillReturnRows(sqlmock.NewRows([]string{"_Genotype_key", "isConditional", "count"}).
			AddRow(int64(2), int64(0), 3))
	mock.ExpectQuery("FROM GXD_AlleleGenotype").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"_Genotype_key", "_Allele_key", "_Marker_key"}).
			AddRow(int64(2), int64(201), int64(21)).
			AddRow(int64(2), int64(202), nil))
	relCols := []string{"_Object_key_1", "_Object_key_2", "_Category_key", "_RelationshipTerm_key"}
	mock.ExpectQuery("FROM MGI_Relationship").
		WithArgs(v.MutationInvolvesCategory, v.ExpressesComponentCategory, int64(201), int64(202)).
		WillReturnRows(sqlmock.NewRows(relCols).
			AddRow(int64(201), int64(22), v.ExpressesComponentCategory, v.ExpressesMouseGeneTerm))
	mock.ExpectQuery("FROM MRK_Marker").
		WithArgs(int64(21), int64(22)).
		WillReturnRows(sqlmock.NewRows([]string{"_Marker_key", "symbol", "_Marker_Type_key", "_Organism_key"}).
			AddRow(int64(21), "Tg(x)", v.TransgeneMarkerType, int64(1)).
			AddRow(int64(22), "Kit", v.GeneMarkerType, int64(2)))
	mock.ExpectQuery("FROM VOC_Annot").
		WithArgs(v.FeatureTypeAnnotType, int64(21), int64(22)).
		WillReturnRows(sqlmock.NewRows([]string{"_Object_key", "_Term_key"}).
			AddRow(int64(22), v.HeritablePhenotypicFeatures[0]))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE _Marker_key IN (?)")).
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"_Allele_key"}).AddRow(int64(201)).AddRow(int64(203)))
	mock.ExpectQuery("FROM MGI_Relationship").
		WithArgs(v.MutationInvolvesCategory, v.ExpressesComponentCategory, int64(203)).
		WillReturnRows(sqlmock.NewRows(relCols).
			AddRow(int64(203), int64(23), v.MutationInvolvesCategory, int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE _Allele_key IN (?, ?, ?)")).
		WithArgs(int64(201), int64(202), int64(203)).
		WillReturnRows(sqlmock.NewRows([]string{"_Allele_key", "symbol", "_Marker_key", "isWildType", "_Allele_Type_key"}).
			AddRow(int64(201), "Tg(x)1", int64(21), int64(0), v.TransgenicAlleleType).
			AddRow(int64(202), "Kit<W>", nil, int64(0), int64(1)).
			AddRow(int64(203), "Tg(x)2", int64(21), int64(0), v.TransgenicAlleleType))
	mock.ExpectQuery("FROM VOC_Annot").
		WithArgs(v.SubtypeAnnotType, int64(201), int64(202), int64(203)).
		WillReturnRows(sqlmock.NewRows([]string{"_Object_key", "_Term_key"}).
			AddRow(int64(201), v.ReporterTerm).
			AddRow(int64(201), v.ReporterTerm).
			AddRow(int64(203), int64(42)))

	f, err := s.Facts(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, map[domain.Key]int{2: 3}, f.AnnotationCounts)
	assert.Equal(t, []domain.AllelePairLink{
		{Genotype: 2, Allele: 201, Marker: 21},
		{Genotype: 2, Allele: 202},
	}, f.Links)
	require.Len(t, f.Relationships, 2)
	assert.Equal(t, domain.Relationship{
		Allele: 201, Marker: 22, Category: domain.ExpressesComponent, ExpressesMouseGene: true, TargetOrganism: 2,
	}, f.Relationships[0])
	assert.Equal(t, domain.MutationInvolves, f.Relationships[1].Category)
	require.Len(t, f.Markers, 2)
	assert.Equal(t, domain.MarkerTransgene, f.Markers[0].Kind)
	assert.True(t, f.Markers[1].HeritablePhenotypic)
	require.Len(t, f.Alleles, 3)
	assert.Equal(t, []domain.AlleleAttribute{domain.AttributeReporter}, f.Alleles[0].Attributes)
	assert.True(t, f.Alleles[0].Transgenic)
	assert.Equal(t, domain.Key(0), f.Alleles[1].Marker)
	assert.Equal(t, []domain.AlleleAttribute{domain.AttributeOther}, f.Alleles[2].Attributes)
}
