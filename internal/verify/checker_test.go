package verify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genorollup/internal/infra/persistence/memory"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
	"genorollup/testutil"
)

// countingSource records how many annotation loads the checker issues.
type countingSource struct {
	rollup.Source
	loads int
}

func (s *countingSource) Annotations(ctx context.Context, genotypes []domain.Key) (*rollup.Bundle, error) {
	s.loads++
	return s.Source.Annotations(ctx, genotypes)
}

func scenarioRecords(t *testing.T, kind domain.TargetKind) (*countingSource, rollup.Settings, *rollup.Lookups, []rollup.TargetRecord) {
	t.Helper()
	settings, err := testutil.ScenarioSettings(kind)
	require.NoError(t, err)
	src := &countingSource{Source: memory.NewSource(testutil.ScenarioSnapshot(), testutil.SentinelTerm)}
	cur := rollup.NewCursor(src, settings)
	var recs []rollup.TargetRecord
	for {
		rec, ok, err := cur.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		recs = append(recs, rec)
	}
	src.loads = 0
	return src, settings, cur.Lookups(), recs
}

func TestScenarioRoundTrips(t *testing.T) {
	for _, kind := range []domain.TargetKind{domain.TargetMarker, domain.TargetAllele} {
		t.Run(string(kind), func(t *testing.T) {
			src, settings, lookups, recs := scenarioRecords(t, kind)
			c := NewChecker(src, settings, lookups)
			for _, rec := range recs {
				require.NoError(t, c.AddRecord(context.Background(), rec))
			}
			report, err := c.Finish(context.Background())
			require.NoError(t, err)
			assert.True(t, report.OK(), "%+v", report)
			assert.Equal(t, len(recs), report.Targets)
			assert.Equal(t, 1, src.loads)
		})
	}
}

func TestScenarioMarkerCounts(t *testing.T) {
	src, settings, lookups, recs := scenarioRecords(t, domain.TargetMarker)
	c := NewChecker(src, settings, lookups)
	for _, rec := range recs {
		require.NoError(t, c.AddRecord(context.Background(), rec))
	}
	report, err := c.Finish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Targets: 4, Rows: 9, Checked: 9}, report)
}

func TestChunkingLoadsPerChunk(t *testing.T) {
	src, settings, lookups, recs := scenarioRecords(t, domain.TargetMarker)
	c := NewChecker(src, settings, lookups, WithChunkSize(1))
	for _, rec := range recs {
		require.NoError(t, c.AddRecord(context.Background(), rec))
	}
	report, err := c.Finish(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, len(recs), src.loads)
}

func TestDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(rows []domain.DerivedAnnotation)
		want   Report
	}{
		{
			name:   "term changed",
			tamper: func(rows []domain.DerivedAnnotation) { rows[0].TermID = "MP:0009999" },
			want:   Report{Mismatches: 1},
		},
		{
			name:   "qualifier added",
			tamper: func(rows []domain.DerivedAnnotation) { rows[0].Qualifier = "NOT" },
			want:   Report{Mismatches: 1},
		},
		{
			name:   "evidence code changed",
			tamper: func(rows []domain.DerivedAnnotation) { rows[1].EvidenceCode = "IDA" },
			want:   Report{Mismatches: 1},
		},
		{
			name: "property value changed",
			tamper: func(rows []domain.DerivedAnnotation) {
				rows[0].Properties = strings.Replace(rows[0].Properties, "sex&=&M", "sex&=&F", 1)
			},
			want: Report{Mismatches: 1},
		},
		{
			name:   "property clause dropped",
			tamper: func(rows []domain.DerivedAnnotation) { rows[0].Properties = "_SourceAnnot_key&=&100" },
			want:   Report{Mismatches: 1},
		},
		{
			name: "clause separator mangled",
			tamper: func(rows []domain.DerivedAnnotation) {
				rows[0].Properties = strings.Replace(rows[0].Properties, "sex&=&M", "sex=M", 1)
			},
			want: Report{Mismatches: 1},
		},
		{
			name: "property moved to another stanza",
			tamper: func(rows []domain.DerivedAnnotation) {
				rows[0].Properties = "_SourceAnnot_key&=&100&===&sex&=&M"
			},
			want: Report{Mismatches: 1},
		},
		{
			name:   "stale source properties ignored",
			tamper: func(rows []domain.DerivedAnnotation) { rows[0].SourceProperties = nil },
			want:   Report{},
		},
		{
			name:   "no provenance",
			tamper: func(rows []domain.DerivedAnnotation) { rows[0].Provenance = domain.Property{} },
			want:   Report{Mismatches: 1, NoSource: 1, Checked: -1},
		},
		{
			name:   "unparsable provenance",
			tamper: func(rows []domain.DerivedAnnotation) { rows[0].Provenance.Value = "abc" },
			want:   Report{Mismatches: 1, NoSource: 1, Checked: -1},
		},
		{
			name:   "dangling provenance",
			tamper: func(rows []domain.DerivedAnnotation) { rows[1].Provenance.Value = "999999" },
			want:   Report{Mismatches: 1, MissingSource: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, settings, lookups, recs := scenarioRecords(t, domain.TargetMarker)
			c := NewChecker(src, settings, lookups)
			for i, rec := range recs {
				rows := rec.Annotations()
				if i == 0 {
					require.Equal(t, "MGI:11", rec.ID())
					require.Len(t, rows, 2)
					tt.tamper(rows)
				}
				require.NoError(t, c.Add(context.Background(), rec.Key(), rec.Genotypes(), rows))
			}
			report, err := c.Finish(context.Background())
			require.NoError(t, err)
			want := tt.want
			want.Targets, want.Rows = 4, 9
			want.Checked += 9
			assert.Equal(t, want, report)
			assert.Equal(t, tt.want.Mismatches == 0, report.OK())
		})
	}
}

func TestSourceErrorsPropagate(t *testing.T) {
	_, settings, lookups, recs := scenarioRecords(t, domain.TargetMarker)
	c := NewChecker(failingSource{}, settings, lookups)
	require.NoError(t, c.AddRecord(context.Background(), recs[0]))
	_, err := c.Finish(context.Background())
	assert.ErrorContains(t, err, "load source annotations")
}

type failingSource struct{ rollup.Source }

func (failingSource) Annotations(context.Context, []domain.Key) (*rollup.Bundle, error) {
	return nil, assert.AnError
}

func TestParseProperties(t *testing.T) {
	got, err := parseProperties("sex&=&M&==&note&=&x&===&sex&=&F")
	require.NoError(t, err)
	assert.Equal(t, []clause{
		{stanza: 1, name: "sex", value: "M"},
		{stanza: 1, name: "note", value: "x"},
		{stanza: 2, name: "sex", value: "F"},
	}, got)

	got, err = parseProperties("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseProperties("sex&=&M&==&&=&x")
	assert.Error(t, err)
	_, err = parseProperties("sexM")
	assert.Error(t, err)
}
