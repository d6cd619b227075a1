package loadfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genorollup/internal/infra/persistence/memory"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
	"genorollup/testutil"
)

type skipCounter struct{ n int }

func (s *skipCounter) RowsSkipped(n int) { s.n += n }

func TestLineHasElevenColumns(t *testing.T) {
	d := domain.DerivedAnnotation{
		TermID:       "MP:0000500",
		TargetID:     "MGI:11",
		ReferenceID:  "J:100",
		EvidenceCode: "EXP",
		InferredFrom: "MGI:5",
		Qualifier:    "NOT",
		User:         "curator",
		Notes:        "line one\nline two",
		Properties:   "sex&=&M&==&_SourceAnnot_key&=&100",
	}
	line := Line(d)
	require.True(t, strings.HasSuffix(line, "\n"))
	fields := strings.Split(strings.TrimSuffix(line, "\n"), "\t")
	require.Len(t, fields, Columns)
	assert.Equal(t, []string{
		"MP:0000500", "MGI:11", "J:100", "EXP", "MGI:5", "NOT", "curator",
		"", "line one line two", "", "sex&=&M&==&_SourceAnnot_key&=&100",
	}, fields)
}

func TestWriteSkipsRowsWithoutTargetID(t *testing.T) {
	var buf bytes.Buffer
	sc := &skipCounter{}
	w := NewWriter(&buf, WithSkipRecorder(sc))

	require.NoError(t, w.Write(domain.DerivedAnnotation{TermID: "MP:1", TargetID: "MGI:1"}))
	require.NoError(t, w.Write(domain.DerivedAnnotation{TermID: "MP:2"}))
	require.NoError(t, w.Flush())

	assert.Equal(t, Stats{Written: 1, Skipped: 1}, w.Stats())
	assert.Equal(t, 1, sc.n)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.True(t, strings.HasPrefix(buf.String(), "MP:1\tMGI:1\t"))
}

func TestWriteRecordsFromCursor(t *testing.T) {
	settings, err := testutil.ScenarioSettings(domain.TargetMarker)
	require.NoError(t, err)
	src := memory.NewSource(testutil.ScenarioSnapshot(), testutil.SentinelTerm)
	cur := rollup.NewCursor(src, settings)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for {
		rec, ok, err := cur.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		require.NoError(t, w.WriteRecord(rec))
	}
	require.NoError(t, w.Flush())

	assert.Equal(t, Stats{Targets: 4, Written: 9}, w.Stats())
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t,
		"MP:0000500\tMGI:11\tJ:100\tEXP\t\t\tcurator\t\tseen in homozygotes\t\tsex&=&M&==&_SourceAnnot_key&=&100",
		lines[0])
	for _, l := range lines {
		assert.Len(t, strings.Split(l, "\t"), Columns)
	}
}

func TestCreateWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "mp_marker.txt")
	f, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	require.NoError(t, f.Write(domain.DerivedAnnotation{TermID: "MP:1", TargetID: "MGI:1"}))
	require.NoError(t, f.Flush())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "load file visible before Close")
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "MP:1\tMGI:1\t\t\t\t\t\t\t\t\t\n", string(data))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = Create("")
	assert.ErrorContains(t, err, "path required")
}

func TestAbortDiscardsUnfinishedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mp_marker.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o600))

	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Write(domain.DerivedAnnotation{TermID: "MP:1", TargetID: "MGI:1"}))
	require.NoError(t, f.Flush())
	require.NoError(t, f.Abort())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
