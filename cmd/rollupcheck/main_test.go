package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"genorollup/internal/app"
	"genorollup/internal/config"
	"genorollup/internal/infra/persistence/memory"
	"genorollup/internal/verify"
	"genorollup/testutil"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshot.json")
	require.NoError(t, memory.WriteSnapshot(snapshot, testutil.ScenarioSnapshot()))
	path := filepath.Join(dir, "rollup.yaml")
	body := "storage:\n  driver: memory\n  snapshot_path: " + snapshot + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCLIMatchesScenario(t *testing.T) {
	cfgPath := writeConfig(t)
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-c", cfgPath, "mpMarker", "mpAllele"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "mpMarker: 4 targets, 9 rows, 0 mismatches")
	assert.Contains(t, stdout.String(), "mpAllele: 1 targets, 2 rows, 0 mismatches")
	assert.Contains(t, stdout.String(), "All records matched")
}

func TestCLIDefaultsAndMismatches(t *testing.T) {
	cfgPath := writeConfig(t)
	orig := runCheck
	t.Cleanup(func() { runCheck = orig })
	var seen []string
	runCheck = func(_ context.Context, cfg *config.Config, _ *zap.SugaredLogger, _ app.Options) (app.Result, error) {
		seen = append(seen, cfg.Rollup.AnnotationType)
		return app.Result{Report: &verify.Report{Targets: 1, Rows: 3, Mismatches: 1}}, nil
	}
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-c", cfgPath}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Equal(t, []string{"diseaseMarker", "mpMarker"}, seen)
	assert.Contains(t, stderr.String(), "failed with 2 mismatches")
}

func TestCLIErrors(t *testing.T) {
	cfgPath := writeConfig(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, cli([]string{"-c", cfgPath, "goMarker"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "unknown annotation type: goMarker")

	orig := runCheck
	t.Cleanup(func() { runCheck = orig })
	runCheck = func(context.Context, *config.Config, *zap.SugaredLogger, app.Options) (app.Result, error) {
		return app.Result{}, assert.AnError
	}
	stderr.Reset()
	assert.Equal(t, 1, cli([]string{"-c", cfgPath, "mpMarker"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "mpMarker")
}
