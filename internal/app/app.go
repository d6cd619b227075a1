// Package app runs a rollup end to end: it opens the configured source,
// streams targets through the cursor and hands each record to the load-file
// writer and, when asked, the provenance checker.
package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"genorollup/internal/blob"
	"genorollup/internal/config"
	"genorollup/internal/logger"
	"genorollup/internal/observability"
	"genorollup/internal/rollup"
	"genorollup/internal/store"
	"genorollup/internal/verify"
	"genorollup/pkg/domain"
)

// Settings converts cfg into rollup settings for its annotation type.
func Settings(cfg *config.Config) (rollup.Settings, error) {
	sel, ok := config.LookupSelector(cfg.Rollup.AnnotationType)
	if !ok {
		return rollup.Settings{}, &rollup.ConfigError{Field: "annotation_type", Reason: "unknown selector " + cfg.Rollup.AnnotationType}
	}
	variant, ok := rollup.VariantFor(sel.Target)
	if !ok {
		return rollup.Settings{}, &rollup.ConfigError{Field: "annotation_type", Reason: "no variant for " + string(sel.Target)}
	}
	return rollup.NewSettings(rollup.SettingsInput{
		Variant:             variant,
		SentinelTerm:        domain.Key(cfg.Rollup.SentinelTermKey),
		ProvenanceTerm:      sel.ProvenanceTerm,
		MaxBatchAnnotations: cfg.Rollup.MaxBatchAnnotations,
		DockingSites:        cfg.DockingSites,
	})
}

// Options controls a run.
type Options struct {
	// Verify checks every record against its source annotations while the
	// load file is written.
	Verify bool

	// RunID labels logs, metrics and uploaded artifacts. A random UUID is
	// used when empty.
	RunID string

	// OpenSource overrides store.Open.
	OpenSource func(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (store.Source, error)

	// OpenBlob overrides blob.Open.
	OpenBlob func(ctx context.Context, cfg config.BlobConfig) (blob.Store, error)
}

func (o *Options) defaults() {
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.OpenSource == nil {
		o.OpenSource = store.Open
	}
	if o.OpenBlob == nil {
		o.OpenBlob = blob.Open
	}
}

// Result describes a finished run.
type Result struct {
	RunID   string
	Targets int
	Rows    int

	// Written and Skipped count load-file lines; Check leaves them zero.
	Written int
	Skipped int

	// Unresolved is the number of genotypes no rule attributed.
	Unresolved int

	// Report is set when the run verified its output.
	Report *verify.Report

	// Artifact is set when the load file was uploaded.
	Artifact *blob.Info
}

// run holds the per-run wiring shared by Load and Check.
type run struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	opts     Options
	settings rollup.Settings
	metrics  *observability.Metrics
	source   store.Source
	cursor   *rollup.Cursor
}

func start(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, opts Options) (*run, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	opts.defaults()
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.FieldRunID, opts.RunID)

	settings, err := Settings(cfg)
	if err != nil {
		return nil, err
	}
	src, err := opts.OpenSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	metrics := observability.NewMetrics(cfg.Rollup.AnnotationType, opts.RunID)
	cur := rollup.NewCursor(src, settings,
		rollup.WithLogger(logger.Component(log, "rollup")),
		rollup.WithObserver(metrics),
	)
	log.Infow("rollup started",
		"annotation_type", cfg.Rollup.AnnotationType,
		"target", string(settings.Target()),
		"max_batch_annotations", settings.MaxBatchAnnotations(),
	)
	return &run{
		cfg:      cfg,
		log:      log,
		opts:     opts,
		settings: settings,
		metrics:  metrics,
		source:   src,
		cursor:   cur,
	}, nil
}

// drain feeds every cursor record to fn. The checker, when non-nil, is
// created once the cursor has loaded its lookup tables.
func (r *run) drain(ctx context.Context, check bool, fn func(rollup.TargetRecord) error) (*verify.Checker, error) {
	var checker *verify.Checker
	for {
		rec, ok, err := r.cursor.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if check {
			if checker == nil {
				checker = r.newChecker()
			}
			if err := checker.AddRecord(ctx, rec); err != nil {
				return nil, err
			}
		}
		if fn != nil {
			if err := fn(rec); err != nil {
				return nil, err
			}
		}
	}
	if check && checker == nil {
		checker = r.newChecker()
	}
	return checker, nil
}

func (r *run) newChecker() *verify.Checker {
	return verify.NewChecker(r.source, r.settings, r.cursor.Lookups(),
		verify.WithLogger(r.log),
		verify.WithChunkSize(verify.DefaultChunkSize),
	)
}

func (r *run) finish(res *Result) error {
	res.Unresolved = r.cursor.Result().Unresolved
	if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		return err
	}
	return nil
}

func (r *run) close() {
	if err := r.source.Close(); err != nil {
		r.log.Warnw("close source", "error", err)
	}
}
