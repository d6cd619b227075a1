package app

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"genorollup/internal/blob"
	"genorollup/internal/config"
	"genorollup/internal/loadfile"
	"genorollup/internal/logger"
	"genorollup/internal/rollup"
)

// Load writes the annotation load file for cfg's annotation type and, when
// configured, uploads it. The file is complete before any upload starts.
func Load(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, opts Options) (Result, error) {
	r, err := start(ctx, cfg, log, opts)
	if err != nil {
		return Result{}, err
	}
	defer r.close()

	res := Result{RunID: r.opts.RunID}
	out, err := loadfile.Create(cfg.Output.Path,
		loadfile.WithLogger(r.log),
		loadfile.WithSkipRecorder(r.metrics),
	)
	if err != nil {
		return res, err
	}
	checker, err := r.drain(ctx, r.opts.Verify, out.WriteRecord)
	if err != nil {
		if abortErr := out.Abort(); abortErr != nil {
			r.log.Warnw("discard unfinished load file", "error", abortErr)
		}
		return res, err
	}
	if err := out.Close(); err != nil {
		return res, err
	}
	stats := out.Stats()
	res.Targets, res.Written, res.Skipped = stats.Targets, stats.Written, stats.Skipped
	res.Rows = stats.Written + stats.Skipped
	r.log.Infow("load file written",
		"path", out.Path(),
		logger.FieldTargets, stats.Targets,
		"rows", stats.Written,
		"skipped", stats.Skipped,
	)

	if checker != nil {
		report, err := checker.Finish(ctx)
		if err != nil {
			return res, errors.Wrap(err, "verify")
		}
		res.Report = &report
	}
	if err := r.finish(&res); err != nil {
		return res, err
	}

	if cfg.Output.Blob.Enabled() {
		info, err := r.publish(ctx, out.Path(), stats)
		if err != nil {
			return res, err
		}
		res.Artifact = &info
	}
	return res, nil
}

func (r *run) publish(ctx context.Context, path string, stats loadfile.Stats) (blob.Info, error) {
	bcfg := r.cfg.Output.Blob
	bs, err := r.opts.OpenBlob(ctx, bcfg)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "open blob store")
	}
	if bs == nil {
		return blob.Info{}, errors.New("blob store disabled")
	}
	key := blob.Key(bcfg.Prefix, r.opts.RunID, path)
	info, err := blob.PublishFile(ctx, bs, key, path, map[string]string{
		"run_id":          r.opts.RunID,
		"annotation_type": r.cfg.Rollup.AnnotationType,
		"rows":            strconv.Itoa(stats.Written),
	})
	if err != nil {
		return blob.Info{}, err
	}
	r.log.Infow("load file uploaded", logger.FieldDriver, string(bs.Driver()), "key", info.Key, "size", info.Size)
	return info, nil
}

// Check runs the rollup without writing a load file and verifies every
// derived annotation against its source.
func Check(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, opts Options) (Result, error) {
	r, err := start(ctx, cfg, log, opts)
	if err != nil {
		return Result{}, err
	}
	defer r.close()

	res := Result{RunID: r.opts.RunID}
	checker, err := r.drain(ctx, true, func(rec rollup.TargetRecord) error {
		res.Targets++
		res.Rows += rec.Len()
		return nil
	})
	if err != nil {
		return res, err
	}
	report, err := checker.Finish(ctx)
	if err != nil {
		return res, errors.Wrap(err, "verify")
	}
	res.Report = &report
	if err := r.finish(&res); err != nil {
		return res, err
	}
	return res, nil
}
