package rollup

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"genorollup/internal/logger"
	"genorollup/pkg/domain"
)

// CursorState is the lifecycle position of a Cursor.
type CursorState int

const (
	CursorUninitialized CursorState = iota
	CursorResolving
	CursorStreaming
	CursorExhausted
	CursorFailed
)

func (s CursorState) String() string {
	switch s {
	case CursorUninitialized:
		return "uninitialized"
	case CursorResolving:
		return "resolving"
	case CursorStreaming:
		return "streaming"
	case CursorExhausted:
		return "exhausted"
	case CursorFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Cursor streams resolved targets one at a time, loading annotation bundles
// in batches bounded by the configured annotation ceiling.
type Cursor struct {
	source   Source
	settings Settings
	engine   *Engine
	log      *zap.SugaredLogger
	observer Observer

	state CursorState
	err   error

	result   Result
	lookups  *Lookups
	targets  []domain.Key
	counts   []int
	byTarget map[domain.Key][]domain.Key
	next     int
	batches  int

	pending []TargetRecord
}

// NewCursor returns a cursor reading from source. The same options used for
// the engine apply to the cursor.
func NewCursor(source Source, settings Settings, opts ...Option) *Cursor {
	e := NewEngine(settings, opts...)
	return &Cursor{
		source:   source,
		settings: settings,
		engine:   e,
		log:      e.log,
		observer: e.observer,
	}
}

// State returns the cursor's lifecycle state.
func (c *Cursor) State() CursorState { return c.state }

// Result returns the cascade outcome once resolution has completed.
func (c *Cursor) Result() Result { return c.result }

// Lookups returns the caches loaded during resolution.
func (c *Cursor) Lookups() *Lookups { return c.lookups }

// Next returns the next target record. It returns false once every target
// has been emitted; after a failure it keeps returning the first error.
func (c *Cursor) Next(ctx context.Context) (TargetRecord, bool, error) {
	switch c.state {
	case CursorFailed:
		return TargetRecord{}, false, c.err
	case CursorExhausted:
		return TargetRecord{}, false, nil
	case CursorUninitialized:
		if err := c.resolve(ctx); err != nil {
			return TargetRecord{}, false, c.fail(err)
		}
	}

	if len(c.pending) == 0 {
		if c.next >= len(c.targets) {
			c.state = CursorExhausted
			c.log.Infow("cursor exhausted", logger.FieldTargets, len(c.targets), logger.FieldBatch, c.batches)
			return TargetRecord{}, false, nil
		}
		if err := c.loadBatch(ctx); err != nil {
			return TargetRecord{}, false, c.fail(err)
		}
	}

	rec := c.pending[0]
	c.pending = c.pending[1:]
	return rec, true, nil
}

func (c *Cursor) fail(err error) error {
	c.state = CursorFailed
	c.err = err
	c.pending = nil
	return err
}

func (c *Cursor) resolve(ctx context.Context) error {
	c.state = CursorResolving

	var facts *Facts
	if err := observe(ctx, c.observer, "facts", func() error {
		var err error
		facts, err = c.source.Facts(ctx)
		return err
	}); err != nil {
		return errors.Wrap(err, "load facts")
	}

	res, err := c.engine.Resolve(facts)
	if err != nil {
		return errors.Wrap(err, "resolve keepers")
	}
	c.result = res
	c.targets = res.Targets()
	c.byTarget = res.GenotypesByTarget()
	c.counts = make([]int, len(c.targets))
	for i, t := range c.targets {
		for _, g := range c.byTarget[t] {
			c.counts[i] += facts.AnnotationCounts[g]
		}
	}

	if err := observe(ctx, c.observer, "lookups", func() error {
		var err error
		c.lookups, err = c.source.Lookups(ctx, c.settings.Target(), c.targets)
		return err
	}); err != nil {
		return errors.Wrap(err, "load lookups")
	}

	c.state = CursorStreaming
	c.log.Infow("cursor streaming", logger.FieldTargets, len(c.targets))
	return nil
}

// batchEnd returns the last index of the batch starting at start. The batch
// grows while its annotation total stays below ceiling; a target whose own
// count reaches ceiling forms a batch by itself.
func batchEnd(counts []int, start, ceiling int) int {
	total := counts[start]
	end := start
	for total < ceiling && end < len(counts)-1 {
		total += counts[end+1]
		if total < ceiling {
			end++
		}
	}
	return end
}

func (c *Cursor) loadBatch(ctx context.Context) error {
	start := c.next
	end := batchEnd(c.counts, start, c.settings.MaxBatchAnnotations())
	batch := c.targets[start : end+1]

	seen := make(map[domain.Key]bool)
	var genotypes []domain.Key
	annotations := 0
	for i, t := range batch {
		annotations += c.counts[start+i]
		for _, g := range c.byTarget[t] {
			if !seen[g] {
				seen[g] = true
				genotypes = append(genotypes, g)
			}
		}
	}
	domain.SortKeys(genotypes)

	var bundle *Bundle
	if err := observe(ctx, c.observer, "annotations", func() error {
		var err error
		bundle, err = c.source.Annotations(ctx, genotypes)
		return err
	}); err != nil {
		return errors.Wrapf(err, "load annotations for targets %d..%d", batch[0], batch[len(batch)-1])
	}
	ix, err := indexBundle(bundle)
	if err != nil {
		return err
	}

	m := NewMaterializer(c.settings, c.lookups)
	records := make([]TargetRecord, 0, len(batch))
	rows := 0
	for _, t := range batch {
		rec, err := m.materialize(t, ix, c.byTarget[t])
		if err != nil {
			return err
		}
		rows += rec.Len()
		records = append(records, rec)
	}

	c.batches++
	c.observer.BatchLoaded(len(batch), annotations)
	c.observer.RowsDerived(rows)
	c.log.Debugw("batch loaded",
		logger.FieldBatch, c.batches,
		logger.FieldTargets, len(batch),
		logger.FieldGenotypes, len(genotypes),
		logger.FieldAnnotation, annotations,
		"rows", rows,
	)
	c.pending = records
	c.next = end + 1
	return nil
}
