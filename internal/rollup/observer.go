package rollup

import (
	"context"
	"time"

	"genorollup/pkg/domain"
)

// Observer receives run statistics. Implementations must tolerate calls from
// a single goroutine at a time.
type Observer interface {
	// Observe records the outcome of a Source operation.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	KeepersClaimed(rule domain.RuleID, n int)
	GenotypesUnresolved(n int)
	BatchLoaded(targets, annotations int)
	RowsDerived(n int)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, string, bool, time.Duration) {}
func (nopObserver) KeepersClaimed(domain.RuleID, int)                    {}
func (nopObserver) GenotypesUnresolved(int)                              {}
func (nopObserver) BatchLoaded(int, int)                                 {}
func (nopObserver) RowsDerived(int)                                      {}

// NopObserver discards every observation.
func NopObserver() Observer { return nopObserver{} }

func observe(ctx context.Context, o Observer, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}
