package robotskirt

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/benmills/robotskirt/buffer"
)

// Pool renders sessions on worker goroutines, at most a fixed number at a
// time.
//
// Only sessions without script-bound slots may be offloaded. Script
// callbacks must run on the goroutine that owns the script runtime.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool returns a pool running up to workers renders at once. A
// non-positive workers uses GOMAXPROCS.
func NewPool(workers int64, opts *Options) *Pool {
	if workers <= 0 {
		workers = int64(runtime.GOMAXPROCS(0))
	}
	return &Pool{
		sem:    semaphore.NewWeighted(workers),
		logger: opts.logger(),
	}
}

// Go renders input with s on a worker goroutine and calls done with the
// result from that goroutine. It returns ErrScriptBound without starting
// anything when s has script-bound slots. ctx bounds only the wait for a
// free worker; a started render always runs to completion.
func (p *Pool) Go(ctx context.Context, s *Session, input []byte, done func([]byte, error)) error {
	if s.ScriptBound() {
		return ErrScriptBound
	}
	if s.closed.Load() {
		return ErrClosed
	}
	snap := s.snap.retain()
	input = bytes.Clone(input)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer snap.Release()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			done(nil, err)
			return
		}
		ob := buffer.New(buffer.DefaultUnit)
		err := snap.Render(ob, input, s.ext, s.maxNesting)
		p.sem.Release(1)
		if err != nil {
			p.logger.Debug("offloaded render failed", "err", err)
			done(nil, err)
			return
		}
		done(ob.Transfer(), nil)
	}()
	return nil
}

// Wait blocks until every render started with Go has called done.
func (p *Pool) Wait() { p.wg.Wait() }
