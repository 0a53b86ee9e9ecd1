// Package history loads size trends for directories on a bounded worker
// pool. RequestHistory serves a single consumer: only its most recent request
// delivers a result, older ones are cancelled and their callbacks suppressed.
// Fetch serves independent callers, each waiting for its own result.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/zenonby/directory-getinfo/pkg/getinfo/logging"
	"github.com/zenonby/directory-getinfo/pkg/getinfo/types"
)

// DefaultWorkers is the pool size used when New is given zero.
const DefaultWorkers = 4

// ErrClosed is returned by requests made after Close.
var ErrClosed = errors.New("history provider closed")

// Source reads saved stats of one directory.
type Source interface {
	StatsHistory(ctx context.Context, path string) ([]types.HistoryPoint, error)
}

// Callback receives the result of a request.
type Callback func(path string, points []types.SizePoint, err error)

// Provider runs history requests.
type Provider struct {
	source Source
	log    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	pool   *pool.ContextPool
	// submit is held for reading while a task is handed to the pool, and
	// for writing by Close before it waits on the pool.
	submit sync.RWMutex

	mu         sync.Mutex
	seq        uint64
	cancelLast context.CancelFunc
	ignore     bool
	closed     bool
}

// New returns a provider running at most workers loads at once.
func New(source Source, workers int) *Provider {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		source: source,
		log:    logging.Get("history"),
		ctx:    ctx,
		cancel: cancel,
		pool:   pool.New().WithMaxGoroutines(workers).WithContext(ctx),
	}
}

// RequestHistory loads the trend of path in the background and calls cb
// with it unless a newer request has been made in the meantime. It may block
// while every worker is busy.
func (p *Provider) RequestHistory(path string, cb Callback) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.seq++
	seq := p.seq
	if p.cancelLast != nil {
		p.cancelLast()
	}
	reqCtx, cancel := context.WithCancel(p.ctx)
	p.cancelLast = cancel
	p.mu.Unlock()

	if !p.beginSubmit() {
		cancel()
		return ErrClosed
	}
	defer p.submit.RUnlock()
	p.pool.Go(func(context.Context) error {
		defer cancel()

		points, err := p.Load(reqCtx, path)
		if err != nil && reqCtx.Err() == nil {
			p.log.Warn("history load failed", "path", path, "err", err)
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.ignore || seq != p.seq {
			return nil
		}
		cb(path, points, err)
		return nil
	})
	return nil
}

// Fetch loads the trend of path on the pool and waits for it. Unlike
// RequestHistory, concurrent Fetch calls do not replace each other; each is
// cancelled only by its own ctx or by Close.
func (p *Provider) Fetch(ctx context.Context, path string) ([]types.SizePoint, error) {
	type result struct {
		points []types.SizePoint
		err    error
	}
	out := make(chan result, 1)

	if !p.beginSubmit() {
		return nil, ErrClosed
	}
	p.pool.Go(func(poolCtx context.Context) error {
		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()

		points, err := p.Load(reqCtx, path)
		out <- result{points: points, err: err}
		return nil
	})
	p.submit.RUnlock()

	select {
	case r := <-out:
		return r.points, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// beginSubmit takes the submit lock for reading unless the provider is
// closed. The caller releases it after handing its task to the pool.
func (p *Provider) beginSubmit() bool {
	p.submit.RLock()
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.submit.RUnlock()
		return false
	}
	return true
}

// Load reads the trend of path synchronously, oldest point first. Points
// whose total size is unknown are dropped.
func (p *Provider) Load(ctx context.Context, path string) ([]types.SizePoint, error) {
	hist, err := p.source.StatsHistory(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading history of %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]types.SizePoint, 0, len(hist))
	for _, h := range hist {
		if h.Stats.TotalSize == nil {
			continue
		}
		points = append(points, types.SizePoint{Timestamp: h.Timestamp, TotalSize: *h.Stats.TotalSize})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

// IgnoreCallback suppresses every callback not yet started. Once it
// returns, no callback is running.
func (p *Provider) IgnoreCallback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignore = true
}

// Close cancels outstanding requests and waits for the workers to exit.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.submit.Lock()
	defer p.submit.Unlock()
	return p.pool.Wait()
}
