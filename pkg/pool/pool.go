// Package pool shares open file handles between concurrent readers and
// writers of index files.
package pool

import (
	"context"
	"os"
	"sync"
	"time"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/util/logger"
	"go-bpindex/util/timer"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options configures a Pool.
type Options struct {
	// MaxOpen bounds the number of simultaneously open files. 0 keeps every
	// file open until CloseAll.
	MaxOpen int64

	// AcquireTimeout bounds how long Acquire waits for a free slot under the
	// bounded policy.
	AcquireTimeout time.Duration

	// CloseTimeout bounds how long CloseAll waits for handles in use.
	CloseTimeout time.Duration

	Logger logrus.FieldLogger
}

// Pool hands out reference counted handles keyed by file path.
type Pool struct {
	opts Options
	log  logrus.FieldLogger
	sem  *semaphore.Weighted

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// Handle is a shared open file. Every Handle returned by Acquire must be
// released exactly once.
type Handle struct {
	pool *Pool
	path string
	file *os.File
	refs int
}

func New(opts Options) *Pool {
	p := &Pool{
		opts:    opts,
		log:     opts.Logger,
		handles: map[string]*Handle{},
	}
	if p.log == nil {
		p.log = logger.L
	}
	if opts.MaxOpen > 0 {
		p.sem = semaphore.NewWeighted(opts.MaxOpen)
	}
	return p
}

func (h *Handle) File() *os.File { return h.file }

func (h *Handle) Release() error {
	return h.pool.release(h)
}

// Acquire returns the shared handle of path, opening (and creating) the file
// if needed. Under the bounded policy it waits up to AcquireTimeout for an
// open slot and fails with customerrors.ErrTimeout.
func (p *Pool) Acquire(ctx context.Context, path string) (*Handle, error) {
	if h, err := p.reuse(path); h != nil || err != nil {
		return h, err
	}

	if p.sem != nil {
		if err := p.waitSlot(ctx, path); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.releaseSlot()
		return nil, customerrors.ErrClosed
	}
	// another caller may have opened it while we waited
	if h, ok := p.handles[path]; ok {
		h.refs++
		p.releaseSlot()
		return h, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		p.releaseSlot()
		return nil, customerrors.IO(err, "failed to open "+path)
	}

	h := &Handle{pool: p, path: path, file: f, refs: 1}
	p.handles[path] = h
	p.log.WithField("path", path).Debug("opened file")
	return h, nil
}

func (p *Pool) reuse(path string) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, customerrors.ErrClosed
	}
	if h, ok := p.handles[path]; ok {
		h.refs++
		return h, nil
	}
	return nil, nil
}

func (p *Pool) waitSlot(ctx context.Context, path string) error {
	if p.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.Wrapf(customerrors.ErrTimeout, "failed to acquire handle of %s", path)
		}
		return errors.Wrapf(err, "failed to acquire handle of %s", path)
	}
	return nil
}

func (p *Pool) releaseSlot() {
	if p.sem != nil {
		p.sem.Release(1)
	}
}

func (p *Pool) release(h *Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h.refs <= 0 {
		return errors.Errorf("handle of %s released more than acquired", h.path)
	}
	h.refs--
	if h.refs > 0 || p.sem == nil {
		return nil
	}

	delete(p.handles, h.path)
	p.releaseSlot()
	p.log.WithField("path", h.path).Debug("closed file")
	return customerrors.IO(h.file.Close(), "failed to close "+h.path)
}

// Len returns the number of open files.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

func (p *Pool) inUse() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h.refs > 0 {
			return true
		}
	}
	return false
}

// CloseAll rejects new acquisitions, waits up to CloseTimeout for handles in
// use to be released and closes every file. Files still in use when the
// timeout expires are closed anyway and ErrTimeout is returned.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	waitCtx := ctx
	if p.opts.CloseTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.opts.CloseTimeout)
		defer cancel()
	}
	waitErr := timer.Poll(waitCtx, 5*time.Millisecond, func() bool { return !p.inUse() })
	if waitErr != nil {
		p.log.WithError(waitErr).Warn("closing files still in use")
		waitErr = errors.Wrap(customerrors.ErrTimeout, "failed to drain file handles")
	}

	p.mu.Lock()
	handles := p.handles
	p.handles = map[string]*Handle{}
	p.mu.Unlock()

	g := errgroup.Group{}
	for _, h := range handles {
		h := h
		g.Go(func() error {
			return customerrors.IO(h.file.Close(), "failed to close "+h.path)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return waitErr
}
