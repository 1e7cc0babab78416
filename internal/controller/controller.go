// Package controller ties a list query to a fetch function. Every query
// change starts a fetch cycle; only the most recently started cycle may
// commit its result or clear the loading flag.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/metrics"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/querycodec"
)

var (
	errEmptyResponse = errors.New("fetch returned no data")
	errFetchPanic    = errors.New("fetch panicked")
)

// Fetcher loads one page of entities for a query.
type Fetcher[E any] func(ctx context.Context, query models.Query) (*models.ListResponse[E], error)

// State is a snapshot of the controller.
type State[E any] struct {
	Query   models.Query
	Data    models.ListResponse[E]
	Loading bool
}

type options struct {
	log     *logger.Entry
	metrics *metrics.Metrics
	timeout time.Duration
}

type Option func(*options)

func WithLogger(log *logger.Entry) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithFetchTimeout bounds every fetch. Zero means no bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

type Controller[E any] struct {
	fetch Fetcher[E]
	opts  options

	ctx  context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	state      State[E]
	generation uint64
	cancel     context.CancelFunc
	idle       chan struct{} // open while a cycle is in flight
	closed     bool

	// notifyMu is taken before mu is released so observers see changes
	// in the order they were made.
	notifyMu sync.Mutex
	onState  []func(State[E])
	onQuery  []func(models.Query)
}

func New[E any](fetch Fetcher[E], defaultQuery models.Query, opts ...Option) *Controller[E] {
	o := options{log: logger.Log.WithField("component", "controller")}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Controller[E]{
		fetch: fetch,
		opts:  o,
		ctx:   ctx,
		stop:  stop,
		state: State[E]{
			Query: defaultQuery.Clone(),
			Data:  models.EmptyList[E](),
		},
	}
}

// Subscribe registers fn for every state change. Observers run
// synchronously and must not call back into the controller.
func (c *Controller[E]) Subscribe(fn func(State[E])) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onState = append(c.onState, fn)
}

// OnQueryChange registers fn for every query change, including Start.
func (c *Controller[E]) OnQueryChange(fn func(models.Query)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onQuery = append(c.onQuery, fn)
}

// Start runs the first fetch cycle with the initial query.
func (c *Controller[E]) Start() {
	c.apply(func(q models.Query, _ models.ListResponse[E]) models.Query { return q })
}

// State returns a snapshot that shares nothing with the controller.
func (c *Controller[E]) State() State[E] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetQuery replaces the query with update(current) and refetches.
func (c *Controller[E]) SetQuery(update func(models.Query) models.Query) {
	c.apply(func(q models.Query, _ models.ListResponse[E]) models.Query { return update(q) })
}

// Refresh refetches with an equal query.
func (c *Controller[E]) Refresh() {
	c.SetQuery(func(q models.Query) models.Query { return q })
}

// AfterDelete moves to the previous page when the removed rows emptied
// the current one, otherwise it refreshes.
func (c *Controller[E]) AfterDelete(removed int) {
	c.apply(func(q models.Query, data models.ListResponse[E]) models.Query {
		if removed >= len(data.List) && q.Page != nil && *q.Page > 1 {
			q.Page = models.Ptr(clamp(*q.Page-1, 1, *q.Page))
		}
		return q
	})
}

// Search filters by title and goes back to the first page. A nil title
// removes the filter.
func (c *Controller[E]) Search(title *string) {
	c.SetQuery(func(q models.Query) models.Query {
		q.Title = title
		q.Page = models.Ptr(1)
		return q
	})
}

// FilterStatus filters by status and goes back to the first page.
func (c *Controller[E]) FilterStatus(status *models.PostStatus) {
	c.SetQuery(func(q models.Query) models.Query {
		q.Status = status
		q.Page = models.Ptr(1)
		return q
	})
}

// Sort orders by Post.Order and goes back to the first page.
func (c *Controller[E]) Sort(order *models.SortOrder) {
	c.SetQuery(func(q models.Query) models.Query {
		q.Order = order
		q.Page = models.Ptr(1)
		return q
	})
}

// Paginate moves to page; a non-positive pageSize keeps the current one.
// pageSize is capped at models.MaxPageSize.
func (c *Controller[E]) Paginate(page, pageSize int) {
	c.SetQuery(func(q models.Query) models.Query {
		q.Page = models.Ptr(max(page, 1))
		if pageSize > 0 {
			q.PageSize = models.Ptr(min(pageSize, models.MaxPageSize))
		}
		return q
	})
}

// WaitIdle blocks until no fetch cycle is in flight.
func (c *Controller[E]) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close invalidates the in-flight fetch. Later query changes are ignored.
func (c *Controller[E]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	c.stop()
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

func (c *Controller[E]) apply(update func(models.Query, models.ListResponse[E]) models.Query) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.state.Query = update(c.state.Query.Clone(), c.state.Data).Clone()
	c.startLocked()
	snap := c.snapshotLocked()

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range c.onQuery {
		fn(snap.Query.Clone())
	}
	for _, fn := range c.onState {
		fn(snap)
	}
}

func (c *Controller[E]) startLocked() {
	c.generation++
	gen := c.generation

	if c.cancel != nil {
		c.cancel()
	}
	var ctx context.Context
	if c.opts.timeout > 0 {
		ctx, c.cancel = context.WithTimeout(c.ctx, c.opts.timeout)
	} else {
		ctx, c.cancel = context.WithCancel(c.ctx)
	}

	c.state.Loading = true
	if c.idle == nil {
		c.idle = make(chan struct{})
	}

	go c.run(ctx, gen, c.state.Query.Clone())
}

func (c *Controller[E]) run(ctx context.Context, gen uint64, query models.Query) {
	res, err := c.safeFetch(ctx, query)
	if err == nil && res == nil {
		err = errEmptyResponse
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		c.opts.metrics.ObserveFetch(metrics.FetchDiscarded)
		c.opts.log.WithField("query", querycodec.Serialize(query)).Debug("stale fetch discarded")
		return
	}

	c.cancel()
	c.cancel = nil

	if err != nil {
		c.opts.metrics.ObserveFetch(metrics.FetchFailed)
		c.opts.log.WithError(err).WithField("query", querycodec.Serialize(query)).Warn("list fetch failed")
	} else {
		c.state.Data = *res
		c.opts.metrics.ObserveFetch(metrics.FetchCommitted)
	}
	c.state.Loading = false
	close(c.idle)
	c.idle = nil
	snap := c.snapshotLocked()

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range c.onState {
		fn(snap)
	}
}

// safeFetch turns a panicking fetch into a failed one.
func (c *Controller[E]) safeFetch(ctx context.Context, query models.Query) (res *models.ListResponse[E], err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", errFetchPanic, r)
		}
	}()
	return c.fetch(ctx, query)
}

func (c *Controller[E]) snapshotLocked() State[E] {
	data := c.state.Data
	data.List = append([]E(nil), c.state.Data.List...)
	if data.List == nil {
		data.List = []E{}
	}
	return State[E]{
		Query:   c.state.Query.Clone(),
		Data:    data,
		Loading: c.state.Loading,
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
