package gateway

import (
	"context"
	"time"

	"github.com/ButyrinIA/postadmin/internal/metrics"
	"github.com/ButyrinIA/postadmin/internal/models"
)

// Instrumented records duration and failures of every call made through next.
type Instrumented struct {
	next    Gateway
	metrics *metrics.Metrics
}

func Instrument(next Gateway, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	g.metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		g.metrics.GatewayErrors.WithLabelValues(op).Inc()
	}
}

func (g *Instrumented) List(ctx context.Context, query models.Query) (res *models.ListResponse[models.Post], err error) {
	defer func(start time.Time) { g.observe("list", start, err) }(time.Now())
	return g.next.List(ctx, query)
}

func (g *Instrumented) Get(ctx context.Context, id int64) (post *models.Post, err error) {
	defer func(start time.Time) { g.observe("get", start, err) }(time.Now())
	return g.next.Get(ctx, id)
}

func (g *Instrumented) Create(ctx context.Context, dto models.CreatePostDto) (res *models.CreatePostResult, err error) {
	defer func(start time.Time) { g.observe("create", start, err) }(time.Now())
	return g.next.Create(ctx, dto)
}

func (g *Instrumented) Update(ctx context.Context, dto models.UpdatePostDto) (err error) {
	defer func(start time.Time) { g.observe("update", start, err) }(time.Now())
	return g.next.Update(ctx, dto)
}

func (g *Instrumented) Delete(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { g.observe("delete", start, err) }(time.Now())
	return g.next.Delete(ctx, id)
}

func (g *Instrumented) BatchUpdateStatus(ctx context.Context, dto models.BatchUpdatePostsStatusDto) (err error) {
	defer func(start time.Time) { g.observe("batch_update_status", start, err) }(time.Now())
	return g.next.BatchUpdateStatus(ctx, dto)
}
