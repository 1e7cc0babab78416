// Package session is one admin screen: a list controller fed by the
// gateway, its address kept in sync, and the forms' mutations.
package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/ButyrinIA/postadmin/internal/addresssync"
	"github.com/ButyrinIA/postadmin/internal/controller"
	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/metrics"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/google/uuid"
)

type State = controller.State[models.Post]

type Options struct {
	// Base is the address the list is shown at, e.g. https://host/posts.
	Base *url.URL
	// DefaultPageSize applies when the address carries no pageSize.
	DefaultPageSize int
	FetchTimeout    time.Duration
	Metrics         *metrics.Metrics
}

type Session struct {
	ID string

	gw     gateway.Gateway
	ctrl   *controller.Controller[models.Post]
	syncer *addresssync.Syncer
	log    *logger.Entry
	m      *metrics.Metrics

	closeOnce sync.Once
}

// New builds a session whose starting query comes from rawQuery, the
// query string of the address the screen was opened with.
func New(gw gateway.Gateway, rawQuery string, loc addresssync.Location, opts Options) *Session {
	id := uuid.NewString()
	log := logger.Log.WithField("session", id)

	initial := addresssync.InitialQuery(rawQuery, opts.DefaultPageSize)

	base := opts.Base
	if base == nil {
		base = &url.URL{Path: "/posts"}
	}

	s := &Session{
		ID:     id,
		gw:     gw,
		syncer: addresssync.New(loc, base),
		log:    log,
		m:      opts.Metrics,
		ctrl: controller.New[models.Post](gw.List, initial,
			controller.WithLogger(log.WithField("component", "controller")),
			controller.WithMetrics(opts.Metrics),
			controller.WithFetchTimeout(opts.FetchTimeout),
		),
	}
	s.ctrl.OnQueryChange(s.syncer.Sync)
	if s.m != nil {
		s.m.Sessions.Inc()
	}
	return s
}

// Subscribe registers fn for every state change; call it before Start.
func (s *Session) Subscribe(fn func(State)) { s.ctrl.Subscribe(fn) }

// Start mounts the screen: the address is rewritten and the first page
// is fetched.
func (s *Session) Start() {
	s.log.Info("session started")
	s.ctrl.Start()
}

func (s *Session) State() State { return s.ctrl.State() }

func (s *Session) WaitIdle(ctx context.Context) error { return s.ctrl.WaitIdle(ctx) }

func (s *Session) Paginate(page, pageSize int) { s.ctrl.Paginate(page, pageSize) }

func (s *Session) Search(title *string) { s.ctrl.Search(title) }

// Reset clears the title search.
func (s *Session) Reset() { s.ctrl.Search(nil) }

func (s *Session) FilterStatus(status *models.PostStatus) { s.ctrl.FilterStatus(status) }

func (s *Session) Sort(order *models.SortOrder) { s.ctrl.Sort(order) }

func (s *Session) Refresh() { s.ctrl.Refresh() }

// Get loads one post, e.g. to prefill the edit form.
func (s *Session) Get(ctx context.Context, id int64) (*models.Post, error) {
	return s.gw.Get(ctx, id)
}

// Create adds a post and refreshes the list. On failure the list is
// left untouched and the error goes back to the form.
func (s *Session) Create(ctx context.Context, dto models.CreatePostDto) (*models.CreatePostResult, error) {
	res, err := s.gw.Create(ctx, dto)
	if err != nil {
		s.log.WithError(err).Warn("create failed")
		return nil, err
	}
	s.ctrl.Refresh()
	return res, nil
}

func (s *Session) Update(ctx context.Context, dto models.UpdatePostDto) error {
	if err := s.gw.Update(ctx, dto); err != nil {
		s.log.WithError(err).WithField("id", dto.ID).Warn("update failed")
		return err
	}
	s.ctrl.Refresh()
	return nil
}

// Delete removes one post; if it was the last row of a page past the
// first, the list moves back a page.
func (s *Session) Delete(ctx context.Context, id int64) error {
	if err := s.gw.Delete(ctx, id); err != nil {
		s.log.WithError(err).WithField("id", id).Warn("delete failed")
		return err
	}
	s.ctrl.AfterDelete(1)
	return nil
}

func (s *Session) BatchUpdateStatus(ctx context.Context, dto models.BatchUpdatePostsStatusDto) error {
	if err := s.gw.BatchUpdateStatus(ctx, dto); err != nil {
		s.log.WithError(err).Warn("batch status update failed")
		return err
	}
	s.ctrl.Refresh()
	return nil
}

// Close dismantles the screen; a fetch still in flight never lands.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.ctrl.Close()
		if s.m != nil {
			s.m.Sessions.Dec()
		}
		s.log.Info("session closed")
	})
}
