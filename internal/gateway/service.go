package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ButyrinIA/postadmin/internal/cache"
	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/querycodec"
	"github.com/ButyrinIA/postadmin/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/graph-gophers/dataloader/v7"
)

// errSimulated is returned when the configured failure rate triggers.
var errSimulated = errors.New("simulated network failure")

type Options struct {
	// Each call waits a random duration in [MinDelay, MaxDelay].
	MinDelay time.Duration
	MaxDelay time.Duration
	// Probability in [0, 1] that a call fails after its delay.
	FailureRate float64
	// Optional list cache.
	Cache cache.ListCache
	// How long Get waits to collect ids into one storage call.
	BatchWait time.Duration
	// Rand drives delays and failures; nil uses the global source.
	Rand *rand.Rand
	// Sleep replaces the context-aware wait, mostly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Service is the in-process gateway over a storage.Storage.
type Service struct {
	store    storage.Storage
	opts     Options
	validate *validator.Validate
	loader   *dataloader.Loader[int64, *models.Post]
	log      *logger.Entry

	rngMu sync.Mutex
}

func NewService(store storage.Storage, opts Options) *Service {
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.BatchWait <= 0 {
		opts.BatchWait = 2 * time.Millisecond
	}

	s := &Service{
		store:    store,
		opts:     opts,
		validate: validator.New(),
		log:      logger.Log.WithField("component", "gateway"),
	}
	// Без кэша: пост может измениться между запросами
	s.loader = dataloader.NewBatchedLoader(s.batchGet,
		dataloader.WithCache[int64, *models.Post](&dataloader.NoCache[int64, *models.Post]{}),
		dataloader.WithWait[int64, *models.Post](opts.BatchWait),
	)
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) randInt64N(n int64) int64 {
	if s.opts.Rand == nil {
		return rand.Int64N(n)
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.opts.Rand.Int64N(n)
}

func (s *Service) randFloat64() float64 {
	if s.opts.Rand == nil {
		return rand.Float64()
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.opts.Rand.Float64()
}

// roundTrip waits out the simulated latency and rolls the failure dice.
func (s *Service) roundTrip(ctx context.Context) error {
	delay := s.opts.MinDelay
	if spread := s.opts.MaxDelay - s.opts.MinDelay; spread > 0 {
		delay += time.Duration(s.randInt64N(int64(spread) + 1))
	}
	if err := s.opts.Sleep(ctx, delay); err != nil {
		return err
	}
	if s.opts.FailureRate > 0 && s.randFloat64() < s.opts.FailureRate {
		return errSimulated
	}
	return nil
}

func (s *Service) List(ctx context.Context, query models.Query) (*models.ListResponse[models.Post], error) {
	const op = "gateway.List"

	if err := s.roundTrip(ctx); err != nil {
		return nil, fail(op, err)
	}

	q := query.Clone()
	q.Page = models.Ptr(q.ResolvedPage())
	q.PageSize = models.Ptr(q.ResolvedPageSize())
	key := querycodec.Serialize(q)

	var version int64
	if s.opts.Cache != nil {
		page, v, hit, err := s.opts.Cache.Get(ctx, key)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("list cache read failed")
		case hit:
			return page, nil
		}
		version = v
	}

	page, err := s.store.ListPosts(ctx, q)
	if err != nil {
		s.log.WithError(err).WithField("query", key).Error("list posts failed")
		return nil, fail(op, err)
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Set(ctx, version, key, page); err != nil {
			s.log.WithError(err).Warn("list cache write failed")
		}
	}
	return page, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Post, error) {
	const op = "gateway.Get"

	if err := s.roundTrip(ctx); err != nil {
		return nil, fail(op, err)
	}

	post, err := s.loader.Load(ctx, id)()
	if err != nil {
		return nil, fail(op, err)
	}
	return post, nil
}

func (s *Service) batchGet(ctx context.Context, ids []int64) []*dataloader.Result[*models.Post] {
	results := make([]*dataloader.Result[*models.Post], len(ids))

	found, err := s.store.GetPosts(ctx, ids)
	if err != nil {
		s.log.WithError(err).WithField("ids", ids).Error("get posts failed")
	}
	for i, id := range ids {
		switch p, ok := found[id]; {
		case err != nil:
			results[i] = &dataloader.Result[*models.Post]{Error: err}
		case !ok:
			results[i] = &dataloader.Result[*models.Post]{Error: fmt.Errorf("post %d: %w", id, ErrNotFound)}
		default:
			results[i] = &dataloader.Result[*models.Post]{Data: &p}
		}
	}
	return results
}

func (s *Service) Create(ctx context.Context, dto models.CreatePostDto) (*models.CreatePostResult, error) {
	const op = "gateway.Create"

	if err := s.roundTrip(ctx); err != nil {
		return nil, fail(op, err)
	}
	if err := s.check(dto); err != nil {
		return nil, fail(op, err)
	}

	post := &models.Post{
		Title:   dto.Title,
		Content: dto.Content,
		Status:  dto.Status,
		Order:   dto.Order,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		s.log.WithError(err).Error("create post failed")
		return nil, fail(op, err)
	}

	s.invalidate(ctx)
	s.log.WithField("id", post.ID).Info("post created")
	return &models.CreatePostResult{ID: post.ID}, nil
}

func (s *Service) Update(ctx context.Context, dto models.UpdatePostDto) error {
	const op = "gateway.Update"

	if err := s.roundTrip(ctx); err != nil {
		return fail(op, err)
	}
	if err := s.check(dto); err != nil {
		return fail(op, err)
	}

	if err := s.store.UpdatePost(ctx, dto); err != nil {
		return fail(op, err)
	}

	s.invalidate(ctx)
	s.log.WithField("id", dto.ID).Info("post updated")
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "gateway.Delete"

	if err := s.roundTrip(ctx); err != nil {
		return fail(op, err)
	}
	if id <= 0 {
		return fail(op, fmt.Errorf("%w: id must be positive", ErrInvalidArgument))
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		return fail(op, err)
	}

	s.invalidate(ctx)
	s.log.WithField("id", id).Info("post deleted")
	return nil
}

func (s *Service) BatchUpdateStatus(ctx context.Context, dto models.BatchUpdatePostsStatusDto) error {
	const op = "gateway.BatchUpdateStatus"

	if err := s.roundTrip(ctx); err != nil {
		return fail(op, err)
	}
	if err := s.check(dto); err != nil {
		return fail(op, err)
	}

	if err := s.store.UpdatePostsStatus(ctx, dto.IDs, dto.Status); err != nil {
		s.log.WithError(err).Error("batch status update failed")
		return fail(op, err)
	}

	s.invalidate(ctx)
	s.log.WithFields(logger.Fields{
		"ids":    dto.IDs,
		"status": dto.Status,
		"remark": dto.Remark,
	}).Info("post statuses updated")
	return nil
}

func (s *Service) check(dto any) error {
	if err := s.validate.Struct(dto); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("list cache invalidation failed")
	}
}
