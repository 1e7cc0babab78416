package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/storage"
)

// MemoryStorage keeps posts in a slice ordered the way an unsorted list
// shows them: the most recently created first.
type MemoryStorage struct {
	posts  []models.Post
	nextID int64
	now    func() time.Time
	mu     sync.RWMutex
}

func New(seed ...models.Post) *MemoryStorage {
	s := &MemoryStorage{
		posts:  make([]models.Post, 0, len(seed)),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, p := range seed {
		s.posts = append(s.posts, p)
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
	return s
}

func (s *MemoryStorage) ListPosts(ctx context.Context, query models.Query) (*models.ListResponse[models.Post], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page := query.ResolvedPage()
	pageSize := query.ResolvedPageSize()

	filtered := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if query.Title != nil && *query.Title != "" && !strings.Contains(p.Title, *query.Title) {
			continue
		}
		if query.Status != nil && p.Status != *query.Status {
			continue
		}
		filtered = append(filtered, p)
	}

	if query.Order != nil {
		desc := *query.Order == models.SortDescending
		sort.SliceStable(filtered, func(i, j int) bool {
			if desc {
				return filtered[i].Order > filtered[j].Order
			}
			return filtered[i].Order < filtered[j].Order
		})
	}

	total := len(filtered)
	start, end := models.PageBounds(page, pageSize, total)

	list := make([]models.Post, end-start)
	copy(list, filtered[start:end])

	return &models.ListResponse[models.Post]{
		List: list,
		Pagination: models.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

func (s *MemoryStorage) GetPosts(ctx context.Context, ids []int64) (map[int64]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	found := make(map[int64]models.Post, len(ids))
	for _, p := range s.posts {
		if _, ok := want[p.ID]; ok {
			found[p.ID] = p
		}
	}
	return found, nil
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	post.ID = s.nextID
	post.CreatedAt = now
	post.UpdatedAt = now
	s.nextID++

	// Новые посты идут в начало списка
	s.posts = append([]models.Post{*post}, s.posts...)
	return nil
}

func (s *MemoryStorage) UpdatePost(ctx context.Context, update models.UpdatePostDto) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(update.ID)
	if i < 0 {
		return storage.ErrNotFound
	}

	p := &s.posts[i]
	if update.Title != nil {
		p.Title = *update.Title
	}
	if update.Content != nil {
		p.Content = *update.Content
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	if update.Order != nil {
		p.Order = *update.Order
	}
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStorage) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return storage.ErrNotFound
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	return nil
}

func (s *MemoryStorage) UpdatePostsStatus(ctx context.Context, ids []int64, status models.PostStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	now := s.now()
	for i := range s.posts {
		if _, ok := want[s.posts[i].ID]; ok {
			s.posts[i].Status = status
			s.posts[i].UpdatedAt = now
		}
	}
	return nil
}

// Close drops every post.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = nil
	return nil
}

func (s *MemoryStorage) indexOf(id int64) int {
	for i, p := range s.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
