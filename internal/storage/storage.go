package storage

import (
	"context"
	"errors"

	"github.com/ButyrinIA/postadmin/internal/models"
)

var (
	// ErrNotFound is returned when no post has the requested id.
	ErrNotFound = errors.New("post not found")
)

// Storage is the backing collection of posts. Implementations apply the
// list semantics themselves: title substring filter, status filter (zero
// included), stable sort by order and 1-based paging with total counted
// before paging.
type Storage interface {
	ListPosts(ctx context.Context, query models.Query) (*models.ListResponse[models.Post], error)
	GetPosts(ctx context.Context, ids []int64) (map[int64]models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, update models.UpdatePostDto) error
	DeletePost(ctx context.Context, id int64) error
	UpdatePostsStatus(ctx context.Context, ids []int64, status models.PostStatus) error
	Close() error
}
