// Package gateway is the remote list gateway: the only way sessions and the
// REST API reach the post collection. Every call may be slow and may fail;
// callers only learn that a request failed.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/storage"
)

var (
	// ErrRequestFailed is the single failure condition of every gateway call.
	ErrRequestFailed = errors.New("request failed")
	// ErrInvalidArgument marks a DTO that failed validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks an id that does not exist.
	ErrNotFound = storage.ErrNotFound
)

type Gateway interface {
	List(ctx context.Context, query models.Query) (*models.ListResponse[models.Post], error)
	Get(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, dto models.CreatePostDto) (*models.CreatePostResult, error)
	Update(ctx context.Context, dto models.UpdatePostDto) error
	Delete(ctx context.Context, id int64) error
	BatchUpdateStatus(ctx context.Context, dto models.BatchUpdatePostsStatusDto) error
}

// fail wraps err so that both ErrRequestFailed and the cause match errors.Is.
func fail(op string, err error) error {
	if errors.Is(err, ErrRequestFailed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRequestFailed, err)
}
