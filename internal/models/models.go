package models

import "time"

// PostStatus is the publication state of a post.
type PostStatus int

const (
	PostStatusDraft     PostStatus = 0
	PostStatusPublished PostStatus = 1
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// SortOrder is the direction applied to Post.Order when listing.
type SortOrder int

const (
	SortAscending  SortOrder = 0
	SortDescending SortOrder = 1
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Post struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Status    PostStatus `json:"status"`
	Order     int        `json:"order"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Query describes which subset of posts to fetch. A nil field means
// "no constraint" (or the default for Page and PageSize).
type Query struct {
	Page     *int        `json:"page,omitempty"`
	PageSize *int        `json:"pageSize,omitempty"`
	Title    *string     `json:"title,omitempty"`
	Status   *PostStatus `json:"status,omitempty"`
	Order    *SortOrder  `json:"order,omitempty"`
}

// Clone returns a copy of q that shares no pointers with it.
func (q Query) Clone() Query {
	var c Query
	if q.Page != nil {
		c.Page = Ptr(*q.Page)
	}
	if q.PageSize != nil {
		c.PageSize = Ptr(*q.PageSize)
	}
	if q.Title != nil {
		c.Title = Ptr(*q.Title)
	}
	if q.Status != nil {
		c.Status = Ptr(*q.Status)
	}
	if q.Order != nil {
		c.Order = Ptr(*q.Order)
	}
	return c
}

// ResolvedPage returns the 1-based page the query asks for.
func (q Query) ResolvedPage() int {
	if q.Page == nil || *q.Page < 1 {
		return DefaultPage
	}
	return *q.Page
}

// ResolvedPageSize returns the page size the query asks for, capped at
// MaxPageSize.
func (q Query) ResolvedPageSize() int {
	if q.PageSize == nil || *q.PageSize < 1 {
		return DefaultPageSize
	}
	return min(*q.PageSize, MaxPageSize)
}

// PageBounds returns the [start, end) window of page within total items.
// A page past the end yields an empty window at total.
func PageBounds(page, pageSize, total int) (start, end int) {
	if page < 1 || pageSize < 1 || total <= 0 {
		return 0, 0
	}
	if page-1 > (total-1)/pageSize {
		return total, total
	}
	start = (page - 1) * pageSize
	return start, min(start+pageSize, total)
}

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

type ListResponse[T any] struct {
	List       []T        `json:"list"`
	Pagination Pagination `json:"pagination"`
}

// EmptyList is the initial list state before the first fetch completes.
func EmptyList[T any]() ListResponse[T] {
	return ListResponse[T]{
		List: []T{},
		Pagination: Pagination{
			Page:     DefaultPage,
			PageSize: DefaultPageSize,
		},
	}
}

type CreatePostDto struct {
	Title   string     `json:"title" validate:"required"`
	Content string     `json:"content" validate:"required"`
	Status  PostStatus `json:"status" validate:"oneof=0 1"`
	Order   int        `json:"order" validate:"min=1"`
}

type CreatePostResult struct {
	ID int64 `json:"id"`
}

// UpdatePostDto carries a partial update; nil fields are left unchanged.
type UpdatePostDto struct {
	ID      int64       `json:"id" validate:"gt=0"`
	Title   *string     `json:"title,omitempty" validate:"omitempty,min=1"`
	Content *string     `json:"content,omitempty" validate:"omitempty,min=1"`
	Status  *PostStatus `json:"status,omitempty" validate:"omitempty,oneof=0 1"`
	Order   *int        `json:"order,omitempty" validate:"omitempty,min=1"`
}

type BatchUpdatePostsStatusDto struct {
	IDs    []int64    `json:"ids" validate:"required,min=1,dive,gt=0"`
	Status PostStatus `json:"status" validate:"oneof=0 1"`
	Remark string     `json:"remark" validate:"required"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
