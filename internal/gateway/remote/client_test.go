package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithRetryInterval(time.Millisecond), WithMaxRetries(3))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestList_SendsQuery(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/posts", r.URL.Path)
		assert.Equal(t, "order=1&page=2&status=0", r.URL.RawQuery)
		writeJSON(w, http.StatusOK, models.ListResponse[models.Post]{
			List:       []models.Post{{ID: 3, Title: "post - 3"}},
			Pagination: models.Pagination{Page: 2, PageSize: 20, Total: 21},
		})
	})

	res, err := c.List(context.Background(), models.Query{
		Page:   models.Ptr(2),
		Status: models.Ptr(models.PostStatusDraft),
		Order:  models.Ptr(models.SortDescending),
	})
	require.NoError(t, err)
	assert.Equal(t, 21, res.Pagination.Total)
	assert.Equal(t, "post - 3", res.List[0].Title)
}

func TestList_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "try later"})
			return
		}
		writeJSON(w, http.StatusOK, models.EmptyList[models.Post]())
	})

	_, err := c.List(context.Background(), models.Query{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestList_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "down"})
	})

	_, err := c.List(context.Background(), models.Query{})
	assert.ErrorIs(t, err, gateway.ErrRequestFailed)
	assert.Equal(t, int32(4), calls.Load(), "first attempt plus three retries")
}

func TestGet_RetryDecodesIntoFreshValue(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			// id и title декодируются до ошибки типа в order
			_, _ = w.Write([]byte(`{"id":5,"title":"stale","order":"bad"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"content":"fresh"}`))
	})

	post, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(7), post.ID)
	assert.Equal(t, "fresh", post.Content)
	assert.Empty(t, post.Title, "fields from the failed attempt must not leak")
}

func TestGet_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/posts/9", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
	})

	_, err := c.Get(context.Background(), 9)
	assert.ErrorIs(t, err, gateway.ErrRequestFailed)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreate_NotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})

	_, err := c.Create(context.Background(), models.CreatePostDto{Title: "t", Content: "c", Order: 1})
	assert.ErrorIs(t, err, gateway.ErrRequestFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreate(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var dto models.CreatePostDto
		require.NoError(t, json.NewDecoder(r.Body).Decode(&dto))
		assert.Equal(t, "Тестовый пост", dto.Title)
		writeJSON(w, http.StatusCreated, models.CreatePostResult{ID: 46})
	})

	res, err := c.Create(context.Background(), models.CreatePostDto{Title: "Тестовый пост", Content: "c", Order: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(46), res.ID)
}

func TestMutations(t *testing.T) {
	var seen []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/api/posts/batch-status" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "remark is required"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, models.UpdatePostDto{ID: 4, Title: models.Ptr("x")}))
	require.NoError(t, c.Delete(ctx, 4))

	err := c.BatchUpdateStatus(ctx, models.BatchUpdatePostsStatusDto{IDs: []int64{1}})
	assert.ErrorIs(t, err, gateway.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "remark is required")

	assert.Equal(t, []string{
		"PUT /api/posts/4",
		"DELETE /api/posts/4",
		"POST /api/posts/batch-status",
	}, seen)
}
