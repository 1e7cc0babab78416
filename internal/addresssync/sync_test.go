package addresssync

import (
	"errors"
	"net/url"
	"testing"

	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLocation struct{ calls int }

func (f *failingLocation) ReplaceState(string) error {
	f.calls++
	return errors.New("history unavailable")
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSync(t *testing.T) {
	base := mustParse(t, "https://admin.example.com/posts?page=9#top")
	h := NewHistory(base.String())
	s := New(h, base)

	s.Sync(models.Query{
		Page:     models.Ptr(2),
		PageSize: models.Ptr(20),
		Status:   models.Ptr(models.PostStatusDraft),
	})

	assert.Equal(t, "https://admin.example.com/posts?page=2&pageSize=20&status=0", h.Current())
	assert.Equal(t, 1, h.Replaced())
}

func TestSync_EmptyQuery(t *testing.T) {
	h := NewHistory("")
	s := New(h, mustParse(t, "/posts"))

	s.Sync(models.Query{})
	assert.Equal(t, "/posts?", h.Current())
}

func TestSync_EveryChangeReplaces(t *testing.T) {
	h := NewHistory("")
	s := New(h, mustParse(t, "/posts"))

	for page := 1; page <= 3; page++ {
		s.Sync(models.Query{Page: models.Ptr(page)})
	}
	assert.Equal(t, "/posts?page=3", h.Current())
	assert.Equal(t, 3, h.Replaced())
}

func TestSync_FailureIsNotFatal(t *testing.T) {
	loc := &failingLocation{}
	s := New(loc, mustParse(t, "/posts"))

	assert.NotPanics(t, func() { s.Sync(models.Query{Page: models.Ptr(1)}) })
	assert.Equal(t, 1, loc.calls)
}

func TestInitialQuery(t *testing.T) {
	q := InitialQuery("?title=hello&status=1&page=abc", 0)
	assert.Equal(t, models.Query{
		Page:     models.Ptr(1),
		PageSize: models.Ptr(20),
		Title:    models.Ptr("hello"),
		Status:   models.Ptr(models.PostStatusPublished),
	}, q)

	assert.Equal(t, 10, *InitialQuery("", 10).PageSize)
	assert.Equal(t, 5, *InitialQuery("pageSize=5", 10).PageSize)
}

func TestRoundTripThroughAddress(t *testing.T) {
	h := NewHistory("")
	base := mustParse(t, "/posts")
	s := New(h, base)

	q := models.Query{
		Page:     models.Ptr(4),
		PageSize: models.Ptr(10),
		Title:    models.Ptr("a b&c"),
		Order:    models.Ptr(models.SortDescending),
	}
	s.Sync(q)

	u := mustParse(t, h.Current())
	assert.Equal(t, q, InitialQuery(u.RawQuery, 0))
}
