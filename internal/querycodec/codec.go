// Package querycodec converts between an address query string and
// models.Query.
//
// Decoding is permissive: malformed integers are dropped rather than
// reported, order is clamped into its two values and status is passed
// through without checking it against the known statuses. Page size is
// capped at models.MaxPageSize.
package querycodec

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ButyrinIA/postadmin/internal/models"
)

const (
	KeyPage     = "page"
	KeyPageSize = "pageSize"
	KeyTitle    = "title"
	KeyStatus   = "status"
	KeyOrder    = "order"
)

// Parse decodes raw (with or without a leading '?') into a Query.
// Unknown keys are ignored; for repeated keys the first value wins.
func Parse(raw string) models.Query {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil && len(values) == 0 {
		return models.Query{}
	}
	return FromValues(values)
}

// FromValues decodes already split query values.
func FromValues(values url.Values) models.Query {
	var q models.Query

	if n, ok := positiveInt(values, KeyPage); ok {
		q.Page = &n
	}
	if n, ok := positiveInt(values, KeyPageSize); ok {
		n = min(n, models.MaxPageSize)
		q.PageSize = &n
	}
	if v, ok := first(values, KeyTitle); ok {
		q.Title = &v
	}
	if n, ok := integer(values, KeyStatus); ok {
		s := models.PostStatus(n)
		q.Status = &s
	}
	if n, ok := integer(values, KeyOrder); ok {
		o := models.SortOrder(min(max(n, int(models.SortAscending)), int(models.SortDescending)))
		q.Order = &o
	}

	return q
}

// Serialize encodes q, omitting absent fields. Keys come out sorted.
func Serialize(q models.Query) string {
	return ToValues(q).Encode()
}

// ToValues encodes q into url.Values.
func ToValues(q models.Query) url.Values {
	values := url.Values{}
	if q.Page != nil {
		values.Set(KeyPage, strconv.Itoa(*q.Page))
	}
	if q.PageSize != nil {
		values.Set(KeyPageSize, strconv.Itoa(*q.PageSize))
	}
	if q.Title != nil {
		values.Set(KeyTitle, *q.Title)
	}
	if q.Status != nil {
		values.Set(KeyStatus, strconv.Itoa(int(*q.Status)))
	}
	if q.Order != nil {
		values.Set(KeyOrder, strconv.Itoa(int(*q.Order)))
	}
	return values
}

// Default parses raw and fills in the default page and page size.
func Default(raw string) models.Query {
	return WithDefaults(Parse(raw), models.DefaultPageSize)
}

// WithDefaults fills in page 1 and pageSize when q leaves them out.
// A non-positive pageSize falls back to models.DefaultPageSize.
func WithDefaults(q models.Query, pageSize int) models.Query {
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}
	if q.Page == nil {
		q.Page = models.Ptr(models.DefaultPage)
	}
	if q.PageSize == nil {
		q.PageSize = models.Ptr(min(pageSize, models.MaxPageSize))
	}
	return q
}

func first(values url.Values, key string) (string, bool) {
	vs, ok := values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func integer(values url.Values, key string) (int, bool) {
	v, ok := first(values, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func positiveInt(values url.Values, key string) (int, bool) {
	n, ok := integer(values, key)
	if !ok || n < 1 {
		return 0, false
	}
	return n, true
}
