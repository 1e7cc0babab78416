// Package addresssync mirrors a list query into the address of the page
// that displays it. The address is written on every change and read only
// once, when the session starts.
package addresssync

import (
	"net/url"
	"sync"

	"github.com/ButyrinIA/postadmin/internal/logger"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/querycodec"
)

// Location replaces the current address without adding a history entry
// or reloading the page.
type Location interface {
	ReplaceState(url string) error
}

type Syncer struct {
	loc  Location
	base url.URL
	log  *logger.Entry
}

// New returns a syncer writing addresses built from base. Only the
// scheme, host and path of base are kept.
func New(loc Location, base *url.URL) *Syncer {
	b := url.URL{Scheme: base.Scheme, Host: base.Host, Path: base.Path}
	return &Syncer{
		loc:  loc,
		base: b,
		log:  logger.Log.WithField("component", "addresssync"),
	}
}

// InitialQuery derives the starting query from the address query string.
// pageSize applies when the address has none; zero means the default.
func InitialQuery(raw string, pageSize int) models.Query {
	return querycodec.WithDefaults(querycodec.Parse(raw), pageSize)
}

// URL is the address that represents q.
func (s *Syncer) URL(q models.Query) string {
	return s.base.String() + "?" + querycodec.Serialize(q)
}

// Sync writes q into the address. Failures are logged; the list keeps working.
func (s *Syncer) Sync(q models.Query) {
	target := s.URL(q)
	if err := s.loc.ReplaceState(target); err != nil {
		s.log.WithError(err).WithField("url", target).Warn("replace state failed")
	}
}

// History is an in-memory Location that keeps a single current entry.
type History struct {
	mu       sync.Mutex
	current  string
	replaced int
}

func NewHistory(initial string) *History {
	return &History{current: initial}
}

func (h *History) ReplaceState(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = url
	h.replaced++
	return nil
}

func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Replaced counts ReplaceState calls.
func (h *History) Replaced() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replaced
}
