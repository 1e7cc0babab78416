// Package pagination turns list pagination metadata into the descriptor a
// table view renders.
package pagination

import (
	"fmt"

	"github.com/ButyrinIA/postadmin/internal/models"
)

// Descriptor is what a paginated table needs to draw its pager.
type Descriptor struct {
	Current  int `json:"current"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// Adapt converts list pagination into a Descriptor.
func Adapt(p models.Pagination) Descriptor {
	return Descriptor{
		Current:  p.Page,
		PageSize: p.PageSize,
		Total:    p.Total,
	}
}

// Summary renders the human readable pager caption.
func (d Descriptor) Summary() string {
	return fmt.Sprintf("page size %d, total %d", d.PageSize, d.Total)
}

// TotalPages returns the number of pages needed to show Total items.
func (d Descriptor) TotalPages() int {
	if d.PageSize <= 0 {
		return 0
	}
	return (d.Total + d.PageSize - 1) / d.PageSize
}
