package domain

// ListParams carries page/limit values from the HTTP layer to the repo layer.
// Page is 1-indexed.
type ListParams struct {
	Page  int
	Limit int
}

// NewListParams builds ListParams from optional query values.
// Nil pointers fall back to page=1, limit=50; limit is capped at 200 so the
// history endpoints cannot dump an entire table.
func NewListParams(page, limit *int) ListParams {
	p := ListParams{Page: 1, Limit: 50}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, 200)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
