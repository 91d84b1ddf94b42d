package models

// Page is one zero-based slice of a server-side collection, in Spring Data's JSON shape.
// A Page is treated as immutable once received.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// Valid reports whether the page honours its bounds.
func (p Page[T]) Valid() bool {
	return p.Number >= 0 && p.Size >= 0 && len(p.Content) <= p.Size
}
