package feed

// Item is anything a feed can hold. FeedKey must be unique within one feed.
type Item interface {
	FeedKey() string
}

// Page is one server response page. A nil Data means the data array was
// missing from the response; an empty page has a non-nil, zero-length Data.
type Page[T any] struct {
	Data        []T  `json:"data"`
	TotalCount  int  `json:"totalCount"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
}

// Missing reports whether the page came without a data array.
func (p Page[T]) Missing() bool {
	return p.Data == nil
}

// Merge folds page into existing and returns the new item list together with
// the has-next-page flag to store.
//
// The first page replaces existing, itself de-duplicated: a key repeated within
// page 1 is kept once, so the result can be shorter than page.Data. Later pages append only items whose key is
// not present yet, keeping arrival order; the first occurrence wins. A page
// without a data array is treated as empty with no next page.
func Merge[T Item](existing []T, page Page[T], isFirstPage bool) ([]T, bool) {
	if page.Missing() {
		if isFirstPage {
			return []T{}, false
		}
		return existing, false
	}

	var base []T
	if !isFirstPage {
		base = existing
	}

	seen := make(map[string]struct{}, len(base)+len(page.Data))
	out := make([]T, 0, len(base)+len(page.Data))
	for _, it := range base {
		seen[it.FeedKey()] = struct{}{}
		out = append(out, it)
	}
	for _, it := range page.Data {
		key := it.FeedKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out, page.HasNextPage
}
