package feed

import "fmt"

// SortOrder selects how feeds and items are ordered in list views.
type SortOrder int

const (
	// SortNewest orders by publication date, most recent first.
	SortNewest SortOrder = iota
	// SortOldest orders by publication date, oldest first.
	SortOldest
	// SortTitleAsc orders alphabetically by title.
	SortTitleAsc
	// SortTitleDesc orders reverse-alphabetically by title.
	SortTitleDesc
	// SortUnreadFirst floats unread items above read ones, newest first
	// within each group.
	SortUnreadFirst
	// SortManual follows the user-assigned sort key; items without a key
	// fall back to newest-first at the end.
	SortManual
)

var sortOrderNames = map[string]SortOrder{
	"newest":       SortNewest,
	"oldest":       SortOldest,
	"title":        SortTitleAsc,
	"title_desc":   SortTitleDesc,
	"unread_first": SortUnreadFirst,
	"manual":       SortManual,
}

// ParseSortOrder maps a configuration string onto a SortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	if s == "" {
		return SortNewest, nil
	}
	order, ok := sortOrderNames[s]
	if !ok {
		return SortNewest, fmt.Errorf("unknown sort order %q", s)
	}
	return order, nil
}

func (o SortOrder) String() string {
	for name, order := range sortOrderNames {
		if order == o {
			return name
		}
	}
	return "newest"
}
