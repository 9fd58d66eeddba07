// Package pagination computes the page-number window shown under the
// post list.
package pagination

// Item is one slot in the pager: a page number, or a gap rendered as an
// ellipsis.
type Item struct {
	Page int
	Gap  bool
}

func page(n int) Item { return Item{Page: n} }

var gap = Item{Gap: true}

// Window returns the fixed-width list of pager items for the given
// current page. Seven or fewer pages are shown in full; otherwise the
// window keeps the first and last page visible and collapses the rest
// around the current one.
func Window(current, total int) []Item {
	if total <= 7 {
		items := make([]Item, 0, total)
		for i := 1; i <= total; i++ {
			items = append(items, page(i))
		}
		return items
	}

	switch {
	case current <= 4:
		return []Item{page(1), page(2), page(3), page(4), page(5), gap, page(total)}
	case current >= total-3:
		return []Item{page(1), gap, page(total - 4), page(total - 3), page(total - 2), page(total - 1), page(total)}
	default:
		return []Item{page(1), gap, page(current - 1), page(current), page(current + 1), gap, page(total)}
	}
}
